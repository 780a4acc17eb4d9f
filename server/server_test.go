package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"cursorpilot/cursor"
	"cursorpilot/toolcall"
)

func newTestServer(t *testing.T, opts Options) (*Server, *Hub, *cursor.Controller) {
	t.Helper()
	hub := NewHub(cursor.Bounds{Width: 1000, Height: 800}, &Metrics{})
	ctrl := cursor.New(hub, hub,
		cursor.WithStart(cursor.Position{}),
		cursor.WithMotion(cursor.Motion{Duration: 40 * time.Millisecond, FPS: 100}))
	t.Cleanup(ctrl.Cleanup)
	d, err := toolcall.NewDispatcher(ctrl, nil)
	require.NoError(t, err)
	return New(hub, ctrl, d, opts), hub, ctrl
}

func waitIdle(t *testing.T, ctrl *cursor.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Wait(ctx))
}

func drain(c *ClientConn) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c.send:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestHub_DisplayBounds(t *testing.T) {
	hub := NewHub(cursor.Bounds{Width: 1920, Height: 1080}, nil)
	b, err := hub.DisplayBounds()
	require.NoError(t, err)
	require.Equal(t, cursor.Bounds{Width: 1920, Height: 1080}, b, "fallback before any report")

	a, c := NewClientConn("a", RoleOverlay, nil), NewClientConn("b", RoleOverlay, nil)
	hub.Join("a", a)
	hub.Join("b", c)
	require.True(t, hub.ReportDisplay(a, cursor.Bounds{Width: 800, Height: 600}))
	require.True(t, hub.ReportDisplay(c, cursor.Bounds{Width: 2560, Height: 1440}))
	require.False(t, hub.ReportDisplay(c, cursor.Bounds{}))

	b, _ = hub.DisplayBounds()
	require.Equal(t, cursor.Bounds{Width: 2560, Height: 1440}, b, "latest report wins")

	hub.Leave("b", c)
	b, _ = hub.DisplayBounds()
	require.Equal(t, cursor.Bounds{Width: 800, Height: 600}, b)

	empty := NewHub(cursor.Bounds{}, nil)
	_, err = empty.DisplayBounds()
	require.ErrorIs(t, err, cursor.ErrNoDisplay)
}

func TestHub_SharedIDReportsIsolated(t *testing.T) {
	hub := NewHub(cursor.Bounds{Width: 1920, Height: 1080}, nil)
	overlay := NewClientConn("ov", RoleOverlay, nil)
	hub.Join("ov", overlay)
	require.True(t, hub.ReportDisplay(overlay, cursor.Bounds{Width: 800, Height: 600}))

	// 控制端复用覆盖层的 ID 上报尺寸，离开后不能留下它的上报
	control := NewClientConn("ov", RoleControl, nil)
	require.True(t, hub.ReportDisplay(control, cursor.Bounds{Width: 2560, Height: 1440}))
	b, _ := hub.DisplayBounds()
	require.Equal(t, cursor.Bounds{Width: 2560, Height: 1440}, b)

	hub.Leave("ov", control)
	require.Equal(t, 1, hub.Overlays(), "overlay with the same id stays joined")
	b, _ = hub.DisplayBounds()
	require.Equal(t, cursor.Bounds{Width: 800, Height: 600}, b)

	hub.Leave("ov", overlay)
	require.Equal(t, 0, hub.Overlays())
	b, _ = hub.DisplayBounds()
	require.Equal(t, cursor.Bounds{Width: 1920, Height: 1080}, b)
}

func TestHub_SetPositionBroadcast(t *testing.T) {
	m := &Metrics{}
	hub := NewHub(cursor.Bounds{Width: 100, Height: 100}, m)
	a := NewClientConn("a", RoleOverlay, nil)
	hub.Join("a", a)

	require.NoError(t, hub.SetPosition(12, 34))
	msgs := drain(a)
	require.Len(t, msgs, 1)
	require.JSONEq(t, `{"type":"cursor","x":12,"y":34}`, string(msgs[0]))

	// 新加入的覆盖层立即收到当前位置
	late := NewClientConn("late", RoleOverlay, nil)
	hub.Join("late", late)
	msgs = drain(late)
	require.Len(t, msgs, 1)
	require.JSONEq(t, `{"type":"cursor","x":12,"y":34}`, string(msgs[0]))

	hub.Close()
	require.ErrorIs(t, hub.SetPosition(1, 1), cursor.ErrSinkClosed)
	require.Equal(t, 0, hub.Overlays())
	require.Equal(t, int64(1), m.FramesBroadcast)
}

func TestHub_QueueFullDrops(t *testing.T) {
	m := &Metrics{}
	hub := NewHub(cursor.Bounds{Width: 100, Height: 100}, m)
	a := NewClientConn("a", RoleOverlay, nil)
	hub.Join("a", a)
	for i := 0; i < sendQueue+5; i++ {
		require.NoError(t, hub.SetPosition(i, i))
	}
	require.Equal(t, int64(5), m.QueueFullDiscarded)
	require.Len(t, drain(a), sendQueue)
}

func TestClientConn_CloseIdempotent(t *testing.T) {
	c := NewClientConn("x", RoleControl, nil)
	c.Close()
	require.NotPanics(t, c.Close)
	require.False(t, c.Enqueue([]byte("late")))
}

func TestHandleMessage_ToolCall(t *testing.T) {
	s, hub, ctrl := newTestServer(t, Options{})
	c := NewClientConn("ctl", RoleControl, nil)
	lim := s.newLimiter()

	s.handleMessage(context.Background(), c, lim, InboundMessage{
		Type: MsgToolCall, ID: "1", Name: toolcall.ToolMoveCursor,
		Args: json.RawMessage(`{"x": 500, "y": 500}`),
	})
	// 动画进行中再次调用：被丢弃但仍然应答
	s.handleMessage(context.Background(), c, lim, InboundMessage{
		Type: MsgToolCall, ID: "2", Name: toolcall.ToolMoveCursor,
		Args: json.RawMessage(`{"x": 0, "y": 0}`),
	})
	waitIdle(t, ctrl)

	msgs := drain(c)
	require.Len(t, msgs, 2)
	require.JSONEq(t, `{"type":"tool_response","id":"1","name":"move_cursor","accepted":true}`, string(msgs[0]))
	require.JSONEq(t, `{"type":"tool_response","id":"2","name":"move_cursor","accepted":false}`, string(msgs[1]))
	require.Equal(t, cursor.Position{X: 500, Y: 400}, ctrl.Position())
	require.Equal(t, int64(2), s.metrics.ToolCalls)
	require.Equal(t, 0, hub.Overlays())
}

func TestHandleMessage_MoveAndDisplay(t *testing.T) {
	s, _, ctrl := newTestServer(t, Options{})
	c := NewClientConn("ctl", RoleControl, nil)
	lim := s.newLimiter()

	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: MsgDisplay, Width: 2000, Height: 1000})
	x, y := 250.0, 500.0
	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: "MOVE", X: &x, Y: &y})
	waitIdle(t, ctrl)
	require.Equal(t, cursor.Position{X: 500, Y: 500}, ctrl.Position())

	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: MsgMove, Command: "right"})
	waitIdle(t, ctrl)
	require.Equal(t, cursor.Position{X: 100, Y: 500}, ctrl.Position(), "600 exceeds the ceiling and wraps")

	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: MsgMove})
	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: "jump"})
	s.handleMessage(context.Background(), c, lim, InboundMessage{Type: MsgDisplay})
	require.Equal(t, int64(3), s.metrics.BadMessages)
}

func TestHandleMessage_RateLimited(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	c := NewClientConn("ctl", RoleControl, nil)
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)

	call := InboundMessage{Type: MsgToolCall, ID: "a", Name: toolcall.ToolMoveRight}
	s.handleMessage(context.Background(), c, lim, call)
	call.ID = "b"
	s.handleMessage(context.Background(), c, lim, call)

	msgs := drain(c)
	require.Len(t, msgs, 2)
	require.Contains(t, string(msgs[1]), "rate limited")
	require.Equal(t, int64(1), s.metrics.RateLimited)
}

func TestAdminConfig(t *testing.T) {
	s, _, ctrl := newTestServer(t, Options{})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"durationMs":40,"fps":100,"clamp":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"durationMs":250,"clamp":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, cursor.Motion{Duration: 250 * time.Millisecond, FPS: 100, Clamp: true}, ctrl.Motion())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"fps":0}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 换算为 time.Duration 会溢出的时长被拒绝，且不改动当前参数
	for _, body := range []string{`{"durationMs":9223372036854775807}`, `{"durationMs":9223372036855}`, `{"durationMs":-1}`} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Equal(t, 250*time.Millisecond, ctrl.Motion().Duration)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAndTools(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "idle", out["state"])
	require.Contains(t, out, "motion")
	require.Contains(t, out, "transport")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), toolcall.ToolPointTo)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "ok", rec.Body.String())
}

func TestWebSocket_EndToEnd(t *testing.T) {
	s, hub, ctrl := newTestServer(t, Options{RatePerSec: 100, Burst: 10})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	overlay, _, err := websocket.DefaultDialer.Dial(base+"?role=overlay&client=ov", nil)
	require.NoError(t, err)
	defer overlay.Close()
	require.Eventually(t, func() bool { return hub.Overlays() == 1 }, time.Second, 10*time.Millisecond)

	// 上报视口后通过工具调用移动
	require.NoError(t, overlay.WriteJSON(map[string]any{"type": "display", "width": 1000, "height": 1000}))
	require.Eventually(t, func() bool {
		b, _ := hub.DisplayBounds()
		return b.Height == 1000
	}, time.Second, 10*time.Millisecond)

	control, _, err := websocket.DefaultDialer.Dial(base, nil)
	require.NoError(t, err)
	defer control.Close()
	require.NoError(t, control.WriteJSON(map[string]any{
		"type": "tool_call", "id": "c1", "name": "point_to",
		"args": map[string]any{"xmin": 300, "ymin": 600, "xmax": 400, "ymax": 700},
	}))

	_ = control.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]any
	require.NoError(t, control.ReadJSON(&resp))
	require.Equal(t, "tool_response", resp["type"])
	require.Equal(t, "c1", resp["id"])
	require.Equal(t, true, resp["accepted"])

	// 覆盖层收到的最后一帧就是目标位置
	_ = overlay.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last CursorMessage
	for !(last.X == 300 && last.Y == 600) {
		require.NoError(t, overlay.ReadJSON(&last))
		require.Equal(t, MsgCursor, last.Type)
	}
	waitIdle(t, ctrl)
	require.Equal(t, cursor.Position{X: 300, Y: 600}, ctrl.Position())

	overlay.Close()
	require.Eventually(t, func() bool { return hub.Overlays() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandleWS_BadRole(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?role=admin", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
