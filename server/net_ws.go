package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// 客户端角色：overlay 接收位置广播；control 发送工具调用/移动指令（两者都可上报尺寸）
const (
	RoleOverlay = "overlay"
	RoleControl = "control"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 1 << 20 // 1MB
	sendQueue  = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ID   string
	Role string

	ws     *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(id, role string, ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ID:   id,
		Role: role,
		ws:   ws,
		send: make(chan []byte, sendQueue),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃），返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃（防止阻塞动画协程）
		return false
	}
}

// Close 关闭发送队列与底层连接，可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	// 关闭发送通道以结束写协程
	close(c.send)
	c.mu.Unlock()
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息并交给 handleMessage
func (c *ClientConn) readPump(s *Server) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		s.hub.Leave(c.ID, c)
		c.Close()
		s.metrics.DecActive()
		Log.Infow("client left", "client", c.ID, "role", c.Role)
	}()

	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	limiter := s.newLimiter()
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Warnw("read error", "client", c.ID, "err", err)
			}
			return
		}
		s.metrics.IncMessages()
		var msg InboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.metrics.IncBadMessages()
			continue
		}
		s.handleMessage(ctx, c, limiter, msg)
	}
}

// handleMessage 按消息类型分派；控制类消息先经过限流
func (s *Server) handleMessage(ctx context.Context, c *ClientConn, limiter *rate.Limiter, msg InboundMessage) {
	switch strings.ToLower(msg.Type) {
	case MsgDisplay:
		if !s.hub.ReportDisplay(c, msg.Bounds()) {
			s.metrics.IncBadMessages()
			return
		}
		Log.Debugw("display reported", "client", c.ID, "width", msg.Width, "height", msg.Height)
	case MsgToolCall:
		s.metrics.IncToolCalls()
		call := msg.ToolCall()
		if !limiter.Allow() {
			s.metrics.IncRateLimited()
			s.reply(c, ToolResponseMessage{Type: MsgToolResponse, Response: rateLimitedResponse(call.ID, call.Name)})
			return
		}
		resp := s.dispatcher.Handle(ctx, call)
		s.reply(c, ToolResponseMessage{Type: MsgToolResponse, Response: resp})
	case MsgMove:
		if !limiter.Allow() {
			s.metrics.IncRateLimited()
			return
		}
		switch {
		case strings.EqualFold(msg.Command, "right"):
			s.ctrl.MoveRight()
		case msg.X != nil && msg.Y != nil:
			s.ctrl.MoveTo(*msg.X, *msg.Y)
		default:
			s.metrics.IncBadMessages()
		}
	default:
		s.metrics.IncBadMessages()
	}
}

func (s *Server) reply(c *ClientConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorw("marshal reply", "client", c.ID, "err", err)
		return
	}
	if !c.Enqueue(b) {
		s.metrics.IncQueueFullDiscarded()
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	return rate.NewLimiter(s.limit, s.burst)
}

// HandleWS WebSocket 接入：/ws?role=overlay&client=cursor-1
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	role := strings.ToLower(r.URL.Query().Get("role"))
	switch role {
	case "":
		role = RoleControl
	case RoleOverlay, RoleControl:
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	id := r.URL.Query().Get("client")
	if id == "" {
		id = uuid.NewString()
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}

	client := NewClientConn(id, role, ws)
	s.metrics.IncConnections()
	if role == RoleOverlay {
		s.hub.Join(id, client)
	}
	Log.Infow("client joined", "client", id, "role", role, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump(s)
}
