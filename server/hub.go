package server

import (
	"encoding/json"
	"sync"

	"cursorpilot/cursor"
)

// Hub 覆盖层集合：作为控制器的 PositionSink（广播位置）与 DisplaySource（视口尺寸）
type Hub struct {
	mu sync.RWMutex

	overlays map[string]*ClientConn
	reports  map[*ClientConn]displayReport
	seq      uint64
	fallback cursor.Bounds

	last    CursorMessage
	hasLast bool
	closed  bool

	metrics *Metrics
}

type displayReport struct {
	bounds cursor.Bounds
	seq    uint64
}

// NewHub fallback：没有覆盖层上报尺寸时使用
func NewHub(fallback cursor.Bounds, m *Metrics) *Hub {
	if m == nil {
		m = &Metrics{}
	}
	return &Hub{
		overlays: make(map[string]*ClientConn),
		reports:  make(map[*ClientConn]displayReport),
		fallback: fallback,
		metrics:  m,
	}
}

// Join 加入覆盖层，并立即补发当前位置
func (h *Hub) Join(id string, c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.overlays[id]; ok && old != c {
		old.Close()
	}
	h.overlays[id] = c
	if h.hasLast {
		if b, err := json.Marshal(h.last); err == nil {
			h.enqueue(c, b)
		}
	}
}

// Leave 移除客户端上报的尺寸；覆盖层仅在仍是该 ID 的当前连接时移除
func (h *Hub) Leave(id string, c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.reports, c)
	if cur, ok := h.overlays[id]; ok && cur == c {
		delete(h.overlays, id)
	}
}

// ReportDisplay 记录连接的视口尺寸，最近一次有效上报生效。按连接区分，同 ID 的不同连接互不覆盖。
func (h *Hub) ReportDisplay(c *ClientConn, b cursor.Bounds) bool {
	if !b.Valid() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.reports[c] = displayReport{bounds: b, seq: h.seq}
	return true
}

// DisplayBounds 实现 cursor.DisplaySource
func (h *Hub) DisplayBounds() (cursor.Bounds, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var (
		best  cursor.Bounds
		found uint64
	)
	for _, r := range h.reports {
		if r.seq > found {
			best, found = r.bounds, r.seq
		}
	}
	if found > 0 {
		return best, nil
	}
	if !h.fallback.Valid() {
		return cursor.Bounds{}, cursor.ErrNoDisplay
	}
	return h.fallback, nil
}

// SetPosition 实现 cursor.PositionSink：非阻塞广播，队列满则丢弃
func (h *Hub) SetPosition(x, y int) error {
	msg := CursorMessage{Type: MsgCursor, X: x, Y: y}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return cursor.ErrSinkClosed
	}
	h.last, h.hasLast = msg, true
	for _, c := range h.overlays {
		h.enqueue(c, b)
	}
	h.metrics.IncFramesBroadcast()
	return nil
}

// Overlays 在线覆盖层数量
func (h *Hub) Overlays() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.overlays)
}

// Close 断开全部覆盖层，之后的 SetPosition 返回 cursor.ErrSinkClosed
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.overlays {
		c.Close()
		delete(h.overlays, id)
	}
	h.reports = make(map[*ClientConn]displayReport)
}

func (h *Hub) enqueue(c *ClientConn, b []byte) {
	if !c.Enqueue(b) {
		h.metrics.IncQueueFullDiscarded()
	}
}
