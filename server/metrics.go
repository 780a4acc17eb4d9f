package server

import (
	"sync/atomic"
)

// Metrics 记录传输层的关键指标（用于监控与调试）
type Metrics struct {
	Connections        int64 // 累计 WebSocket 连接数
	Active             int64 // 当前在线连接数
	Messages           int64 // 收到的消息数
	BadMessages        int64 // 无法解析或类型未知的消息
	RateLimited        int64 // 因限流被丢弃的控制消息
	ToolCalls          int64 // 处理的工具调用
	FramesBroadcast    int64 // 广播给覆盖层的位置帧
	QueueFullDiscarded int64 // 因发送队列满被丢弃的消息
}

func (m *Metrics) IncConnections() {
	atomic.AddInt64(&m.Connections, 1)
	atomic.AddInt64(&m.Active, 1)
}
func (m *Metrics) DecActive()             { atomic.AddInt64(&m.Active, -1) }
func (m *Metrics) IncMessages()           { atomic.AddInt64(&m.Messages, 1) }
func (m *Metrics) IncBadMessages()        { atomic.AddInt64(&m.BadMessages, 1) }
func (m *Metrics) IncRateLimited()        { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncToolCalls()          { atomic.AddInt64(&m.ToolCalls, 1) }
func (m *Metrics) IncFramesBroadcast()    { atomic.AddInt64(&m.FramesBroadcast, 1) }
func (m *Metrics) IncQueueFullDiscarded() { atomic.AddInt64(&m.QueueFullDiscarded, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":          atomic.LoadInt64(&m.Connections),
		"active":               atomic.LoadInt64(&m.Active),
		"messages":             atomic.LoadInt64(&m.Messages),
		"bad_messages":         atomic.LoadInt64(&m.BadMessages),
		"rate_limited":         atomic.LoadInt64(&m.RateLimited),
		"tool_calls":           atomic.LoadInt64(&m.ToolCalls),
		"frames_broadcast":     atomic.LoadInt64(&m.FramesBroadcast),
		"queue_full_discarded": atomic.LoadInt64(&m.QueueFullDiscarded),
	}
}
