package cursor

import (
	"sync/atomic"
)

// Metrics 记录控制器运行期的关键指标（用于监控与调试）
type Metrics struct {
	MovesAccepted         int64 // 被接受并开始动画的移动请求
	RejectedBusy          int64 // 动画进行中被丢弃的请求
	RejectedClosed        int64 // Cleanup 之后或 sink 缺失时被丢弃的请求
	DisplayFailures       int64 // 查询显示器尺寸失败
	RejectedInvalid       int64 // 目标坐标不是有限值而被丢弃的请求
	Frames                int64 // 已处理的帧数（不论 sink 是否可用）
	AnimationsCompleted   int64 // 正常走完全部帧的动画
	AnimationsInterrupted int64 // 被 Cleanup 打断的动画
	SinkFailures          int64 // sink 返回错误或 panic
	SinkUnavailable       int64 // sink 已关闭，按 no-op 处理
	TotalFrameNs          int64 // 帧处理累计耗时（纳秒）
}

func (m *Metrics) IncAccepted()        { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *Metrics) IncRejectedBusy()    { atomic.AddInt64(&m.RejectedBusy, 1) }
func (m *Metrics) IncRejectedClosed()  { atomic.AddInt64(&m.RejectedClosed, 1) }
func (m *Metrics) IncDisplayFailures() { atomic.AddInt64(&m.DisplayFailures, 1) }
func (m *Metrics) IncRejectedInvalid() { atomic.AddInt64(&m.RejectedInvalid, 1) }
func (m *Metrics) IncCompleted()       { atomic.AddInt64(&m.AnimationsCompleted, 1) }
func (m *Metrics) IncInterrupted()     { atomic.AddInt64(&m.AnimationsInterrupted, 1) }
func (m *Metrics) IncSinkFailures()    { atomic.AddInt64(&m.SinkFailures, 1) }
func (m *Metrics) IncSinkUnavailable() { atomic.AddInt64(&m.SinkUnavailable, 1) }
func (m *Metrics) AddFrame(ns int64) {
	atomic.AddInt64(&m.Frames, 1)
	atomic.AddInt64(&m.TotalFrameNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	frames := atomic.LoadInt64(&m.Frames)
	total := atomic.LoadInt64(&m.TotalFrameNs)
	var avgMs float64
	if frames > 0 {
		avgMs = float64(total) / float64(frames) / 1e6
	}
	return map[string]any{
		"moves_accepted":         atomic.LoadInt64(&m.MovesAccepted),
		"rejected_busy":          atomic.LoadInt64(&m.RejectedBusy),
		"rejected_closed":        atomic.LoadInt64(&m.RejectedClosed),
		"display_failures":       atomic.LoadInt64(&m.DisplayFailures),
		"rejected_invalid":       atomic.LoadInt64(&m.RejectedInvalid),
		"frames":                 frames,
		"animations_completed":   atomic.LoadInt64(&m.AnimationsCompleted),
		"animations_interrupted": atomic.LoadInt64(&m.AnimationsInterrupted),
		"sink_failures":          atomic.LoadInt64(&m.SinkFailures),
		"sink_unavailable":       atomic.LoadInt64(&m.SinkUnavailable),
		"avg_frame_ms":           avgMs,
	}
}
