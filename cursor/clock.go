package cursor

import "time"

// Ticker 固定周期的定时器句柄
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock 定时器来源，测试中替换为可手动推进的实现
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock 基于 time.Ticker 的真实时钟
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

// FrameInterval 每帧周期：1000/fps 毫秒
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
