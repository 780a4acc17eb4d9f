package cursor

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkClosed sink 已被销毁（例如宿主窗口关闭），调用方应当视为 no-op
	ErrSinkClosed = errors.New("cursor: position sink closed")
	// ErrNoDisplay 当前拿不到可用的显示器尺寸
	ErrNoDisplay = errors.New("cursor: no display bounds available")
)

// PositionSink 负责把可视指针放到绝对像素坐标上。
// 调用发生在动画协程中并持有控制器锁，实现方不得回调 Controller，且不应阻塞。
type PositionSink interface {
	SetPosition(x, y int) error
}

// DisplaySource 提供目标显示器的尺寸，每次 MoveTo 都会重新查询
type DisplaySource interface {
	DisplayBounds() (Bounds, error)
}

// SinkFunc 函数适配器
type SinkFunc func(x, y int) error

func (f SinkFunc) SetPosition(x, y int) error { return f(x, y) }

// FixedDisplay 固定尺寸的显示源，多用于测试或无窗口环境
type FixedDisplay Bounds

func (d FixedDisplay) DisplayBounds() (Bounds, error) {
	b := Bounds(d)
	if !b.Valid() {
		return Bounds{}, ErrNoDisplay
	}
	return b, nil
}

// Fanout 将同一位置写到多个 sink；单个 sink 失败不影响其余
type Fanout []PositionSink

func (f Fanout) SetPosition(x, y int) error {
	var errs []error
	closed := 0
	for _, s := range f {
		if s == nil {
			closed++
			continue
		}
		err := s.SetPosition(x, y)
		switch {
		case err == nil:
		case errors.Is(err, ErrSinkClosed):
			closed++
		default:
			errs = append(errs, err)
		}
	}
	if len(f) > 0 && closed == len(f) {
		return ErrSinkClosed
	}
	if len(errs) > 0 {
		return fmt.Errorf("fanout: %w", errors.Join(errs...))
	}
	return nil
}
