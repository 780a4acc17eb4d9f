// Package desktop 直接驱动操作系统鼠标指针（X11 / macOS / Windows，经由 robotgo）。
// Wayland 下 robotgo 无法移动指针，请改用 overlay 模式。
package desktop

import (
	"sync/atomic"

	"github.com/go-vgo/robotgo"

	"cursorpilot/cursor"
)

// Pointer 同时是 PositionSink 与 DisplaySource
type Pointer struct {
	closed atomic.Bool

	// 便于测试替换
	move       func(x, y int)
	screenSize func() (int, int)
}

func NewPointer() *Pointer {
	return &Pointer{
		move:       func(x, y int) { robotgo.Move(x, y) },
		screenSize: robotgo.GetScreenSize,
	}
}

// SetPosition 移动系统指针；关闭后返回 cursor.ErrSinkClosed
func (p *Pointer) SetPosition(x, y int) error {
	if p.closed.Load() {
		return cursor.ErrSinkClosed
	}
	p.move(x, y)
	return nil
}

// DisplayBounds 主显示器尺寸，每次调用实时查询
func (p *Pointer) DisplayBounds() (cursor.Bounds, error) {
	w, h := p.screenSize()
	b := cursor.Bounds{Width: w, Height: h}
	if !b.Valid() {
		return cursor.Bounds{}, cursor.ErrNoDisplay
	}
	return b, nil
}

// Close 之后的 SetPosition 全部变为 no-op
func (p *Pointer) Close() {
	p.closed.Store(true)
}
