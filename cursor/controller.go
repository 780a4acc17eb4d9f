// Package cursor 实现动画指针的运动控制器：把归一化目标坐标换算为屏幕坐标，
// 以固定帧率驱动 ease-out-quadratic 缓动，并把每一帧的位置推给外部 sink。
//
// 同一时刻最多只有一个动画在运行；动画进行中到达的请求会被直接丢弃（不排队、不打断）。
package cursor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 控制器状态机：Idle <-> Animating
type State int

const (
	StateIdle State = iota
	StateAnimating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnimating:
		return "animating"
	default:
		return "unknown"
	}
}

// animation 进行中的动画请求，仅在 Animating 期间存在
type animation struct {
	start     Position
	target    Position
	duration  time.Duration
	total     int
	frame     int
	startedAt time.Time
	ticker    Ticker
}

// Controller 运动控制器。由组合根显式构造，Cleanup 在退出时调用。
type Controller struct {
	mu sync.Mutex

	sink    PositionSink
	display DisplaySource
	clock   Clock
	log     *zap.SugaredLogger
	metrics *Metrics

	motion Motion
	legacy Legacy

	pos    Position
	state  State
	anim   *animation
	stop   chan struct{} // 当前定时器的取消句柄
	idle   chan struct{} // 当前动画协程退出时关闭
	closed bool
}

// New 创建控制器，并立即把初始位置推给 sink（仅一次）
func New(sink PositionSink, display DisplaySource, opts ...Option) *Controller {
	c := &Controller{
		sink:    sink,
		display: display,
		clock:   SystemClock{},
		log:     zap.NewNop().Sugar(),
		metrics: &Metrics{},
		motion:  DefaultMotion(),
		legacy:  DefaultLegacy(),
		pos:     DefaultStart,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.place(c.pos)
	c.mu.Unlock()
	return c
}

// MoveTo 以 0-1000 归一化坐标移动指针，立即返回。
// 动画进行中、已 Cleanup、拿不到显示器尺寸或目标不是有限值时返回 false，请求被丢弃。
func (c *Controller) MoveTo(nx, ny float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admitLocked() {
		return false
	}
	// 每次请求都重新查询：多显示器或分辨率变化时不能用旧尺寸
	if c.display == nil {
		c.metrics.IncDisplayFailures()
		c.log.Warnw("move dropped: no display source", "nx", nx, "ny", ny)
		return false
	}
	b, err := c.display.DisplayBounds()
	if err == nil && !b.Valid() {
		err = ErrNoDisplay
	}
	if err != nil {
		c.metrics.IncDisplayFailures()
		c.log.Warnw("move dropped: display bounds", "nx", nx, "ny", ny, "err", err)
		return false
	}
	target := Normalize(nx, ny, b, c.motion.Clamp)
	if !target.Finite() {
		c.metrics.IncRejectedInvalid()
		c.log.Warnw("move dropped: target not finite", "nx", nx, "ny", ny)
		return false
	}
	c.startLocked(target)
	return true
}

// MoveRight 一维旧版：向右移动固定步长，超过上限回到基准位置；不查询显示器
func (c *Controller) MoveRight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admitLocked() {
		return false
	}
	c.startLocked(Position{X: c.legacy.Next(c.pos.X), Y: c.pos.Y})
	return true
}

// Cleanup 取消进行中的定时器。幂等；不回退 Animating 状态（这是退出路径，不是取消后继续）。
// 之后的 MoveTo/MoveRight 一律丢弃，保证不会再创建新的定时器。
func (c *Controller) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
		if c.anim != nil {
			c.anim.ticker.Stop()
		}
		c.metrics.IncInterrupted()
		c.log.Infow("animation interrupted by cleanup", "x", c.pos.X, "y", c.pos.Y)
	}
}

// Wait 阻塞直到当前动画协程退出（或 ctx 结束）。空闲时立即返回。
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Position 当前位置（浮点）
func (c *Controller) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Motion 当前动画参数
func (c *Controller) Motion() Motion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motion
}

// SetMotion 更新动画参数；进行中的动画不受影响，下一次动画生效
func (c *Controller) SetMotion(m Motion) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.motion = m
	c.mu.Unlock()
	c.log.Infow("motion updated", "duration", m.Duration, "fps", m.FPS, "clamp", m.Clamp)
	return nil
}

func (c *Controller) Metrics() *Metrics { return c.metrics }

// admitLocked 入口检查：关闭/无 sink/忙碌时拒绝（静默丢弃，只计数）
func (c *Controller) admitLocked() bool {
	if c.closed || c.sink == nil {
		c.metrics.IncRejectedClosed()
		return false
	}
	if c.state == StateAnimating {
		c.metrics.IncRejectedBusy()
		c.log.Debugw("move dropped: animation in flight", "x", c.pos.X, "y", c.pos.Y)
		return false
	}
	return true
}

// startLocked Idle -> Animating：记录起点、启动固定周期定时器
func (c *Controller) startLocked(target Position) {
	a := &animation{
		start:     c.pos,
		target:    target,
		duration:  c.motion.Duration,
		total:     c.motion.TotalFrames(),
		startedAt: time.Now(),
	}
	stop := make(chan struct{})
	idle := make(chan struct{})
	c.state = StateAnimating
	c.anim = a
	c.stop = stop
	c.idle = idle
	c.metrics.IncAccepted()
	c.log.Debugw("animation start",
		"from_x", a.start.X, "from_y", a.start.Y,
		"to_x", target.X, "to_y", target.Y, "frames", a.total)

	a.ticker = c.clock.NewTicker(FrameInterval(c.motion.FPS))
	go c.run(a, a.ticker, stop, idle)
}

// run 动画协程：每个 tick 推进一帧，直到最后一帧或被取消
func (c *Controller) run(a *animation, t Ticker, stop, idle chan struct{}) {
	defer close(idle)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if c.step(a) {
				return
			}
		}
	}
}

// step 推进一帧，返回 true 表示动画结束（完成或已被 Cleanup）
func (c *Controller) step(a *animation) bool {
	begin := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.anim != a {
		return true
	}

	a.frame++
	done := a.frame >= a.total
	if done {
		// eased(1) = 1，直接落在目标上，避免浮点累计误差
		c.pos = a.target
	} else {
		eased := EaseOutQuad(float64(a.frame) / float64(a.total))
		c.pos = Position{
			X: a.start.X + (a.target.X-a.start.X)*eased,
			Y: a.start.Y + (a.target.Y-a.start.Y)*eased,
		}
	}
	c.place(c.pos)
	c.metrics.AddFrame(time.Since(begin).Nanoseconds())

	if !done {
		return false
	}
	// 回到 Idle 之前先停掉定时器，保证任意时刻至多一个定时器存活
	a.ticker.Stop()
	c.state = StateIdle
	c.anim = nil
	c.stop = nil
	c.idle = nil
	c.metrics.IncCompleted()
	c.log.Debugw("animation done", "x", c.pos.X, "y", c.pos.Y,
		"elapsed", time.Since(a.startedAt), "duration", a.duration)
	return true
}

// place 把位置推给 sink。sink 缺失、已关闭、返回错误或 panic 都按 no-op 处理，不向上传播。
func (c *Controller) place(p Position) {
	if c.sink == nil {
		return
	}
	x, y := p.Rounded()
	defer func() {
		if r := recover(); r != nil {
			c.metrics.IncSinkFailures()
			c.log.Errorw("position sink panic", "x", x, "y", y, "panic", r)
		}
	}()
	if err := c.sink.SetPosition(x, y); err != nil {
		if errors.Is(err, ErrSinkClosed) {
			c.metrics.IncSinkUnavailable()
			return
		}
		c.metrics.IncSinkFailures()
		c.log.Warnw("position sink failed", "x", x, "y", y, "err", err)
	}
}
