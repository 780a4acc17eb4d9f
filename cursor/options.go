package cursor

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDuration 单次动画时长
	DefaultDuration = 500 * time.Millisecond
	// DefaultFPS 动画帧率（60 FPS，每帧约 16.7ms）
	DefaultFPS = 60

	// 一维旧版：每次右移 100，超过 500 回到 100
	DefaultStep    = 100.0
	DefaultBase    = 100.0
	DefaultCeiling = 500.0
)

// DefaultStart 二维版本的初始位置；一维旧版使用 LegacyStart
var (
	DefaultStart = Position{X: 500, Y: 500}
	LegacyStart  = Position{X: 100, Y: 100}
)

// Motion 动画参数，运行期可通过 SetMotion 热更新（下一次动画生效）
type Motion struct {
	Duration time.Duration `json:"duration"`
	FPS      int           `json:"fps"`
	Clamp    bool          `json:"clamp"` // 归一化坐标是否裁剪到 [0,1000]
}

// DefaultMotion 500ms / 60fps / 不裁剪
func DefaultMotion() Motion {
	return Motion{Duration: DefaultDuration, FPS: DefaultFPS}
}

// TotalFrames duration / (1000/fps)，至少 1 帧
func (m Motion) TotalFrames() int {
	n := int(math.Round(m.Duration.Seconds() * float64(m.FPS)))
	if n < 1 {
		return 1
	}
	return n
}

// Validate 检查参数合法性
func (m Motion) Validate() error {
	if m.Duration <= 0 {
		return fmt.Errorf("motion: duration must be positive, got %s", m.Duration)
	}
	if m.FPS <= 0 || m.FPS > 1000 {
		return fmt.Errorf("motion: fps must be in (0,1000], got %d", m.FPS)
	}
	return nil
}

// Legacy 一维“右移并回绕”策略的参数
type Legacy struct {
	Step    float64 `json:"step"`
	Base    float64 `json:"base"`
	Ceiling float64 `json:"ceiling"`
}

func DefaultLegacy() Legacy {
	return Legacy{Step: DefaultStep, Base: DefaultBase, Ceiling: DefaultCeiling}
}

// Next 计算下一个 x：超过上限则回到基准位置
func (l Legacy) Next(x float64) float64 {
	next := x + l.Step
	if next > l.Ceiling {
		return l.Base
	}
	return next
}

// Option 构造选项
type Option func(*Controller)

// WithStart 设置初始位置
func WithStart(p Position) Option {
	return func(c *Controller) { c.pos = p }
}

// WithMotion 设置动画参数；非法参数忽略，保留默认值
func WithMotion(m Motion) Option {
	return func(c *Controller) {
		if m.Validate() == nil {
			c.motion = m
		}
	}
}

func WithLegacy(l Legacy) Option {
	return func(c *Controller) { c.legacy = l }
}

// WithClock 替换定时器来源
func WithClock(clk Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}
