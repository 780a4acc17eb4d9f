package cursor

import "math"

// NormalizedScale 归一化坐标的满量程（每个轴 0-1000）
const NormalizedScale = 1000.0

// Position 屏幕绝对坐标（像素，浮点保存以免累计误差）
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// 像素坐标的可表示范围，超出部分饱和到边界
const (
	MinPixel = math.MinInt32
	MaxPixel = math.MaxInt32
)

// Rounded 取整后的像素坐标，交给 sink 使用。饱和到 [MinPixel, MaxPixel]，NaN 视为 0。
func (p Position) Rounded() (int, int) {
	return toPixel(p.X), toPixel(p.Y)
}

// Finite 两个分量都是有限值
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func toPixel(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(clampFloat(math.Round(v), MinPixel, MaxPixel))
}

// Bounds 目标显示器尺寸
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid 宽高都为正才可用于换算
func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Normalize 将 0-1000 的归一化坐标线性换算为绝对坐标。
// 默认不裁剪：越界输入会外推到屏幕之外（含负值）；clamp 为 true 时先裁剪到 [0,1000]。
func Normalize(nx, ny float64, b Bounds, clamp bool) Position {
	if clamp {
		nx = clampFloat(nx, 0, NormalizedScale)
		ny = clampFloat(ny, 0, NormalizedScale)
	}
	return Position{
		X: nx / NormalizedScale * float64(b.Width),
		Y: ny / NormalizedScale * float64(b.Height),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EaseOutQuad 先快后慢：f(p) = 1-(1-p)^2，在 [0,1] 上单调不减，f(1)=1
func EaseOutQuad(p float64) float64 {
	return 1 - (1-p)*(1-p)
}
