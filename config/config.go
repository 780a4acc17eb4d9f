// Package config 负责 cursorpilot 的 YAML 配置。
//
// 查找顺序：
//  1. -config 命令行参数
//  2. $CURSORPILOT_CONFIG
//  3. ./cursorpilot.yaml
//
// 找不到配置文件时使用默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cursorpilot/cursor"
)

const (
	EnvConfigPath   = "CURSORPILOT_CONFIG"
	DefaultFileName = "cursorpilot.yaml"
)

// 动画轮廓：二维 moveTo 或一维旧版 moveRight
const (
	Profile2D     = "2d"
	ProfileLegacy = "legacy-1d"
)

// 指针输出目标
const (
	SinkOverlay = "overlay" // 通过 WebSocket 推给覆盖层页面
	SinkDesktop = "desktop" // 直接移动系统鼠标
	SinkBoth    = "both"
)

// Config 顶层配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Motion   MotionConfig   `yaml:"motion"`
	Display  DisplayConfig  `yaml:"display"`
	Sink     string         `yaml:"sink"`
	ToolCall ToolCallConfig `yaml:"toolcall"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// LogConfig 日志文件与滚动策略
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

// MotionConfig 动画参数
type MotionConfig struct {
	Profile  string        `yaml:"profile"`
	Duration time.Duration `yaml:"duration"`
	FPS      int           `yaml:"fps"`
	Clamp    bool          `yaml:"clamp"`
	StartX   *float64      `yaml:"start_x,omitempty"`
	StartY   *float64      `yaml:"start_y,omitempty"`
	Step     float64       `yaml:"step"`
	Base     float64       `yaml:"base"`
	Ceiling  float64       `yaml:"ceiling"`
}

// DisplayConfig 覆盖层尚未上报尺寸时使用的兜底尺寸
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ToolCallConfig 每个控制连接的限流
type ToolCallConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// Load 按查找顺序加载；explicit 非空时只读该路径
func Load(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = FindConfigPath()
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// FindConfigPath 返回第一个存在的配置文件路径，没有则返回空串
func FindConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	return ""
}

// LoadFromPath 读取并解析指定路径
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse 解析 YAML，补默认值并校验
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save 写回 YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// applyDefaults 填充缺省字段
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "web"
	}
	if c.Log.File == "" {
		c.Log.File = "cursorpilot.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.Motion.Profile == "" {
		c.Motion.Profile = Profile2D
	}
	if c.Motion.Duration == 0 {
		c.Motion.Duration = cursor.DefaultDuration
	}
	if c.Motion.FPS == 0 {
		c.Motion.FPS = cursor.DefaultFPS
	}
	if c.Motion.Step == 0 {
		c.Motion.Step = cursor.DefaultStep
	}
	if c.Motion.Base == 0 {
		c.Motion.Base = cursor.DefaultBase
	}
	if c.Motion.Ceiling == 0 {
		c.Motion.Ceiling = cursor.DefaultCeiling
	}
	if c.Display.Width == 0 {
		c.Display.Width = 1920
	}
	if c.Display.Height == 0 {
		c.Display.Height = 1080
	}
	if c.Sink == "" {
		c.Sink = SinkOverlay
	}
	if c.ToolCall.RatePerSec == 0 {
		c.ToolCall.RatePerSec = 10
	}
	if c.ToolCall.Burst == 0 {
		c.ToolCall.Burst = 20
	}
}

// Validate 检查配置合法性
func (c *Config) Validate() error {
	var errs []error
	switch c.Motion.Profile {
	case Profile2D, ProfileLegacy:
	default:
		errs = append(errs, fmt.Errorf("motion.profile: unknown %q", c.Motion.Profile))
	}
	if err := c.MotionParams().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Motion.Ceiling < c.Motion.Base {
		errs = append(errs, fmt.Errorf("motion.ceiling %.0f below base %.0f", c.Motion.Ceiling, c.Motion.Base))
	}
	switch c.Sink {
	case SinkOverlay, SinkDesktop, SinkBoth:
	default:
		errs = append(errs, fmt.Errorf("sink: unknown %q", c.Sink))
	}
	if c.Display.Width < 0 || c.Display.Height < 0 {
		errs = append(errs, fmt.Errorf("display: negative size %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.ToolCall.RatePerSec < 0 || c.ToolCall.Burst < 0 {
		errs = append(errs, errors.New("toolcall: rate and burst must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MotionParams 转换为控制器的动画参数
func (c *Config) MotionParams() cursor.Motion {
	return cursor.Motion{Duration: c.Motion.Duration, FPS: c.Motion.FPS, Clamp: c.Motion.Clamp}
}

// LegacyParams 一维旧版参数
func (c *Config) LegacyParams() cursor.Legacy {
	return cursor.Legacy{Step: c.Motion.Step, Base: c.Motion.Base, Ceiling: c.Motion.Ceiling}
}

// Start 初始位置：显式配置优先，否则按轮廓取默认值
func (c *Config) Start() cursor.Position {
	start := cursor.DefaultStart
	if c.Motion.Profile == ProfileLegacy {
		start = cursor.LegacyStart
	}
	if c.Motion.StartX != nil {
		start.X = *c.Motion.StartX
	}
	if c.Motion.StartY != nil {
		start.Y = *c.Motion.StartY
	}
	return start
}

// DisplayBounds 兜底显示器尺寸
func (c *Config) DisplayBounds() cursor.Bounds {
	return cursor.Bounds{Width: c.Display.Width, Height: c.Display.Height}
}
