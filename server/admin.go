package server

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"cursorpilot/toolcall"
)

// maxDurationMs 换算为 time.Duration 不溢出的上限
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// motionConfig 管理接口的动画参数（毫秒为单位，便于手工调用）
type motionConfig struct {
	DurationMs *int64 `json:"durationMs,omitempty"`
	FPS        *int   `json:"fps,omitempty"`
	Clamp      *bool  `json:"clamp,omitempty"`
}

// HandleAdminConfig 提供动画参数的读取与更新（热更新，下一次动画生效）
// GET /admin/config   返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m := s.ctrl.Motion()
		ms := m.Duration.Milliseconds()
		writeJSON(w, http.StatusOK, motionConfig{DurationMs: &ms, FPS: &m.FPS, Clamp: &m.Clamp})
	case http.MethodPost:
		var body motionConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		m := s.ctrl.Motion()
		if body.DurationMs != nil {
			if *body.DurationMs <= 0 || *body.DurationMs > maxDurationMs {
				http.Error(w, "durationMs out of range", http.StatusBadRequest)
				return
			}
			m.Duration = time.Duration(*body.DurationMs) * time.Millisecond
		}
		if body.FPS != nil {
			m.FPS = *body.FPS
		}
		if body.Clamp != nil {
			m.Clamp = *body.Clamp
		}
		if err := s.ctrl.SetMotion(m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		Log.Infof("config updated: duration=%s fps=%d clamp=%v", m.Duration, m.FPS, m.Clamp)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出控制器与传输层的运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     s.ctrl.State().String(),
		"position":  s.ctrl.Position(),
		"overlays":  s.hub.Overlays(),
		"motion":    s.ctrl.Metrics().Snapshot(),
		"transport": s.metrics.Snapshot(),
	})
}

// HandleTools 输出工具声明，供会话层转发给模型
// GET /tools
func (s *Server) HandleTools(w http.ResponseWriter, r *http.Request) {
	b, err := toolcall.DeclarationsJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
