// Package server 提供覆盖层与控制端的 WebSocket 接入、管理与监控接口。
package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"cursorpilot/cursor"
	"cursorpilot/toolcall"
)

// Controller 服务端依赖的运动控制器能力（*cursor.Controller 实现）
type Controller interface {
	toolcall.Mover
	Position() cursor.Position
	State() cursor.State
	Motion() cursor.Motion
	SetMotion(cursor.Motion) error
	Metrics() *cursor.Metrics
}

// Options 服务端参数
type Options struct {
	StaticDir  string
	RatePerSec float64 // 每个连接的控制消息速率，<=0 表示不限
	Burst      int
}

// Server 组合 Hub、控制器与工具分派器，由 main 显式构造
type Server struct {
	hub        *Hub
	ctrl       Controller
	dispatcher *toolcall.Dispatcher
	metrics    *Metrics

	staticDir string
	limit     rate.Limit
	burst     int
	upgrader  websocket.Upgrader
}

func New(hub *Hub, ctrl Controller, d *toolcall.Dispatcher, opts Options) *Server {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		hub:        hub,
		ctrl:       ctrl,
		dispatcher: d,
		metrics:    hub.metrics,
		staticDir:  opts.StaticDir,
		limit:      limit,
		burst:      burst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 覆盖层页面与控制端均在本机，允许所有来源
				return true
			},
		},
	}
}

// Handler 注册全部路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	if s.staticDir != "" {
		// 覆盖层页面（静态资源）
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	// 管理与监控接口
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/tools", s.HandleTools)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func rateLimitedResponse(id, name string) toolcall.Response {
	if id == "" {
		id = uuid.NewString()
	}
	return toolcall.Response{ID: id, Name: name, Error: "rate limited"}
}
