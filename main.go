package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cursorpilot/config"
	"cursorpilot/cursor"
	"cursorpilot/desktop"
	"cursorpilot/server"
	"cursorpilot/toolcall"
)

// cursorpilot 入口：加载配置，组装运动控制器、覆盖层 Hub 与工具分派器，启动 HTTP + WebSocket 服务
func main() {
	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "config file path (default $CURSORPILOT_CONFIG or ./cursorpilot.yaml)")
	flag.StringVar(&addr, "addr", "", "override server listen address, e.g. :8080")
	flag.Parse()

	cfg, path, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	if path != "" {
		server.Log.Infof("config loaded from %s", path)
	}

	hub := server.NewHub(cfg.DisplayBounds(), &server.Metrics{})
	sink, display, pointer := buildSink(cfg.Sink, hub)

	ctrl := cursor.New(sink, display,
		cursor.WithStart(cfg.Start()),
		cursor.WithMotion(cfg.MotionParams()),
		cursor.WithLegacy(cfg.LegacyParams()),
		cursor.WithLogger(server.Log.Named("cursor")),
	)
	dispatcher, err := toolcall.NewDispatcher(ctrl, server.Log.Named("toolcall"))
	if err != nil {
		server.Log.Fatalf("tool schemas: %v", err)
	}

	srv := server.New(hub, ctrl, dispatcher, server.Options{
		StaticDir:  cfg.Server.StaticDir,
		RatePerSec: cfg.ToolCall.RatePerSec,
		Burst:      cfg.ToolCall.Burst,
	})
	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 配置文件变更时热更新动画参数
	if path != "" {
		go func() {
			err := config.Watch(ctx, path, server.Log.Named("config"), func(c *config.Config) {
				if err := ctrl.SetMotion(c.MotionParams()); err != nil {
					server.Log.Warnf("reload motion: %v", err)
				}
			})
			if err != nil {
				server.Log.Warnf("config watch: %v", err)
			}
		}()
	}

	go func() {
		server.Log.Infof("cursorpilot listening on %s (sink=%s profile=%s)", cfg.Server.Addr, cfg.Sink, cfg.Motion.Profile)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）：先停动画定时器，再断开覆盖层与 HTTP
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	ctrl.Cleanup()
	hub.Close()
	if pointer != nil {
		pointer.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("shutdown: %v", err)
	}
}

// buildSink 按配置选择指针输出：覆盖层、系统鼠标或两者同时
func buildSink(mode string, hub *server.Hub) (cursor.PositionSink, cursor.DisplaySource, *desktop.Pointer) {
	switch mode {
	case config.SinkDesktop:
		p := desktop.NewPointer()
		return p, p, p
	case config.SinkBoth:
		p := desktop.NewPointer()
		// 系统鼠标与覆盖层同屏，以真实屏幕尺寸为准
		return cursor.Fanout{hub, p}, p, p
	default:
		return hub, hub, nil
	}
}
