package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce 编辑器保存时常连续触发多次写事件，合并为一次重载
const DefaultDebounce = 200 * time.Millisecond

// Watch 监听配置文件变化，解析成功后回调 onChange；解析失败只记日志，保留旧配置。
// 监听的是所在目录，以兼容“写临时文件再 rename”的保存方式。阻塞直到 ctx 结束。
func Watch(ctx context.Context, path string, log *zap.SugaredLogger, onChange func(*Config)) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		trigger = func() {
			if timer == nil {
				timer = time.NewTimer(DefaultDebounce)
			} else {
				timer.Reset(DefaultDebounce)
			}
			timerC = timer.C
		}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnw("config watcher error", "err", err)
		case <-timerC:
			timerC = nil
			cfg, _, err := LoadFromPath(abs)
			if err != nil {
				log.Warnw("config reload failed, keeping previous", "path", abs, "err", err)
				continue
			}
			log.Infow("config reloaded", "path", abs)
			onChange(cfg)
		}
	}
}
