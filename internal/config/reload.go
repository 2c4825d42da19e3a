package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// criticalFields are compared between the old and new document on every
// successful reload; a difference in any of them fires OnCriticalChange
// instead of (or alongside) the plain OnReload callback, since these
// affect sink identity or process addressing rather than just tuning.
type criticalFields struct {
	service, environment, otlpEndpoint, redisHost string
	redisPort                                     int
}

func snapshotCritical(cfg *Config) criticalFields {
	return criticalFields{
		service:     cfg.Service,
		environment: cfg.Environment,
		otlpEndpoint: cfg.OTLP.Endpoint,
		redisHost:   cfg.Redis.Host,
		redisPort:   cfg.Redis.Port,
	}
}

// Reloader watches the file Load last read and atomically swaps in a
// freshly validated Config whenever it changes. A failed reload retains
// the previous config and reports the error instead of taking the
// process down.
type Reloader struct {
	path   string
	opts   []Option
	logger *logrus.Logger

	current atomic.Pointer[Config]

	onReload         func(*Config)
	onCriticalChange func(old, new *Config)
	onReloadError    func(error)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debounce time.Duration
}

// NewReloader wraps an already-loaded cfg with a file watcher on path.
// path must be the same file Load resolved — watching an empty path is
// a no-op Reloader (Start returns nil immediately).
func NewReloader(path string, cfg *Config, logger *logrus.Logger, opts ...Option) *Reloader {
	r := &Reloader{path: path, opts: opts, logger: logger, debounce: time.Second}
	r.current.Store(cfg)
	return r
}

// OnReload registers a callback fired after every successful reload,
// critical or not.
func (r *Reloader) OnReload(fn func(*Config)) { r.onReload = fn }

// OnCriticalChange registers a callback fired when service, environment,
// or a sink-identity field (otlp.endpoint, redis.host/port) changes.
func (r *Reloader) OnCriticalChange(fn func(old, new *Config)) { r.onCriticalChange = fn }

// OnReloadError registers a callback fired when a reload is attempted
// but fails validation or file parsing; the previous config is retained.
func (r *Reloader) OnReloadError(fn func(error)) { r.onReloadError = fn }

// Current returns the most recently loaded config.
func (r *Reloader) Current() *Config { return r.current.Load() }

// Start begins watching the config file and its containing directory
// for writes/renames (editors commonly rename-over-write). No-op if no
// file path was resolved at Load time.
func (r *Reloader) Start() error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	r.watcher = watcher

	abs, err := filepath.Abs(r.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.watchLoop(abs)
	return nil
}

// Stop tears down the watcher goroutine; Current keeps returning the
// last-loaded config afterward.
func (r *Reloader) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	r.wg.Wait()
}

func (r *Reloader) watchLoop(abs string) {
	defer r.wg.Done()

	var debounceTimer *time.Timer
	reload := func() {
		r.reload(abs)
	}

	for {
		select {
		case <-r.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(r.debounce, reload)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.WithError(err).Warn("config watcher error")
			}
		}
	}
}

func (r *Reloader) reload(path string) {
	old := r.current.Load()
	next, err := Load(path, r.opts...)
	if err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Warn("config reload failed, retaining previous config")
		}
		if r.onReloadError != nil {
			r.onReloadError(err)
		}
		return
	}

	r.current.Store(next)

	if snapshotCritical(old) != snapshotCritical(next) && r.onCriticalChange != nil {
		r.onCriticalChange(old, next)
	}
	if r.onReload != nil {
		r.onReload(next)
	}
}
