package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/ownership/internal/config"
	"github.com/Iron-Ham/ownership/internal/event"
	"github.com/Iron-Ham/ownership/internal/filelock"
	"github.com/Iron-Ham/ownership/internal/logging"
	"github.com/Iron-Ham/ownership/internal/store/etcdstore"
	"github.com/Iron-Ham/ownership/internal/store/filestore"
	"github.com/Iron-Ham/ownership/internal/store/redisstore"
	"github.com/Iron-Ham/ownership/internal/store/sqlitestore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// nowFunc is the clock used by every command.
var nowFunc = time.Now

// workspace bundles what a lock command needs for one invocation.
type workspace struct {
	cfg     *config.Config
	scope   string
	store   filelock.Store
	manager *filelock.Manager
	logger  *logging.Logger
	closers []func() error
}

// openWorkspace loads configuration and wires the logger, store and manager.
func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	scope, err := resolveScope(viper.GetString("scope"))
	if err != nil {
		return nil, err
	}

	ws := &workspace{cfg: cfg, scope: scope, logger: logging.NopLogger()}
	if cfg.Logging.Enabled {
		logger, err := logging.NewLoggerWithRotation(cfg.Logging.ResolveDir(), cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
		ws.logger = logger
		ws.closers = append(ws.closers, logger.Close)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.store = store
	if closeStore != nil {
		ws.closers = append(ws.closers, closeStore)
	}

	bus := event.NewBus()
	bus.SetPanicHandler(func(eventType string, r any, stack []byte) {
		ws.logger.Error("event handler panicked", "event", eventType, "panic", fmt.Sprint(r), "stack", string(stack))
	})
	bus.SubscribeAll(logEvent(ws.logger))

	ws.manager = filelock.NewManager(store,
		filelock.WithDefaultTTL(cfg.Lock.DefaultTTL),
		filelock.WithAtomicUpdates(cfg.Lock.AtomicUpdates),
		filelock.WithBus(bus),
		filelock.WithLogger(ws.logger),
	)
	ws.logger.Debug("workspace ready",
		"scope", scope,
		"backend", cfg.Store.Backend,
		"atomic", ws.manager.Atomic(),
	)
	return ws, nil
}

// Close releases the store connection and the log file.
func (ws *workspace) Close() error {
	var errs []error
	for i := len(ws.closers) - 1; i >= 0; i-- {
		errs = append(errs, ws.closers[i]())
	}
	return errors.Join(errs...)
}

// relPath expresses a command-line path as a lock key. Paths inside the
// scope become scope-relative, so "src/a.go" and "<scope>/src/a.go" name the
// same lock; anything else is only cleaned.
func (ws *workspace) relPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(ws.scope, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	return filelock.CleanPath(p)
}

func resolveScope(scope string) (string, error) {
	if scope == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		scope = cwd
	}
	abs, err := filepath.Abs(scope)
	if err != nil {
		return "", fmt.Errorf("failed to resolve scope %s: %w", scope, err)
	}
	return abs, nil
}

// openStore builds the configured backend. The returned close func may be nil.
func openStore(ctx context.Context, cfg *config.Config) (filelock.Store, func() error, error) {
	s := cfg.Store
	switch s.Backend {
	case config.BackendFile:
		return filestore.New(s.FileDir(), filestore.WithLockTimeout(s.File.LockTimeout)), nil, nil

	case config.BackendSQLite:
		store, err := sqlitestore.Open(s.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", s.Redis.Addr, err)
		}
		store := redisstore.New(client,
			redisstore.WithKeyPrefix(s.Redis.KeyPrefix),
			redisstore.WithMutexTTL(s.Redis.MutexTTL),
		)
		return store, client.Close, nil

	case config.BackendEtcd:
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   s.Etcd.Endpoints,
			DialTimeout: s.Etcd.DialTimeout,
			Context:     ctx,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		store := etcdstore.New(client,
			etcdstore.WithKeyPrefix(s.Etcd.KeyPrefix),
			etcdstore.WithMaxRetries(s.Etcd.MaxRetries),
		)
		return store, client.Close, nil

	case config.BackendMemory:
		return filelock.NewMemoryStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
}

// logEvent records every lock lifecycle event in the debug log.
func logEvent(logger *logging.Logger) event.Handler {
	return func(e event.Event) {
		switch ev := e.(type) {
		case event.LockEvent:
			logger.Debug("lock event",
				"event", ev.EventType(),
				"scope", ev.Scope,
				"file", ev.FilePath,
				"owner", ev.Owner,
				"expires_at", ev.ExpiresAt.UTC().Format(time.RFC3339),
			)
		case event.LockConflictEvent:
			logger.Debug("lock event",
				"event", ev.EventType(),
				"scope", ev.Scope,
				"file", ev.FilePath,
				"holder", ev.Holder,
				"requester", ev.Requester,
			)
		default:
			logger.Debug("event", "event", e.EventType())
		}
	}
}

func (ws *workspace) relPaths(args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, a := range args {
		p, err := ws.relPath(a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
