package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/client"
	"github.com/nimasrn/kamoa-supervision/internal/config"
	"github.com/nimasrn/kamoa-supervision/internal/localqueue"
	"github.com/nimasrn/kamoa-supervision/internal/localstore"
	"github.com/nimasrn/kamoa-supervision/internal/session"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/redis"
)

const readTimeout = 10 * time.Second

// app carries what every command needs. Fields that are already set are
// kept by setup, which is how tests inject fakes.
type app struct {
	envPath string

	cfg       *config.Config
	api       session.API
	store     localstore.Store
	queue     *localqueue.Queue
	clipboard session.Clipboard
	now       func() time.Time
}

func (a *app) setup() error {
	if a.cfg == nil {
		if err := config.Load(a.envPath); err != nil {
			return err
		}
		a.cfg = config.Get()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.clipboard == nil {
		a.clipboard = session.SystemClipboard{}
	}
	if a.api == nil {
		a.api = client.New(client.Config{
			BaseURL: a.cfg.APIBaseURL,
			Timeout: readTimeout,
		})
	}
	if a.store == nil {
		store, err := a.openStore()
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		a.store = store
	}
	if a.queue == nil {
		a.queue = localqueue.New(a.store)
	}
	if _, ok := a.api.(*session.UnitCache); !ok {
		a.api = session.CacheUnits(a.api, a.store)
	}
	return nil
}

func (a *app) openStore() (localstore.Store, error) {
	if a.cfg.LocalStoreDriver != localstore.DriverRedis {
		return localstore.Open(localstore.Config{
			Driver: a.cfg.LocalStoreDriver,
			Path:   a.cfg.LocalStorePath,
		})
	}
	adapter, err := redis.NewRedisAdapter("console", a.cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{a.cfg.RedisAddr},
		ClientName: "kamoa-console",
		DB:         a.cfg.RedisDatabase,
		Username:   a.cfg.RedisUsername,
		Password:   a.cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	return localstore.OpenRedis(adapter), nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("failed to close local store", "error", err)
		}
	}
	logger.Sync()
}

func (a *app) submitter() *session.Submitter {
	return session.NewSubmitter(a.api, a.queue, a.cfg.ConsoleSubmitTimeout)
}

func (a *app) theme() session.Theme {
	t, err := session.ParseTheme(a.cfg.ConsoleTheme)
	if err != nil {
		logger.Warn("unknown console theme, using ios", "theme", a.cfg.ConsoleTheme)
		return session.ThemeIOS
	}
	return t
}

// readCtx bounds one catalog or history read.
func readCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, readTimeout)
}
