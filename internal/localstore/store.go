// Package localstore is the device-local key/value storage of the console.
// It survives restarts; it is not a replica of anything on the server.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownDriver = errors.New("unknown local store driver")

type Store interface {
	// Get returns ok=false when key has never been written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// UpdateFunc maps the current value to the next one. Returning an error
// aborts the update and leaves the stored value untouched.
type UpdateFunc func(current string, ok bool) (string, error)

// Updater is implemented by stores that can read-modify-write a key
// atomically with respect to other processes sharing the storage.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

type Config struct {
	Driver string
	Path   string
}

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Open builds the store selected by cfg.Driver. The redis driver needs
// OpenRedis since it shares the process redis adapter.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
}

// MemoryStore keeps values for the lifetime of the process only.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
