// Package store provides the durable string-keyed storage the layer stack
// and display settings are persisted to.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// Store is arbitrary durable string-keyed storage.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes value under key.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind      string // memory, file, badger, redis
	DataDir   string
	RedisAddr string
	RedisPass string
	RedisDB   int
	Prefix    string // key prefix for shared backends
	Logger    *slog.Logger
}

// Open creates the configured backend. An empty kind means file.
func Open(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "memory":
		return NewMemory(), nil
	case "", "file":
		return NewFile(filepath.Join(cfg.DataDir, "state.json"))
	case "badger":
		return OpenBadger(BadgerConfig{
			Path:       filepath.Join(cfg.DataDir, "badger"),
			SyncWrites: true,
			Logger:     cfg.Logger,
		})
	case "redis":
		return OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// Memory is an in-process store. Nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
