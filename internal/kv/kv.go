// Package kv is the device-scoped string key/value store behind guest carts:
// the server-side equivalent of browser local storage. Values are opaque
// strings (JSON blobs in practice) addressed by (scope, key), where scope is
// the guest token of one browser.
package kv

import (
	"context"
	"errors"
	"sync"
)

// Fixed keys under which the storefront keeps its blobs.
const (
	KeyCart        = "cart"
	KeyWishlist    = "wishlist"
	KeyOrders      = "orders"
	KeyAdminOrders = "admin_orders"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
}

// Memory keeps everything in process. Used by STORAGE_DRIVER=memory and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, scope, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[scope] == nil {
		m.data[scope] = make(map[string]string)
	}
	m.data[scope][key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[scope], key)
	if len(m.data[scope]) == 0 {
		delete(m.data, scope)
	}
	return nil
}
