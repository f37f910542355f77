// Package store persists small JSON values under string keys: the session
// token, the active project and snapshots of item lists.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// Well-known keys.
const (
	KeyToken           = "token"
	KeyActiveProjectID = "activeProjectId"
	KeyDrafts          = "drafts"
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ReadList returns the list stored under key, or an empty list when the key
// is missing or does not hold a JSON array.
func ReadList[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	b, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []T
	if err := json.Unmarshal(b, &list); err != nil || list == nil {
		return []T{}, nil
	}
	return list, nil
}

// AppendAndSave appends value to the list under key and writes it back.
func AppendAndSave[T any](ctx context.Context, kv KV, key string, value T) error {
	list, err := ReadList[T](ctx, kv, key)
	if err != nil {
		return err
	}
	return OverwriteList(ctx, kv, key, append(list, value))
}

func OverwriteList[T any](ctx context.Context, kv KV, key string, list []T) error {
	if list == nil {
		list = []T{}
	}
	return SaveValue(ctx, kv, key, list)
}

// ReadValue decodes the value under key. ok is false when the key is missing.
func ReadValue[T any](ctx context.Context, kv KV, key string) (v T, ok bool, err error) {
	b, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func SaveValue[T any](ctx context.Context, kv KV, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, b)
}

// Memory is an in-process KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
