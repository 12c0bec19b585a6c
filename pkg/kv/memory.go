/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process KVStore. TTLs are ignored.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[string][]chan []byte
	closed   bool
	dirty    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		watchers: make(map[string][]chan []byte),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, ErrStoreClosed
	}

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.PutMany(ctx, []KeyValueEntry{{Key: key, Value: value}}, ttl)
}

func (m *MemoryStore) PutMany(_ context.Context, entries []KeyValueEntry, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	for _, e := range entries {
		v := append([]byte(nil), e.Value...)
		m.values[e.Key] = v
		m.notifyLocked(e.Key, v)
	}

	m.dirty = true

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if _, ok := m.values[key]; !ok {
		return nil
	}

	delete(m.values, key)
	m.notifyLocked(key, nil)
	m.dirty = true

	return nil
}

func (m *MemoryStore) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ch := make(chan []byte, 1)

	if v, ok := m.values[key]; ok {
		ch <- append([]byte(nil), v...)
	}

	m.watchers[key] = append(m.watchers[key], ch)

	go func() {
		<-ctx.Done()
		m.unwatch(key, ch)
	}()

	return ch, nil
}

func (m *MemoryStore) unwatch(key string, ch chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.watchers[key]
	for i, c := range list {
		if c == ch {
			m.watchers[key] = append(list[:i], list[i+1:]...)
			close(ch)

			return
		}
	}
}

// notifyLocked delivers the latest value, dropping a stale undelivered one.
func (m *MemoryStore) notifyLocked(key string, value []byte) {
	for _, ch := range m.watchers[key] {
		select {
		case <-ch:
		default:
		}

		ch <- value
	}
}

// snapshot returns a copy of all values and clears the dirty flag.
func (m *MemoryStore) snapshot() (map[string][]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}

	dirty := m.dirty
	m.dirty = false

	return out, dirty
}

func (m *MemoryStore) markDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	for key, list := range m.watchers {
		for _, ch := range list {
			close(ch)
		}

		delete(m.watchers, key)
	}

	return nil
}

var _ KVStore = (*MemoryStore)(nil)
