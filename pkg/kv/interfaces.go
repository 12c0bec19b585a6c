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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/carverauto/connectbridge/pkg/kv KVStore

// Package kv provides the key/value backends behind the bridge settings.
package kv

import (
	"context"
	"time"
)

// KVStore is a byte-oriented key/value store.
type KVStore interface {
	// Get returns the value, whether the key was found, and any backend error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key. A zero ttl keeps it until deleted; backends
	// without per-key TTL ignore it.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutMany stores every entry; ttl applies to all of them.
	PutMany(ctx context.Context, entries []KeyValueEntry, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Watch streams the new value of key (nil when deleted). The channel is
	// closed when ctx ends or the store is closed.
	Watch(ctx context.Context, key string) (<-chan []byte, error)

	Close() error
}

// Flusher is implemented by stores that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// KeyValueEntry is one item of a PutMany batch.
type KeyValueEntry struct {
	Key   string
	Value []byte
}
