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
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/connectbridge/pkg/logger"
)

// NatsConfig selects the JetStream KV bucket backing a NatsStore.
type NatsConfig struct {
	URL    string        `json:"url"`
	Bucket string        `json:"bucket"`
	TTL    time.Duration `json:"ttl"`
	Domain string        `json:"domain,omitempty"`
}

// NatsStore is a KVStore over a JetStream key/value bucket.
type NatsStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	ownsNC bool
	logger logger.Logger
}

// NewNatsStore dials cfg.URL and opens (or creates) the bucket. The
// connection is closed by Close.
func NewNatsStore(ctx context.Context, cfg NatsConfig, log logger.Logger, opts ...nats.Option) (*NatsStore, error) {
	if cfg.URL == "" {
		return nil, errNatsURLRequired
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	store, err := NewNatsStoreFromConn(ctx, nc, cfg, log)
	if err != nil {
		nc.Close()

		return nil, err
	}

	store.ownsNC = true

	return store, nil
}

// NewNatsStoreFromConn opens the bucket on an existing connection.
func NewNatsStoreFromConn(ctx context.Context, nc *nats.Conn, cfg NatsConfig, log logger.Logger) (*NatsStore, error) {
	if cfg.Bucket == "" {
		return nil, errBucketRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	var (
		js  jetstream.JetStream
		err error
	)

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kvCfg := jetstream.KeyValueConfig{Bucket: cfg.Bucket}
	if cfg.TTL > 0 {
		kvCfg.TTL = cfg.TTL
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, kvCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", cfg.Bucket, err)
	}

	return &NatsStore{nc: nc, kv: bucket, logger: log}, nil
}

func (n *NatsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

// Put ignores ttl; expiry is configured per bucket.
func (n *NatsStore) Put(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) PutMany(ctx context.Context, entries []KeyValueEntry, ttl time.Duration) error {
	for _, e := range entries {
		if err := n.Put(ctx, e.Key, e.Value, ttl); err != nil {
			return err
		}
	}

	return nil
}

func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	watcher, err := n.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %s: %w", key, err)
	}

	ch := make(chan []byte, 1)
	go n.forwardUpdates(ctx, key, watcher, ch)

	return ch, nil
}

func (n *NatsStore) forwardUpdates(ctx context.Context, key string, watcher jetstream.KeyWatcher, ch chan<- []byte) {
	defer func() {
		if err := watcher.Stop(); err != nil {
			n.logger.Warn().Err(err).Str("key", key).Msg("failed to stop KV watcher")
		}

		close(ch)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-watcher.Updates():
			if !ok {
				return
			}

			// nil marks the end of the initial replay
			if update == nil {
				continue
			}

			var value []byte
			if update.Operation() == jetstream.KeyValuePut {
				value = update.Value()
			}

			select {
			case ch <- value:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the connection when the store dialed it.
func (n *NatsStore) Close() error {
	if n.ownsNC {
		n.nc.Close()
	}

	return nil
}

var _ KVStore = (*NatsStore)(nil)
