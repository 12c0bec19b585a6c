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
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/connectbridge/pkg/logger"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

func TestNatsStore(t *testing.T) {
	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewNatsStore(ctx, NatsConfig{URL: srv.ClientURL(), Bucket: "connectbridge"}, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	_, found, err := store.Get(ctx, "session.token")
	require.NoError(t, err)
	assert.False(t, found)

	ch, err := store.Watch(ctx, "session.token")
	require.NoError(t, err)

	require.NoError(t, store.PutMany(ctx, []KeyValueEntry{
		{Key: "session.token", Value: []byte("tok")},
		{Key: "session.code", Value: []byte("ABC")},
	}, 0))

	value, found, err := store.Get(ctx, "session.token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("tok"), value)

	assert.Equal(t, []byte("tok"), receive(t, ch))

	require.NoError(t, store.Delete(ctx, "session.token"))
	require.NoError(t, store.Delete(ctx, "never.written"))
	assert.Nil(t, receive(t, ch))

	_, found, err = store.Get(ctx, "session.token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNatsStoreConfigErrors(t *testing.T) {
	_, err := NewNatsStore(context.Background(), NatsConfig{}, nil)
	require.ErrorIs(t, err, errNatsURLRequired)

	_, err = NewNatsStoreFromConn(context.Background(), nil, NatsConfig{}, nil)
	require.ErrorIs(t, err, errBucketRequired)
}
