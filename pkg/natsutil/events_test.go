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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{"adds subject when list empty", nil, "connectbridge.status", []string{"connectbridge.status"}},
		{"keeps list when wildcard matches", []string{"connectbridge.*"}, "connectbridge.status", []string{"connectbridge.*"}},
		{"keeps list when greater wildcard matches", []string{"connectbridge.>"}, "connectbridge.status", []string{"connectbridge.>"}},
		{"appends when unmatched", []string{"printer.*"}, "connectbridge.status", []string{"printer.*", "connectbridge.status"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "connectbridge.status", "connectbridge.status", true},
		{"single wildcard", "*.status", "connectbridge.status", true},
		{"greater wildcard", "connectbridge.>", "connectbridge.status.changed", true},
		{"greater wildcard needs a token", "connectbridge.>", "connectbridge", false},
		{"no match length", "connectbridge.*", "connectbridge.status.changed", false},
		{"no match tokens", "printer.*", "connectbridge.status", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, srv.JetStreamEnabled, 5*time.Second, 50*time.Millisecond)

	t.Cleanup(srv.Shutdown)

	return srv
}

func TestEventPublisherRoundTrip(t *testing.T) {
	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := Connect(Config{URL: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)

	defer nc.Close()

	publisher, err := CreateEventPublisher(ctx, nc, "", "CONNECTBRIDGE", "connectbridge.status")
	require.NoError(t, err)
	assert.Equal(t, "CONNECTBRIDGE", publisher.Stream())

	// a second call finds the existing stream
	_, err = CreateEventPublisher(ctx, nc, "", "CONNECTBRIDGE", "connectbridge.status")
	require.NoError(t, err)

	event := &models.CloudEvent{
		SpecVersion: "1.0",
		ID:          "evt-1",
		Source:      "connectbridge/test",
		Type:        "com.carverauto.connectbridge.status",
		Subject:     "connectbridge.status",
		Data:        map[string]string{"state": "paired"},
	}

	seq, err := publisher.Publish(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "CONNECTBRIDGE")
	require.NoError(t, err)

	msg, err := stream.GetMsg(ctx, seq)
	require.NoError(t, err)

	var got models.CloudEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "evt-1", got.ID)

	_, err = publisher.Publish(ctx, &models.CloudEvent{ID: "x"})
	require.ErrorIs(t, err, errSubjectRequired)
}

func TestConnectRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := Connect(Config{}, nil)
	require.ErrorIs(t, err, errURLRequired)
}
