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

package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
)

var testIdentity = models.DeviceIdentity{Serial: "SN-1", Fingerprint: "fp-1"}

// fakeService is a minimal remote service.
type fakeService struct {
	t *testing.T

	mu          sync.Mutex
	code        string
	token       string
	confirmed   bool
	pending     *Command
	pendingID   int
	events      []Event
	telemetry   []models.Telemetry
	registerReq registerRequest
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get(headerFingerprint) != testIdentity.Fingerprint {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Path == pathRegister && r.Method == http.MethodPost:
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.registerReq))
		w.Header().Set(headerCode, f.code)
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == pathRegister && r.Method == http.MethodGet:
		switch {
		case r.Header.Get(headerCode) != f.code:
			w.WriteHeader(http.StatusGone)
		case !f.confirmed:
			w.WriteHeader(http.StatusAccepted)
		default:
			w.Header().Set(headerToken, f.token)
			w.WriteHeader(http.StatusOK)
		}
	case r.Header.Get(headerToken) != f.token:
		http.Error(w, "bad token", http.StatusForbidden)
	case r.URL.Path == pathTelemetry:
		var tel models.Telemetry
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&tel))
		f.telemetry = append(f.telemetry, tel)

		if f.pending == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set(headerCommandID, jsonInt(f.pendingID))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(f.pending)
	case r.URL.Path == pathEvents:
		var ev Event
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&ev))
		f.events = append(f.events, ev)

		if ev.Event == EventAccepted && ev.CommandID == f.pendingID {
			f.pending = nil
		}

		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeService) eventNames() []EventName {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]EventName, 0, len(f.events))
	for _, ev := range f.events {
		names = append(names, ev.Event)
	}

	return names
}

func jsonInt(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func newTestClient(t *testing.T, svc *fakeService, token string) (*HTTPClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	client := NewHTTPClient(HTTPConfig{
		BaseURL:     srv.URL + "/",
		Token:       token,
		Identity:    testIdentity,
		PrinterType: "octoprint",
		Logger:      logger.NewTestLogger(),
	})

	return client, srv
}

func TestRegisterAndPollToken(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{t: t, code: "ABC123", token: "TOKEN"}
	client, _ := newTestClient(t, svc, "")

	code, err := client.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)
	assert.Equal(t, "SN-1", svc.registerReq.Serial)
	assert.Equal(t, "octoprint", svc.registerReq.PrinterType)

	token, err := client.PollToken(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, token, "pending confirmation")

	svc.mu.Lock()
	svc.confirmed = true
	svc.mu.Unlock()

	token, err = client.PollToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", token)

	_, err = client.PollToken(ctx, "OTHER")
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestRegisterWithoutCode(t *testing.T) {
	svc := &fakeService{t: t}
	client, _ := newTestClient(t, svc, "")

	_, err := client.Register(context.Background())
	require.ErrorIs(t, err, ErrMissingCode)
}

func TestPreconditions(t *testing.T) {
	ctx := context.Background()
	client := NewHTTPClient(HTTPConfig{})

	_, err := client.Register(ctx)
	require.ErrorIs(t, err, ErrEndpointRequired)

	client.SetConnection("connect.example.com", "")

	_, err = client.Register(ctx)
	require.ErrorIs(t, err, ErrIdentityRequired)

	client.SetIdentity(testIdentity)

	err = client.Telemetry(ctx, models.Telemetry{State: models.RemoteStateReady})
	require.ErrorIs(t, err, ErrTokenRequired)
}

func TestTelemetryQueuesCommandOnce(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		t:         t,
		token:     "TOKEN",
		pending:   &Command{Name: CommandPausePrint},
		pendingID: 42,
	}
	client, _ := newTestClient(t, svc, "TOKEN")

	require.NoError(t, client.Telemetry(ctx, models.Telemetry{State: models.RemoteStatePrinting}))
	require.NoError(t, client.Telemetry(ctx, models.Telemetry{State: models.RemoteStatePrinting}))

	require.Len(t, client.queue, 1, "a repeated command id is queued once")

	cmd := <-client.queue
	assert.Equal(t, 42, cmd.ID)
	assert.Equal(t, CommandPausePrint, cmd.Name)

	svc.mu.Lock()
	assert.Len(t, svc.telemetry, 2)
	assert.Equal(t, models.RemoteStatePrinting, svc.telemetry[0].State)
	svc.mu.Unlock()
}

func TestTelemetryUnauthorized(t *testing.T) {
	svc := &fakeService{t: t, token: "TOKEN"}
	client, _ := newTestClient(t, svc, "WRONG")

	err := client.Telemetry(context.Background(), models.Telemetry{})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "bad token")
}

func TestSetConnectionDropsQueuedCommands(t *testing.T) {
	svc := &fakeService{t: t, token: "TOKEN", pending: &Command{Name: CommandStopPrint}, pendingID: 7}
	client, srv := newTestClient(t, svc, "TOKEN")

	require.NoError(t, client.Telemetry(context.Background(), models.Telemetry{}))
	require.Len(t, client.queue, 1)

	client.SetConnection(srv.URL, "TOKEN")
	assert.Empty(t, client.queue)

	// the same id is accepted again after reconnecting
	require.NoError(t, client.Telemetry(context.Background(), models.Telemetry{}))
	assert.Len(t, client.queue, 1)
}

func TestLoopDispatchesCommands(t *testing.T) {
	svc := &fakeService{t: t, token: "TOKEN", pending: &Command{Name: CommandSendInfo}, pendingID: 1}
	client, _ := newTestClient(t, svc, "TOKEN")

	client.RegisterHandler(CommandSendInfo, func(_ context.Context, cmd Command) models.CommandResult {
		result := models.Succeeded()
		result.Data = map[string]interface{}{"id": cmd.ID}

		return result
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- client.Loop(ctx) }()

	require.NoError(t, client.Telemetry(ctx, models.Telemetry{}))

	require.Eventually(t, func() bool {
		return len(svc.eventNames()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []EventName{EventAccepted, EventInfo}, svc.eventNames())

	svc.mu.Lock()
	info := svc.events[1]
	svc.mu.Unlock()

	assert.Equal(t, 1, info.CommandID)
	assert.Equal(t, SourceConnect, info.Source)
	assert.NotZero(t, info.Timestamp)
	assert.InDelta(t, 1, info.Data["id"], 0)

	cancel()
	require.NoError(t, <-done)
}

func TestLoopRejectsUnknownAndLeavesFailuresToHandler(t *testing.T) {
	svc := &fakeService{t: t, token: "TOKEN"}
	client, _ := newTestClient(t, svc, "TOKEN")

	client.RegisterHandler(CommandStopPrint, func(context.Context, Command) models.CommandResult {
		return models.Failed(models.ResultCommandFailed, "printer offline")
	})

	client.RegisterHandler(CommandPausePrint, func(context.Context, Command) models.CommandResult {
		return models.Succeeded()
	})

	ctx := context.Background()

	client.process(ctx, Command{ID: 5, Name: "SELF_DESTRUCT"})
	client.process(ctx, Command{ID: 6, Name: CommandStopPrint})
	client.process(ctx, Command{ID: 8, Name: CommandPausePrint})

	assert.Equal(t, []EventName{EventRejected, EventAccepted, EventAccepted, EventFinished}, svc.eventNames())
}

func TestStringArg(t *testing.T) {
	cmd := Command{
		Args:   []interface{}{"/a.gcode", nil, "  "},
		Kwargs: map[string]interface{}{"path": "/b.gcode", "empty": "", "nil": nil},
	}

	v, ok := cmd.StringArg("path", 0)
	assert.True(t, ok)
	assert.Equal(t, "/b.gcode", v)

	v, ok = cmd.StringArg("missing", 0)
	assert.True(t, ok)
	assert.Equal(t, "/a.gcode", v)

	_, ok = cmd.StringArg("empty", 2)
	assert.False(t, ok)

	_, ok = cmd.StringArg("nil", 1)
	assert.False(t, ok)

	_, ok = cmd.StringArg("x", 9)
	assert.False(t, ok)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "connect.example.com", want: "https://connect.example.com"},
		{in: " http://host:8000/api/ ", want: "http://host:8000/api"},
		{in: "https://host/?q=1#frag", want: "https://host"},
		{in: "", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		got, err := normalizeBaseURL(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
