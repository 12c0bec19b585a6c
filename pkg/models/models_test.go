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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	type nested struct {
		URL       string `json:"url"`
		CredsFile string `json:"creds_file" sensitive:"true"`
	}

	type cfg struct {
		Listen  string            `json:"listen_addr"`
		APIKey  string            `json:"api_key" sensitive:"true"`
		NATS    *nested           `json:"nats,omitempty"`
		Origins []string          `json:"cors_origins"`
		Labels  map[string]string `json:"labels"`
		Skipped string            `json:"-"`
		Plain   int
		hidden  string
	}

	in := cfg{
		Listen:  "127.0.0.1:8091",
		APIKey:  "secret",
		NATS:    &nested{URL: "nats://localhost:4222", CredsFile: "/etc/creds"},
		Origins: []string{"http://octopi.local"},
		Labels:  map[string]string{"site": "lab"},
		Skipped: "x",
		Plain:   3,
		hidden:  "y",
	}

	out, err := Redact(&in)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"listen_addr":  "127.0.0.1:8091",
		"nats":         map[string]interface{}{"url": "nats://localhost:4222"},
		"cors_origins": []interface{}{"http://octopi.local"},
		"labels":       map[string]interface{}{"site": "lab"},
		"Plain":        3,
	}, out)

	_, err = Redact("not a struct")
	require.ErrorIs(t, err, errNotStruct)

	out, err = Redact(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1.5s"`), &d))
	assert.Equal(t, 1500*time.Millisecond, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`2000000000`), &d))
	assert.Equal(t, 2*time.Second, time.Duration(d))

	require.ErrorIs(t, json.Unmarshal([]byte(`"soon"`), &d), errInvalidDuration)
	require.ErrorIs(t, json.Unmarshal([]byte(`true`), &d), errInvalidDuration)

	data, err := json.Marshal(Duration(time.Minute))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m0s"`, string(data))

	assert.Equal(t, time.Second, Duration(0).Or(time.Second))
	assert.Equal(t, time.Minute, Duration(time.Minute).Or(time.Second))
}

func TestSnapshotKeyIgnoresVolatileFields(t *testing.T) {
	a := DeviceStatusSnapshot{StateLabel: "Paired", TokenAvailable: true, TokenDisplay: "abcd****", LoopAlive: true, PrinterState: "READY"}
	b := a
	b.LoopAlive = false
	b.PrinterState = "PRINTING"
	b.Polling = true

	assert.Equal(t, a.Key(), b.Key())

	b.ErrorMessage = "boom"
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestCommandResults(t *testing.T) {
	assert.True(t, Succeeded().OK)

	res := Failed(ResultNotFound, "missing")
	assert.False(t, res.OK)
	assert.Equal(t, ResultNotFound, res.Code)
	assert.Equal(t, "missing", res.Error)
}

func TestSessionTransitions(t *testing.T) {
	s := Session{PairingCode: "ABC"}
	assert.False(t, s.Paired())

	s.Confirm("tok")
	assert.True(t, s.Paired())
	assert.Empty(t, s.PairingCode)

	assert.False(t, Session{TokenConfirmed: true}.Paired())

	s.Clear()
	assert.Equal(t, Session{}, s)
}

func TestEndpointEqual(t *testing.T) {
	assert.True(t, RemoteEndpoint{BaseURL: "https://c.example.com/"}.Equal(RemoteEndpoint{BaseURL: " https://c.example.com"}))
	assert.False(t, RemoteEndpoint{BaseURL: "https://a.example.com"}.Equal(RemoteEndpoint{BaseURL: "https://b.example.com"}))
	assert.True(t, DeviceIdentity{}.IsZero())
}
