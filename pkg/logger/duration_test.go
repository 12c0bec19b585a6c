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

package logger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "nanoseconds", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "compound", input: `"1h30m"`, expected: Duration(90 * time.Minute)},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bad type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidDuration)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestOTelConfig_JSONUnmarshaling(t *testing.T) {
	configJSON := `{
		"enabled": true,
		"endpoint": "collector:4317",
		"service_name": "bridge",
		"batch_timeout": "10s",
		"insecure": true,
		"headers": {"x-api-key": "k"}
	}`

	var config OTelConfig
	require.NoError(t, json.Unmarshal([]byte(configJSON), &config))

	assert.True(t, config.Enabled)
	assert.Equal(t, "collector:4317", config.Endpoint)
	assert.Equal(t, "bridge", config.ServiceName)
	assert.Equal(t, Duration(10*time.Second), config.BatchTimeout)
	assert.True(t, config.Insecure)
	assert.Equal(t, "k", config.Headers["x-api-key"])
}
