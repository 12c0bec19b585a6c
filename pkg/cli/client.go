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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/version"
)

const (
	defaultAddr       = "http://127.0.0.1:8091"
	defaultTimeout    = 15 * time.Second
	maxErrorBodyBytes = 4096
)

// Client talks to the bridge's local API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for the API at addr. A bare host:port is
// treated as http.
func NewClient(addr, apiKey string) *Client {
	return &Client{
		baseURL: normaliseAddr(addr),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func normaliseAddr(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return defaultAddr
	}

	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return "http://" + base
	}

	return base
}

// Status fetches the current status snapshot.
func (c *Client) Status(ctx context.Context) (models.DeviceStatusSnapshot, error) {
	return c.do(ctx, http.MethodGet, "/api/status", nil)
}

// Register asks the bridge to start pairing.
func (c *Client) Register(ctx context.Context) (models.DeviceStatusSnapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/registration", nil)
}

// Reset clears the bridge session.
func (c *Client) Reset(ctx context.Context) (models.DeviceStatusSnapshot, error) {
	return c.do(ctx, http.MethodDelete, "/api/registration", nil)
}

// SetEndpoint changes the remote service base URL.
func (c *Client) SetEndpoint(ctx context.Context, url string) (models.DeviceStatusSnapshot, error) {
	return c.do(ctx, http.MethodPut, "/api/endpoint", map[string]string{"url": url})
}

// SetSerial sets the serial override. An empty serial clears it.
func (c *Client) SetSerial(ctx context.Context, serial string) (models.DeviceStatusSnapshot, error) {
	return c.do(ctx, http.MethodPut, "/api/serial", map[string]string{"serial": serial})
}

// DialStream opens the websocket status stream.
func (c *Client) DialStream(ctx context.Context) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws"

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, fmt.Errorf("dial status stream: %w", err)
	}

	return conn, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (models.DeviceStatusSnapshot, error) {
	var status models.DeviceStatusSnapshot

	var body io.Reader = http.NoBody

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return status, fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return status, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("bridgectl"))

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return status, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := readErrorBody(resp.Body)
		if message == "" {
			message = resp.Status
		}

		return status, fmt.Errorf("%w: %s", errAPIError, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode response: %w", err)
	}

	return status, nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}

	var apiErr struct {
		Message string `json:"message"`
	}

	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	return strings.TrimSpace(string(data))
}
