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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/version"
)

const (
	headerFingerprint = "Fingerprint"
	headerToken       = "Token"
	headerCode        = "Code"
	headerCommandID   = "Command-Id"

	pathRegister  = "/p/register"
	pathTelemetry = "/p/telemetry"
	pathEvents    = "/p/events"

	defaultHTTPTimeout = 20 * time.Second
	commandQueueSize   = 16
	maxErrorBody       = 4096
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL     string
	Token       string
	Identity    models.DeviceIdentity
	PrinterType string
	Firmware    string
	UserAgent   string
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// HTTPClient implements Client over the remote service's REST API.
type HTTPClient struct {
	http        *http.Client
	logger      logger.Logger
	printerType string
	firmware    string
	userAgent   string

	mu            sync.RWMutex
	baseURL       string
	token         string
	identity      models.DeviceIdentity
	handlers      map[CommandName]Handler
	queue         chan Command
	lastCommandID int
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent("")
	}

	c := &HTTPClient{
		http:        httpClient,
		userAgent:   userAgent,
		logger:      log,
		printerType: cfg.PrinterType,
		firmware:    cfg.Firmware,
		identity:    cfg.Identity,
		handlers:    make(map[CommandName]Handler),
		queue:       make(chan Command, commandQueueSize),
	}

	c.SetConnection(cfg.BaseURL, cfg.Token)

	return c
}

func (c *HTTPClient) SetConnection(baseURL, token string) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil && strings.TrimSpace(baseURL) != "" {
		c.logger.Warn().Err(err).Str("url", baseURL).Msg("Ignoring invalid endpoint")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseURL = normalized
	c.token = token
	c.lastCommandID = 0

	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

func (c *HTTPClient) SetIdentity(id models.DeviceIdentity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *HTTPClient) RegisterHandler(name CommandName, h Handler) {
	c.mu.Lock()
	c.handlers[name] = h
	c.mu.Unlock()
}

type registerRequest struct {
	Serial      string `json:"sn"`
	Fingerprint string `json:"fingerprint"`
	PrinterType string `json:"printer_type,omitempty"`
	Firmware    string `json:"firmware,omitempty"`
}

func (c *HTTPClient) Register(ctx context.Context) (string, error) {
	base, _, id, err := c.connection(false)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(registerRequest{
		Serial:      id.Serial,
		Fingerprint: id.Fingerprint,
		PrinterType: c.printerType,
		Firmware:    c.firmware,
	})
	if err != nil {
		return "", fmt.Errorf("encode register payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+pathRegister, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create register request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerFingerprint, id.Fingerprint)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request register endpoint: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", statusError("register", resp)
	}

	code := strings.TrimSpace(resp.Header.Get(headerCode))
	if code == "" {
		return "", ErrMissingCode
	}

	return code, nil
}

func (c *HTTPClient) PollToken(ctx context.Context, code string) (string, error) {
	base, _, id, err := c.connection(false)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+pathRegister, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	req.Header.Set(headerFingerprint, id.Fingerprint)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerCode, code)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token endpoint: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return strings.TrimSpace(resp.Header.Get(headerToken)), nil
	case http.StatusAccepted:
		return "", nil
	case http.StatusGone:
		return "", ErrCodeExpired
	default:
		return "", statusError("token", resp)
	}
}

func (c *HTTPClient) Telemetry(ctx context.Context, t models.Telemetry) error {
	resp, err := c.postAuthorized(ctx, pathTelemetry, t)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusOK:
		return c.enqueueCommand(resp)
	default:
		return statusError("telemetry", resp)
	}
}

func (c *HTTPClient) EventNotify(ctx context.Context, ev Event) error {
	if ev.Source == "" {
		ev.Source = SourceConnect
	}

	if ev.Timestamp == 0 {
		ev.Timestamp = float64(time.Now().UnixMilli()) / 1000
	}

	resp, err := c.postAuthorized(ctx, pathEvents, ev)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("events", resp)
	}

	return nil
}

func (c *HTTPClient) postAuthorized(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	base, token, id, err := c.connection(true)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerFingerprint, id.Fingerprint)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerToken, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	return resp, nil
}

func (c *HTTPClient) enqueueCommand(resp *http.Response) error {
	var cmd Command
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cmd); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return fmt.Errorf("decode command: %w", err)
	}

	if cmd.Name == "" {
		return nil
	}

	id, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get(headerCommandID)))
	if err != nil {
		return fmt.Errorf("invalid %s header: %w", headerCommandID, err)
	}

	cmd.ID = id

	c.mu.Lock()
	defer c.mu.Unlock()

	// the service repeats a command until it sees ACCEPTED
	if id == c.lastCommandID {
		return nil
	}

	select {
	case c.queue <- cmd:
		c.lastCommandID = id
	default:
		c.logger.Warn().Int("command_id", id).Str("command", string(cmd.Name)).Msg("Command queue full, dropping")
	}

	return nil
}

func (c *HTTPClient) connection(needToken bool) (string, string, models.DeviceIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.baseURL == "":
		return "", "", models.DeviceIdentity{}, ErrEndpointRequired
	case c.identity.Fingerprint == "":
		return "", "", models.DeviceIdentity{}, ErrIdentityRequired
	case needToken && c.token == "":
		return "", "", models.DeviceIdentity{}, ErrTokenRequired
	}

	return c.baseURL, c.token, c.identity, nil
}

func (c *HTTPClient) handler(name CommandName) (Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.handlers[name]

	return h, ok
}

func statusError(op string, resp *http.Response) error {
	wrapped := ErrUnexpectedStatus
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		wrapped = ErrUnauthorized
	}

	if msg := readErrorBody(resp.Body); msg != "" {
		return fmt.Errorf("%s endpoint (%s): %w: %s", op, resp.Status, wrapped, msg)
	}

	return fmt.Errorf("%s endpoint returned %s: %w", op, resp.Status, wrapped)
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEndpointRequired
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidEndpoint, err)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", errInvalidEndpoint)
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	return strings.TrimRight(u.String(), "/"), nil
}

func readErrorBody(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

var _ Client = (*HTTPClient)(nil)
