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

package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
)

const (
	headerAPIKey       = "X-Api-Key"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 4096
)

// OctoPrintConfig locates the OctoPrint REST API and its upload folder.
type OctoPrintConfig struct {
	BaseURL string          `json:"base_url"`
	APIKey  string          `json:"api_key" sensitive:"true"`
	BaseDir string          `json:"base_dir"`
	Timeout models.Duration `json:"timeout"`
}

// OctoPrintClient implements Device over the OctoPrint REST API.
type OctoPrintClient struct {
	baseURL string
	apiKey  string
	baseDir string
	http    *http.Client
	logger  logger.Logger
	usage   func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewOctoPrintClient(cfg OctoPrintConfig, httpClient *http.Client, log logger.Logger) (*OctoPrintClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout.Or(defaultHTTPTimeout)}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &OctoPrintClient{
		baseURL: base,
		apiKey:  cfg.APIKey,
		baseDir: cfg.BaseDir,
		http:    httpClient,
		logger:  log,
		usage:   disk.UsageWithContext,
	}, nil
}

type printerState struct {
	State struct {
		Text  string `json:"text"`
		Flags struct {
			Operational   bool `json:"operational"`
			Printing      bool `json:"printing"`
			Paused        bool `json:"paused"`
			Pausing       bool `json:"pausing"`
			Error         bool `json:"error"`
			Ready         bool `json:"ready"`
			ClosedOrError bool `json:"closedOrError"`
		} `json:"flags"`
	} `json:"state"`
	Temperature map[string]struct {
		Actual *float64 `json:"actual"`
		Target *float64 `json:"target"`
	} `json:"temperature"`
}

type jobState struct {
	Job struct {
		File struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"file"`
	} `json:"job"`
	Progress struct {
		Completion    *float64 `json:"completion"`
		PrintTime     *float64 `json:"printTime"`
		PrintTimeLeft *float64 `json:"printTimeLeft"`
	} `json:"progress"`
}

// printer returns the /api/printer document. A 409 means the printer is
// disconnected, reported as a zero state with ClosedOrError set.
func (c *OctoPrintClient) printer(ctx context.Context) (printerState, error) {
	var st printerState

	status, err := c.do(ctx, http.MethodGet, "/api/printer", nil, &st)
	if status == http.StatusConflict {
		st = printerState{}
		st.State.Flags.ClosedOrError = true

		return st, nil
	}

	return st, err
}

func (c *OctoPrintClient) CurrentData(ctx context.Context) (models.PrinterData, error) {
	st, err := c.printer(ctx)
	if err != nil {
		return models.PrinterData{}, err
	}

	var job jobState
	if _, err := c.do(ctx, http.MethodGet, "/api/job", nil, &job); err != nil {
		return models.PrinterData{}, err
	}

	f := st.State.Flags

	return models.PrinterData{
		Flags: models.PrinterFlags{
			Operational:   f.Operational,
			Printing:      f.Printing,
			Paused:        f.Paused || f.Pausing,
			Error:         f.Error,
			ClosedOrError: f.ClosedOrError,
			Ready:         f.Ready,
		},
		Job: models.JobData{
			FileName:   job.Job.File.Name,
			FilePath:   job.Job.File.Path,
			Completion: job.Progress.Completion,
			PrintTime:  job.Progress.PrintTime,
			TimeLeft:   job.Progress.PrintTimeLeft,
		},
	}, nil
}

func (c *OctoPrintClient) CurrentTemperatures(ctx context.Context) (models.Temperatures, error) {
	st, err := c.printer(ctx)
	if err != nil {
		return nil, err
	}

	temps := make(models.Temperatures, len(st.Temperature))
	for name, t := range st.Temperature {
		temps[name] = models.ToolTemperature{Actual: t.Actual, Target: t.Target}
	}

	return temps, nil
}

func (c *OctoPrintClient) IsPrinting(ctx context.Context) (bool, error) {
	st, err := c.printer(ctx)
	if err != nil {
		return false, err
	}

	return st.State.Flags.Printing, nil
}

func (c *OctoPrintClient) IsPaused(ctx context.Context) (bool, error) {
	st, err := c.printer(ctx)
	if err != nil {
		return false, err
	}

	return st.State.Flags.Paused || st.State.Flags.Pausing, nil
}

func (c *OctoPrintClient) SelectFile(ctx context.Context, filePath string, start bool) error {
	_, err := c.do(ctx, http.MethodPost, "/api/files/local/"+escapePath(filePath),
		map[string]interface{}{"command": "select", "print": start}, nil)

	return err
}

func (c *OctoPrintClient) CancelPrint(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/job", map[string]string{"command": "cancel"}, nil)
	return err
}

func (c *OctoPrintClient) PausePrint(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/job", map[string]string{"command": "pause", "action": "pause"}, nil)
	return err
}

func (c *OctoPrintClient) ResumePrint(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/job", map[string]string{"command": "pause", "action": "resume"}, nil)
	return err
}

func (c *OctoPrintClient) FileExists(ctx context.Context, filePath string) (bool, error) {
	_, err := c.do(ctx, http.MethodGet, "/api/files/local/"+escapePath(filePath), nil, nil)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

type filesResponse struct {
	Files []fileEntry `json:"files"`
}

type fileEntry struct {
	Name          string      `json:"name"`
	Path          string      `json:"path"`
	Type          string      `json:"type"`
	Size          int64       `json:"size"`
	Date          int64       `json:"date"`
	GcodeAnalysis *struct {
		EstimatedPrintTime *float64 `json:"estimatedPrintTime"`
	} `json:"gcodeAnalysis,omitempty"`
	Children []fileEntry `json:"children,omitempty"`
}

func (e fileEntry) toModel() models.FileEntry {
	out := models.FileEntry{
		Name: e.Name,
		Path: e.Path,
		Kind: models.FileKind(e.Type),
		Size: e.Size,
		Date: e.Date,
	}

	if e.GcodeAnalysis != nil {
		out.EstimatedPrintTime = e.GcodeAnalysis.EstimatedPrintTime
	}

	for _, child := range e.Children {
		out.Children = append(out.Children, child.toModel())
	}

	return out
}

func (c *OctoPrintClient) ListFiles(ctx context.Context) ([]models.FileEntry, error) {
	var resp filesResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/files/local?recursive=true", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.FileEntry, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, f.toModel())
	}

	return out, nil
}

func (c *OctoPrintClient) BaseDir() string {
	return c.baseDir
}

// PathOnDisk returns ErrNoBaseDir when no upload folder is configured.
func (c *OctoPrintClient) PathOnDisk(filePath string) (string, error) {
	if strings.TrimSpace(c.baseDir) == "" {
		return "", ErrNoBaseDir
	}

	return joinUnder(c.baseDir, filePath)
}

// DiskUsage reports capacity of the filesystem holding BaseDir.
func (c *OctoPrintClient) DiskUsage(ctx context.Context) (models.Storage, error) {
	if c.baseDir == "" {
		return models.Storage{}, nil
	}

	stat, err := c.usage(ctx, c.baseDir)
	if err != nil {
		return models.Storage{}, fmt.Errorf("disk usage of %s: %w", c.baseDir, err)
	}

	return models.Storage{Total: stat.Total, Free: stat.Free}, nil
}

func joinUnder(base, rel string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(rel))
	if clean == "/" {
		return "", ErrOutsideBaseDir
	}

	full := filepath.Join(base, filepath.FromSlash(clean))

	if !strings.HasPrefix(full, filepath.Clean(base)+string(filepath.Separator)) {
		return "", ErrOutsideBaseDir
	}

	return full, nil
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}

// do sends the request and decodes a JSON response into out when non-nil.
// It returns the HTTP status alongside any error.
func (c *OctoPrintClient) do(ctx context.Context, method, endpoint string, body, out interface{}) (int, error) {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, c.statusError(method, endpoint, resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}

	return resp.StatusCode, nil
}

func (*OctoPrintClient) statusError(method, endpoint string, resp *http.Response) error {
	wrapped := ErrUnexpectedStatus

	switch resp.StatusCode {
	case http.StatusNotFound:
		wrapped = ErrNotFound
	case http.StatusConflict:
		wrapped = ErrConflict
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("%s %s (%s): %w: %s", method, endpoint, resp.Status, wrapped, msg)
	}

	return fmt.Errorf("%s %s returned %s: %w", method, endpoint, resp.Status, wrapped)
}

// RoundPercent rounds a completion percentage and clamps it to 0..100.
func RoundPercent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}

	return int(math.Max(0, math.Min(100, math.Round(v))))
}

var _ Device = (*OctoPrintClient)(nil)
