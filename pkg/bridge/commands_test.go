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

package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/connectbridge/pkg/connect"
	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/printer"
	"github.com/carverauto/connectbridge/pkg/settings"
)

func command(name connect.CommandName, kwargs map[string]interface{}) connect.Command {
	return connect.Command{ID: 7, Name: name, Kwargs: kwargs}
}

// expectFailedEvent allows exactly n FAILED notifications.
func expectFailedEvent(h *harness, n int) {
	h.client.EXPECT().EventNotify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev connect.Event) error {
		if ev.Event != connect.EventFailed || ev.CommandID != 7 {
			return errors.New("unexpected event")
		}

		return nil
	}).Times(n)
}

func TestStartPrint(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.device.files["parts/cube.gcode"] = true

	res := h.bridge.startPrint(ctx, command(connect.CommandStartPrint, map[string]interface{}{"path": "parts/cube.gcode"}))
	require.True(t, res.OK, res.Error)

	printing, err := h.device.IsPrinting(ctx)
	require.NoError(t, err)
	assert.True(t, printing)
	assert.Equal(t, []string{"parts/cube.gcode"}, h.device.selected)
	assert.Equal(t, models.RemoteStatePrinting, h.bridge.PrinterState())
}

func TestStartPrintWithoutBaseDir(t *testing.T) {
	var (
		mu       sync.Mutex
		selected []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/local/cube.gcode" {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodPost {
			mu.Lock()
			selected = append(selected, r.URL.Path)
			mu.Unlock()

			w.WriteHeader(http.StatusNoContent)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"cube.gcode","path":"cube.gcode","type":"machinecode"}`))
	}))
	t.Cleanup(srv.Close)

	octo, err := printer.NewOctoPrintClient(printer.OctoPrintConfig{BaseURL: srv.URL}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	b, err := New(Options{
		Client:   connect.NewMockClient(gomock.NewController(t)),
		Device:   octo,
		Files:    octo,
		Settings: settings.New(kv.NewMemoryStore()),
		Logger:   logger.NewTestLogger(),
	})
	require.NoError(t, err)

	res := b.startPrint(context.Background(), command(connect.CommandStartPrint, map[string]interface{}{"path": "/cube.gcode"}))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, models.RemoteStatePrinting, b.PrinterState())

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []string{"/api/files/local/cube.gcode"}, selected)
}

func TestStartPrintPositionalArgument(t *testing.T) {
	h := newHarness(t, nil)
	h.device.files["/a.gcode"] = true

	res := h.bridge.startPrint(context.Background(), connect.Command{Name: connect.CommandStartPrint, Args: []interface{}{"/a.gcode"}})
	require.True(t, res.OK)
	assert.Equal(t, []string{"a.gcode"}, h.device.selected)
}

func TestStartPrintRejections(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res := h.bridge.startPrint(ctx, command(connect.CommandStartPrint, nil))
	assert.False(t, res.OK)
	assert.Equal(t, models.ResultMissingArgument, res.Code)

	res = h.bridge.startPrint(ctx, command(connect.CommandStartPrint, map[string]interface{}{"path": "  "}))
	assert.Equal(t, models.ResultMissingArgument, res.Code)

	res = h.bridge.startPrint(ctx, command(connect.CommandStartPrint, map[string]interface{}{"path": "ghost.gcode"}))
	assert.False(t, res.OK)
	assert.Equal(t, models.ResultNotFound, res.Code)
	assert.Contains(t, res.Error, "ghost.gcode")

	assert.Empty(t, h.device.callLog())
	assert.Equal(t, models.RemoteStateReady, h.bridge.PrinterState())
}

func TestStartPrintWithoutFilesystem(t *testing.T) {
	h := newHarness(t, nil)
	h.bridge.files = nil

	res := h.bridge.startPrint(context.Background(), command(connect.CommandStartPrint, map[string]interface{}{"path": "a.gcode"}))
	assert.Equal(t, models.ResultFilesystemUnavailable, res.Code)
}

func TestPauseResumeStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res := h.bridge.pausePrint(ctx, command(connect.CommandPausePrint, nil))
	assert.Equal(t, models.ResultNotPrinting, res.Code)

	res = h.bridge.resumePrint(ctx, command(connect.CommandResumePrint, nil))
	assert.Equal(t, models.ResultNotPaused, res.Code)

	h.device.flags.Printing = true

	res = h.bridge.pausePrint(ctx, command(connect.CommandPausePrint, nil))
	require.True(t, res.OK)
	assert.Equal(t, models.RemoteStatePaused, h.bridge.PrinterState())

	res = h.bridge.resumePrint(ctx, command(connect.CommandResumePrint, nil))
	require.True(t, res.OK)
	assert.Equal(t, models.RemoteStatePrinting, h.bridge.PrinterState())

	res = h.bridge.stopPrint(ctx, command(connect.CommandStopPrint, nil))
	require.True(t, res.OK)
	assert.Equal(t, models.RemoteStateReady, h.bridge.PrinterState())

	assert.Equal(t, []string{"pause", "resume", "cancel"}, h.device.callLog())
}

func TestPauseWhenAlreadyPausedIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.device.flags.Paused = true

	res := h.bridge.pausePrint(context.Background(), command(connect.CommandPausePrint, nil))
	require.True(t, res.OK)
	assert.Empty(t, h.device.callLog())
	assert.Equal(t, models.RemoteStateReady, h.bridge.PrinterState())
}

func TestSendInfo(t *testing.T) {
	h := newHarness(t, nil)

	h.device.entries = []models.FileEntry{
		{Name: "parts", Path: "parts", Kind: models.FileKindFolder, Children: []models.FileEntry{
			{Name: "cube.gcode", Path: "parts/cube.gcode", Kind: models.FileKindMachineCode, Size: 10, Date: 1700, EstimatedPrintTime: f64(3600)},
			{Name: "cube.stl", Path: "parts/cube.stl", Kind: models.FileKindModel, Size: 99},
		}},
		{Name: "top.gcode", Path: "top.gcode", Kind: models.FileKindMachineCode, Size: 5},
	}
	h.device.storage = models.Storage{Total: 1000, Free: 400}

	res := h.bridge.sendInfo(context.Background(), command(connect.CommandSendInfo, nil))
	require.True(t, res.OK)

	fs, ok := res.Data["filesystem"].(models.Filesystem)
	require.True(t, ok)

	assert.Equal(t, models.Storage{Total: 1000, Free: 400}, fs.Storage)
	require.Len(t, fs.Root.Children, 2)

	parts := fs.Root.Children[0]
	assert.True(t, parts.Folder)
	require.Len(t, parts.Children, 1)
	assert.Equal(t, "/parts/cube.gcode", parts.Children[0].Path)
	assert.Equal(t, int64(1700), parts.Children[0].ModifiedAt)
	require.NotNil(t, parts.Children[0].EstimatedPrintTime)
	assert.Equal(t, "/top.gcode", fs.Root.Children[1].Path)
}

func TestSendInfoUnknownStorage(t *testing.T) {
	h := newHarness(t, nil)
	h.device.diskErr = errors.New("statfs failed")

	fs, err := h.bridge.Filesystem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Storage{}, fs.Storage)
}

func TestSendInfoWithoutFilesystem(t *testing.T) {
	h := newHarness(t, nil)
	h.bridge.files = nil

	res := h.bridge.sendInfo(context.Background(), command(connect.CommandSendInfo, nil))
	assert.Equal(t, models.ResultFilesystemUnavailable, res.Code)

	_, err := h.bridge.Filesystem(context.Background())
	require.ErrorIs(t, err, ErrFilesystemUnavailable)
}

func TestGuardReportsFailures(t *testing.T) {
	h := newHarness(t, nil)
	expectFailedEvent(h, 1)

	handler := h.bridge.guard(connect.CommandPausePrint, h.bridge.pausePrint)

	res := handler(context.Background(), command(connect.CommandPausePrint, nil))
	assert.Equal(t, models.ResultNotPrinting, res.Code)
}

func TestGuardRecoversPanics(t *testing.T) {
	h := newHarness(t, nil)
	expectFailedEvent(h, 1)

	h.device.flags.Printing = true
	h.device.panicOn = "cancel"

	handler := h.bridge.guard(connect.CommandStopPrint, h.bridge.stopPrint)

	var res models.CommandResult

	require.NotPanics(t, func() {
		res = handler(context.Background(), command(connect.CommandStopPrint, nil))
	})
	assert.False(t, res.OK)
	assert.Equal(t, models.ResultCommandFailed, res.Code)
	assert.Contains(t, res.Error, "cancel exploded")
}

func TestGuardSwallowsNotifyErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.client.EXPECT().EventNotify(gomock.Any(), gomock.Any()).Return(errors.New("offline")).Times(1)

	handler := h.bridge.guard(connect.CommandResumePrint, h.bridge.resumePrint)

	res := handler(context.Background(), command(connect.CommandResumePrint, nil))
	assert.Equal(t, models.ResultNotPaused, res.Code)
}

func TestGuardSuccessSendsNothing(t *testing.T) {
	h := newHarness(t, nil)

	handler := h.bridge.guard(connect.CommandStopPrint, h.bridge.stopPrint)

	res := handler(context.Background(), command(connect.CommandStopPrint, nil))
	assert.True(t, res.OK)
}

func TestHandlersCoverEveryCommand(t *testing.T) {
	h := newHarness(t, nil)

	table := h.bridge.handlers()
	for _, name := range []connect.CommandName{
		connect.CommandStartPrint, connect.CommandStopPrint, connect.CommandPausePrint,
		connect.CommandResumePrint, connect.CommandSendInfo,
	} {
		assert.Contains(t, table, name)
	}
}
