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
	"fmt"
	"strings"

	"github.com/carverauto/connectbridge/pkg/connect"
	"github.com/carverauto/connectbridge/pkg/metrics"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/printer"
)

const argPath = "path"

// handlers is the dispatch table for remote commands.
func (b *Bridge) handlers() map[connect.CommandName]connect.Handler {
	return map[connect.CommandName]connect.Handler{
		connect.CommandStartPrint:  b.startPrint,
		connect.CommandStopPrint:   b.stopPrint,
		connect.CommandPausePrint:  b.pausePrint,
		connect.CommandResumePrint: b.resumePrint,
		connect.CommandSendInfo:    b.sendInfo,
	}
}

// guard turns a panic into a CommandFailed result and reports failures
// to the remote service with a best-effort FAILED event.
func (b *Bridge) guard(name connect.CommandName, h connect.Handler) connect.Handler {
	return func(ctx context.Context, cmd connect.Command) (res models.CommandResult) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error().Interface("panic", r).Str("command", string(name)).Msg("Command handler panicked")
				res = failed(models.ResultCommandFailed, ErrCommandFailed, fmt.Errorf("%v", r))
			}

			b.finish(ctx, cmd, res)
		}()

		return h(ctx, cmd)
	}
}

func (b *Bridge) finish(ctx context.Context, cmd connect.Command, res models.CommandResult) {
	if res.OK {
		metrics.RecordCommand(ctx, string(cmd.Name), metrics.OutcomeSuccess)
		return
	}

	outcome := metrics.OutcomeFailure
	if res.Code != models.ResultCommandFailed && res.Code != models.ResultFilesystemUnavailable {
		outcome = metrics.OutcomeRejected
	}

	metrics.RecordCommand(ctx, string(cmd.Name), outcome)

	b.logger.Warn().
		Str("command", string(cmd.Name)).
		Int("command_id", cmd.ID).
		Str("code", string(res.Code)).
		Str("reason", res.Error).
		Msg("Remote command failed")

	ev := connect.Event{Event: connect.EventFailed, CommandID: cmd.ID, Reason: res.Error}
	if err := b.client.EventNotify(ctx, ev); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to report command failure")
	}
}

func failed(code models.ResultCode, kind, cause error) models.CommandResult {
	if cause == nil {
		return models.Failed(code, fmt.Sprintf("%s: %s", code, kind))
	}

	return models.Failed(code, fmt.Sprintf("%s: %v", code, fmt.Errorf("%w: %w", kind, cause)))
}

func (b *Bridge) startPrint(ctx context.Context, cmd connect.Command) models.CommandResult {
	path, ok := cmd.StringArg(argPath, 0)
	if !ok {
		return failed(models.ResultMissingArgument, ErrCommandRejected, errors.New("no file given"))
	}

	if b.files == nil {
		return failed(models.ResultFilesystemUnavailable, ErrFilesystemUnavailable, nil)
	}

	exists, err := b.files.FileExists(ctx, path)
	if err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	if !exists {
		return failed(models.ResultNotFound, ErrCommandRejected, fmt.Errorf("%s: %w", path, printer.ErrNotFound))
	}

	// The host selects by storage path; the on-disk path is only resolved
	// to reject traversal when an upload folder is known.
	onDisk, err := b.files.PathOnDisk(path)

	switch {
	case errors.Is(err, printer.ErrNoBaseDir):
		onDisk = path
	case err != nil:
		return failed(models.ResultNotFound, ErrCommandRejected, err)
	}

	if err := b.device.SelectFile(ctx, strings.TrimPrefix(path, "/"), true); err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	b.setPrinterState(models.RemoteStatePrinting)

	b.logger.Info().Str("path", path).Str("local_path", onDisk).Msg("Started print from remote")

	return models.Succeeded()
}

func (b *Bridge) stopPrint(ctx context.Context, _ connect.Command) models.CommandResult {
	if err := b.device.CancelPrint(ctx); err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	b.setPrinterState(models.RemoteStateReady)

	return models.Succeeded()
}

func (b *Bridge) pausePrint(ctx context.Context, _ connect.Command) models.CommandResult {
	paused, err := b.device.IsPaused(ctx)
	if err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	if paused {
		return models.Succeeded()
	}

	printing, err := b.device.IsPrinting(ctx)
	if err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	if !printing {
		return failed(models.ResultNotPrinting, ErrCommandRejected, nil)
	}

	if err := b.device.PausePrint(ctx); err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	b.setPrinterState(models.RemoteStatePaused)

	return models.Succeeded()
}

func (b *Bridge) resumePrint(ctx context.Context, _ connect.Command) models.CommandResult {
	paused, err := b.device.IsPaused(ctx)
	if err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	if !paused {
		return failed(models.ResultNotPaused, ErrCommandRejected, nil)
	}

	if err := b.device.ResumePrint(ctx); err != nil {
		return failed(models.ResultCommandFailed, ErrCommandFailed, err)
	}

	b.setPrinterState(models.RemoteStatePrinting)

	return models.Succeeded()
}

func (b *Bridge) sendInfo(ctx context.Context, _ connect.Command) models.CommandResult {
	fs, err := b.Filesystem(ctx)
	if err != nil {
		return failed(models.ResultFilesystemUnavailable, ErrFilesystemUnavailable, err)
	}

	return models.CommandResult{OK: true, Data: map[string]interface{}{"filesystem": fs}}
}

// Filesystem mirrors local storage as a tree of folders and machine-code
// files plus the capacity of the storage location. Capacity is 0/0 when
// it cannot be read.
func (b *Bridge) Filesystem(ctx context.Context) (models.Filesystem, error) {
	if b.files == nil {
		return models.Filesystem{}, ErrFilesystemUnavailable
	}

	entries, err := b.files.ListFiles(ctx)
	if err != nil {
		return models.Filesystem{}, err
	}

	root := models.FileNode{Name: "local", Path: "/", Folder: true, Children: buildNodes(entries)}

	storage, err := b.files.DiskUsage(ctx)
	if err != nil {
		b.logger.Debug().Err(err).Str("base_dir", b.files.BaseDir()).Msg("Storage capacity unknown")

		storage = models.Storage{}
	}

	return models.Filesystem{Root: root, Storage: storage}, nil
}

func buildNodes(entries []models.FileEntry) []models.FileNode {
	var out []models.FileNode

	for _, e := range entries {
		switch e.Kind {
		case models.FileKindFolder:
			out = append(out, models.FileNode{
				Name:       e.Name,
				Path:       "/" + strings.TrimPrefix(e.Path, "/"),
				Folder:     true,
				ModifiedAt: e.Date,
				Children:   buildNodes(e.Children),
			})
		case models.FileKindMachineCode:
			out = append(out, models.FileNode{
				Name:               e.Name,
				Path:               "/" + strings.TrimPrefix(e.Path, "/"),
				Size:               e.Size,
				ModifiedAt:         e.Date,
				EstimatedPrintTime: e.EstimatedPrintTime,
			})
		}
	}

	return out
}
