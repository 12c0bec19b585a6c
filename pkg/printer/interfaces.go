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

// Package printer talks to the local print host: job control, state,
// temperatures, and the uploads storage.
package printer

import (
	"context"

	"github.com/carverauto/connectbridge/pkg/models"
)

// JobController drives and inspects the active print job.
type JobController interface {
	// SelectFile selects path (relative to the storage root) and starts it
	// when start is set.
	SelectFile(ctx context.Context, path string, start bool) error
	CancelPrint(ctx context.Context) error
	PausePrint(ctx context.Context) error
	ResumePrint(ctx context.Context) error
	IsPrinting(ctx context.Context) (bool, error)
	IsPaused(ctx context.Context) (bool, error)
	CurrentData(ctx context.Context) (models.PrinterData, error)
	CurrentTemperatures(ctx context.Context) (models.Temperatures, error)
}

// FileStorage is the host's primary (local) file storage.
type FileStorage interface {
	FileExists(ctx context.Context, path string) (bool, error)
	// PathOnDisk maps a storage path to an absolute path under BaseDir.
	PathOnDisk(path string) (string, error)
	ListFiles(ctx context.Context) ([]models.FileEntry, error)
	BaseDir() string
	DiskUsage(ctx context.Context) (models.Storage, error)
}

// Device is everything the bridge needs from the print host.
type Device interface {
	JobController
	FileStorage
}
