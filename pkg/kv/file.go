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

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps values in memory and persists them to a single JSON
// document on Flush. The file is replaced by atomic rename.
type FileStore struct {
	*MemoryStore

	path    string
	flushMu sync.Mutex
}

// NewFileStore opens path, loading any existing document.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errFilePathRequired
	}

	store := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file '%s': %w", path, err)
	}

	doc := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse settings file '%s': %w", path, err)
		}
	}

	for k, v := range doc {
		store.values[k] = []byte(v)
	}

	return store, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Flush writes the document if anything changed since the last flush.
func (f *FileStore) Flush(_ context.Context) error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	values, dirty := f.snapshot()
	if !dirty {
		return nil
	}

	doc := make(map[string]string, len(values))
	for k, v := range values {
		doc[k] = string(v)
	}

	if err := writeFileAtomic(f.path, doc); err != nil {
		f.markDirty()

		return err
	}

	return nil
}

func writeFileAtomic(path string, doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create settings dir '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write settings: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to sync settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace settings file '%s': %w", path, err)
	}

	return nil
}

// Close flushes pending writes and closes the store.
func (f *FileStore) Close() error {
	flushErr := f.Flush(context.Background())
	closeErr := f.MemoryStore.Close()

	return errors.Join(flushErr, closeErr)
}

var (
	_ KVStore = (*FileStore)(nil)
	_ Flusher = (*FileStore)(nil)
)
