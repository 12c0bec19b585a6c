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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreFlushAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "identity/serial", []byte(`"SN-1"`), 0))

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "nothing is written before Flush")

	require.NoError(t, store.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, `"SN-1"`, doc["identity/serial"])

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	value, found, err := reopened.Get(ctx, "identity/serial")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`"SN-1"`), value)
}

func TestFileStoreSkipsCleanFlush(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Flush(ctx))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreCloseFlushes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "session/token", []byte(`"t"`), 0))
	require.NoError(t, store.Delete(ctx, "missing"))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	_, found, err := reopened.Get(ctx, "session/token")
	require.NoError(t, err)
	assert.True(t, found)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path)
	require.Error(t, err)

	_, err = NewFileStore("")
	require.ErrorIs(t, err, errFilePathRequired)
}
