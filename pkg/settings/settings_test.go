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

package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/models"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(kv.NewMemoryStore())

	id, err := store.Identity(ctx)
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	want := models.DeviceIdentity{Serial: "SN-1", Fingerprint: "abc"}
	require.NoError(t, store.SaveIdentity(ctx, want))

	got, err := store.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New(kv.NewMemoryStore())

	require.NoError(t, store.SavePairingCode(ctx, "CODE1"))

	session, err := store.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Session{PairingCode: "CODE1"}, session)

	require.NoError(t, store.SaveToken(ctx, "TOKEN1"))

	session, err = store.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Session{Token: "TOKEN1", TokenConfirmed: true}, session)

	code, err := store.PairingCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code, "confirming a token drops the pairing code")

	require.NoError(t, store.ClearSession(ctx))

	session, err = store.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Session{}, session)
}

func TestSavesAreFlushedToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")

	backend, err := kv.NewFileStore(path)
	require.NoError(t, err)

	store := New(backend)
	require.NoError(t, store.SaveEndpoint(ctx, models.RemoteEndpoint{BaseURL: "https://connect.example.com"}))
	require.NoError(t, store.SaveToken(ctx, "T"))

	reopened, err := kv.NewFileStore(path)
	require.NoError(t, err)

	ep, err := New(reopened).Endpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://connect.example.com", ep.BaseURL)

	session, err := New(reopened).Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T", session.Token)
}

func TestJSONValues(t *testing.T) {
	ctx := context.Background()
	store := New(kv.NewMemoryStore())

	type rule struct {
		Name string `json:"name"`
	}

	var rules []rule

	found, err := store.GetJSON(ctx, KeyGcodeRules, &rules)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutJSON(ctx, KeyGcodeRules, []rule{{Name: "a"}}))

	found, err = store.GetJSON(ctx, KeyGcodeRules, &rules)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []rule{{Name: "a"}}, rules)

	require.NoError(t, store.Backend().Put(ctx, KeyGcodeRules, []byte("{bad"), 0))

	_, err = store.GetJSON(ctx, KeyGcodeRules, &rules)
	require.Error(t, err)
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := kv.NewMockKVStore(ctrl)
	boom := errors.New("bucket unavailable")

	backend.EXPECT().Get(gomock.Any(), KeySerial).Return(nil, false, boom)
	backend.EXPECT().PutMany(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	store := New(backend)

	_, err := store.Identity(context.Background())
	require.ErrorIs(t, err, boom)

	err = store.SaveIdentity(context.Background(), models.DeviceIdentity{Serial: "x"})
	require.ErrorIs(t, err, boom)
}
