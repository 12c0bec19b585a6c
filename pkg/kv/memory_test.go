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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, found, err := store.Get(ctx, "session/token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "session/token", []byte("tok"), 0))

	value, found, err := store.Get(ctx, "session/token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("tok"), value)

	require.NoError(t, store.PutMany(ctx, []KeyValueEntry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}, 0))

	value, _, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)

	require.NoError(t, store.Delete(ctx, "session/token"))
	require.NoError(t, store.Delete(ctx, "session/token"))

	_, found, err = store.Get(ctx, "session/token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	input := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", input, 0))
	input[0] = 'x'

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	value[1] = 'y'
	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "k", []byte("v1"), 0))

	ch, err := store.Watch(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, []byte("v1"), receive(t, ch))

	require.NoError(t, store.Put(ctx, "k", []byte("v2"), 0))
	assert.Equal(t, []byte("v2"), receive(t, ch))

	require.NoError(t, store.Delete(ctx, "k"))
	assert.Nil(t, receive(t, ch))

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ch, err := store.Watch(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, ok := <-ch
	assert.False(t, ok)

	require.ErrorIs(t, store.Put(ctx, "k", nil, 0), ErrStoreClosed)

	_, _, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrStoreClosed)
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
		return nil
	}
}
