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

// Package settings is the durable state of the bridge: identity, session,
// remote endpoint, and rewrite rules, stored as JSON values in a KV store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/models"
)

const (
	KeySerial      = "identity/serial"
	KeyFingerprint = "identity/fingerprint"
	KeyPairingCode = "session/pairing_code"
	KeyToken       = "session/token"
	KeyEndpoint    = "endpoint/base_url"
	KeyGcodeRules  = "gcode/rules"
)

// Store reads and writes bridge settings. Every Save flushes buffered
// backends before returning.
type Store struct {
	kv kv.KVStore
}

func New(store kv.KVStore) *Store {
	return &Store{kv: store}
}

// Backend exposes the underlying KV store.
func (s *Store) Backend() kv.KVStore {
	return s.kv
}

// GetJSON decodes key into dst and reports whether it was present.
func (s *Store) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	if !found || len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}

	return true, nil
}

// PutJSON encodes v under key and flushes.
func (s *Store) PutJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}

	if err := s.kv.Put(ctx, key, raw, 0); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}

	return s.flush(ctx)
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	var v string

	if _, err := s.GetJSON(ctx, key, &v); err != nil {
		return "", err
	}

	return v, nil
}

func (s *Store) putStrings(ctx context.Context, values map[string]string) error {
	entries := make([]kv.KeyValueEntry, 0, len(values))

	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode setting %s: %w", key, err)
		}

		entries = append(entries, kv.KeyValueEntry{Key: key, Value: raw})
	}

	if err := s.kv.PutMany(ctx, entries, 0); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

func (s *Store) deleteKeys(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete setting %s: %w", key, err)
		}
	}

	return nil
}

func (s *Store) flush(ctx context.Context) error {
	f, ok := s.kv.(kv.Flusher)
	if !ok {
		return nil
	}

	if err := f.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush settings: %w", err)
	}

	return nil
}

// Identity returns the persisted identity; missing keys are empty strings.
func (s *Store) Identity(ctx context.Context) (models.DeviceIdentity, error) {
	serial, err := s.getString(ctx, KeySerial)
	if err != nil {
		return models.DeviceIdentity{}, err
	}

	fingerprint, err := s.getString(ctx, KeyFingerprint)
	if err != nil {
		return models.DeviceIdentity{}, err
	}

	return models.DeviceIdentity{Serial: serial, Fingerprint: fingerprint}, nil
}

func (s *Store) SaveIdentity(ctx context.Context, id models.DeviceIdentity) error {
	if err := s.putStrings(ctx, map[string]string{
		KeySerial:      id.Serial,
		KeyFingerprint: id.Fingerprint,
	}); err != nil {
		return err
	}

	return s.flush(ctx)
}

// Session rebuilds the persisted session. A stored token is treated as
// confirmed, since only confirmed tokens are ever written.
func (s *Store) Session(ctx context.Context) (models.Session, error) {
	code, err := s.getString(ctx, KeyPairingCode)
	if err != nil {
		return models.Session{}, err
	}

	token, err := s.getString(ctx, KeyToken)
	if err != nil {
		return models.Session{}, err
	}

	if token != "" {
		return models.Session{Token: token, TokenConfirmed: true}, nil
	}

	return models.Session{PairingCode: code}, nil
}

func (s *Store) PairingCode(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyPairingCode)
}

func (s *Store) SavePairingCode(ctx context.Context, code string) error {
	if err := s.putStrings(ctx, map[string]string{KeyPairingCode: code}); err != nil {
		return err
	}

	return s.flush(ctx)
}

// SaveToken stores a confirmed token and drops the pairing code.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	if err := s.putStrings(ctx, map[string]string{KeyToken: token}); err != nil {
		return err
	}

	if err := s.deleteKeys(ctx, KeyPairingCode); err != nil {
		return err
	}

	return s.flush(ctx)
}

// ClearSession removes both the pairing code and the token.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.deleteKeys(ctx, KeyPairingCode, KeyToken); err != nil {
		return err
	}

	return s.flush(ctx)
}

func (s *Store) Endpoint(ctx context.Context) (models.RemoteEndpoint, error) {
	url, err := s.getString(ctx, KeyEndpoint)
	if err != nil {
		return models.RemoteEndpoint{}, err
	}

	return models.RemoteEndpoint{BaseURL: url}, nil
}

func (s *Store) SaveEndpoint(ctx context.Context, ep models.RemoteEndpoint) error {
	if err := s.putStrings(ctx, map[string]string{KeyEndpoint: ep.BaseURL}); err != nil {
		return err
	}

	return s.flush(ctx)
}
