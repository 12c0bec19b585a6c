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

// Package identity establishes the serial and fingerprint the bridge
// presents to the remote service.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carverauto/connectbridge/pkg/hashutil"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/settings"
)

// ErrIdentity marks a failure to establish or persist the device identity.
var ErrIdentity = errors.New("identity error")

// HardwareSource reports a serial burned into the attached printer, if any.
type HardwareSource interface {
	HardwareSerial(ctx context.Context) (string, error)
}

// Manager resolves the device identity and keeps it persisted.
type Manager struct {
	store    *settings.Store
	hardware HardwareSource
	logger   logger.Logger
	newID    func() string
}

// NewManager returns a Manager. hardware may be nil.
func NewManager(store *settings.Store, hardware HardwareSource, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Manager{
		store:    store,
		hardware: hardware,
		logger:   log,
		newID:    uuid.NewString,
	}
}

// Load reads the persisted identity and resolves it against override.
func (m *Manager) Load(ctx context.Context, override string) models.DeviceIdentity {
	persisted, err := m.store.Identity(ctx)
	if err != nil {
		return m.degraded(fmt.Errorf("%w: read persisted identity: %w", ErrIdentity, err))
	}

	return m.Resolve(ctx, persisted, override)
}

// Resolve picks the serial (override, then persisted, then hardware, then
// a random UUID), derives the fingerprint, and saves both when either
// changed. It never fails: if saving fails, a fresh unsaved identity is
// returned so the bridge can still run.
func (m *Manager) Resolve(ctx context.Context, persisted models.DeviceIdentity, override string) models.DeviceIdentity {
	return m.Save(ctx, persisted, m.Derive(ctx, persisted, override))
}

// Derive resolves the identity without persisting it.
func (m *Manager) Derive(ctx context.Context, persisted models.DeviceIdentity, override string) models.DeviceIdentity {
	serial := m.pickSerial(ctx, persisted, override)

	return models.DeviceIdentity{
		Serial:      serial,
		Fingerprint: hashutil.Fingerprint(serial),
	}
}

// Save persists resolved when it differs from persisted. On a write
// failure it returns a temporary identity instead.
func (m *Manager) Save(ctx context.Context, persisted, resolved models.DeviceIdentity) models.DeviceIdentity {
	if resolved == persisted {
		return resolved
	}

	if err := m.store.SaveIdentity(ctx, resolved); err != nil {
		return m.degraded(fmt.Errorf("%w: save identity: %w", ErrIdentity, err))
	}

	m.logger.Info().
		Str("serial", resolved.Serial).
		Bool("serial_changed", resolved.Serial != persisted.Serial).
		Msg("Device identity updated")

	return resolved
}

func (m *Manager) pickSerial(ctx context.Context, persisted models.DeviceIdentity, override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}

	if s := strings.TrimSpace(persisted.Serial); s != "" {
		return s
	}

	if m.hardware != nil {
		s, err := m.hardware.HardwareSerial(ctx)

		switch {
		case err != nil:
			m.logger.Debug().Err(err).Msg("Hardware serial unavailable")
		case strings.TrimSpace(s) != "":
			m.logger.Info().Msg("Using hardware serial")
			return strings.TrimSpace(s)
		}
	}

	m.logger.Info().Msg("No serial available, generating one")

	return m.newID()
}

func (m *Manager) degraded(err error) models.DeviceIdentity {
	serial := m.newID()

	m.logger.Error().Err(err).Str("serial", serial).Msg("Using temporary identity")

	return models.DeviceIdentity{
		Serial:      serial,
		Fingerprint: hashutil.Fingerprint(serial),
	}
}
