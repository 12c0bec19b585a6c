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
	"github.com/carverauto/connectbridge/pkg/scheduler"
)

const (
	stepRegister = "register"
	stepPoll     = "poll"
)

// Register starts or restarts pairing. It is a no-op when already paired
// and restarts the poll ticket when a code is already being polled.
// Failures from the remote service are recorded in the status, not
// returned; the only error is ErrSessionUnavailable before Start.
func (b *Bridge) Register(ctx context.Context) error {
	b.mu.Lock()

	if !b.started {
		b.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, errNotStarted)
	}

	switch {
	case b.state == StatePaired:
		b.mu.Unlock()
		return nil
	case b.state == StatePollingForToken:
		b.startPollingLocked()
		b.mu.Unlock()
		b.Reconcile(ctx)

		return nil
	case b.registering:
		b.mu.Unlock()
		return nil
	}

	b.state = StateAwaitingPairingCode
	b.registering = true
	gen := b.generation
	b.mu.Unlock()

	b.Reconcile(ctx)

	code, err := b.client.Register(ctx)
	if err == nil && strings.TrimSpace(code) == "" {
		err = errEmptyCode
	}

	metrics.RecordRegistration(ctx, stepRegister, err)

	b.mu.Lock()

	if gen != b.generation {
		// Reset or reconfigured while the request was in flight.
		b.mu.Unlock()
		return nil
	}

	b.registering = false

	if err == nil {
		err = b.store.SavePairingCode(ctx, code)
	}

	if err != nil {
		b.regErr = fmt.Errorf("%w: %w", ErrRegistration, err).Error()
		b.mu.Unlock()

		b.logger.Warn().Err(err).Msg("Pairing code request failed")
		b.Reconcile(ctx)

		return nil
	}

	b.session.PairingCode = code
	b.regErr = ""
	b.state = StatePollingForToken
	b.startPollingLocked()
	b.mu.Unlock()

	b.logger.Info().Str("code", code).Msg("Pairing code issued, waiting for confirmation")
	b.Reconcile(ctx)

	return nil
}

// startPollingLocked replaces the poll ticket. Callers hold mu.
func (b *Bridge) startPollingLocked() {
	b.pollTicket.Cancel()
	b.pollTicket = scheduler.Every(b.runCtx, b.pollInterval, true, b.pollTick)
}

// startTelemetryLocked replaces the telemetry ticket. Callers hold mu.
func (b *Bridge) startTelemetryLocked() {
	b.telemetryTicket.Cancel()
	b.telemetryTicket = scheduler.Every(b.runCtx, b.telemetryInterval, false, b.telemetryTick)
}

func (b *Bridge) cancelTicketsLocked() {
	b.pollTicket.Cancel()
	b.telemetryTicket.Cancel()
	b.pollTicket, b.telemetryTicket = nil, nil
}

func (b *Bridge) pollTick(ctx context.Context, t *scheduler.Ticket) {
	b.mu.Lock()
	if b.pollTicket != t {
		b.mu.Unlock()
		return
	}

	code := b.session.PairingCode
	b.mu.Unlock()

	if code == "" {
		stored, err := b.store.PairingCode(ctx)
		if err != nil {
			b.logger.Warn().Err(err).Msg("Failed to read persisted pairing code")
			return
		}

		code = stored
	}

	b.mu.Lock()
	if b.pollTicket != t {
		b.mu.Unlock()
		return
	}

	if code == "" {
		b.abandonPollingLocked(errCodeLost)
		b.mu.Unlock()

		b.logger.Warn().Msg("No pairing code to poll, stopped polling")
		b.Reconcile(ctx)

		return
	}

	b.session.PairingCode = code
	b.mu.Unlock()

	token, err := b.client.PollToken(ctx, code)
	metrics.RecordRegistration(ctx, stepPoll, err)

	b.mu.Lock()
	if b.pollTicket != t {
		b.mu.Unlock()
		return
	}

	switch {
	case errors.Is(err, connect.ErrCodeExpired):
		if clearErr := b.store.ClearSession(ctx); clearErr != nil {
			b.logger.Warn().Err(clearErr).Msg("Failed to clear expired pairing code")
		}

		b.session.Clear()
		b.abandonPollingLocked(err)
	case err != nil:
		b.regErr = fmt.Errorf("%w: %w", ErrRegistration, err).Error()
	case token == "":
		b.regErr = ""
	default:
		b.confirmTokenLocked(ctx, token)
	}

	b.mu.Unlock()

	if err != nil {
		b.logger.Warn().Err(err).Msg("Token poll failed")
	}

	b.Reconcile(ctx)
}

// abandonPollingLocked stops polling and returns to NoToken with cause as
// the registration error.
func (b *Bridge) abandonPollingLocked(cause error) {
	b.pollTicket.Cancel()
	b.pollTicket = nil
	b.state = StateNoToken
	b.regErr = fmt.Errorf("%w: %w", ErrRegistration, cause).Error()
}

// confirmTokenLocked persists the token, then stops polling before
// telemetry starts.
func (b *Bridge) confirmTokenLocked(ctx context.Context, token string) {
	if err := b.store.SaveToken(ctx, token); err != nil {
		b.regErr = fmt.Errorf("%w: save token: %w", ErrRegistration, err).Error()
		b.logger.Error().Err(err).Msg("Failed to persist token, will retry")

		return
	}

	b.session.Confirm(token)
	b.regErr = ""

	b.pollTicket.Cancel()
	b.pollTicket = nil

	b.state = StatePaired
	b.client.SetConnection(b.endpoint.BaseURL, token)
	b.startTelemetryLocked()

	b.logger.Info().Msg("Printer paired with remote service")
}

// Reset forgets the session and returns to NoToken.
func (b *Bridge) Reset(ctx context.Context) error {
	return b.invalidate(ctx, "reset", nil)
}

// SetEndpoint points the bridge at a different remote service. Sessions
// are endpoint-scoped, so a real change clears the session.
func (b *Bridge) SetEndpoint(ctx context.Context, baseURL string) error {
	ep := models.RemoteEndpoint{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}

	b.mu.Lock()
	same := b.endpoint.Equal(ep)
	b.mu.Unlock()

	if same {
		return nil
	}

	return b.invalidate(ctx, "endpoint changed", func() error {
		if err := b.store.SaveEndpoint(ctx, ep); err != nil {
			return fmt.Errorf("save endpoint: %w", err)
		}

		b.endpoint = ep

		return nil
	})
}

// SetSerialOverride re-resolves the identity with serial as the manual
// override. An empty serial removes the override. A changed identity
// clears the session.
func (b *Bridge) SetSerialOverride(ctx context.Context, serial string) error {
	override := strings.TrimSpace(serial)

	b.mu.Lock()
	current := b.ident

	// Not loaded yet: Start resolves the identity with this override.
	if current.IsZero() {
		b.override = override
		b.mu.Unlock()

		return nil
	}

	b.mu.Unlock()

	resolved := b.identity.Derive(ctx, current, override)
	if resolved == current {
		b.mu.Lock()
		b.override = override
		b.mu.Unlock()

		return nil
	}

	return b.invalidate(ctx, "identity changed", func() error {
		b.override = override
		b.ident = b.identity.Save(ctx, current, resolved)

		return nil
	})
}

// invalidate cancels both tickets, then applies mutate, clears the session
// in memory and settings, and restarts the network loop with the new
// configuration. mutate runs with mu held. The session is cleared even
// when mutate fails.
func (b *Bridge) invalidate(ctx context.Context, reason string, mutate func() error) error {
	b.mu.Lock()

	b.cancelTicketsLocked()
	b.generation++
	b.registering = false

	var errs []error

	if mutate != nil {
		if err := mutate(); err != nil {
			errs = append(errs, err)
		}
	}

	b.session.Clear()
	b.regErr = ""
	b.state = StateNoToken
	b.printState = models.RemoteStateReady

	if err := b.store.ClearSession(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%w: clear session: %w", ErrSessionUnavailable, err))
	}

	b.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		b.logger.Error().Err(err).Str("reason", reason).Msg("Failed to persist session change")
	}

	b.logger.Info().Str("reason", reason).Msg("Session cleared")

	b.restartLoop()
	b.Reconcile(ctx)

	return err
}
