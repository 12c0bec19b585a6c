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

	"github.com/carverauto/connectbridge/pkg/metrics"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/notify"
)

// Status states, in precedence order.
const (
	StatusPaired        = "paired"
	StatusPolling       = "polling"
	StatusCodeIssued    = "code_issued"
	StatusError         = "error"
	StatusNotRegistered = "not_registered"
	StatusLoopStopped   = "not_registered_offline"

	tokenVisible = 4
)

// Status builds the snapshot from one consistent read of the session.
func (b *Bridge) Status() models.DeviceStatusSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

func (b *Bridge) snapshotLocked() models.DeviceStatusSnapshot {
	polling := b.pollTicket.Alive()
	loopAlive := b.loopAliveLocked()

	s := models.DeviceStatusSnapshot{
		TokenAvailable: b.session.Paired(),
		ErrorMessage:   b.regErr,
		Polling:        polling,
		LoopAlive:      loopAlive,
		PrinterState:   string(b.printState),
		Serial:         b.ident.Serial,
		Endpoint:       b.endpoint.BaseURL,
	}

	code := b.session.PairingCode

	switch {
	case s.TokenAvailable:
		s.State = StatusPaired
		s.TokenDisplay = maskToken(b.session.Token)
		s.StateLabel = "Registered with the remote service"
	case code != "" && polling:
		s.State = StatusPolling
		s.PairingCode = code
		s.StateLabel = fmt.Sprintf("Enter pairing code %s on the remote service", code)
	case code != "":
		s.State = StatusCodeIssued
		s.PairingCode = code
		s.StateLabel = fmt.Sprintf("Pairing code %s issued, not polling", code)
	case b.regErr != "":
		s.State = StatusError
		s.StateLabel = "Registration error: " + b.regErr
	case loopAlive:
		s.State = StatusNotRegistered
		s.StateLabel = "Not registered"
	default:
		s.State = StatusLoopStopped
		s.StateLabel = "Not registered, connection loop stopped"
	}

	return s
}

func maskToken(token string) string {
	if len(token) <= tokenVisible {
		return "****"
	}

	return token[:tokenVisible] + "****"
}

// Reconcile pushes the current snapshot to the notifier when it differs
// from the last one pushed. It reports whether a push happened.
func (b *Bridge) Reconcile(ctx context.Context) bool {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	snap := b.Status()
	key := snap.Key()

	if b.lastKey != nil && *b.lastKey == key {
		return false
	}

	if b.notifier != nil {
		err := b.notifier.Notify(ctx, snap)

		switch {
		case errors.Is(err, notify.ErrPartialDelivery):
			b.logger.Warn().Err(err).Str("state", snap.State).Msg("Status published with failures")
		case err != nil:
			b.logger.Warn().Err(err).Str("state", snap.State).Msg("Failed to publish status")
			return false
		}
	}

	b.lastKey = &key
	metrics.RecordStatusPublish(ctx)

	return true
}
