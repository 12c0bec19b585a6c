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

// Package notify pushes status snapshots to UI clients and event streams.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/connectbridge/pkg/models"
)

// Notifier receives every de-duplicated status snapshot.
type Notifier interface {
	Notify(ctx context.Context, snapshot models.DeviceStatusSnapshot) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, snapshot models.DeviceStatusSnapshot) error

func (f Func) Notify(ctx context.Context, snapshot models.DeviceStatusSnapshot) error {
	return f(ctx, snapshot)
}

// ErrPartialDelivery marks a Multi error where at least one notifier
// received the snapshot.
var ErrPartialDelivery = errors.New("snapshot delivered to some notifiers")

// Multi fans a snapshot out to every notifier. All are called even when
// one fails; the errors are joined, and wrapped in ErrPartialDelivery when
// any notifier succeeded.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, snapshot models.DeviceStatusSnapshot) error {
	var (
		errs      []error
		delivered bool
	)

	for _, n := range m {
		if n == nil {
			continue
		}

		if err := n.Notify(ctx, snapshot); err != nil {
			errs = append(errs, err)
			continue
		}

		delivered = true
	}

	err := errors.Join(errs...)
	if err != nil && delivered {
		return fmt.Errorf("%w: %w", ErrPartialDelivery, err)
	}

	return err
}
