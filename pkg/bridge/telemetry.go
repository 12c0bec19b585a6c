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

	"github.com/carverauto/connectbridge/pkg/metrics"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/printer"
	"github.com/carverauto/connectbridge/pkg/scheduler"
)

const (
	nozzleSensor = "tool0"
	bedSensor    = "bed"
)

// MapState maps host flags onto the remote state enumeration. Printing
// beats paused, which beats any error, which beats not operational.
func MapState(f models.PrinterFlags) models.RemoteState {
	switch {
	case f.Printing:
		return models.RemoteStatePrinting
	case f.Paused:
		return models.RemoteStatePaused
	case f.Error || f.ClosedOrError:
		return models.RemoteStateError
	case !f.Operational:
		return models.RemoteStateAttention
	default:
		return models.RemoteStateReady
	}
}

// BuildTelemetry assembles one payload. Progress and file name are only
// reported while printing or paused.
func BuildTelemetry(data models.PrinterData, temps models.Temperatures) models.Telemetry {
	t := models.Telemetry{State: MapState(data.Flags)}

	nozzle, bed := temps[nozzleSensor], temps[bedSensor]
	t.TempNozzle = valueOrZero(nozzle.Actual)
	t.TargetNozzle = valueOrZero(nozzle.Target)
	t.TempBed = valueOrZero(bed.Actual)
	t.TargetBed = valueOrZero(bed.Target)

	if t.State != models.RemoteStatePrinting && t.State != models.RemoteStatePaused {
		return t
	}

	if data.Job.Completion != nil {
		p := printer.RoundPercent(*data.Job.Completion)
		t.Progress = &p
	}

	t.FileName = data.Job.FileName

	return t
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}

	return *v
}

// telemetryTick sends one payload. Errors are logged and counted; the
// next tick simply tries again.
func (b *Bridge) telemetryTick(ctx context.Context, t *scheduler.Ticket) {
	b.mu.Lock()
	current := b.telemetryTicket == t && b.state == StatePaired
	b.mu.Unlock()

	if !current {
		return
	}

	if err := b.sendTelemetry(ctx); err != nil {
		metrics.RecordTelemetry(ctx, err)

		if ctx.Err() == nil {
			b.logger.Warn().Err(err).Msg("Telemetry failed")
		}

		return
	}

	metrics.RecordTelemetry(ctx, nil)
}

func (b *Bridge) sendTelemetry(ctx context.Context) error {
	data, err := b.device.CurrentData(ctx)
	if err != nil {
		return err
	}

	temps, err := b.device.CurrentTemperatures(ctx)
	if err != nil {
		return err
	}

	return b.client.Telemetry(ctx, BuildTelemetry(data, temps))
}
