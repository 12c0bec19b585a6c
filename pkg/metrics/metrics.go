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

// Package metrics records bridge activity as OpenTelemetry counters.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName                = "connectbridge.bridge"
	metricTelemetryTotal     = "connectbridge_telemetry_total"
	metricCommandsTotal      = "connectbridge_commands_total"
	metricRegistrationTotal  = "connectbridge_registration_total"
	metricStatusPublishTotal = "connectbridge_status_publish_total"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	telemetryCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	commandCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	registrationCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	statusCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	newCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			otel.Handle(err)
		}

		return c
	}

	telemetryCounter = newCounter(metricTelemetryTotal, "Telemetry emissions sent to the remote service")
	commandCounter = newCounter(metricCommandsTotal, "Remote commands handled by the dispatcher")
	registrationCounter = newCounter(metricRegistrationTotal, "Registration handshake steps")
	statusCounter = newCounter(metricStatusPublishTotal, "Status snapshots pushed to UI clients")
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}

	return OutcomeSuccess
}

// RecordTelemetry counts one telemetry emission.
func RecordTelemetry(ctx context.Context, err error) {
	meterOnce.Do(initMeter)
	if telemetryCounter == nil {
		return
	}

	telemetryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

// RecordCommand counts one dispatched command with its outcome label.
func RecordCommand(ctx context.Context, command, result string) {
	meterOnce.Do(initMeter)
	if commandCounter == nil {
		return
	}

	commandCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", result),
	))
}

// RecordRegistration counts one registration step ("register", "poll").
func RecordRegistration(ctx context.Context, step string, err error) {
	meterOnce.Do(initMeter)
	if registrationCounter == nil {
		return
	}

	registrationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordStatusPublish counts one de-duplicated status push.
func RecordStatusPublish(ctx context.Context) {
	meterOnce.Do(initMeter)
	if statusCounter == nil {
		return
	}

	statusCounter.Add(ctx, 1)
}
