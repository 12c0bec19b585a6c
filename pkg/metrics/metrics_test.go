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

package metrics

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

//nolint:gochecknoglobals // shared reader installed before the instruments are created
var reader = sdkmetric.NewManualReader()

func TestMain(m *testing.M) {
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	os.Exit(m.Run())
}

func collect(t *testing.T) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	return totals
}

func TestCountersRecord(t *testing.T) {
	ctx := context.Background()
	before := collect(t)

	RecordTelemetry(ctx, nil)
	RecordTelemetry(ctx, errors.New("offline"))
	RecordCommand(ctx, "START_PRINT", OutcomeSuccess)
	RecordRegistration(ctx, "register", nil)
	RecordStatusPublish(ctx)

	after := collect(t)
	assert.Equal(t, int64(2), after[metricTelemetryTotal]-before[metricTelemetryTotal])
	assert.Equal(t, int64(1), after[metricCommandsTotal]-before[metricCommandsTotal])
	assert.Equal(t, int64(1), after[metricRegistrationTotal]-before[metricRegistrationTotal])
	assert.Equal(t, int64(1), after[metricStatusPublishTotal]-before[metricStatusPublishTotal])
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, outcome(nil))
	assert.Equal(t, OutcomeFailure, outcome(errors.New("x")))
}
