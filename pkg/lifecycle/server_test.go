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

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/connectbridge/pkg/logger"
)

type fakeService struct {
	started  chan struct{}
	stopped  bool
	startErr error
	stopErr  error
}

func (f *fakeService) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}

	close(f.started)

	return nil
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.stopped = true

	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return errors.New("stop context has no deadline")
	}

	return f.stopErr
}

func TestRunServerStopsOnContextCancel(t *testing.T) {
	svc := &fakeService{started: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{
			ServiceName:     "bridge",
			Service:         svc,
			Logger:          logger.NewTestLogger(),
			ShutdownTimeout: time.Second,
		})
	}()

	<-svc.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunServer did not return")
	}

	assert.True(t, svc.stopped)
}

func TestRunServerStartFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := &fakeService{started: make(chan struct{}), startErr: boom}

	err := RunServer(context.Background(), &ServerOptions{ServiceName: "bridge", Service: svc})
	require.ErrorIs(t, err, boom)
	assert.False(t, svc.stopped)
}

func TestRunServerRequiresService(t *testing.T) {
	require.ErrorIs(t, RunServer(context.Background(), &ServerOptions{}), errServiceRequired)
}

func TestCreateComponentLogger(t *testing.T) {
	l, err := CreateComponentLogger(context.Background(), "bridge", &logger.Config{Level: "debug"})
	require.NoError(t, err)
	l.Debug().Msg("hello")

	_, err = CreateComponentLogger(context.Background(), "bridge", &logger.Config{Level: "nope"})
	require.Error(t, err)
}
