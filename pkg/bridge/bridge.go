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

// Package bridge pairs the printer with the remote service and keeps the
// two in sync: registration, telemetry, remote commands, and the status
// projection shown to UI clients.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/connectbridge/pkg/connect"
	"github.com/carverauto/connectbridge/pkg/identity"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/notify"
	"github.com/carverauto/connectbridge/pkg/printer"
	"github.com/carverauto/connectbridge/pkg/scheduler"
	"github.com/carverauto/connectbridge/pkg/settings"
)

const (
	DefaultPollInterval      = 10 * time.Second
	DefaultTelemetryInterval = time.Second

	loopRestartDelay = 5 * time.Second
)

// State is the registration state.
type State string

const (
	StateNoToken             State = "no_token"
	StateAwaitingPairingCode State = "awaiting_pairing_code"
	StatePollingForToken     State = "polling_for_token"
	StatePaired              State = "paired"
)

// Options wires the bridge to its collaborators.
type Options struct {
	Client   connect.Client
	Device   printer.JobController
	Files    printer.FileStorage // nil disables SEND_INFO and START_PRINT
	Settings *settings.Store
	Identity *identity.Manager
	Notifier notify.Notifier
	Logger   logger.Logger

	SerialOverride    string
	PollInterval      time.Duration
	TelemetryInterval time.Duration
}

// Bridge owns the session with the remote service. The session fields are
// written only by the registration methods; every other component reads
// them under mu.
type Bridge struct {
	client   connect.Client
	device   printer.JobController
	files    printer.FileStorage
	store    *settings.Store
	identity *identity.Manager
	notifier notify.Notifier
	logger   logger.Logger

	pollInterval      time.Duration
	telemetryInterval time.Duration

	mu          sync.Mutex
	started     bool
	runCtx      context.Context
	runCancel   context.CancelFunc
	override    string
	ident       models.DeviceIdentity
	endpoint    models.RemoteEndpoint
	session     models.Session
	state       State
	regErr      string
	registering bool
	generation  uint64
	printState  models.RemoteState

	pollTicket      *scheduler.Ticket
	telemetryTicket *scheduler.Ticket

	loopCancel context.CancelFunc
	loopDone   chan struct{}

	publishMu sync.Mutex
	lastKey   *models.SnapshotKey
}

func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Client == nil:
		return nil, errClientRequired
	case opts.Device == nil:
		return nil, errDeviceRequired
	case opts.Settings == nil:
		return nil, errSettingsRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	ids := opts.Identity
	if ids == nil {
		ids = identity.NewManager(opts.Settings, nil, log)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	tel := opts.TelemetryInterval
	if tel <= 0 {
		tel = DefaultTelemetryInterval
	}

	return &Bridge{
		client:            opts.Client,
		device:            opts.Device,
		files:             opts.Files,
		store:             opts.Settings,
		identity:          ids,
		notifier:          opts.Notifier,
		logger:            log,
		pollInterval:      poll,
		telemetryInterval: tel,
		override:          opts.SerialOverride,
		state:             StateNoToken,
		printState:        models.RemoteStateReady,
	}, nil
}

// Start restores identity, endpoint, and session from settings, starts the
// network loop, and resumes polling or telemetry where the last run left
// off.
func (b *Bridge) Start(ctx context.Context) error {
	endpoint, err := b.store.Endpoint(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to read remote endpoint")
	}

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}

	override := b.override
	b.mu.Unlock()

	ident := b.identity.Load(ctx, override)

	session, err := b.store.Session(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to read session, starting unpaired")

		session = models.Session{}
	}

	b.mu.Lock()

	if b.started {
		b.mu.Unlock()
		return nil
	}

	b.started = true
	b.registering = false
	b.runCtx, b.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	b.ident = ident
	b.endpoint = endpoint
	b.session = session

	for name, h := range b.handlers() {
		b.client.RegisterHandler(name, b.guard(name, h))
	}

	switch {
	case session.Paired():
		b.state = StatePaired
		b.startTelemetryLocked()
	case session.PairingCode != "":
		b.state = StatePollingForToken
		b.startPollingLocked()
	default:
		b.state = StateNoToken
	}

	b.mu.Unlock()

	b.restartLoop()

	b.logger.Info().
		Str("serial", ident.Serial).
		Str("endpoint", endpoint.BaseURL).
		Str("state", string(b.State())).
		Msg("Bridge started")

	b.Reconcile(ctx)

	return nil
}

// Stop cancels both tickets and the network loop and waits for them.
func (b *Bridge) Stop(_ context.Context) error {
	b.mu.Lock()

	if !b.started {
		b.mu.Unlock()
		return nil
	}

	b.started = false
	poll, tel := b.pollTicket, b.telemetryTicket
	b.pollTicket, b.telemetryTicket = nil, nil
	b.generation++
	b.registering = false
	b.runCancel()
	b.mu.Unlock()

	poll.Stop()
	tel.Stop()
	b.stopLoop()

	b.logger.Info().Msg("Bridge stopped")

	return nil
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

func (b *Bridge) Identity() models.DeviceIdentity {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ident
}

// Session returns a copy of the current session.
func (b *Bridge) Session() models.Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.session
}

func (b *Bridge) Endpoint() models.RemoteEndpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.endpoint
}

// PrinterState is the job state last set by a remote command.
func (b *Bridge) PrinterState() models.RemoteState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.printState
}

func (b *Bridge) setPrinterState(s models.RemoteState) {
	b.mu.Lock()
	b.printState = s
	b.mu.Unlock()
}

// restartLoop points the client at the current identity and session and
// replaces the network loop goroutine.
func (b *Bridge) restartLoop() {
	b.stopLoop()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}

	b.client.SetIdentity(b.ident)
	b.client.SetConnection(b.endpoint.BaseURL, b.session.Token)

	ctx, cancel := context.WithCancel(b.runCtx)
	done := make(chan struct{})

	b.loopCancel = cancel
	b.loopDone = done

	go b.runLoop(ctx, done)
}

// runLoop keeps the client's loop running until ctx ends.
func (b *Bridge) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		err := b.client.Loop(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error().Err(err).Msg("Network loop exited, restarting")
		}

		b.Reconcile(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(loopRestartDelay):
		}
	}
}

func (b *Bridge) stopLoop() {
	b.mu.Lock()
	cancel, done := b.loopCancel, b.loopDone
	b.loopCancel, b.loopDone = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (b *Bridge) loopAliveLocked() bool {
	if b.loopDone == nil {
		return false
	}

	select {
	case <-b.loopDone:
		return false
	default:
		return true
	}
}
