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

// Package app wires the connect-bridge daemon together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/connectbridge/pkg/api"
	"github.com/carverauto/connectbridge/pkg/bridge"
	"github.com/carverauto/connectbridge/pkg/config"
	"github.com/carverauto/connectbridge/pkg/connect"
	"github.com/carverauto/connectbridge/pkg/gcode"
	cbhttp "github.com/carverauto/connectbridge/pkg/http"
	"github.com/carverauto/connectbridge/pkg/identity"
	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/lifecycle"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/natsutil"
	"github.com/carverauto/connectbridge/pkg/notify"
	"github.com/carverauto/connectbridge/pkg/printer"
	"github.com/carverauto/connectbridge/pkg/settings"
	"github.com/carverauto/connectbridge/pkg/version"
)

const (
	serviceName     = "connect-bridge"
	shutdownTimeout = 10 * time.Second
)

// Options configures Run.
type Options struct {
	ConfigPath string
}

// Run loads the configuration and serves until a signal arrives.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg bridge.ServiceConfig
	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, serviceName, logCfg)
	if err != nil {
		return err
	}

	if _, metricsErr := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           cfg.Metrics,
	}); metricsErr != nil && !errors.Is(metricsErr, logger.ErrOTelMetricsDisabled) {
		return metricsErr
	}

	defer func() {
		if shutdownErr := lifecycle.ShutdownLogger(); shutdownErr != nil {
			mainLogger.Error().Err(shutdownErr).Msg("Error shutting down logger")
		}
	}()

	mainLogger.Info().Str("version", version.GetFullVersion()).Msg("Starting connect bridge")

	if redacted, redactErr := models.Redact(&cfg); redactErr == nil {
		mainLogger.Debug().Interface("config", redacted).Msg("Loaded configuration")
	}

	svc, err := NewService(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName:     serviceName,
		Service:         svc,
		Logger:          mainLogger,
		ShutdownTimeout: shutdownTimeout,
	})
}

// Service runs the bridge and its local API as one unit.
type Service struct {
	cfg    *bridge.ServiceConfig
	logger logger.Logger

	store   kv.KVStore
	conns   []*nats.Conn
	hub     *notify.Hub
	bridge  *bridge.Bridge
	api     *api.Server
	rules   *gcode.Engine
	serveWg sync.WaitGroup

	stopWatch context.CancelFunc
}

// NewService builds every component from cfg. Nothing runs until Start.
func NewService(ctx context.Context, cfg *bridge.ServiceConfig, log logger.Logger) (*Service, error) {
	s := &Service{cfg: cfg, logger: log}

	store, err := s.openSettings(ctx)
	if err != nil {
		return nil, err
	}

	s.store = store
	st := settings.New(store)

	if err := s.seedEndpoint(ctx, st); err != nil {
		s.closeAll()
		return nil, err
	}

	device, err := printer.NewOctoPrintClient(cfg.OctoPrint, nil, log)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("octoprint client: %w", err)
	}

	hardware := printer.SysfsSerialSource{Root: cfg.SysfsRoot, Device: cfg.SerialDevice}
	ids := identity.NewManager(st, hardware, log)

	var connectHTTP *http.Client
	if cfg.Connect.Timeout > 0 {
		connectHTTP = &http.Client{Timeout: time.Duration(cfg.Connect.Timeout)}
	}

	client := connect.NewHTTPClient(connect.HTTPConfig{
		PrinterType: cfg.Connect.PrinterType,
		Firmware:    cfg.Connect.Firmware,
		HTTPClient:  connectHTTP,
		Logger:      log,
	})

	cors := cbhttp.CORSConfig{AllowedOrigins: cfg.CORSOrigins}
	s.hub = notify.NewHub(log, cors.CheckOrigin)

	notifier, err := s.buildNotifier(ctx)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	b, err := bridge.New(bridge.Options{
		Client:            client,
		Device:            device,
		Files:             device,
		Settings:          st,
		Identity:          ids,
		Notifier:          notifier,
		Logger:            log,
		SerialOverride:    cfg.SerialOverride,
		PollInterval:      time.Duration(cfg.PollInterval),
		TelemetryInterval: time.Duration(cfg.TelemetryInterval),
	})
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("bridge: %w", err)
	}

	s.bridge = b

	rules := gcode.NewEngine(st, log)
	if err := rules.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting with no gcode rules")
	}

	s.rules = rules
	s.api = api.NewServer(b, cors,
		api.WithAPIKey(cfg.APIKey),
		api.WithLogger(log),
		api.WithRuleEngine(rules),
		api.WithStream(s.hub),
	)

	return s, nil
}

func (s *Service) openSettings(ctx context.Context) (kv.KVStore, error) {
	switch s.cfg.Settings.Backend {
	case bridge.SettingsBackendNATS:
		nc, err := natsutil.Connect(s.cfg.Settings.NATS, s.logger)
		if err != nil {
			return nil, fmt.Errorf("settings nats: %w", err)
		}

		s.conns = append(s.conns, nc)

		store, err := kv.NewNatsStoreFromConn(ctx, nc, s.cfg.Settings.KV(), s.logger)
		if err != nil {
			s.closeAll()
			return nil, fmt.Errorf("settings bucket: %w", err)
		}

		return store, nil
	default:
		store, err := kv.NewFileStore(s.cfg.Settings.Path)
		if err != nil {
			return nil, fmt.Errorf("settings file: %w", err)
		}

		return store, nil
	}
}

// seedEndpoint stores the configured endpoint on first run. An endpoint
// changed later through the API wins over the config file.
func (s *Service) seedEndpoint(ctx context.Context, st *settings.Store) error {
	if s.cfg.Connect.BaseURL == "" {
		return nil
	}

	current, err := st.Endpoint(ctx)
	if err != nil {
		return fmt.Errorf("read endpoint: %w", err)
	}

	if current.BaseURL != "" {
		return nil
	}

	return st.SaveEndpoint(ctx, models.RemoteEndpoint{BaseURL: s.cfg.Connect.BaseURL})
}

func (s *Service) buildNotifier(ctx context.Context) (notify.Notifier, error) {
	ev := s.cfg.Events
	if ev == nil || !ev.Enabled {
		return s.hub, nil
	}

	nc, err := natsutil.Connect(ev.NATS, s.logger)
	if err != nil {
		return nil, fmt.Errorf("events nats: %w", err)
	}

	s.conns = append(s.conns, nc)

	subject := ev.Subject
	if subject == "" {
		subject = notify.DefaultStatusSubject
	}

	sink, err := natsutil.CreateEventPublisher(ctx, nc, ev.NATS.Domain, ev.Stream, subject)
	if err != nil {
		return nil, fmt.Errorf("events stream: %w", err)
	}

	host, _ := os.Hostname()

	return notify.Multi{s.hub, notify.NewEventPublisher(sink, subject, host, s.logger)}, nil
}

// Start starts the bridge, then serves the local API in the background.
func (s *Service) Start(ctx context.Context) error {
	if err := s.bridge.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWatch = cancel

	s.serveWg.Add(2)

	go func() {
		defer s.serveWg.Done()

		if err := s.rules.Watch(watchCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Gcode rules will not hot-reload")
		}
	}()

	go func() {
		defer s.serveWg.Done()

		if err := s.api.Start(s.cfg.ListenAddr); err != nil {
			s.logger.Error().Err(err).Msg("Local API stopped")
		}
	}()

	return nil
}

// Stop shuts the API down first so no request races the bridge teardown.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if err := s.api.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", err))
	}

	if s.stopWatch != nil {
		s.stopWatch()
	}

	s.serveWg.Wait()
	s.hub.Close()

	if err := s.bridge.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bridge stop: %w", err))
	}

	if err := s.closeAll(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Service) closeAll() error {
	var err error

	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			err = fmt.Errorf("close settings: %w", closeErr)
		}

		s.store = nil
	}

	for _, nc := range s.conns {
		nc.Close()
	}

	s.conns = nil

	return err
}
