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

// Package natsutil dials NATS and publishes CloudEvents to JetStream.
package natsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/connectbridge/pkg/logger"
)

var errURLRequired = errors.New("nats url is required")

// Config is the connection section shared by the KV backend and the event
// publisher.
type Config struct {
	URL       string     `json:"url"`
	Name      string     `json:"name,omitempty"`
	CredsFile string     `json:"creds_file,omitempty" sensitive:"true"`
	Domain    string     `json:"domain,omitempty"`
	TLS       *TLSConfig `json:"tls,omitempty"`
}

// Connect dials cfg.URL with reconnects enabled and lifecycle handlers
// reporting through log.
func Connect(cfg Config, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, errURLRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	name := cfg.Name
	if name == "" {
		name = "connectbridge"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.TLS != nil {
		tlsConf, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}
