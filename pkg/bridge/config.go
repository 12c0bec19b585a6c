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
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
	"github.com/carverauto/connectbridge/pkg/natsutil"
	"github.com/carverauto/connectbridge/pkg/printer"
)

const (
	SettingsBackendFile = "file"
	SettingsBackendNATS = "nats"

	defaultListenAddr     = "127.0.0.1:8091"
	defaultSettingsPath   = "/var/lib/connectbridge/settings.json"
	defaultEventsStream   = "CONNECTBRIDGE"
	defaultPrinterType    = "1.3.0"
	defaultSettingsBucket = "connectbridge-settings"
)

var (
	errOctoPrintURLRequired = errors.New("octoprint.base_url is required")
	errInvalidConnectURL    = errors.New("connect.base_url must be an http(s) URL")
	errUnknownBackend       = errors.New("settings.backend must be \"file\" or \"nats\"")
	errSettingsNATSRequired = errors.New("settings.nats.url is required for the nats backend")
	errEventsNATSRequired   = errors.New("events.nats.url is required when events are enabled")
	errNegativeInterval     = errors.New("intervals must not be negative")
)

// ConnectConfig describes how to reach the remote service.
type ConnectConfig struct {
	BaseURL     string          `json:"base_url"`
	PrinterType string          `json:"printer_type"`
	Firmware    string          `json:"firmware"`
	Timeout     models.Duration `json:"timeout"`
}

// SettingsConfig selects the settings backend.
type SettingsConfig struct {
	Backend string          `json:"backend"`
	Path    string          `json:"path"`
	NATS    natsutil.Config `json:"nats"`
	Bucket  string          `json:"bucket"`
}

// KV returns the JetStream KV settings for the nats backend.
func (s SettingsConfig) KV() kv.NatsConfig {
	return kv.NatsConfig{URL: s.NATS.URL, Bucket: s.Bucket, Domain: s.NATS.Domain}
}

// EventsConfig enables status events on a JetStream stream.
type EventsConfig struct {
	Enabled bool            `json:"enabled"`
	NATS    natsutil.Config `json:"nats"`
	Stream  string          `json:"stream"`
	Subject string          `json:"subject"`
}

// ServiceConfig is the connect-bridge daemon configuration.
type ServiceConfig struct {
	ListenAddr        string                  `json:"listen_addr"`
	APIKey            string                  `json:"api_key" sensitive:"true"`
	CORSOrigins       []string                `json:"cors_origins"`
	SerialOverride    string                  `json:"serial_override"`
	SerialDevice      string                  `json:"serial_device"`
	SysfsRoot         string                  `json:"sysfs_root"`
	OctoPrint         printer.OctoPrintConfig `json:"octoprint"`
	Connect           ConnectConfig           `json:"connect"`
	Settings          SettingsConfig          `json:"settings"`
	Events            *EventsConfig           `json:"events,omitempty"`
	PollInterval      models.Duration         `json:"poll_interval"`
	TelemetryInterval models.Duration         `json:"telemetry_interval"`
	Logging           *logger.Config          `json:"logging,omitempty"`
	Metrics           *logger.OTelConfig      `json:"metrics,omitempty"`
}

// Validate fills defaults and checks required fields.
func (c *ServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if strings.TrimSpace(c.OctoPrint.BaseURL) == "" {
		return errOctoPrintURLRequired
	}

	if c.Connect.BaseURL != "" {
		u, err := url.Parse(c.Connect.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", errInvalidConnectURL, c.Connect.BaseURL)
		}
	}

	if c.Connect.PrinterType == "" {
		c.Connect.PrinterType = defaultPrinterType
	}

	if err := c.validateSettings(); err != nil {
		return err
	}

	if c.Events != nil && c.Events.Enabled {
		if c.Events.NATS.URL == "" {
			return errEventsNATSRequired
		}

		if c.Events.Stream == "" {
			c.Events.Stream = defaultEventsStream
		}
	}

	if c.PollInterval < 0 || c.TelemetryInterval < 0 {
		return errNegativeInterval
	}

	return nil
}

func (c *ServiceConfig) validateSettings() error {
	if c.Settings.Backend == "" {
		c.Settings.Backend = SettingsBackendFile
	}

	switch c.Settings.Backend {
	case SettingsBackendFile:
		if c.Settings.Path == "" {
			c.Settings.Path = defaultSettingsPath
		}
	case SettingsBackendNATS:
		if c.Settings.NATS.URL == "" {
			return errSettingsNATSRequired
		}

		if c.Settings.Bucket == "" {
			c.Settings.Bucket = defaultSettingsBucket
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, c.Settings.Backend)
	}

	return nil
}
