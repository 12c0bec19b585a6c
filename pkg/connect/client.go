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

//go:generate mockgen -destination=mock_connect.go -package=connect github.com/carverauto/connectbridge/pkg/connect Client

// Package connect is the session client for the remote device-management
// service: registration, telemetry, events, and inbound commands.
package connect

import (
	"context"

	"github.com/carverauto/connectbridge/pkg/models"
)

// Client is the session with the remote service.
type Client interface {
	// SetConnection points the client at baseURL using token (may be empty
	// before pairing). Queued commands from the previous session are dropped.
	SetConnection(baseURL, token string)

	// SetIdentity sets the serial and fingerprint presented to the service.
	SetIdentity(id models.DeviceIdentity)

	// Register requests a pairing code.
	Register(ctx context.Context) (string, error)

	// PollToken exchanges code for a token. An empty token with a nil error
	// means the user has not confirmed the code yet.
	PollToken(ctx context.Context, code string) (string, error)

	// Telemetry sends one status payload. A pending command in the
	// response is queued for Loop.
	Telemetry(ctx context.Context, t models.Telemetry) error

	// EventNotify sends one event.
	EventNotify(ctx context.Context, ev Event) error

	// RegisterHandler binds a command name to its handler.
	RegisterHandler(name CommandName, h Handler)

	// Loop processes queued commands until ctx ends.
	Loop(ctx context.Context) error
}
