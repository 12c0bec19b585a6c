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

package api

import (
	"context"

	"github.com/carverauto/connectbridge/pkg/gcode"
	"github.com/carverauto/connectbridge/pkg/models"
)

// Controller is the part of the bridge driven by the local API.
type Controller interface {
	Status() models.DeviceStatusSnapshot
	Register(ctx context.Context) error
	Reset(ctx context.Context) error
	SetEndpoint(ctx context.Context, baseURL string) error
	SetSerialOverride(ctx context.Context, serial string) error
	Reconcile(ctx context.Context) bool
	Filesystem(ctx context.Context) (models.Filesystem, error)
}

// RuleEngine is the G-code rewrite engine behind /api/gcode.
type RuleEngine interface {
	Rules() []gcode.Rule
	SetRules(ctx context.Context, rules []gcode.Rule) error
	Process(cmd, token string) gcode.Result
	LastMatched() string
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// EndpointRequest is the body of PUT /api/endpoint.
type EndpointRequest struct {
	URL string `json:"url"`
}

// SerialRequest is the body of PUT /api/serial. An empty serial clears
// the override.
type SerialRequest struct {
	Serial string `json:"serial"`
}

// RulesResponse is returned by GET and PUT /api/gcode/rules.
type RulesResponse struct {
	Rules       []gcode.Rule `json:"rules"`
	LastMatched string       `json:"last_matched,omitempty"`
}

// ProcessRequest is the body of POST /api/gcode/process.
type ProcessRequest struct {
	Command string `json:"command"`
	Gcode   string `json:"gcode"`
}

