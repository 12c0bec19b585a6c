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

package cli

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/carverauto/connectbridge/pkg/models"
)

// CmdConfig holds the parsed command line.
type CmdConfig struct {
	SubCmd string
	Addr   string
	APIKey string
	URL    string
	Serial string
	JSON   bool
	Help   bool
	Args   []string
}

type styles struct {
	title, label, value, code, help, hint, success, warning, error, app lipgloss.Style
}

type watchModel struct {
	client      *Client
	conn        *websocket.Conn
	spinner     spinner.Model
	status      *models.DeviceStatusSnapshot
	err         error
	canCopy     bool
	copyMessage string
	copyOK      bool
	styles      styles
}
