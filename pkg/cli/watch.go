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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/carverauto/connectbridge/pkg/models"
)

const (
	frameStatus = "status"
	keyCopy     = "c"
	keyRegister = "r"
	keyQuit     = "q"
)

type streamFrame struct {
	Type   string                       `json:"type"`
	Status *models.DeviceStatusSnapshot `json:"status,omitempty"`
}

type statusMsg models.DeviceStatusSnapshot

type errMsg struct{ err error }

// RunWatch opens the status stream and runs the live view until the user
// quits or ctx ends.
func RunWatch(ctx context.Context, client *Client) error {
	conn, err := client.DialStream(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	m := newWatchModel(client, conn, clipboard.WriteAll("") == nil)

	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("watch: %w", err)
	}

	return nil
}

func newWatchModel(client *Client, conn *websocket.Conn, canCopy bool) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaPurple))

	return &watchModel{
		client:  client,
		conn:    conn,
		spinner: sp,
		canCopy: canCopy,
		styles:  newStyles(),
	}
}

// readFrame blocks for the next status frame. Ping frames are skipped.
func readFrame(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		for {
			var frame streamFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return errMsg{err: fmt.Errorf("%w: %w", errStreamClosed, err)}
			}

			if frame.Type == frameStatus && frame.Status != nil {
				return statusMsg(*frame.Status)
			}
		}
	}
}

func (m *watchModel) register() tea.Cmd {
	return func() tea.Msg {
		status, err := m.client.Register(context.Background())
		if err != nil {
			return errMsg{err: err}
		}

		return statusMsg(status)
	}
}

func (m *watchModel) Init() tea.Cmd {
	if m.conn == nil {
		return m.spinner.Tick
	}

	return tea.Batch(m.spinner.Tick, readFrame(m.conn))
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case statusMsg:
		s := models.DeviceStatusSnapshot(msg)
		if m.status == nil || m.status.PairingCode != s.PairingCode {
			m.copyMessage = ""
		}

		m.status = &s
		m.err = nil

		if m.conn == nil {
			return m, nil
		}

		return m, readFrame(m.conn)
	case errMsg:
		m.err = msg.err
		if errors.Is(msg.err, errStreamClosed) {
			return m, tea.Quit
		}

		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *watchModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	//nolint:exhaustive // Default case handles all unlisted keys
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	default:
	}

	switch msg.String() {
	case keyQuit:
		return m, tea.Quit
	case keyCopy:
		m.copyCode()
	case keyRegister:
		if m.client != nil {
			return m, m.register()
		}
	}

	return m, nil
}

func (m *watchModel) copyCode() {
	if !m.canCopy {
		return
	}

	m.copyOK = false

	if m.status == nil || m.status.PairingCode == "" {
		m.copyMessage = errNoPairingCode.Error()
		return
	}

	if err := clipboard.WriteAll(m.status.PairingCode); err != nil {
		m.copyMessage = fmt.Sprintf("%v: %v", errClipboardFailed, err)
		return
	}

	m.copyMessage = "Pairing code copied to clipboard!"
	m.copyOK = true
}

func (m *watchModel) View() string {
	var content strings.Builder

	if m.status == nil {
		content.WriteString(m.spinner.View() + " " + m.styles.hint.Render("Waiting for bridge status..."))
	} else {
		content.WriteString(renderStatus(*m.status, &m.styles))

		if m.status.Polling {
			content.WriteString("\n\n" + m.spinner.View() + " " + m.styles.hint.Render("Waiting for confirmation on the remote service"))
		}
	}

	if m.copyMessage != "" {
		style := m.styles.error
		if m.copyOK {
			style = m.styles.success
		}

		content.WriteString("\n\n" + style.Render(m.copyMessage))
	}

	if m.err != nil {
		content.WriteString("\n\n" + m.styles.error.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	help := "r → register | q/Esc → quit"
	if m.canCopy {
		help = "c → copy pairing code | " + help
	}

	content.WriteString("\n\n" + m.styles.help.Render(help))

	return m.styles.app.Align(lipgloss.Left).Render(content.String())
}
