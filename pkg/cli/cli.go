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

// Package cli implements bridgectl, the operator tool for the bridge's
// local API.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/connectbridge/pkg/models"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const (
	appPadding  = 2
	codePadding = 2

	cmdStatus   = "status"
	cmdRegister = "register"
	cmdReset    = "reset"
	cmdEndpoint = "endpoint"
	cmdSerial   = "serial"
	cmdWatch    = "watch"

	envAddr   = "BRIDGECTL_ADDR"
	envAPIKey = "BRIDGECTL_API_KEY"
)

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)),
		code: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)).
			Bold(true).
			Padding(0, codePadding).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaPurple)),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		app: lipgloss.NewStyle().
			Padding(1, appPadding).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(draculaCyan)).
			Foreground(lipgloss.Color(draculaForeground)),
	}
}

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

// NoFlagsHandler handles subcommands that take no options.
type NoFlagsHandler struct{ Name string }

// Parse rejects any arguments.
func (h NoFlagsHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(h.Name, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing %s flags: %w", h.Name, err)
	}

	cfg.Args = fs.Args()

	return nil
}

// EndpointHandler handles flags for the endpoint subcommand.
type EndpointHandler struct{}

// Parse processes the command-line arguments for the endpoint subcommand.
func (EndpointHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdEndpoint, flag.ContinueOnError)
	url := fs.String("url", "", "remote service base URL")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing endpoint flags: %w", err)
	}

	cfg.URL = strings.TrimSpace(*url)
	if cfg.URL == "" && fs.NArg() > 0 {
		cfg.URL = strings.TrimSpace(fs.Arg(0))
	}

	if cfg.URL == "" {
		return errRequiresURL
	}

	return nil
}

// SerialHandler handles flags for the serial subcommand.
type SerialHandler struct{}

// Parse processes the command-line arguments for the serial subcommand.
func (SerialHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdSerial, flag.ContinueOnError)
	serial := fs.String("serial", "", "serial number; empty clears the override")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing serial flags: %w", err)
	}

	cfg.Serial = strings.TrimSpace(*serial)
	if cfg.Serial == "" && fs.NArg() > 0 {
		cfg.Serial = strings.TrimSpace(fs.Arg(0))
	}

	return nil
}

// ParseFlags parses global flags, then the subcommand and its flags.
func ParseFlags(args []string) (*CmdConfig, error) {
	fs := flag.NewFlagSet("bridgectl", flag.ContinueOnError)
	addr := fs.String("addr", envOr(envAddr, defaultAddr), "local API address")
	apiKey := fs.String("api-key", os.Getenv(envAPIKey), "local API key")
	asJSON := fs.Bool("json", false, "print raw JSON")
	help := fs.Bool("help", false, "show help message")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &CmdConfig{
		SubCmd: cmdStatus,
		Addr:   *addr,
		APIKey: *apiKey,
		JSON:   *asJSON,
		Help:   *help,
	}

	rest := fs.Args()
	if len(rest) > 0 {
		cfg.SubCmd = rest[0]
		rest = rest[1:]
	}

	subcommands := map[string]SubcommandHandler{
		cmdStatus:   NoFlagsHandler{Name: cmdStatus},
		cmdRegister: NoFlagsHandler{Name: cmdRegister},
		cmdReset:    NoFlagsHandler{Name: cmdReset},
		cmdWatch:    NoFlagsHandler{Name: cmdWatch},
		cmdEndpoint: EndpointHandler{},
		cmdSerial:   SerialHandler{},
	}

	handler, ok := subcommands[cfg.SubCmd]
	if !ok {
		if cfg.Help {
			return cfg, nil
		}

		return cfg, fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err := handler.Parse(rest, cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

// Run executes the parsed command against the local API.
func Run(ctx context.Context, cfg *CmdConfig, out io.Writer) error {
	if cfg.Help {
		ShowHelp()
		return nil
	}

	client := NewClient(cfg.Addr, cfg.APIKey)

	var (
		status models.DeviceStatusSnapshot
		err    error
	)

	switch cfg.SubCmd {
	case cmdStatus:
		status, err = client.Status(ctx)
	case cmdRegister:
		status, err = client.Register(ctx)
	case cmdReset:
		status, err = client.Reset(ctx)
	case cmdEndpoint:
		status, err = client.SetEndpoint(ctx, cfg.URL)
	case cmdSerial:
		status, err = client.SetSerial(ctx, cfg.Serial)
	case cmdWatch:
		return RunWatch(ctx, client)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err != nil {
		return err
	}

	return printStatus(out, status, cfg.JSON)
}

func printStatus(out io.Writer, status models.DeviceStatusSnapshot, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}

		_, err = fmt.Fprintln(out, string(data))

		return err
	}

	s := newStyles()

	_, err := fmt.Fprintln(out, s.app.Render(renderStatus(status, &s)))

	return err
}

// renderStatus lays out a snapshot as labelled rows.
func renderStatus(status models.DeviceStatusSnapshot, s *styles) string {
	var b strings.Builder

	b.WriteString(s.title.Render("Connect Bridge") + "\n\n")

	row := func(label, value string) {
		if value == "" {
			return
		}

		b.WriteString(s.label.Render(fmt.Sprintf("%-10s", label)) + " " + s.value.Render(value) + "\n")
	}

	row("State", stateStyle(status, s).Render(status.State))
	row("Status", status.StateLabel)
	row("Printer", status.PrinterState)
	row("Serial", status.Serial)
	row("Endpoint", status.Endpoint)
	row("Token", status.TokenDisplay)

	if status.PairingCode != "" {
		b.WriteString("\n" + s.label.Render("Pairing code") + "\n")
		b.WriteString(s.code.Render(status.PairingCode) + "\n")
	}

	if status.ErrorMessage != "" {
		b.WriteString("\n" + s.error.Render("Error: "+status.ErrorMessage) + "\n")
	}

	if !status.LoopAlive && status.TokenAvailable {
		b.WriteString("\n" + s.warning.Render("Session loop is not running") + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func stateStyle(status models.DeviceStatusSnapshot, s *styles) lipgloss.Style {
	switch {
	case status.ErrorMessage != "":
		return s.error
	case status.TokenAvailable:
		return s.success
	case status.PairingCode != "":
		return s.hint
	default:
		return s.value
	}
}
