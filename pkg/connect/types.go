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

package connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/carverauto/connectbridge/pkg/models"
)

// CommandName identifies a remote command.
type CommandName string

const (
	CommandStartPrint  CommandName = "START_PRINT"
	CommandStopPrint   CommandName = "STOP_PRINT"
	CommandPausePrint  CommandName = "PAUSE_PRINT"
	CommandResumePrint CommandName = "RESUME_PRINT"
	CommandSendInfo    CommandName = "SEND_INFO"
)

// Command is one instruction received from the remote service.
type Command struct {
	ID     int                    `json:"-"`
	Name   CommandName            `json:"command"`
	Args   []interface{}          `json:"args,omitempty"`
	Kwargs map[string]interface{} `json:"kwargs,omitempty"`
}

// StringArg returns the named keyword argument, falling back to the
// positional argument at pos. Blank values count as missing.
func (c Command) StringArg(name string, pos int) (string, bool) {
	if v, ok := c.Kwargs[name]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s, true
		}
	}

	if pos >= 0 && pos < len(c.Args) && c.Args[pos] != nil {
		if s := strings.TrimSpace(fmt.Sprint(c.Args[pos])); s != "" {
			return s, true
		}
	}

	return "", false
}

// EventName is the kind of an event reported to the remote service.
type EventName string

const (
	EventAccepted EventName = "ACCEPTED"
	EventRejected EventName = "REJECTED"
	EventFinished EventName = "FINISHED"
	EventFailed   EventName = "FAILED"
	EventInfo     EventName = "INFO"
)

// SourceConnect marks events raised by the bridge itself.
const SourceConnect = "CONNECT"

// Event is a notification sent to the remote service.
type Event struct {
	Event     EventName              `json:"event"`
	Source    string                 `json:"source"`
	CommandID int                    `json:"command_id,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp float64                `json:"timestamp"`
}

// Handler executes one command. It must not block past ctx.
type Handler func(ctx context.Context, cmd Command) models.CommandResult
