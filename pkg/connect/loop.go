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
)

// Loop takes queued commands one at a time: unknown ones are REJECTED,
// known ones are ACCEPTED, run, and reported FINISHED when they succeed
// (SEND_INFO reports INFO carrying the handler data).
// Failed handlers report FAILED themselves. Returns nil once ctx ends.
func (c *HTTPClient) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.queue:
			c.process(ctx, cmd)
		}
	}
}

func (c *HTTPClient) process(ctx context.Context, cmd Command) {
	log := c.logger.With().Int("command_id", cmd.ID).Str("command", string(cmd.Name)).Logger()

	h, ok := c.handler(cmd.Name)
	if !ok {
		log.Warn().Msg("Rejecting unknown command")
		c.notify(ctx, Event{Event: EventRejected, CommandID: cmd.ID, Reason: "Unknown command"})

		return
	}

	c.notify(ctx, Event{Event: EventAccepted, CommandID: cmd.ID})

	result := h(ctx, cmd)
	if !result.OK {
		log.Info().Str("code", string(result.Code)).Str("reason", result.Error).Msg("Command failed")

		return
	}

	done := EventFinished
	if cmd.Name == CommandSendInfo {
		done = EventInfo
	}

	c.notify(ctx, Event{Event: done, CommandID: cmd.ID, Data: result.Data})
	log.Debug().Msg("Command finished")
}

func (c *HTTPClient) notify(ctx context.Context, ev Event) {
	if err := c.EventNotify(ctx, ev); err != nil {
		c.logger.Warn().Err(err).Str("event", string(ev.Event)).Int("command_id", ev.CommandID).Msg("Failed to send event")
	}
}
