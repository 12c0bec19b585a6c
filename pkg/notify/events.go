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

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
)

const (
	DefaultStatusSubject = "connectbridge.status"
	statusEventType      = "com.carverauto.connectbridge.status"
	eventSpecVersion     = "1.0"
)

// eventSink is satisfied by natsutil.EventPublisher.
type eventSink interface {
	Publish(ctx context.Context, event *models.CloudEvent) (uint64, error)
}

// EventPublisher forwards snapshots as CloudEvents to a JetStream stream.
type EventPublisher struct {
	sink    eventSink
	subject string
	source  string
	logger  logger.Logger
}

// NewEventPublisher wraps sink. source identifies the device, usually its
// serial.
func NewEventPublisher(sink eventSink, subject, source string, log logger.Logger) *EventPublisher {
	if subject == "" {
		subject = DefaultStatusSubject
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EventPublisher{sink: sink, subject: subject, source: "connectbridge/" + source, logger: log}
}

func (p *EventPublisher) Notify(ctx context.Context, snapshot models.DeviceStatusSnapshot) error {
	now := time.Now().UTC()

	event := &models.CloudEvent{
		SpecVersion:     eventSpecVersion,
		ID:              uuid.NewString(),
		Source:          p.source,
		Type:            statusEventType,
		DataContentType: "application/json",
		Subject:         p.subject,
		Time:            &now,
		Data:            snapshot,
	}

	seq, err := p.sink.Publish(ctx, event)
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}

	p.logger.Debug().Uint64("seq", seq).Str("state", snapshot.State).Msg("Published status event")

	return nil
}
