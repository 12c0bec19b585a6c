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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/connectbridge/pkg/models"
)

var errSubjectRequired = errors.New("event subject is required")

// EventPublisher publishes CloudEvents to a JetStream stream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
}

func NewEventPublisher(js jetstream.JetStream, streamName string) *EventPublisher {
	return &EventPublisher{js: js, stream: streamName}
}

// Stream returns the stream the publisher was created for.
func (p *EventPublisher) Stream() string {
	return p.stream
}

// Publish sends event on event.Subject and waits for the stream ack.
func (p *EventPublisher) Publish(ctx context.Context, event *models.CloudEvent) (uint64, error) {
	if event.Subject == "" {
		return 0, errSubjectRequired
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	return ack.Sequence, nil
}

// CreateEventPublisher opens JetStream on nc (in domain, if set) and makes
// sure streamName exists and captures subject.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, domain, streamName, subject string) (*EventPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, streamName, subject); err != nil {
		return nil, err
	}

	return NewEventPublisher(js, streamName), nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, streamName, subject string) error {
	stream, err := js.Stream(ctx, streamName)

	switch {
	case err == nil:
		info, infoErr := stream.Info(ctx)
		if infoErr != nil {
			return fmt.Errorf("failed to read stream %s: %w", streamName, infoErr)
		}

		subjects := ensureSubjectList(info.Config.Subjects, subject)
		if len(subjects) == len(info.Config.Subjects) {
			return nil
		}

		cfg := info.Config
		cfg.Subjects = subjects

		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, streamName, err)
		}

		return nil
	case isStreamMissingErr(err):
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		return nil
	default:
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether the NATS subject pattern covers subject.
func matchesSubject(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")

	for i, token := range p {
		if token == ">" {
			return len(s) > i
		}

		if i >= len(s) {
			return false
		}

		if token != "*" && token != s[i] {
			return false
		}
	}

	return len(p) == len(s)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
