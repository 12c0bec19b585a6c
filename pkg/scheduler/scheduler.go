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

// Package scheduler runs callbacks on a fixed interval until cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Func is one periodic run. The context is cancelled when the ticket is.
type Func func(ctx context.Context, t *Ticket)

// Ticket is a handle on one periodic task.
type Ticket struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every runs fn every interval until the ticket is cancelled or parent
// ends. With immediate set the first run happens right away, otherwise
// after one interval. Runs never overlap.
func Every(parent context.Context, interval time.Duration, immediate bool, fn Func) *Ticket {
	ctx, cancel := context.WithCancel(parent)

	t := &Ticket{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go t.run(interval, immediate, fn)

	return t
}

func (t *Ticket) run(interval time.Duration, immediate bool, fn Func) {
	defer close(t.done)
	defer t.cancel()

	if immediate && t.ctx.Err() == nil {
		fn(t.ctx, t)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if t.ctx.Err() != nil {
				return
			}

			fn(t.ctx, t)
		}
	}
}

// Cancel stops future runs without waiting for a run in progress. Safe to
// call more than once and from inside fn.
func (t *Ticket) Cancel() {
	if t == nil {
		return
	}

	t.once.Do(t.cancel)
}

// Stop cancels and waits for the run loop to exit. Must not be called from
// inside fn.
func (t *Ticket) Stop() {
	if t == nil {
		return
	}

	t.Cancel()
	<-t.done
}

// Alive reports whether the ticket has not been cancelled.
func (t *Ticket) Alive() bool {
	return t != nil && t.ctx.Err() == nil
}

// Done is closed once the run loop has exited.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}
