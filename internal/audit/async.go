// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store persists audit events. The postgres implementation lives in
// internal/store/postgres.
type Store interface {
	Insert(ctx context.Context, event Event) error
}

// AsyncLogger persists events through a Store on a separate goroutine.
// Audit logging is a best-effort side channel: a full buffer or a failed
// insert degrades to slog output and never blocks or fails the primary
// operation.
type AsyncLogger struct {
	store    Store
	events   chan Event
	fallback *SlogLogger
	wg       sync.WaitGroup
	once     sync.Once
}

// NewAsyncLogger creates an AsyncLogger with the given buffer size and
// starts its consumer.
func NewAsyncLogger(store Store, buffer int) *AsyncLogger {
	if buffer <= 0 {
		buffer = 256
	}
	l := &AsyncLogger{
		store:    store,
		events:   make(chan Event, buffer),
		fallback: NewSlogLogger(),
	}
	l.wg.Add(1)
	go l.consume()
	return l
}

// Log enqueues an event. Never blocks the caller.
func (l *AsyncLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case l.events <- event:
	default:
		// Buffer full: keep the trail in the application log at least.
		l.fallback.Log(ctx, event)
	}
}

// Close stops accepting events and drains the buffer.
func (l *AsyncLogger) Close() {
	l.once.Do(func() {
		close(l.events)
	})
	l.wg.Wait()
}

func (l *AsyncLogger) consume() {
	defer l.wg.Done()

	for event := range l.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.store.Insert(ctx, event); err != nil {
			slog.Error("failed to persist audit event",
				slog.String("audit_action", event.Action),
				slog.String("company_id", event.CompanyID),
				slog.String("error", err.Error()),
			)
			l.fallback.Log(ctx, event)
		}
		cancel()
	}
}
