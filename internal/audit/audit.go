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
	"time"
)

// Audit actions
const (
	ActionCompanyRegistered = "company_registered"
	ActionCompanyValidated  = "company_validated"
	ActionValidationDenied  = "validation_denied"
	ActionHeartbeatReceived = "heartbeat_received"
	ActionUpdateCheck       = "update_check"
	ActionUpdateDownload    = "update_download"
	ActionUpdatePublished   = "update_published"
)

// Event represents one auditable action. Events are append-only; nothing in
// the control plane reads them back.
type Event struct {
	Action    string
	CompanyID string
	Details   map[string]any
	IPAddress string
	UserAgent string
	Timestamp time.Time
}

// Logger defines the interface for audit logging. Implementations must never
// fail the primary operation.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_action", event.Action),
		slog.String("company_id", event.CompanyID),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Details) > 0 {
		group := []any{}
		for k, v := range event.Details {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("details", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	secrets := []string{"password", "secret", "token", "key", "credential", "database_config"}
	for _, s := range secrets {
		if key == s {
			return true
		}
	}
	return false
}
