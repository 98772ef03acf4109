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

package installation

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/observability/logger"
	"github.com/nexuscentral/nexuscentral/internal/version"
)

// HeartbeatRequest is one periodic liveness signal from an installation.
type HeartbeatRequest struct {
	Code            string
	MachineID       string
	AppVersion      string
	SettingsVersion string
	IPAddress       string
	UserAgent       string
}

// HeartbeatResult signals forced updates and settings changes back to the
// client.
type HeartbeatResult struct {
	ForceUpdate        bool
	SettingsChanged    bool
	SubscriptionStatus string
}

// Heartbeat processes a liveness signal. Only tenant resolution is a hard
// failure; the row update is best-effort so a missed prior validation never
// takes down the heartbeat channel.
func (s *Service) Heartbeat(ctx context.Context, req HeartbeatRequest) (*HeartbeatResult, error) {
	c, err := s.companies.Lookup(ctx, req.Code)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Action:    audit.ActionValidationDenied,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			Details: map[string]any{
				"machine_id": req.MachineID,
				"code":       req.Code,
				"reason":     "unknown_code",
			},
		})
		return nil, err
	}

	if err := s.repo.RecordHeartbeat(ctx, c.ID, req.MachineID, req.AppVersion, req.IPAddress, time.Now()); err != nil {
		slog.WarnContext(ctx, "failed to update heartbeat",
			logger.Component("installation"),
			logger.CompanyID(c.ID),
			logger.MachineID(req.MachineID),
			logger.Error(err),
		)
	}

	result := &HeartbeatResult{SubscriptionStatus: c.SubscriptionStatus}

	if required := c.Settings.ForceUpdateVersion; required != "" {
		if version.Compare(req.AppVersion, required) < 0 {
			result.ForceUpdate = true
		}
	}

	if sv := c.Settings.SettingsVersion; sv != "" && sv != req.SettingsVersion {
		result.SettingsChanged = true
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionHeartbeatReceived,
		CompanyID: c.ID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Details: map[string]any{
			"machine_id":  req.MachineID,
			"app_version": req.AppVersion,
		},
	})

	return result, nil
}
