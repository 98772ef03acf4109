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

package company

import (
	"encoding/json"
	"time"
)

// Subscription status constants
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Subscription tier constants
const (
	TierStandard     = "standard"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// Company represents a licensed tenant: one organization running the
// desktop application under a shared code and seat pool.
type Company struct {
	ID                 string     `json:"id"`
	Code               string     `json:"company_code"`
	Name               string     `json:"company_name"`
	Email              string     `json:"admin_email"`
	Phone              string     `json:"admin_phone,omitempty"`
	DatabaseConfig     string     `json:"-"` // always ciphertext, never queryable
	Settings           Settings   `json:"settings"`
	SubscriptionStatus string     `json:"subscription_status"`
	SubscriptionTier   string     `json:"subscription_tier"`
	MaxInstallations   int        `json:"max_installations"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Usable reports whether tenant-facing operations may proceed for this
// company.
func (c *Company) Usable() error {
	if c.SubscriptionStatus == StatusSuspended {
		return ErrCompanySuspended
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(time.Now()) {
		return ErrCompanyExpired
	}
	return nil
}

// Settings is the per-tenant settings bag. The control plane only pattern
// matches on the named fields; everything else rides along in Extra so
// unknown keys written by the admin surface survive a round trip.
type Settings struct {
	AllowAutoUpdates   bool
	UpdateChannel      string
	ForceUpdateVersion string
	SettingsVersion    string
	Extra              map[string]any
}

// MarshalJSON flattens known fields and Extra into one object.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["allow_auto_updates"] = s.AllowAutoUpdates
	if s.UpdateChannel != "" {
		out["update_channel"] = s.UpdateChannel
	}
	if s.ForceUpdateVersion != "" {
		out["force_update_version"] = s.ForceUpdateVersion
	}
	if s.SettingsVersion != "" {
		out["settings_version"] = s.SettingsVersion
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known fields out of the object and keeps the rest in
// Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["allow_auto_updates"].(bool); ok {
		s.AllowAutoUpdates = v
	}
	s.UpdateChannel = stringValue(raw, "update_channel")
	s.ForceUpdateVersion = stringValue(raw, "force_update_version")
	s.SettingsVersion = stringValue(raw, "settings_version")

	delete(raw, "allow_auto_updates")
	delete(raw, "update_channel")
	delete(raw, "force_update_version")
	delete(raw, "settings_version")
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

func stringValue(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		// settings_version is sometimes written as a number
		return json.Number(trimFloat(v)).String()
	}
	return ""
}

func trimFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
