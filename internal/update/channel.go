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

package update

import "time"

// Channel name constants
const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
	ChannelAlpha  = "alpha"
)

// Channel is one named update track. Rows are written only by
// administrative publication; tenant-facing calls read them.
type Channel struct {
	ID             string    `json:"id"`
	Name           string    `json:"channel_name"`
	CurrentVersion string    `json:"current_version"`
	// MinimumVersion is the floor below which the update becomes mandatory
	// regardless of IsMandatory. Empty means no floor.
	MinimumVersion string    `json:"minimum_version,omitempty"`
	ReleaseNotes   string    `json:"release_notes,omitempty"`
	FileURL        string    `json:"file_url,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	Checksum       string    `json:"sha256_checksum,omitempty"`
	IsMandatory    bool      `json:"is_mandatory"`
	PublishedAt    time.Time `json:"published_at"`
}

// KnownChannel reports whether name is one of the supported tracks.
func KnownChannel(name string) bool {
	return name == ChannelStable || name == ChannelBeta || name == ChannelAlpha
}
