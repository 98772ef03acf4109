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

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// manifestFile is one downloadable artifact in the manifest.
type manifestFile struct {
	URL    string `yaml:"url"`
	SHA512 string `yaml:"sha512"`
	Size   int64  `yaml:"size"`
}

// manifest mirrors the latest.yml layout the desktop self-updater polls.
// Field order is the document order, so rendering is deterministic.
type manifest struct {
	Version      string         `yaml:"version"`
	Files        []manifestFile `yaml:"files"`
	Path         string         `yaml:"path"`
	SHA512       string         `yaml:"sha512"`
	ReleaseDate  string         `yaml:"releaseDate"`
	ReleaseName  string         `yaml:"releaseName"`
	ReleaseNotes string         `yaml:"releaseNotes"`
}

// ManifestDocument renders the channel's current state as a static
// document for clients that poll instead of calling the check API. It must
// reflect exactly the fields the API path serves so the two distribution
// mechanisms never disagree.
func (s *Service) ManifestDocument(ctx context.Context, channelName string) (string, error) {
	if channelName == "" {
		channelName = ChannelStable
	}

	ch, err := s.repo.GetByName(ctx, channelName)
	if err != nil {
		return "", err
	}

	checksum := ch.Checksum
	if checksum == "" {
		checksum = "PLACEHOLDER"
	}
	notes := ch.ReleaseNotes
	if notes == "" {
		notes = "No release notes available"
	}

	artifact := fmt.Sprintf("nexus-setup-%s.exe", ch.CurrentVersion)
	doc := manifest{
		Version: ch.CurrentVersion,
		Files: []manifestFile{
			{URL: artifact, SHA512: checksum, Size: ch.FileSize},
		},
		Path:         artifact,
		SHA512:       checksum,
		ReleaseDate:  ch.PublishedAt.UTC().Format(time.RFC3339),
		ReleaseName:  "Nexus " + ch.CurrentVersion,
		ReleaseNotes: notes,
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render manifest: %w", err)
	}
	return string(out), nil
}
