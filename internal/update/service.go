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
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/version"
)

// CompanyDirectory is the slice of the tenant registry the resolver needs.
type CompanyDirectory interface {
	Lookup(ctx context.Context, code string) (*company.Company, error)
	GrantedChannels(ctx context.Context, companyID string) ([]string, error)
}

// Service resolves update checks against release channels and produces
// distribution manifests.
type Service struct {
	repo        Repository
	companies   CompanyDirectory
	auditLogger audit.Logger
	baseURL     string
}

// NewService creates a new update service. baseURL is the public address
// download locators are built against.
func NewService(repo Repository, companies CompanyDirectory, auditLogger audit.Logger, baseURL string) *Service {
	return &Service{
		repo:        repo,
		companies:   companies,
		auditLogger: auditLogger,
		baseURL:     baseURL,
	}
}

// CheckRequest is one update poll from a client.
type CheckRequest struct {
	Code      string
	Channel   string
	Version   string
	IPAddress string
	UserAgent string
}

// Info is the distribution manifest returned when an update is offered.
type Info struct {
	Version      string    `json:"version"`
	ReleaseDate  time.Time `json:"releaseDate"`
	ReleaseName  string    `json:"releaseName"`
	ReleaseNotes string    `json:"releaseNotes"`
	Mandatory    bool      `json:"mandatory"`
	URL          string    `json:"url"`
}

// CheckForUpdate decides whether a newer version exists for the caller and
// whether installing it is mandatory. ErrNoUpdate is the expected outcome
// for current callers, unknown channels and ungranted non-stable channels.
func (s *Service) CheckForUpdate(ctx context.Context, req CheckRequest) (*Info, error) {
	c, err := s.companies.Lookup(ctx, req.Code)
	if err != nil {
		s.deniedLookup(ctx, req.Code, req.IPAddress, req.UserAgent)
		return nil, err
	}
	if err := c.Usable(); err != nil {
		return nil, err
	}

	channelName := req.Channel
	if channelName == "" {
		channelName = ChannelStable
	}

	ch, err := s.repo.GetByName(ctx, channelName)
	if err != nil {
		if err == ErrChannelNotFound {
			return nil, ErrNoUpdate
		}
		return nil, fmt.Errorf("failed to load channel: %w", err)
	}

	// Stable is implicitly available to everyone; anything else needs an
	// explicit grant.
	if channelName != ChannelStable {
		granted, err := s.companies.GrantedChannels(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve channel grants: %w", err)
		}
		if !slices.Contains(granted, channelName) {
			return nil, ErrNoUpdate
		}
	}

	if version.Compare(req.Version, ch.CurrentVersion) >= 0 {
		return nil, ErrNoUpdate
	}

	mandatory := ch.IsMandatory
	if ch.MinimumVersion != "" && version.Compare(req.Version, ch.MinimumVersion) < 0 {
		mandatory = true
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionUpdateCheck,
		CompanyID: c.ID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Details: map[string]any{
			"current_version":   req.Version,
			"available_version": ch.CurrentVersion,
			"channel":           channelName,
			"update_available":  true,
		},
	})

	return &Info{
		Version:      ch.CurrentVersion,
		ReleaseDate:  ch.PublishedAt,
		ReleaseName:  "Nexus " + ch.CurrentVersion,
		ReleaseNotes: ch.ReleaseNotes,
		Mandatory:    mandatory,
		URL: fmt.Sprintf("%s/api/updates/download/%s?company_code=%s",
			s.baseURL, ch.CurrentVersion, url.QueryEscape(req.Code)),
	}, nil
}

// ResolveDownload returns the external file location for a published
// version, after verifying the tenant exists.
func (s *Service) ResolveDownload(ctx context.Context, code, ver, ipAddress, userAgent string) (string, error) {
	c, err := s.companies.Lookup(ctx, code)
	if err != nil {
		s.deniedLookup(ctx, code, ipAddress, userAgent)
		return "", err
	}

	ch, err := s.repo.GetByVersion(ctx, ver)
	if err != nil {
		return "", err
	}
	if ch.FileURL == "" {
		return "", ErrChannelNotFound
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionUpdateDownload,
		CompanyID: c.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details: map[string]any{
			"version":   ver,
			"file_size": ch.FileSize,
		},
	})

	return ch.FileURL, nil
}

// deniedLookup records a denied attempt against a code that resolved to no
// usable tenant. Failed lookups still leave an audit trail.
func (s *Service) deniedLookup(ctx context.Context, code, ipAddress, userAgent string) {
	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionValidationDenied,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details: map[string]any{
			"code":   code,
			"reason": "unknown_code",
		},
	})
}

// PublishInput carries one administrative channel publication.
type PublishInput struct {
	Version        string
	Channel        string
	MinimumVersion string
	ReleaseNotes   string
	FileURL        string
	FileSize       int64
	Checksum       string
	IsMandatory    bool
	IPAddress      string
	UserAgent      string
}

// Publish records a new current version on a channel.
func (s *Service) Publish(ctx context.Context, in PublishInput) (*Channel, error) {
	name := in.Channel
	if name == "" {
		name = ChannelStable
	}
	if !KnownChannel(name) {
		return nil, ErrChannelNotFound
	}

	ch := &Channel{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Name:           name,
		CurrentVersion: in.Version,
		MinimumVersion: in.MinimumVersion,
		ReleaseNotes:   in.ReleaseNotes,
		FileURL:        in.FileURL,
		FileSize:       in.FileSize,
		Checksum:       in.Checksum,
		IsMandatory:    in.IsMandatory,
		PublishedAt:    time.Now(),
	}

	if err := s.repo.Publish(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to publish update: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionUpdatePublished,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Details: map[string]any{
			"version": in.Version,
			"channel": name,
		},
	})

	return ch, nil
}

// List returns all channel rows for the admin surface.
func (s *Service) List(ctx context.Context) ([]*Channel, error) {
	return s.repo.List(ctx)
}

// LatestStableVersion returns the stable channel's current version, or ""
// when nothing has been published yet.
func (s *Service) LatestStableVersion(ctx context.Context) (string, error) {
	ch, err := s.repo.GetByName(ctx, ChannelStable)
	if err != nil {
		if err == ErrChannelNotFound {
			return "", nil
		}
		return "", err
	}
	return ch.CurrentVersion, nil
}
