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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nexuscentral/nexuscentral/internal/update"
)

// ChannelRepository implements update.Repository
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

const channelColumns = `id, channel_name, current_version, minimum_version, release_notes,
	file_url, file_size, sha256_checksum, is_mandatory, published_at`

// GetByName retrieves a channel by its name.
func (r *ChannelRepository) GetByName(ctx context.Context, name string) (*update.Channel, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+channelColumns+`
		FROM update_channels
		WHERE channel_name = $1
	`, name)

	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, update.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// GetByVersion retrieves the channel currently publishing a version. When
// several channels carry the same version, stable wins, then the most
// recently published row.
func (r *ChannelRepository) GetByVersion(ctx context.Context, version string) (*update.Channel, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+channelColumns+`
		FROM update_channels
		WHERE current_version = $1
		ORDER BY (channel_name = 'stable') DESC, published_at DESC
		LIMIT 1
	`, version)

	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, update.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// List returns all channels newest-first.
func (r *ChannelRepository) List(ctx context.Context) ([]*update.Channel, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+channelColumns+`
		FROM update_channels
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var out []*update.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		out = append(out, ch)
	}

	return out, rows.Err()
}

// Publish inserts or replaces the channel row.
func (r *ChannelRepository) Publish(ctx context.Context, ch *update.Channel) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO update_channels (id, channel_name, current_version, minimum_version,
			release_notes, file_url, file_size, sha256_checksum, is_mandatory, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (channel_name) DO UPDATE SET
			current_version = EXCLUDED.current_version,
			minimum_version = EXCLUDED.minimum_version,
			release_notes   = EXCLUDED.release_notes,
			file_url        = EXCLUDED.file_url,
			file_size       = EXCLUDED.file_size,
			sha256_checksum = EXCLUDED.sha256_checksum,
			is_mandatory    = EXCLUDED.is_mandatory,
			published_at    = EXCLUDED.published_at
	`, ch.ID, ch.Name, ch.CurrentVersion, nullable(ch.MinimumVersion), nullable(ch.ReleaseNotes),
		nullable(ch.FileURL), ch.FileSize, nullable(ch.Checksum), ch.IsMandatory, ch.PublishedAt)

	if err != nil {
		return fmt.Errorf("failed to publish channel: %w", err)
	}
	return nil
}

func scanChannel(row pgx.Row) (*update.Channel, error) {
	var (
		ch       update.Channel
		minVer   sql.NullString
		notes    sql.NullString
		fileURL  sql.NullString
		fileSize sql.NullInt64
		checksum sql.NullString
	)
	err := row.Scan(&ch.ID, &ch.Name, &ch.CurrentVersion, &minVer, &notes,
		&fileURL, &fileSize, &checksum, &ch.IsMandatory, &ch.PublishedAt)
	if err != nil {
		return nil, err
	}
	ch.MinimumVersion = minVer.String
	ch.ReleaseNotes = notes.String
	ch.FileURL = fileURL.String
	ch.FileSize = fileSize.Int64
	ch.Checksum = checksum.String
	return &ch, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
