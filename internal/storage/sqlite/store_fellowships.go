package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// PutFellowship upserts the guild's shared group sheet. Guilds have at
// most one fellowship; writes replace it.
func (s *Store) PutFellowship(ctx context.Context, record storage.FellowshipRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("fellowship id is required")
	}

	tagsRaw, err := encodeTags(record.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO fellowships (guild_id, id, name, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   id = excluded.id,
		   name = excluded.name,
		   tags = excluded.tags,
		   updated_at = excluded.updated_at`,
		record.GuildID,
		record.ID,
		record.Name,
		tagsRaw,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put fellowship: %w", err)
	}
	return nil
}

// GetFellowship returns the guild's group sheet.
func (s *Store) GetFellowship(ctx context.Context, guildID string) (storage.FellowshipRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.FellowshipRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.FellowshipRecord{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return storage.FellowshipRecord{}, fmt.Errorf("guild id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT guild_id, id, name, tags, created_at, updated_at
		 FROM fellowships WHERE guild_id = ?`,
		guildID,
	)
	var record storage.FellowshipRecord
	var tagsRaw string
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.GuildID,
		&record.ID,
		&record.Name,
		&tagsRaw,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.FellowshipRecord{}, storage.ErrNotFound
		}
		return storage.FellowshipRecord{}, fmt.Errorf("get fellowship: %w", err)
	}
	if record.Tags, err = decodeTags(tagsRaw); err != nil {
		return storage.FellowshipRecord{}, fmt.Errorf("decode tags: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// FellowshipTagData resolves a fellowship-owned tag reference by
// searching group sheets for the tag id.
func (s *Store) FellowshipTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	if err := ctx.Err(); err != nil {
		return tags.TagData{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return tags.TagData{}, false, fmt.Errorf("storage is not configured")
	}
	if entity.Source != tags.SourceFellowshipTag {
		return tags.TagData{}, false, nil
	}
	parentID := strings.TrimSpace(entity.ParentID)
	if parentID == "" {
		return tags.TagData{}, false, nil
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT json_extract(entry.value, '$.name'),
		        COALESCE(json_extract(entry.value, '$.weakness'), 0)
		 FROM fellowships, json_each(fellowships.tags) AS entry
		 WHERE json_extract(entry.value, '$.id') = ?`,
		parentID,
	)
	var name string
	var weakness int
	if err := row.Scan(&name, &weakness); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tags.TagData{}, false, nil
		}
		return tags.TagData{}, false, fmt.Errorf("resolve fellowship tag: %w", err)
	}
	kind := tags.KindTag
	if weakness != 0 {
		kind = tags.KindWeakness
	}
	return tags.TagData{Name: name, Kind: kind}, true, nil
}
