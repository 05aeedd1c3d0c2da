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

const sceneColumns = "id, guild_id, name, active, tags, statuses, created_at, updated_at"

// PutScene upserts a scene sheet. Activating a scene deactivates any
// other active scene in the guild within the same transaction, so at
// most one scene is active per guild.
func (s *Store) PutScene(ctx context.Context, record storage.SceneRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("scene id is required")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}

	tagsRaw, err := encodeTags(record.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	statusesRaw, err := encodeStatuses(record.Statuses)
	if err != nil {
		return fmt.Errorf("encode statuses: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scene transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if record.Active {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE scenes SET active = 0, updated_at = ?
			 WHERE guild_id = ? AND id != ? AND active = 1`,
			toMillis(record.UpdatedAt),
			record.GuildID,
			record.ID,
		); err != nil {
			return fmt.Errorf("deactivate previous scene: %w", err)
		}
	}

	active := 0
	if record.Active {
		active = 1
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO scenes (id, guild_id, name, active, tags, statuses, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   guild_id = excluded.guild_id,
		   name = excluded.name,
		   active = excluded.active,
		   tags = excluded.tags,
		   statuses = excluded.statuses,
		   updated_at = excluded.updated_at`,
		record.ID,
		record.GuildID,
		record.Name,
		active,
		tagsRaw,
		statusesRaw,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put scene: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scene transaction: %w", err)
	}
	return nil
}

// GetScene returns a scene sheet by id.
func (s *Store) GetScene(ctx context.Context, sceneID string) (storage.SceneRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SceneRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SceneRecord{}, fmt.Errorf("storage is not configured")
	}
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return storage.SceneRecord{}, fmt.Errorf("scene id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE id = ?`,
		sceneID,
	)
	return scanScene(row)
}

// GetActiveScene returns the guild's active scene, ErrNotFound when no
// scene is active.
func (s *Store) GetActiveScene(ctx context.Context, guildID string) (storage.SceneRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SceneRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SceneRecord{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return storage.SceneRecord{}, fmt.Errorf("guild id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE guild_id = ? AND active = 1`,
		guildID,
	)
	return scanScene(row)
}

// SceneTagData resolves a scene-owned tag reference by searching scene
// sheets for the tag id. Missing tags report not-found; the reference
// is dangling.
func (s *Store) SceneTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	if err := ctx.Err(); err != nil {
		return tags.TagData{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return tags.TagData{}, false, fmt.Errorf("storage is not configured")
	}
	parentID := strings.TrimSpace(entity.ParentID)
	if parentID == "" {
		return tags.TagData{}, false, nil
	}

	switch entity.Source {
	case tags.SourceSceneTag:
		row := s.sqlDB.QueryRowContext(
			ctx,
			`SELECT json_extract(entry.value, '$.name'),
			        COALESCE(json_extract(entry.value, '$.weakness'), 0)
			 FROM scenes, json_each(scenes.tags) AS entry
			 WHERE json_extract(entry.value, '$.id') = ?`,
			parentID,
		)
		var name string
		var weakness int
		if err := row.Scan(&name, &weakness); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return tags.TagData{}, false, nil
			}
			return tags.TagData{}, false, fmt.Errorf("resolve scene tag: %w", err)
		}
		kind := tags.KindTag
		if weakness != 0 {
			kind = tags.KindWeakness
		}
		return tags.TagData{Name: name, Kind: kind}, true, nil
	case tags.SourceSceneStatus:
		row := s.sqlDB.QueryRowContext(
			ctx,
			`SELECT json_extract(entry.value, '$.name')
			 FROM scenes, json_each(scenes.statuses) AS entry
			 WHERE json_extract(entry.value, '$.id') = ?`,
			parentID,
		)
		var name string
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return tags.TagData{}, false, nil
			}
			return tags.TagData{}, false, fmt.Errorf("resolve scene status: %w", err)
		}
		return tags.TagData{Name: name, Kind: tags.KindStatus}, true, nil
	}
	return tags.TagData{}, false, nil
}

func scanScene(row rowScanner) (storage.SceneRecord, error) {
	var record storage.SceneRecord
	var tagsRaw, statusesRaw string
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.GuildID,
		&record.Name,
		&active,
		&tagsRaw,
		&statusesRaw,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SceneRecord{}, storage.ErrNotFound
		}
		return storage.SceneRecord{}, fmt.Errorf("scan scene: %w", err)
	}

	record.Active = active != 0
	if record.Tags, err = decodeTags(tagsRaw); err != nil {
		return storage.SceneRecord{}, fmt.Errorf("decode tags: %w", err)
	}
	if record.Statuses, err = decodeStatuses(statusesRaw); err != nil {
		return storage.SceneRecord{}, fmt.Errorf("decode statuses: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
