package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
)

const characterColumns = "id, guild_id, owner_id, name, themes, backpack, story_tags, statuses, created_at, updated_at"

// PutCharacter upserts a character sheet.
func (s *Store) PutCharacter(ctx context.Context, record storage.CharacterRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("character id is required")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}
	if strings.TrimSpace(record.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}

	themes, err := encodeThemes(record.Themes)
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}
	backpack, err := encodeTags(record.Backpack)
	if err != nil {
		return fmt.Errorf("encode backpack: %w", err)
	}
	storyTags, err := encodeTags(record.StoryTags)
	if err != nil {
		return fmt.Errorf("encode story tags: %w", err)
	}
	statuses, err := encodeStatuses(record.Statuses)
	if err != nil {
		return fmt.Errorf("encode statuses: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO characters (id, guild_id, owner_id, name, themes, backpack, story_tags, statuses, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   guild_id = excluded.guild_id,
		   owner_id = excluded.owner_id,
		   name = excluded.name,
		   themes = excluded.themes,
		   backpack = excluded.backpack,
		   story_tags = excluded.story_tags,
		   statuses = excluded.statuses,
		   updated_at = excluded.updated_at`,
		record.ID,
		record.GuildID,
		record.OwnerID,
		record.Name,
		themes,
		backpack,
		storyTags,
		statuses,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// GetCharacter returns a character sheet scoped to a guild.
func (s *Store) GetCharacter(ctx context.Context, guildID, characterID string) (storage.CharacterRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CharacterRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CharacterRecord{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	characterID = strings.TrimSpace(characterID)
	if guildID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("guild id is required")
	}
	if characterID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+characterColumns+` FROM characters WHERE guild_id = ? AND id = ?`,
		guildID,
		characterID,
	)
	return scanCharacter(row)
}

// GetCharacterByOwner returns the owner's character within a guild.
func (s *Store) GetCharacterByOwner(ctx context.Context, guildID, ownerID string) (storage.CharacterRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CharacterRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CharacterRecord{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	ownerID = strings.TrimSpace(ownerID)
	if guildID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("guild id is required")
	}
	if ownerID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("owner id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+characterColumns+` FROM characters WHERE guild_id = ? AND owner_id = ?`,
		guildID,
		ownerID,
	)
	return scanCharacter(row)
}

// ListCharacters returns one page of a guild's characters ordered by id.
func (s *Store) ListCharacters(ctx context.Context, guildID string, pageSize int, pageToken string) (storage.CharacterPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.CharacterPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CharacterPage{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return storage.CharacterPage{}, fmt.Errorf("guild id is required")
	}
	if pageSize <= 0 {
		return storage.CharacterPage{}, fmt.Errorf("page size must be greater than zero")
	}

	page := storage.CharacterPage{
		Characters: make([]storage.CharacterRecord, 0, pageSize),
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT `+characterColumns+` FROM characters
			 WHERE guild_id = ?
			 ORDER BY id ASC
			 LIMIT ?`,
			guildID,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT `+characterColumns+` FROM characters
			 WHERE guild_id = ? AND id > ?
			 ORDER BY id ASC
			 LIMIT ?`,
			guildID,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.CharacterPage{}, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanCharacter(rows)
		if err != nil {
			return storage.CharacterPage{}, fmt.Errorf("list characters: %w", err)
		}
		page.Characters = append(page.Characters, record)
	}
	if err := rows.Err(); err != nil {
		return storage.CharacterPage{}, fmt.Errorf("list characters: %w", err)
	}
	if len(page.Characters) > pageSize {
		page.NextPageToken = page.Characters[pageSize-1].ID
		page.Characters = page.Characters[:pageSize]
	}

	return page, nil
}

// MarkTagsBurned flags the given theme or tag ids as burned on the
// character's sheet. Unknown ids are ignored.
func (s *Store) MarkTagsBurned(ctx context.Context, characterID string, tagIDs []string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}
	if len(tagIDs) == 0 {
		return nil
	}

	burn := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			burn[trimmed] = true
		}
	}
	if len(burn) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin burn transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT themes, backpack, story_tags FROM characters WHERE id = ?`,
		characterID,
	)
	var themesRaw, backpackRaw, storyRaw string
	if err := row.Scan(&themesRaw, &backpackRaw, &storyRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load character sheet: %w", err)
	}

	themes, err := decodeThemes(themesRaw)
	if err != nil {
		return fmt.Errorf("decode themes: %w", err)
	}
	backpack, err := decodeTags(backpackRaw)
	if err != nil {
		return fmt.Errorf("decode backpack: %w", err)
	}
	story, err := decodeTags(storyRaw)
	if err != nil {
		return fmt.Errorf("decode story tags: %w", err)
	}

	for i := range themes {
		if burn[themes[i].ID] {
			themes[i].Burned = true
		}
		for j := range themes[i].Tags {
			if burn[themes[i].Tags[j].ID] {
				themes[i].Tags[j].Burned = true
			}
		}
	}
	for i := range backpack {
		if burn[backpack[i].ID] {
			backpack[i].Burned = true
		}
	}
	for i := range story {
		if burn[story[i].ID] {
			story[i].Burned = true
		}
	}

	themesRaw, err = encodeThemes(themes)
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}
	backpackRaw, err = encodeTags(backpack)
	if err != nil {
		return fmt.Errorf("encode backpack: %w", err)
	}
	storyRaw, err = encodeTags(story)
	if err != nil {
		return fmt.Errorf("encode story tags: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE characters SET themes = ?, backpack = ?, story_tags = ?, updated_at = ? WHERE id = ?`,
		themesRaw,
		backpackRaw,
		storyRaw,
		toMillis(updatedAt),
		characterID,
	); err != nil {
		return fmt.Errorf("mark tags burned: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit burn transaction: %w", err)
	}
	return nil
}

// CharacterTagData resolves a character-owned tag reference against the
// attributed character's sheet. Missing sheets and missing tags report
// not-found rather than errors; the reference is dangling.
func (s *Store) CharacterTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	if err := ctx.Err(); err != nil {
		return tags.TagData{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return tags.TagData{}, false, fmt.Errorf("storage is not configured")
	}
	characterID := strings.TrimSpace(entity.CharacterID)
	parentID := strings.TrimSpace(entity.ParentID)
	if characterID == "" || parentID == "" {
		return tags.TagData{}, false, nil
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT themes, backpack, story_tags, statuses FROM characters WHERE id = ?`,
		characterID,
	)
	var themesRaw, backpackRaw, storyRaw, statusesRaw string
	if err := row.Scan(&themesRaw, &backpackRaw, &storyRaw, &statusesRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tags.TagData{}, false, nil
		}
		return tags.TagData{}, false, fmt.Errorf("load character sheet: %w", err)
	}

	switch entity.Source {
	case tags.SourceCharacterTheme:
		themes, err := decodeThemes(themesRaw)
		if err != nil {
			return tags.TagData{}, false, err
		}
		for _, theme := range themes {
			if theme.ID == parentID {
				return tags.TagData{Name: theme.Name, Kind: tags.KindTag}, true, nil
			}
		}
	case tags.SourceCharacterThemeTag:
		themes, err := decodeThemes(themesRaw)
		if err != nil {
			return tags.TagData{}, false, err
		}
		for _, theme := range themes {
			if data, ok := findTag(theme.Tags, parentID); ok {
				return data, true, nil
			}
		}
	case tags.SourceCharacterBackpackItem:
		backpack, err := decodeTags(backpackRaw)
		if err != nil {
			return tags.TagData{}, false, err
		}
		if data, ok := findTag(backpack, parentID); ok {
			return data, true, nil
		}
	case tags.SourceCharacterStoryTag:
		story, err := decodeTags(storyRaw)
		if err != nil {
			return tags.TagData{}, false, err
		}
		if data, ok := findTag(story, parentID); ok {
			return data, true, nil
		}
	case tags.SourceCharacterStatus:
		statuses, err := decodeStatuses(statusesRaw)
		if err != nil {
			return tags.TagData{}, false, err
		}
		for _, status := range statuses {
			if status.ID == parentID {
				return tags.TagData{Name: status.Name, Kind: tags.KindStatus}, true, nil
			}
		}
	}
	return tags.TagData{}, false, nil
}

func findTag(records []storage.TagRecord, id string) (tags.TagData, bool) {
	for _, record := range records {
		if record.ID != id {
			continue
		}
		kind := tags.KindTag
		if record.Weakness {
			kind = tags.KindWeakness
		}
		return tags.TagData{Name: record.Name, Kind: kind}, true
	}
	return tags.TagData{}, false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (storage.CharacterRecord, error) {
	var record storage.CharacterRecord
	var themesRaw, backpackRaw, storyRaw, statusesRaw string
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.GuildID,
		&record.OwnerID,
		&record.Name,
		&themesRaw,
		&backpackRaw,
		&storyRaw,
		&statusesRaw,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CharacterRecord{}, storage.ErrNotFound
		}
		return storage.CharacterRecord{}, fmt.Errorf("scan character: %w", err)
	}

	if record.Themes, err = decodeThemes(themesRaw); err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("decode themes: %w", err)
	}
	if record.Backpack, err = decodeTags(backpackRaw); err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("decode backpack: %w", err)
	}
	if record.StoryTags, err = decodeTags(storyRaw); err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("decode story tags: %w", err)
	}
	if record.Statuses, err = decodeStatuses(statusesRaw); err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("decode statuses: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
