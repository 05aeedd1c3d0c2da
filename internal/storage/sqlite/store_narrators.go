package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/mist-engine/internal/storage"
)

// SetNarrator grants a user the narrator role within a guild. Repeated
// grants keep the original grant time.
func (s *Store) SetNarrator(ctx context.Context, record storage.NarratorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}
	if strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO narrators (guild_id, user_id, granted_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO NOTHING`,
		record.GuildID,
		record.UserID,
		toMillis(record.GrantedAt),
	)
	if err != nil {
		return fmt.Errorf("set narrator: %w", err)
	}
	return nil
}

// RemoveNarrator revokes a user's narrator role within a guild.
// Revoking an absent grant is a no-op.
func (s *Store) RemoveNarrator(ctx context.Context, guildID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	userID = strings.TrimSpace(userID)
	if guildID == "" {
		return fmt.Errorf("guild id is required")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM narrators WHERE guild_id = ? AND user_id = ?`,
		guildID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("remove narrator: %w", err)
	}
	return nil
}

// IsNarrator reports whether the user holds the narrator role within a
// guild.
func (s *Store) IsNarrator(ctx context.Context, guildID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	userID = strings.TrimSpace(userID)
	if guildID == "" {
		return false, fmt.Errorf("guild id is required")
	}
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM narrators WHERE guild_id = ? AND user_id = ?`,
		guildID,
		userID,
	)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("is narrator: %w", err)
	}
	return true, nil
}
