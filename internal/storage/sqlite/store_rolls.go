package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	"github.com/louisbranch/mist-engine/internal/platform/grpc/pagination"
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/storage/cursor"
	"github.com/louisbranch/mist-engine/internal/storage/filter"
	"github.com/louisbranch/mist-engine/internal/tags"
)

const rollColumns = `guild_id, id, creator_id, character_id, scene_id, description, narration_link,
justification, might, status, confirmed_by, help, hinder, burned_source, burned_parent_id,
is_reaction, reaction_to, strategy, die1, die2, power, final_total, outcome, spendable_power,
purged_tag_count, executed_at, created_at, updated_at`

// listRollsPageSize bounds roll listing pages.
var listRollsPageSize = pagination.PageSizeConfig{Default: 25, Max: 100}

// listRollsOrderBy restricts ordering to the sequential id, which also
// orders by creation time. Cursors resume on the id.
var listRollsOrderBy = pagination.OrderByConfig{
	Default: "id desc",
	Allowed: []string{"id", "id desc"},
}

// CreateRoll inserts the record with the next sequential id for its
// guild. The sequence is allocated inside the insert transaction so
// concurrent proposals never share an id.
func (s *Store) CreateRoll(ctx context.Context, record storage.RollRecord) (storage.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RollRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RollRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return storage.RollRecord{}, fmt.Errorf("guild id is required")
	}
	if strings.TrimSpace(record.CreatorID) == "" {
		return storage.RollRecord{}, fmt.Errorf("creator id is required")
	}

	cols, err := encodeRollColumns(record)
	if err != nil {
		return storage.RollRecord{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RollRecord{}, fmt.Errorf("begin roll transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO roll_seq (guild_id, next_id) VALUES (?, 1)
		 ON CONFLICT(guild_id) DO NOTHING`,
		record.GuildID,
	); err != nil {
		return storage.RollRecord{}, fmt.Errorf("init roll seq: %w", err)
	}

	var seq int64
	row := tx.QueryRowContext(ctx, `SELECT next_id FROM roll_seq WHERE guild_id = ?`, record.GuildID)
	if err := row.Scan(&seq); err != nil {
		return storage.RollRecord{}, fmt.Errorf("get roll seq: %w", err)
	}
	if seq <= 0 {
		return storage.RollRecord{}, fmt.Errorf("roll seq is required")
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE roll_seq SET next_id = next_id + 1 WHERE guild_id = ?`,
		record.GuildID,
	); err != nil {
		return storage.RollRecord{}, fmt.Errorf("increment roll seq: %w", err)
	}

	record.ID = seq
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO rolls (`+rollColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.GuildID,
		record.ID,
		record.CreatorID,
		record.CharacterID,
		record.SceneID,
		record.Description,
		record.NarrationLink,
		record.Justification,
		record.Might,
		cols.status,
		record.ConfirmedBy,
		cols.help,
		cols.hinder,
		cols.burnedSource,
		cols.burnedParentID,
		cols.isReaction,
		record.ReactionTo,
		cols.strategy,
		record.Die1,
		record.Die2,
		record.Power,
		record.FinalTotal,
		cols.outcome,
		record.SpendablePower,
		record.PurgedTagCount,
		toNullMillis(record.ExecutedAt),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	); err != nil {
		return storage.RollRecord{}, fmt.Errorf("create roll: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.RollRecord{}, fmt.Errorf("commit roll transaction: %w", err)
	}
	return record, nil
}

// GetRoll returns a roll by guild and sequential id.
func (s *Store) GetRoll(ctx context.Context, guildID string, rollID int64) (storage.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RollRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RollRecord{}, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return storage.RollRecord{}, fmt.Errorf("guild id is required")
	}
	if rollID <= 0 {
		return storage.RollRecord{}, fmt.Errorf("roll id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+rollColumns+` FROM rolls WHERE guild_id = ? AND id = ?`,
		guildID,
		rollID,
	)
	return scanRoll(row)
}

// UpdateRoll replaces a persisted roll record.
func (s *Store) UpdateRoll(ctx context.Context, record storage.RollRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}
	if record.ID <= 0 {
		return fmt.Errorf("roll id is required")
	}

	cols, err := encodeRollColumns(record)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE rolls SET
		   creator_id = ?,
		   character_id = ?,
		   scene_id = ?,
		   description = ?,
		   narration_link = ?,
		   justification = ?,
		   might = ?,
		   status = ?,
		   confirmed_by = ?,
		   help = ?,
		   hinder = ?,
		   burned_source = ?,
		   burned_parent_id = ?,
		   is_reaction = ?,
		   reaction_to = ?,
		   strategy = ?,
		   die1 = ?,
		   die2 = ?,
		   power = ?,
		   final_total = ?,
		   outcome = ?,
		   spendable_power = ?,
		   purged_tag_count = ?,
		   executed_at = ?,
		   updated_at = ?
		 WHERE guild_id = ? AND id = ?`,
		record.CreatorID,
		record.CharacterID,
		record.SceneID,
		record.Description,
		record.NarrationLink,
		record.Justification,
		record.Might,
		cols.status,
		record.ConfirmedBy,
		cols.help,
		cols.hinder,
		cols.burnedSource,
		cols.burnedParentID,
		cols.isReaction,
		record.ReactionTo,
		cols.strategy,
		record.Die1,
		record.Die2,
		record.Power,
		record.FinalTotal,
		cols.outcome,
		record.SpendablePower,
		record.PurgedTagCount,
		toNullMillis(record.ExecutedAt),
		toMillis(record.UpdatedAt),
		record.GuildID,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update roll: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update roll: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteInvalidTags removes the given entities from the roll's help,
// hinder, and burn sets and returns the number of entries removed. The
// roll's other fields are untouched.
func (s *Store) DeleteInvalidTags(ctx context.Context, guildID string, rollID int64, invalid []tags.Entity, updatedAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return 0, fmt.Errorf("guild id is required")
	}
	if rollID <= 0 {
		return 0, fmt.Errorf("roll id is required")
	}
	if len(invalid) == 0 {
		return 0, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+rollColumns+` FROM rolls WHERE guild_id = ? AND id = ?`,
		guildID,
		rollID,
	)
	record, err := scanRoll(row)
	if err != nil {
		return 0, err
	}

	purged, removed := domain.PurgeInvalid(record.ToRoll(), invalid)
	if removed == 0 {
		return 0, nil
	}
	cleaned := storage.FromRoll(purged)

	cols, err := encodeRollColumns(cleaned)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE rolls SET
		   help = ?,
		   hinder = ?,
		   burned_source = ?,
		   burned_parent_id = ?,
		   purged_tag_count = ?,
		   updated_at = ?
		 WHERE guild_id = ? AND id = ?`,
		cols.help,
		cols.hinder,
		cols.burnedSource,
		cols.burnedParentID,
		cleaned.PurgedTagCount,
		toMillis(updatedAt),
		guildID,
		rollID,
	); err != nil {
		return 0, fmt.Errorf("delete invalid tags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge transaction: %w", err)
	}
	return removed, nil
}

// ListRolls returns one page of a guild's rolls, optionally narrowed by
// an AIP-160 filter expression.
func (s *Store) ListRolls(ctx context.Context, req storage.ListRollsRequest) (storage.RollPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.RollPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RollPage{}, fmt.Errorf("storage is not configured")
	}
	guildID := strings.TrimSpace(req.GuildID)
	if guildID == "" {
		return storage.RollPage{}, fmt.Errorf("guild id is required")
	}

	pageSize := pagination.ClampPageSize(int32(req.PageSize), listRollsPageSize)
	orderBy, err := pagination.NormalizeOrderBy(strings.TrimSpace(req.OrderBy), listRollsOrderBy)
	if err != nil {
		return storage.RollPage{}, err
	}
	descending := strings.HasSuffix(orderBy, " desc")

	cond, err := filter.ParseRollFilter(req.Filter)
	if err != nil {
		return storage.RollPage{}, err
	}

	whereClause := "guild_id = ?"
	params := []any{guildID}
	if cond.Clause != "" {
		whereClause += " AND " + cond.Clause
		params = append(params, cond.Params...)
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return storage.RollPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.Validate(c, req.Filter, orderBy); err != nil {
			return storage.RollPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if c.Dir == cursor.DirectionBackward {
			whereClause += " AND id < ?"
		} else {
			whereClause += " AND id > ?"
		}
		params = append(params, c.RollID)
	}

	orderClause := "ORDER BY id ASC"
	if descending {
		orderClause = "ORDER BY id DESC"
	}

	query := `SELECT ` + rollColumns + ` FROM rolls WHERE ` + whereClause + ` ` +
		orderClause + fmt.Sprintf(" LIMIT %d", pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.RollPage{}, fmt.Errorf("list rolls: %w", err)
	}
	defer rows.Close()

	page := storage.RollPage{Rolls: make([]storage.RollRecord, 0, pageSize)}
	for rows.Next() {
		record, err := scanRoll(rows)
		if err != nil {
			return storage.RollPage{}, fmt.Errorf("list rolls: %w", err)
		}
		page.Rolls = append(page.Rolls, record)
	}
	if err := rows.Err(); err != nil {
		return storage.RollPage{}, fmt.Errorf("list rolls: %w", err)
	}
	if len(page.Rolls) > pageSize {
		page.Rolls = page.Rolls[:pageSize]
		last := page.Rolls[pageSize-1]
		token, err := cursor.NewNextPageCursor(last.ID, descending, req.Filter, orderBy).Encode()
		if err != nil {
			return storage.RollPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}

	return page, nil
}

// rollColumnData carries the encoded forms of a roll's typed columns.
type rollColumnData struct {
	status         string
	strategy       string
	outcome        string
	help           string
	hinder         string
	burnedSource   string
	burnedParentID string
	isReaction     int
}

func encodeRollColumns(record storage.RollRecord) (rollColumnData, error) {
	help, err := encodeEntities(record.Help)
	if err != nil {
		return rollColumnData{}, fmt.Errorf("encode help: %w", err)
	}
	hinder, err := encodeEntities(record.Hinder)
	if err != nil {
		return rollColumnData{}, fmt.Errorf("encode hinder: %w", err)
	}

	cols := rollColumnData{
		status:   record.Status.String(),
		strategy: record.Strategy.String(),
		help:     help,
		hinder:   hinder,
	}
	if record.ExecutedAt != nil {
		cols.outcome = record.Outcome.String()
	}
	if record.BurnedTag != nil {
		cols.burnedSource = record.BurnedTag.Source.String()
		cols.burnedParentID = record.BurnedTag.ParentID
	}
	if record.IsReaction {
		cols.isReaction = 1
	}
	return cols, nil
}

func scanRoll(row rowScanner) (storage.RollRecord, error) {
	var record storage.RollRecord
	var status, strategy, outcome, helpRaw, hinderRaw, burnedSource, burnedParentID string
	var isReaction int
	var executedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.GuildID,
		&record.ID,
		&record.CreatorID,
		&record.CharacterID,
		&record.SceneID,
		&record.Description,
		&record.NarrationLink,
		&record.Justification,
		&record.Might,
		&status,
		&record.ConfirmedBy,
		&helpRaw,
		&hinderRaw,
		&burnedSource,
		&burnedParentID,
		&isReaction,
		&record.ReactionTo,
		&strategy,
		&record.Die1,
		&record.Die2,
		&record.Power,
		&record.FinalTotal,
		&outcome,
		&record.SpendablePower,
		&record.PurgedTagCount,
		&executedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RollRecord{}, storage.ErrNotFound
		}
		return storage.RollRecord{}, fmt.Errorf("scan roll: %w", err)
	}

	record.Status = domain.ParseStatus(status)
	parsedStrategy, err := mist.ParseStrategy(strategy)
	if err != nil {
		return storage.RollRecord{}, fmt.Errorf("parse strategy column: %w", err)
	}
	record.Strategy = parsedStrategy
	record.Outcome = mist.ParseOutcome(outcome)
	if record.Help, err = decodeEntities(helpRaw); err != nil {
		return storage.RollRecord{}, fmt.Errorf("decode help: %w", err)
	}
	if record.Hinder, err = decodeEntities(hinderRaw); err != nil {
		return storage.RollRecord{}, fmt.Errorf("decode hinder: %w", err)
	}
	if burnedSource != "" && burnedParentID != "" {
		record.BurnedTag = &tags.Key{
			Source:   tags.ParseSource(burnedSource),
			ParentID: burnedParentID,
		}
	}
	record.IsReaction = isReaction != 0
	record.ExecutedAt = fromNullMillis(executedAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
