package storage

import (
	"context"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "no such record")

// TagRecord is a named tag on a character, scene, or fellowship sheet.
// Weakness marks hinder-only tags; Burned marks tags spent by a roll.
type TagRecord struct {
	ID       string
	Name     string
	Weakness bool
	Burned   bool
}

// StatusRecord is a named condition with an embedded numeric suffix,
// e.g. "shaken-3".
type StatusRecord struct {
	ID   string
	Name string
}

// ThemeRecord groups a character theme and its tags. The theme itself
// can be invoked as a tag by name.
type ThemeRecord struct {
	ID     string
	Name   string
	Burned bool
	Tags   []TagRecord
}

// CharacterRecord captures a playable character sheet.
type CharacterRecord struct {
	ID        string
	GuildID   string
	OwnerID   string
	Name      string
	Themes    []ThemeRecord
	Backpack  []TagRecord
	StoryTags []TagRecord
	Statuses  []StatusRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SceneRecord captures a scene sheet. At most one scene is active per
// guild at a time.
type SceneRecord struct {
	ID        string
	GuildID   string
	Name      string
	Active    bool
	Tags      []TagRecord
	Statuses  []StatusRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FellowshipRecord captures the shared group sheet of a guild.
type FellowshipRecord struct {
	ID        string
	GuildID   string
	Name      string
	Tags      []TagRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RollRecord captures a persisted roll. ID is sequential per guild and
// assigned by the store on insert. The dice trace fields are zero until
// the roll is executed.
type RollRecord struct {
	ID             int64
	GuildID        string
	CreatorID      string
	CharacterID    string
	SceneID        string
	Description    string
	NarrationLink  string
	Justification  string
	Might          int
	Status         domain.Status
	ConfirmedBy    string
	Help           []tags.Entity
	Hinder         []tags.Entity
	BurnedTag      *tags.Key
	IsReaction     bool
	ReactionTo     int64
	Strategy       mist.Strategy
	Die1           int
	Die2           int
	Power          int
	FinalTotal     int
	Outcome        mist.Outcome
	SpendablePower int
	PurgedTagCount int
	ExecutedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NarratorRecord grants a user the narrator role within a guild.
type NarratorRecord struct {
	GuildID   string
	UserID    string
	GrantedAt time.Time
}

// CharacterPage is one page of character listing results.
type CharacterPage struct {
	Characters    []CharacterRecord
	NextPageToken string
}

// RollPage is one page of roll listing results.
type RollPage struct {
	Rolls         []RollRecord
	NextPageToken string
}

// ListRollsRequest describes a filtered roll listing.
// Filter carries an AIP-160 expression over roll columns; OrderBy is a
// comma-separated column list with optional desc markers.
type ListRollsRequest struct {
	GuildID   string
	Filter    string
	OrderBy   string
	PageSize  int
	PageToken string
}

// CharacterStore persists character sheets and serves tag resolution for
// character-owned entities.
type CharacterStore interface {
	PutCharacter(ctx context.Context, record CharacterRecord) error
	GetCharacter(ctx context.Context, guildID, characterID string) (CharacterRecord, error)
	// GetCharacterByOwner returns the owner's character within a guild.
	GetCharacterByOwner(ctx context.Context, guildID, ownerID string) (CharacterRecord, error)
	ListCharacters(ctx context.Context, guildID string, pageSize int, pageToken string) (CharacterPage, error)
	// MarkTagsBurned flags the given theme or tag ids as burned.
	MarkTagsBurned(ctx context.Context, characterID string, tagIDs []string, updatedAt time.Time) error
	CharacterTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error)
}

// SceneStore persists scene sheets and serves tag resolution for
// scene-owned entities.
type SceneStore interface {
	PutScene(ctx context.Context, record SceneRecord) error
	GetScene(ctx context.Context, sceneID string) (SceneRecord, error)
	// GetActiveScene returns the guild's active scene, ErrNotFound when
	// no scene is active.
	GetActiveScene(ctx context.Context, guildID string) (SceneRecord, error)
	SceneTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error)
}

// FellowshipStore persists the guild group sheet and serves tag
// resolution for fellowship-owned entities.
type FellowshipStore interface {
	PutFellowship(ctx context.Context, record FellowshipRecord) error
	GetFellowship(ctx context.Context, guildID string) (FellowshipRecord, error)
	FellowshipTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error)
}

// RollStore persists roll records. Rolls are addressed by guild and
// guild-scoped sequential id.
type RollStore interface {
	// CreateRoll inserts the record and returns it with the next
	// sequential id for its guild assigned.
	CreateRoll(ctx context.Context, record RollRecord) (RollRecord, error)
	GetRoll(ctx context.Context, guildID string, rollID int64) (RollRecord, error)
	UpdateRoll(ctx context.Context, record RollRecord) error
	// DeleteInvalidTags removes the given entities from the roll's help,
	// hinder, and burn sets and returns the number of entries removed.
	DeleteInvalidTags(ctx context.Context, guildID string, rollID int64, invalid []tags.Entity, updatedAt time.Time) (int, error)
	ListRolls(ctx context.Context, req ListRollsRequest) (RollPage, error)
}

// NarratorStore persists narrator role grants.
type NarratorStore interface {
	SetNarrator(ctx context.Context, record NarratorRecord) error
	RemoveNarrator(ctx context.Context, guildID, userID string) error
	IsNarrator(ctx context.Context, guildID, userID string) (bool, error)
}

// TelemetryEvent captures one engine lifecycle event for the telemetry
// log. Attributes carries structured payload fields; AttributesJSON is
// the serialized form stores persist.
type TelemetryEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	GuildID        string
	RollID         int64
	ActorID        string
	TraceID        string
	SpanID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// TelemetryStore appends engine lifecycle events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}
