package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	rolldomain "github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

var (
	// ErrEmptyCreatorID indicates a missing session creator.
	ErrEmptyCreatorID = apperrors.New(apperrors.CodeSessionEmptyCreatorID, "creator id is required")
	// ErrEmptyGuildID indicates a missing guild scope.
	ErrEmptyGuildID = apperrors.New(apperrors.CodeSessionEmptyGuildID, "guild id is required")
	// ErrEmptyCharacterID indicates a missing acting character.
	ErrEmptyCharacterID = apperrors.New(apperrors.CodeSessionEmptyCharacter, "character id is required")
)

// Purpose identifies the flow a session was opened for.
type Purpose int

const (
	// PurposeUnspecified represents an invalid purpose value.
	PurposeUnspecified Purpose = iota
	// PurposePropose drafts a brand new roll.
	PurposePropose
	// PurposeReaction drafts a roll reacting to an executed roll.
	PurposeReaction
	// PurposeAmend edits a persisted roll on behalf of its creator.
	PurposeAmend
	// PurposeConfirm reviews a proposed roll before narrator sign-off.
	PurposeConfirm
	// PurposeReconfirm reviews an already confirmed roll again.
	PurposeReconfirm
)

// String returns the token label for the purpose.
func (p Purpose) String() string {
	switch p {
	case PurposePropose:
		return "propose"
	case PurposeReaction:
		return "reaction"
	case PurposeAmend:
		return "amend"
	case PurposeConfirm:
		return "confirm"
	case PurposeReconfirm:
		return "reconfirm"
	default:
		return "unspecified"
	}
}

// ParsePurpose maps a token label back to its Purpose.
func ParsePurpose(value string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "propose":
		return PurposePropose, nil
	case "reaction":
		return PurposeReaction, nil
	case "amend":
		return PurposeAmend, nil
	case "confirm":
		return PurposeConfirm, nil
	case "reconfirm":
		return PurposeReconfirm, nil
	default:
		return PurposeUnspecified, apperrors.WithMetadata(
			apperrors.CodeSessionPurposeInvalid,
			fmt.Sprintf("unknown session purpose %q", value),
			map[string]string{"Purpose": value},
		)
	}
}

// TargetsRoll reports whether sessions with this purpose edit a persisted
// roll rather than draft a new one.
func (p Purpose) TargetsRoll() bool {
	switch p {
	case PurposeAmend, PurposeConfirm, PurposeReconfirm:
		return true
	default:
		return false
	}
}

// Action identifies a finishing operation a session offers.
type Action int

const (
	// ActionUnspecified represents an invalid action value.
	ActionUnspecified Action = iota
	// ActionSubmit persists the draft as a proposed roll.
	ActionSubmit
	// ActionConfirm commits the draft with a narrator sign-off.
	ActionConfirm
	// ActionCancel discards the draft.
	ActionCancel
)

// String returns the token label for the action.
func (a Action) String() string {
	switch a {
	case ActionSubmit:
		return "submit"
	case ActionConfirm:
		return "confirm"
	case ActionCancel:
		return "cancel"
	default:
		return "unspecified"
	}
}

// AllowedActions lists the finishing operations for a purpose.
func AllowedActions(purpose Purpose) []Action {
	switch purpose {
	case PurposePropose, PurposeReaction, PurposeAmend:
		return []Action{ActionSubmit, ActionCancel}
	case PurposeConfirm, PurposeReconfirm:
		return []Action{ActionConfirm, ActionCancel}
	default:
		return nil
	}
}

// Allows reports whether the purpose offers the finishing action.
func (p Purpose) Allows(action Action) bool {
	for _, allowed := range AllowedActions(p) {
		if allowed == action {
			return true
		}
	}
	return false
}

// Key addresses a live session. A creator holds at most one session per
// purpose.
type Key struct {
	CreatorID string
	Purpose   Purpose
}

// Session is an in-memory roll draft.
//
// Mutation helpers update the draft in place; callers work on a private
// copy obtained from the session repository and write it back when done.
// RollID targets the persisted roll for amend, confirm, and re-confirm
// purposes. ExcludedTags lists entities a reaction draft may not reuse.
type Session struct {
	Key           Key
	GuildID       string
	CharacterID   string
	SceneID       string
	RollID        int64
	Help          []tags.Entity
	Hinder        []tags.Entity
	BurnedTag     *tags.Key
	Description   string
	NarrationLink string
	Justification string
	Might         int
	IsReaction    bool
	ReactionTo    int64
	ExcludedTags  []tags.Key
	HelpPage      int
	HinderPage    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AllowedActions lists the finishing operations this session offers.
func (s Session) AllowedActions() []Action {
	return AllowedActions(s.Key.Purpose)
}

// StartSessionInput describes the context needed to open a session.
type StartSessionInput struct {
	Key         Key
	GuildID     string
	CharacterID string
	SceneID     string
}

// StartSession opens a blank session for the given creator and purpose.
func StartSession(input StartSessionInput, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}

	input.Key.CreatorID = strings.TrimSpace(input.Key.CreatorID)
	if input.Key.CreatorID == "" {
		return Session{}, ErrEmptyCreatorID
	}
	if input.Key.Purpose == PurposeUnspecified {
		return Session{}, apperrors.New(apperrors.CodeSessionPurposeInvalid, "session purpose is required")
	}
	input.GuildID = strings.TrimSpace(input.GuildID)
	if input.GuildID == "" {
		return Session{}, ErrEmptyGuildID
	}
	input.CharacterID = strings.TrimSpace(input.CharacterID)
	if input.CharacterID == "" {
		return Session{}, ErrEmptyCharacterID
	}

	createdAt := now().UTC()
	return Session{
		Key:         input.Key,
		GuildID:     input.GuildID,
		CharacterID: input.CharacterID,
		SceneID:     strings.TrimSpace(input.SceneID),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// SeedFromRoll opens a session pre-filled with a persisted roll's draft
// content, for flows that edit the roll and commit it back.
func SeedFromRoll(key Key, roll rolldomain.Roll, now func() time.Time) (Session, error) {
	session, err := StartSession(StartSessionInput{
		Key:         key,
		GuildID:     roll.GuildID,
		CharacterID: roll.CharacterID,
		SceneID:     roll.SceneID,
	}, now)
	if err != nil {
		return Session{}, err
	}

	session.RollID = roll.ID
	session.Help = tags.CloneEntities(roll.Help)
	session.Hinder = tags.CloneEntities(roll.Hinder)
	if roll.BurnedTag != nil {
		burned := *roll.BurnedTag
		session.BurnedTag = &burned
	}
	session.Description = roll.Description
	session.NarrationLink = roll.NarrationLink
	session.Justification = roll.Justification
	session.Might = roll.Might
	session.IsReaction = roll.IsReaction
	session.ReactionTo = roll.ReactionTo
	return session, nil
}

// SeedReaction opens a session for a roll reacting to an executed roll.
// The original roll's help and hinder entities are excluded from reuse.
func SeedReaction(input StartSessionInput, original rolldomain.Roll, now func() time.Time) (Session, error) {
	session, err := StartSession(input, now)
	if err != nil {
		return Session{}, err
	}

	session.IsReaction = true
	session.ReactionTo = original.ID
	for _, entity := range original.Help {
		session.ExcludedTags = append(session.ExcludedTags, entity.Key())
	}
	for _, entity := range original.Hinder {
		session.ExcludedTags = append(session.ExcludedTags, entity.Key())
	}
	return session, nil
}

// excluded reports whether a reaction draft bans the key.
func (s Session) excluded(key tags.Key) bool {
	for _, banned := range s.ExcludedTags {
		if banned == key {
			return true
		}
	}
	return false
}

// AddHelp adds a help entity. Adding an entity whose key is already
// present updates its attribution instead of duplicating the entry.
func AddHelp(session Session, entity tags.Entity) (Session, error) {
	if session.excluded(entity.Key()) {
		return Session{}, reactionReuseError(entity)
	}
	session.Help = tags.AddEntity(session.Help, entity)
	return session, nil
}

// RemoveHelp removes a help entity. Removing the burned entity also
// clears the burn mark.
func RemoveHelp(session Session, key tags.Key) Session {
	session.Help = tags.RemoveKey(session.Help, key)
	if session.BurnedTag != nil && *session.BurnedTag == key {
		session.BurnedTag = nil
	}
	return session
}

// AddHinder adds a hinder entity.
func AddHinder(session Session, entity tags.Entity) (Session, error) {
	if session.excluded(entity.Key()) {
		return Session{}, reactionReuseError(entity)
	}
	session.Hinder = tags.AddEntity(session.Hinder, entity)
	return session, nil
}

// RemoveHinder removes a hinder entity.
func RemoveHinder(session Session, key tags.Key) Session {
	session.Hinder = tags.RemoveKey(session.Hinder, key)
	return session
}

// ReplaceHelpPage replaces the help entities that were visible on one
// picker page with a new selection. Entities selected on other pages are
// preserved.
func ReplaceHelpPage(session Session, visible []tags.Key, selected []tags.Entity) (Session, error) {
	for _, key := range visible {
		session = RemoveHelp(session, key)
	}
	for _, entity := range selected {
		updated, err := AddHelp(session, entity)
		if err != nil {
			return Session{}, err
		}
		session = updated
	}
	return session, nil
}

// ReplaceHinderPage replaces the hinder entities that were visible on one
// picker page with a new selection.
func ReplaceHinderPage(session Session, visible []tags.Key, selected []tags.Entity) (Session, error) {
	for _, key := range visible {
		session = RemoveHinder(session, key)
	}
	for _, entity := range selected {
		updated, err := AddHinder(session, entity)
		if err != nil {
			return Session{}, err
		}
		session = updated
	}
	return session, nil
}

// SetBurned marks the help entity with the given key as burned, replacing
// any previous burn mark. Burning a key absent from the help set is a
// no-op.
func SetBurned(session Session, key tags.Key) Session {
	if !tags.ContainsKey(session.Help, key) {
		return session
	}
	burned := key
	session.BurnedTag = &burned
	return session
}

// ClearBurned removes the burn mark.
func ClearBurned(session Session) Session {
	session.BurnedTag = nil
	return session
}

// SetMight applies a might modifier. Out-of-range values are rejected,
// not clamped.
func SetMight(session Session, might int) (Session, error) {
	if might < mist.MightMin || might > mist.MightMax {
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeMightOutOfRange,
			fmt.Sprintf("might %d is out of range", might),
			map[string]string{
				"Might": strconv.Itoa(might),
				"Min":   strconv.Itoa(mist.MightMin),
				"Max":   strconv.Itoa(mist.MightMax),
			},
		)
	}
	session.Might = might
	return session, nil
}

// SetHelpAttribution records which character contributed an existing help
// entity. Keys absent from the help set are ignored.
func SetHelpAttribution(session Session, key tags.Key, characterID string) Session {
	for i := range session.Help {
		if session.Help[i].Key() == key {
			session.Help[i].CharacterID = characterID
		}
	}
	return session
}

// DraftContent converts the session into the draft fields persisted on a
// roll.
func DraftContent(session Session) rolldomain.CreateRollInput {
	var burned *tags.Key
	if session.BurnedTag != nil {
		key := *session.BurnedTag
		burned = &key
	}
	return rolldomain.CreateRollInput{
		GuildID:       session.GuildID,
		CreatorID:     session.Key.CreatorID,
		CharacterID:   session.CharacterID,
		SceneID:       session.SceneID,
		Description:   session.Description,
		NarrationLink: session.NarrationLink,
		Justification: session.Justification,
		Might:         session.Might,
		Help:          tags.CloneEntities(session.Help),
		Hinder:        tags.CloneEntities(session.Hinder),
		BurnedTag:     burned,
		IsReaction:    session.IsReaction,
		ReactionTo:    session.ReactionTo,
	}
}

func reactionReuseError(entity tags.Entity) error {
	return apperrors.WithMetadata(
		apperrors.CodeTagReactionReuse,
		fmt.Sprintf("entity %s/%s was part of the roll being reacted to", entity.Source, entity.ParentID),
		map[string]string{"Source": entity.Source.String(), "ParentID": entity.ParentID},
	)
}
