// Package domain defines the persisted roll aggregate and its lifecycle.
//
// A roll moves through Proposed, Confirmed, and Executed. Proposed rolls
// await narrator review, Confirmed rolls carry a narrator sign-off, and
// Executed rolls hold the dice trace and accept no further edits.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	"github.com/louisbranch/mist-engine/internal/tags"
)

var (
	// ErrEmptyGuildID indicates a missing guild scope.
	ErrEmptyGuildID = apperrors.New(apperrors.CodeRollEmptyGuildID, "guild id is required")
	// ErrEmptyCreatorID indicates a missing roll creator.
	ErrEmptyCreatorID = apperrors.New(apperrors.CodeRollEmptyCreatorID, "creator id is required")
)

// Status describes the lifecycle state of a roll.
type Status int

const (
	// StatusUnspecified represents an invalid roll status value.
	StatusUnspecified Status = iota
	// StatusProposed indicates the roll awaits narrator review.
	StatusProposed
	// StatusConfirmed indicates a narrator signed off on the roll.
	StatusConfirmed
	// StatusExecuted indicates the dice were thrown. Terminal.
	StatusExecuted
)

// String returns the storage label for the status.
func (s Status) String() string {
	switch s {
	case StatusProposed:
		return "proposed"
	case StatusConfirmed:
		return "confirmed"
	case StatusExecuted:
		return "executed"
	default:
		return "unspecified"
	}
}

// ParseStatus maps a storage label back to its Status.
func ParseStatus(value string) Status {
	switch value {
	case "proposed":
		return StatusProposed
	case "confirmed":
		return StatusConfirmed
	case "executed":
		return StatusExecuted
	default:
		return StatusUnspecified
	}
}

// Action identifies a lifecycle transition applied to a roll.
type Action int

const (
	// ActionUnspecified represents an invalid action value.
	ActionUnspecified Action = iota
	// ActionConfirm moves a roll to confirmed. On an already confirmed
	// roll it overwrites the previous sign-off.
	ActionConfirm
	// ActionAmend reopens a roll for creator edits.
	ActionAmend
	// ActionExecute throws the dice on a confirmed roll.
	ActionExecute
)

// String returns the label used in transition error messages.
func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "confirm"
	case ActionAmend:
		return "amend"
	case ActionExecute:
		return "execute"
	default:
		return "unspecified"
	}
}

// Result captures the execution trace recorded when the dice are thrown.
type Result struct {
	Die1           int
	Die2           int
	Power          int
	Total          int
	Outcome        mist.Outcome
	SpendablePower int
	ExecutedAt     time.Time
}

// Roll is a persisted roll record.
//
// Help and Hinder are sets keyed by entity identity; BurnedTag, when set,
// references an entity present in Help. ReactionTo is the guild-scoped id
// of the roll being reacted to, zero when the roll is not a reaction.
type Roll struct {
	ID             int64
	GuildID        string
	CreatorID      string
	CharacterID    string
	SceneID        string
	Description    string
	NarrationLink  string
	Justification  string
	Might          int
	Status         Status
	ConfirmedBy    string
	Help           []tags.Entity
	Hinder         []tags.Entity
	BurnedTag      *tags.Key
	IsReaction     bool
	ReactionTo     int64
	Strategy       mist.Strategy
	Result         *Result
	PurgedTagCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateRollInput describes the draft content persisted on submit.
type CreateRollInput struct {
	GuildID       string
	CreatorID     string
	CharacterID   string
	SceneID       string
	Description   string
	NarrationLink string
	Justification string
	Might         int
	Help          []tags.Entity
	Hinder        []tags.Entity
	BurnedTag     *tags.Key
	IsReaction    bool
	ReactionTo    int64
}

// CreateRoll builds a new proposed roll from submitted draft content.
// The store assigns the guild-scoped sequential id on insert.
func CreateRoll(input CreateRollInput, now func() time.Time) (Roll, error) {
	if now == nil {
		now = time.Now
	}

	input.GuildID = strings.TrimSpace(input.GuildID)
	if input.GuildID == "" {
		return Roll{}, ErrEmptyGuildID
	}
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	if input.CreatorID == "" {
		return Roll{}, ErrEmptyCreatorID
	}

	help := tags.CloneEntities(input.Help)
	hinder := tags.CloneEntities(input.Hinder)
	burned := normalizeBurn(help, input.BurnedTag)

	createdAt := now().UTC()
	return Roll{
		GuildID:       input.GuildID,
		CreatorID:     input.CreatorID,
		CharacterID:   input.CharacterID,
		SceneID:       input.SceneID,
		Description:   input.Description,
		NarrationLink: input.NarrationLink,
		Justification: input.Justification,
		Might:         input.Might,
		Status:        StatusProposed,
		Help:          help,
		Hinder:        hinder,
		BurnedTag:     burned,
		IsReaction:    input.IsReaction,
		ReactionTo:    input.ReactionTo,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}

// normalizeBurn drops a burn mark that no longer references a help entity.
func normalizeBurn(help []tags.Entity, burned *tags.Key) *tags.Key {
	if burned == nil || !tags.ContainsKey(help, *burned) {
		return nil
	}
	key := *burned
	return &key
}

// CanAct reports whether an actor may apply the action to the roll.
// Creators may apply any action to their own rolls; narrator rights
// additionally unlock confirm transitions on other players' rolls.
func CanAct(roll Roll, actorID string, action Action, isNarrator bool) bool {
	if actorID != "" && actorID == roll.CreatorID {
		return true
	}
	if action == ActionConfirm {
		return isNarrator
	}
	return false
}

// PermissionError reports that an actor lacks rights for an action.
func PermissionError(action string) error {
	return apperrors.WithMetadata(
		apperrors.CodePermissionDenied,
		fmt.Sprintf("actor may not %s this roll", action),
		map[string]string{"Action": action},
	)
}

// ReconfirmError reports a confirm attempt on an already confirmed roll
// without the explicit overwrite acknowledgement.
func ReconfirmError(confirmedBy string) error {
	return apperrors.WithMetadata(
		apperrors.CodeReconfirmUnacked,
		fmt.Sprintf("roll is already confirmed by %s", confirmedBy),
		map[string]string{"ConfirmedBy": confirmedBy},
	)
}

// Transition validates an action against the roll's current status.
func Transition(roll Roll, action Action) error {
	if !isTransitionAllowed(roll.Status, action) {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidTransition,
			fmt.Sprintf("cannot %s a roll in status %s", action, roll.Status),
			map[string]string{"Action": action.String(), "Status": roll.Status.String()},
		)
	}
	return nil
}

// isTransitionAllowed reports whether an action applies in the given status.
func isTransitionAllowed(from Status, action Action) bool {
	switch from {
	case StatusProposed:
		return action == ActionConfirm || action == ActionAmend
	case StatusConfirmed:
		return action == ActionConfirm || action == ActionAmend || action == ActionExecute
	default:
		return false
	}
}

// ReplaceContent overwrites the editable draft fields of a roll with the
// given input. Identity, status, and the execution trace are untouched.
func ReplaceContent(roll Roll, input CreateRollInput) Roll {
	updated := roll
	updated.CharacterID = input.CharacterID
	updated.SceneID = input.SceneID
	updated.Description = input.Description
	updated.NarrationLink = input.NarrationLink
	updated.Justification = input.Justification
	updated.Might = input.Might
	updated.Help = tags.CloneEntities(input.Help)
	updated.Hinder = tags.CloneEntities(input.Hinder)
	updated.BurnedTag = normalizeBurn(updated.Help, input.BurnedTag)
	return updated
}

// Confirm marks the roll as signed off by the given narrator.
func Confirm(roll Roll, confirmedBy string, now func() time.Time) (Roll, error) {
	if now == nil {
		now = time.Now
	}
	if err := Transition(roll, ActionConfirm); err != nil {
		return Roll{}, err
	}
	updated := roll
	updated.Status = StatusConfirmed
	updated.ConfirmedBy = confirmedBy
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// Amend reopens the roll for creator edits. A confirmed roll loses its
// narrator sign-off and returns to proposed.
func Amend(roll Roll, now func() time.Time) (Roll, error) {
	if now == nil {
		now = time.Now
	}
	if err := Transition(roll, ActionAmend); err != nil {
		return Roll{}, err
	}
	updated := roll
	updated.Status = StatusProposed
	updated.ConfirmedBy = ""
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// Execute records the dice trace and seals the roll.
func Execute(roll Roll, strategy mist.Strategy, result Result, now func() time.Time) (Roll, error) {
	if now == nil {
		now = time.Now
	}
	if err := Transition(roll, ActionExecute); err != nil {
		return Roll{}, err
	}
	updated := roll
	updated.Status = StatusExecuted
	updated.Strategy = strategy
	updated.Result = &result
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// PurgeInvalid removes the given entities from the roll's help and hinder
// sets and clears a burn mark that pointed at a removed entity. It returns
// the updated roll and the number of entries removed.
func PurgeInvalid(roll Roll, invalid []tags.Entity) (Roll, int) {
	if len(invalid) == 0 {
		return roll, 0
	}
	updated := roll
	removed := 0
	for _, entity := range invalid {
		key := entity.Key()
		if tags.ContainsKey(updated.Help, key) {
			updated.Help = tags.RemoveKey(updated.Help, key)
			removed++
			if updated.BurnedTag != nil && *updated.BurnedTag == key {
				updated.BurnedTag = nil
			}
		}
		if tags.ContainsKey(updated.Hinder, key) {
			updated.Hinder = tags.RemoveKey(updated.Hinder, key)
			removed++
		}
	}
	updated.PurgedTagCount += removed
	return updated, removed
}
