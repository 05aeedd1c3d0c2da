package domain

import (
	"fmt"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	rolldomain "github.com/louisbranch/mist-engine/internal/roll/domain"
	sessiondomain "github.com/louisbranch/mist-engine/internal/session/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// EntityRef is the wire form of a polymorphic tag reference.
type EntityRef struct {
	Source      string `json:"source" jsonschema:"tag source family (character_theme, character_theme_tag, character_backpack_item, character_story_tag, character_status, scene_tag, scene_status, fellowship_tag)"`
	ParentID    string `json:"parent_id" jsonschema:"identifier of the referenced theme, tag, or status"`
	CharacterID string `json:"character_id,omitempty" jsonschema:"owning character for character-owned sources"`
}

// KeyRef is the wire form of an entity identity key.
type KeyRef struct {
	Source   string `json:"source" jsonschema:"tag source family"`
	ParentID string `json:"parent_id" jsonschema:"identifier of the referenced theme, tag, or status"`
}

// SessionView represents a drafting session in tool results.
type SessionView struct {
	CreatorID     string      `json:"creator_id" jsonschema:"user holding the draft"`
	Purpose       string      `json:"purpose" jsonschema:"session flow (propose, reaction, amend, confirm, reconfirm)"`
	GuildID       string      `json:"guild_id" jsonschema:"guild the draft belongs to"`
	CharacterID   string      `json:"character_id" jsonschema:"acting character"`
	SceneID       string      `json:"scene_id,omitempty" jsonschema:"bound scene, if one was active"`
	RollID        int64       `json:"roll_id,omitempty" jsonschema:"persisted roll the session edits or reacts to"`
	Help          []EntityRef `json:"help" jsonschema:"selected helping tag references"`
	Hinder        []EntityRef `json:"hinder" jsonschema:"selected hindering tag references"`
	Burned        *KeyRef     `json:"burned,omitempty" jsonschema:"help tag marked for burning"`
	Description   string      `json:"description,omitempty" jsonschema:"action description"`
	NarrationLink string      `json:"narration_link,omitempty" jsonschema:"link to the narration message"`
	Justification string      `json:"justification,omitempty" jsonschema:"free-text justification"`
	Might         int         `json:"might" jsonschema:"flat might modifier"`
	IsReaction    bool        `json:"is_reaction,omitempty" jsonschema:"whether the draft is a reaction roll"`
	ReactionTo    int64       `json:"reaction_to,omitempty" jsonschema:"roll being reacted to"`
	Actions       []string    `json:"actions" jsonschema:"finishing operations this session offers"`
	UpdatedAt     string      `json:"updated_at" jsonschema:"RFC3339 timestamp of the last edit"`
}

// ResultView represents the dice trace of an executed roll.
type ResultView struct {
	Die1           int    `json:"die1" jsonschema:"first die"`
	Die2           int    `json:"die2" jsonschema:"second die"`
	Power          int    `json:"power" jsonschema:"power modifier added to the dice"`
	Total          int    `json:"total" jsonschema:"final total including the strategy adjustment"`
	Outcome        string `json:"outcome" jsonschema:"outcome tier (failure, mixed_success, strong_success)"`
	OutcomeLabel   string `json:"outcome_label" jsonschema:"narrative outcome label"`
	SpendablePower int    `json:"spendable_power" jsonschema:"effect budget on a success"`
	ExecutedAt     string `json:"executed_at" jsonschema:"RFC3339 timestamp of the throw"`
}

// RollView represents a persisted roll in tool results.
type RollView struct {
	ID             int64       `json:"id" jsonschema:"guild-scoped sequential roll id"`
	GuildID        string      `json:"guild_id" jsonschema:"guild the roll belongs to"`
	CreatorID      string      `json:"creator_id" jsonschema:"user who proposed the roll"`
	CharacterID    string      `json:"character_id" jsonschema:"acting character"`
	SceneID        string      `json:"scene_id,omitempty" jsonschema:"scene bound at proposal time"`
	Status         string      `json:"status" jsonschema:"roll status (proposed, confirmed, executed)"`
	ConfirmedBy    string      `json:"confirmed_by,omitempty" jsonschema:"user who signed the roll off"`
	Description    string      `json:"description,omitempty" jsonschema:"action description"`
	NarrationLink  string      `json:"narration_link,omitempty" jsonschema:"link to the narration message"`
	Justification  string      `json:"justification,omitempty" jsonschema:"free-text justification"`
	Might          int         `json:"might" jsonschema:"flat might modifier"`
	Help           []EntityRef `json:"help" jsonschema:"helping tag references"`
	Hinder         []EntityRef `json:"hinder" jsonschema:"hindering tag references"`
	Burned         *KeyRef     `json:"burned,omitempty" jsonschema:"help tag marked for burning"`
	IsReaction     bool        `json:"is_reaction,omitempty" jsonschema:"whether the roll is a reaction"`
	ReactionTo     int64       `json:"reaction_to,omitempty" jsonschema:"roll being reacted to"`
	Strategy       string      `json:"strategy,omitempty" jsonschema:"execution strategy (none, throw_caution, hedge_risks)"`
	Result         *ResultView `json:"result,omitempty" jsonschema:"dice trace, present once executed"`
	PurgedTagCount int         `json:"purged_tag_count,omitempty" jsonschema:"dangling references removed over the roll's lifetime"`
	CreatedAt      string      `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
	UpdatedAt      string      `json:"updated_at" jsonschema:"RFC3339 timestamp of the last change"`
}

// BreakdownView represents a power calculation in tool results.
type BreakdownView struct {
	HighestHelpStatus   int `json:"highest_help_status" jsonschema:"highest helping status tier"`
	HelpTagSum          int `json:"help_tag_sum" jsonschema:"sum of helping tag contributions"`
	HighestHinderStatus int `json:"highest_hinder_status" jsonschema:"highest hindering status tier"`
	HinderTagSum        int `json:"hinder_tag_sum" jsonschema:"sum of hindering tag contributions"`
	Might               int `json:"might" jsonschema:"flat might modifier"`
	Power               int `json:"power" jsonschema:"net power added to the dice"`
}

func entityRef(entity tags.Entity) EntityRef {
	return EntityRef{
		Source:      entity.Source.String(),
		ParentID:    entity.ParentID,
		CharacterID: entity.CharacterID,
	}
}

func entityRefs(entities []tags.Entity) []EntityRef {
	refs := make([]EntityRef, 0, len(entities))
	for _, entity := range entities {
		refs = append(refs, entityRef(entity))
	}
	return refs
}

func keyRef(key *tags.Key) *KeyRef {
	if key == nil {
		return nil
	}
	return &KeyRef{Source: key.Source.String(), ParentID: key.ParentID}
}

// parseEntity converts a wire reference into a tag entity, rejecting
// unknown source families.
func parseEntity(ref EntityRef) (tags.Entity, error) {
	source := tags.ParseSource(ref.Source)
	if source == tags.SourceUnspecified {
		return tags.Entity{}, apperrors.WithMetadata(
			apperrors.CodeTagSourceInvalid,
			fmt.Sprintf("unknown tag source %q", ref.Source),
			map[string]string{"Source": ref.Source},
		)
	}
	return tags.Entity{Source: source, ParentID: ref.ParentID, CharacterID: ref.CharacterID}, nil
}

func parseKey(ref KeyRef) (tags.Key, error) {
	entity, err := parseEntity(EntityRef{Source: ref.Source, ParentID: ref.ParentID})
	if err != nil {
		return tags.Key{}, err
	}
	return entity.Key(), nil
}

func sessionView(session sessiondomain.Session) SessionView {
	actions := make([]string, 0, 2)
	for _, action := range session.AllowedActions() {
		actions = append(actions, action.String())
	}
	return SessionView{
		CreatorID:     session.Key.CreatorID,
		Purpose:       session.Key.Purpose.String(),
		GuildID:       session.GuildID,
		CharacterID:   session.CharacterID,
		SceneID:       session.SceneID,
		RollID:        session.RollID,
		Help:          entityRefs(session.Help),
		Hinder:        entityRefs(session.Hinder),
		Burned:        keyRef(session.BurnedTag),
		Description:   session.Description,
		NarrationLink: session.NarrationLink,
		Justification: session.Justification,
		Might:         session.Might,
		IsReaction:    session.IsReaction,
		ReactionTo:    session.ReactionTo,
		Actions:       actions,
		UpdatedAt:     formatTime(session.UpdatedAt),
	}
}

func rollView(roll rolldomain.Roll) RollView {
	view := RollView{
		ID:             roll.ID,
		GuildID:        roll.GuildID,
		CreatorID:      roll.CreatorID,
		CharacterID:    roll.CharacterID,
		SceneID:        roll.SceneID,
		Status:         roll.Status.String(),
		ConfirmedBy:    roll.ConfirmedBy,
		Description:    roll.Description,
		NarrationLink:  roll.NarrationLink,
		Justification:  roll.Justification,
		Might:          roll.Might,
		Help:           entityRefs(roll.Help),
		Hinder:         entityRefs(roll.Hinder),
		Burned:         keyRef(roll.BurnedTag),
		IsReaction:     roll.IsReaction,
		ReactionTo:     roll.ReactionTo,
		PurgedTagCount: roll.PurgedTagCount,
		CreatedAt:      formatTime(roll.CreatedAt),
		UpdatedAt:      formatTime(roll.UpdatedAt),
	}
	if roll.Status == rolldomain.StatusExecuted {
		view.Strategy = roll.Strategy.String()
	}
	if roll.Result != nil {
		view.Result = &ResultView{
			Die1:           roll.Result.Die1,
			Die2:           roll.Result.Die2,
			Power:          roll.Result.Power,
			Total:          roll.Result.Total,
			Outcome:        roll.Result.Outcome.String(),
			OutcomeLabel:   roll.Result.Outcome.DisplayName(),
			SpendablePower: roll.Result.SpendablePower,
			ExecutedAt:     formatTime(roll.Result.ExecutedAt),
		}
	}
	return view
}

func breakdownView(breakdown mist.PowerBreakdown) BreakdownView {
	return BreakdownView{
		HighestHelpStatus:   breakdown.HighestHelpStatus,
		HelpTagSum:          breakdown.HelpTagSum,
		HighestHinderStatus: breakdown.HighestHinderStatus,
		HinderTagSum:        breakdown.HinderTagSum,
		Might:               breakdown.Might,
		Power:               breakdown.Power,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// rejection converts an engine error into a tool error carrying the
// machine-readable code and the localized user message. Unexpected
// errors pass through wrapped.
func rejection(action, locale string, err error) error {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	return fmt.Errorf("%s rejected [%s]: %s", action, code, apperrors.UserMessage(err, locale))
}

// sessionKey builds the repository key for a creator's draft of the
// given purpose.
func sessionKey(userID, purpose string) (sessiondomain.Key, error) {
	parsed, err := sessiondomain.ParsePurpose(purpose)
	if err != nil {
		return sessiondomain.Key{}, err
	}
	return sessiondomain.Key{CreatorID: userID, Purpose: parsed}, nil
}
