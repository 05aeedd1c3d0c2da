// Package service implements the roll drafting operations: opening
// sessions, editing tag selections, burning, and the live power preview.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	rolldomain "github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/session/domain"
	"github.com/louisbranch/mist-engine/internal/session/memory"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
	"github.com/louisbranch/mist-engine/internal/telemetry"
)

// TagPageLimit caps how many options one picker page may carry.
const TagPageLimit = 25

// Stores groups the storage interfaces the session service reads.
type Stores struct {
	Characters  storage.CharacterStore
	Scenes      storage.SceneStore
	Fellowships storage.FellowshipStore
	Rolls       storage.RollStore
	Narrators   storage.NarratorStore
}

// Service manages roll drafting sessions.
type Service struct {
	sessions  *memory.Repository
	stores    Stores
	telemetry *telemetry.Emitter
	clock     func() time.Time
}

// NewService creates a session service with default dependencies.
func NewService(sessions *memory.Repository, stores Stores, emitter *telemetry.Emitter) *Service {
	return &Service{
		sessions:  sessions,
		stores:    stores,
		telemetry: emitter,
		clock:     time.Now,
	}
}

func (s *Service) resolver() tags.Resolver {
	return tags.Resolver{
		Characters:  s.stores.Characters,
		Scenes:      s.stores.Scenes,
		Fellowships: s.stores.Fellowships,
	}
}

// StartRequest describes a session open request. RollID targets the
// persisted roll for amend, confirm, and re-confirm flows, and names the
// roll being reacted to for reaction flows.
type StartRequest struct {
	CreatorID string
	GuildID   string
	Purpose   domain.Purpose
	RollID    int64
}

// Start opens a session for the requested flow, replacing any previous
// draft held by the same creator for the same purpose.
func (s *Service) Start(ctx context.Context, req StartRequest) (domain.Session, error) {
	var session domain.Session
	var err error

	switch req.Purpose {
	case domain.PurposePropose:
		session, err = s.startPropose(ctx, req)
	case domain.PurposeReaction:
		session, err = s.startReaction(ctx, req)
	case domain.PurposeAmend, domain.PurposeConfirm, domain.PurposeReconfirm:
		session, err = s.startRollEdit(ctx, req)
	default:
		return domain.Session{}, apperrors.New(apperrors.CodeSessionPurposeInvalid, "session purpose is required")
	}
	if err != nil {
		return domain.Session{}, err
	}

	s.sessions.Put(session)
	s.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventSessionStarted,
		GuildID:   session.GuildID,
		RollID:    session.RollID,
		ActorID:   session.Key.CreatorID,
		Attributes: map[string]any{
			"purpose": session.Key.Purpose.String(),
		},
	})
	return session, nil
}

// startPropose opens a blank draft for the creator's own character, bound
// to the guild's active scene when one exists.
func (s *Service) startPropose(ctx context.Context, req StartRequest) (domain.Session, error) {
	input, err := s.draftContext(ctx, req)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.StartSession(input, s.clock)
}

// startReaction opens a draft reacting to an existing roll. The original
// roll's entities are excluded from reuse.
func (s *Service) startReaction(ctx context.Context, req StartRequest) (domain.Session, error) {
	if s.stores.Rolls == nil {
		return domain.Session{}, errors.New("roll store is not configured")
	}
	record, err := s.stores.Rolls.GetRoll(ctx, req.GuildID, req.RollID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load roll: %w", err)
	}

	input, err := s.draftContext(ctx, req)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.SeedReaction(input, record.ToRoll(), s.clock)
}

// startRollEdit opens a draft seeded from a persisted roll for the amend,
// confirm, and re-confirm flows.
func (s *Service) startRollEdit(ctx context.Context, req StartRequest) (domain.Session, error) {
	if s.stores.Rolls == nil {
		return domain.Session{}, errors.New("roll store is not configured")
	}
	record, err := s.stores.Rolls.GetRoll(ctx, req.GuildID, req.RollID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load roll: %w", err)
	}
	roll := record.ToRoll()

	switch req.Purpose {
	case domain.PurposeAmend:
		if !rolldomain.CanAct(roll, req.CreatorID, rolldomain.ActionAmend, false) {
			return domain.Session{}, rolldomain.PermissionError("amend")
		}
		if err := rolldomain.Transition(roll, rolldomain.ActionAmend); err != nil {
			return domain.Session{}, err
		}
	case domain.PurposeConfirm:
		allowed, err := s.canConfirm(ctx, roll, req.CreatorID)
		if err != nil {
			return domain.Session{}, err
		}
		if !allowed {
			return domain.Session{}, rolldomain.PermissionError("confirm")
		}
		if roll.Status == rolldomain.StatusConfirmed {
			return domain.Session{}, rolldomain.ReconfirmError(roll.ConfirmedBy)
		}
		if err := rolldomain.Transition(roll, rolldomain.ActionConfirm); err != nil {
			return domain.Session{}, err
		}
	case domain.PurposeReconfirm:
		allowed, err := s.canConfirm(ctx, roll, req.CreatorID)
		if err != nil {
			return domain.Session{}, err
		}
		if !allowed {
			return domain.Session{}, rolldomain.PermissionError("confirm")
		}
		// Re-confirming is only meaningful over an existing sign-off.
		if roll.Status != rolldomain.StatusConfirmed {
			return domain.Session{}, apperrors.WithMetadata(
				apperrors.CodeInvalidTransition,
				fmt.Sprintf("cannot reconfirm a roll in status %s", roll.Status),
				map[string]string{"Action": "reconfirm", "Status": roll.Status.String()},
			)
		}
	}

	key := domain.Key{CreatorID: req.CreatorID, Purpose: req.Purpose}
	return domain.SeedFromRoll(key, roll, s.clock)
}

// draftContext resolves the creator's character and the guild's active
// scene for a fresh draft.
func (s *Service) draftContext(ctx context.Context, req StartRequest) (domain.StartSessionInput, error) {
	if s.stores.Characters == nil {
		return domain.StartSessionInput{}, errors.New("character store is not configured")
	}
	character, err := s.stores.Characters.GetCharacterByOwner(ctx, req.GuildID, req.CreatorID)
	if err != nil {
		return domain.StartSessionInput{}, fmt.Errorf("load character: %w", err)
	}

	input := domain.StartSessionInput{
		Key:         domain.Key{CreatorID: req.CreatorID, Purpose: req.Purpose},
		GuildID:     req.GuildID,
		CharacterID: character.ID,
	}

	if s.stores.Scenes != nil {
		scene, err := s.stores.Scenes.GetActiveScene(ctx, req.GuildID)
		switch {
		case err == nil:
			input.SceneID = scene.ID
		case errors.Is(err, storage.ErrNotFound):
			// No active scene; the draft proceeds without one.
		default:
			return domain.StartSessionInput{}, fmt.Errorf("load active scene: %w", err)
		}
	}
	return input, nil
}

// canConfirm reports whether the actor may confirm the roll: its creator
// always may, and narrator role holders may for any roll in their guild.
func (s *Service) canConfirm(ctx context.Context, roll rolldomain.Roll, actorID string) (bool, error) {
	if rolldomain.CanAct(roll, actorID, rolldomain.ActionConfirm, false) {
		return true, nil
	}
	if s.stores.Narrators == nil {
		return false, nil
	}
	isNarrator, err := s.stores.Narrators.IsNarrator(ctx, roll.GuildID, actorID)
	if err != nil {
		return false, fmt.Errorf("check narrator role: %w", err)
	}
	return rolldomain.CanAct(roll, actorID, rolldomain.ActionConfirm, isNarrator), nil
}

// Get returns the live session stored under the key.
func (s *Service) Get(ctx context.Context, key domain.Key) (domain.Session, error) {
	return s.load(key)
}

// PageSelection replaces the entities visible on one picker page with a
// new selection for that page.
type PageSelection struct {
	Key      domain.Key
	Page     int
	Visible  []tags.Key
	Selected []tags.Entity
}

// SetHelpPage applies a page-scoped help selection.
func (s *Service) SetHelpPage(ctx context.Context, req PageSelection) (domain.Session, error) {
	session, err := s.load(req.Key)
	if err != nil {
		return domain.Session{}, err
	}
	if err := validatePage(req); err != nil {
		return domain.Session{}, err
	}
	session, err = domain.ReplaceHelpPage(session, req.Visible, req.Selected)
	if err != nil {
		return domain.Session{}, err
	}
	session.HelpPage = req.Page
	return s.save(session), nil
}

// SetHinderPage applies a page-scoped hinder selection.
func (s *Service) SetHinderPage(ctx context.Context, req PageSelection) (domain.Session, error) {
	session, err := s.load(req.Key)
	if err != nil {
		return domain.Session{}, err
	}
	if err := validatePage(req); err != nil {
		return domain.Session{}, err
	}
	session, err = domain.ReplaceHinderPage(session, req.Visible, req.Selected)
	if err != nil {
		return domain.Session{}, err
	}
	session.HinderPage = req.Page
	return s.save(session), nil
}

func validatePage(req PageSelection) error {
	if len(req.Visible) > TagPageLimit {
		return apperrors.WithMetadata(
			apperrors.CodeTagPageTooLarge,
			fmt.Sprintf("page holds %d options, limit is %d", len(req.Visible), TagPageLimit),
			map[string]string{"Max": strconv.Itoa(TagPageLimit)},
		)
	}
	for _, entity := range req.Selected {
		if entity.Source == tags.SourceUnspecified {
			return apperrors.New(apperrors.CodeTagSourceInvalid, "tag source is required")
		}
	}
	return nil
}

// ToggleHelp adds the entity to the help set, or removes it when already
// selected.
func (s *Service) ToggleHelp(ctx context.Context, key domain.Key, entity tags.Entity) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	if entity.Source == tags.SourceUnspecified {
		return domain.Session{}, apperrors.New(apperrors.CodeTagSourceInvalid, "tag source is required")
	}
	if tags.ContainsKey(session.Help, entity.Key()) {
		session = domain.RemoveHelp(session, entity.Key())
	} else {
		session, err = domain.AddHelp(session, entity)
		if err != nil {
			return domain.Session{}, err
		}
	}
	return s.save(session), nil
}

// ToggleHinder adds the entity to the hinder set, or removes it when
// already selected.
func (s *Service) ToggleHinder(ctx context.Context, key domain.Key, entity tags.Entity) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	if entity.Source == tags.SourceUnspecified {
		return domain.Session{}, apperrors.New(apperrors.CodeTagSourceInvalid, "tag source is required")
	}
	if tags.ContainsKey(session.Hinder, entity.Key()) {
		session = domain.RemoveHinder(session, entity.Key())
	} else {
		session, err = domain.AddHinder(session, entity)
		if err != nil {
			return domain.Session{}, err
		}
	}
	return s.save(session), nil
}

// Burn marks a selected help tag as burned for a +3 contribution. Only
// character-owned tag-kind entities burn; a key absent from the help set
// is a no-op.
func (s *Service) Burn(ctx context.Context, key domain.Key, tagKey tags.Key) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	entity, ok := tags.FindByKey(session.Help, tagKey)
	if !ok {
		return session, nil
	}

	resolved, ok, err := s.resolver().Resolve(ctx, entity)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve burn target: %w", err)
	}
	if !ok {
		// Dangling reference; the purge pass will drop it.
		return session, nil
	}
	if !resolved.Burnable {
		return domain.Session{}, apperrors.WithMetadata(
			apperrors.CodeTagNotBurnable,
			fmt.Sprintf("%s cannot be burned", resolved.Name),
			map[string]string{"Name": resolved.Name, "Kind": resolved.Kind.String()},
		)
	}

	session = domain.SetBurned(session, tagKey)
	return s.save(session), nil
}

// ClearBurn removes the burn mark.
func (s *Service) ClearBurn(ctx context.Context, key domain.Key) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	session = domain.ClearBurned(session)
	return s.save(session), nil
}

// SetMight applies a might modifier after range validation.
func (s *Service) SetMight(ctx context.Context, key domain.Key, might int) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	session, err = domain.SetMight(session, might)
	if err != nil {
		return domain.Session{}, err
	}
	return s.save(session), nil
}

// NarrativeRequest carries the free-text fields of a draft.
type NarrativeRequest struct {
	Key           domain.Key
	Description   string
	NarrationLink string
	Justification string
}

// SetNarrative replaces the draft's free-text fields.
func (s *Service) SetNarrative(ctx context.Context, req NarrativeRequest) (domain.Session, error) {
	session, err := s.load(req.Key)
	if err != nil {
		return domain.Session{}, err
	}
	session.Description = req.Description
	session.NarrationLink = req.NarrationLink
	session.Justification = req.Justification
	return s.save(session), nil
}

// SetHelpFromCharacter attributes an existing help entity to a teammate's
// character. The teammate must exist in the session's guild.
func (s *Service) SetHelpFromCharacter(ctx context.Context, key domain.Key, tagKey tags.Key, characterID string) (domain.Session, error) {
	session, err := s.load(key)
	if err != nil {
		return domain.Session{}, err
	}
	if s.stores.Characters == nil {
		return domain.Session{}, errors.New("character store is not configured")
	}
	if _, err := s.stores.Characters.GetCharacter(ctx, session.GuildID, characterID); err != nil {
		return domain.Session{}, fmt.Errorf("load helping character: %w", err)
	}
	session = domain.SetHelpAttribution(session, tagKey, characterID)
	return s.save(session), nil
}

// PreviewPower resolves the draft's current selections and computes the
// live power breakdown. Dangling references are skipped, not errors.
func (s *Service) PreviewPower(ctx context.Context, key domain.Key) (mist.PowerBreakdown, error) {
	session, err := s.load(key)
	if err != nil {
		return mist.PowerBreakdown{}, err
	}

	resolver := s.resolver()
	resolvedHelp, _, err := resolver.ResolveAll(ctx, session.Help)
	if err != nil {
		return mist.PowerBreakdown{}, fmt.Errorf("resolve help tags: %w", err)
	}
	resolvedHinder, _, err := resolver.ResolveAll(ctx, session.Hinder)
	if err != nil {
		return mist.PowerBreakdown{}, fmt.Errorf("resolve hinder tags: %w", err)
	}

	return mist.ComputePower(mist.PowerRequest{
		Help:   mist.BuildContributions(session.Help, resolvedHelp, session.BurnedTag),
		Hinder: mist.BuildContributions(session.Hinder, resolvedHinder, nil),
		Might:  session.Might,
	}), nil
}

// Cancel discards the draft. Cancelling an absent session is a no-op so
// stale cancel actions stay harmless.
func (s *Service) Cancel(ctx context.Context, key domain.Key) error {
	session, ok := s.sessions.Get(key)
	if !ok {
		return nil
	}
	s.sessions.Delete(key)
	s.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventSessionCancelled,
		GuildID:   session.GuildID,
		RollID:    session.RollID,
		ActorID:   key.CreatorID,
		Attributes: map[string]any{
			"purpose": key.Purpose.String(),
		},
	})
	return nil
}

// TagOption is a selectable tag reference with display data.
type TagOption struct {
	Entity   tags.Entity
	Name     string
	Kind     tags.Kind
	Burnable bool
	Burned   bool
}

// TagOptionsRequest asks for the selectable options of a draft.
// CharacterID switches the listing to a teammate's sheet for the help
// from another character flow; empty means the session's own character.
type TagOptionsRequest struct {
	Key         domain.Key
	CharacterID string
}

// ListTagOptions returns every entity the draft may currently select.
// For the session's own character the listing spans the character sheet,
// the bound scene, and the guild fellowship; for a teammate it covers
// their sheet only.
func (s *Service) ListTagOptions(ctx context.Context, req TagOptionsRequest) ([]TagOption, error) {
	session, err := s.load(req.Key)
	if err != nil {
		return nil, err
	}
	if s.stores.Characters == nil {
		return nil, errors.New("character store is not configured")
	}

	characterID := req.CharacterID
	if characterID == "" {
		characterID = session.CharacterID
	}
	character, err := s.stores.Characters.GetCharacter(ctx, session.GuildID, characterID)
	if err != nil {
		return nil, fmt.Errorf("load character: %w", err)
	}

	options := characterOptions(character)
	if characterID != session.CharacterID {
		return options, nil
	}

	if session.SceneID != "" && s.stores.Scenes != nil {
		scene, err := s.stores.Scenes.GetScene(ctx, session.SceneID)
		switch {
		case err == nil:
			options = append(options, sceneOptions(scene)...)
		case errors.Is(err, storage.ErrNotFound):
			// Scene deleted mid-draft; its options simply disappear.
		default:
			return nil, fmt.Errorf("load scene: %w", err)
		}
	}

	if s.stores.Fellowships != nil {
		fellowship, err := s.stores.Fellowships.GetFellowship(ctx, session.GuildID)
		switch {
		case err == nil:
			options = append(options, fellowshipOptions(fellowship)...)
		case errors.Is(err, storage.ErrNotFound):
			// No fellowship sheet for this guild.
		default:
			return nil, fmt.Errorf("load fellowship: %w", err)
		}
	}

	return options, nil
}

func characterOptions(character storage.CharacterRecord) []TagOption {
	var options []TagOption
	for _, theme := range character.Themes {
		options = append(options, TagOption{
			Entity:   tags.Entity{Source: tags.SourceCharacterTheme, ParentID: theme.ID, CharacterID: character.ID},
			Name:     theme.Name,
			Kind:     tags.KindTag,
			Burnable: true,
			Burned:   theme.Burned,
		})
		for _, tag := range theme.Tags {
			options = append(options, tagOption(tags.SourceCharacterThemeTag, tag, character.ID))
		}
	}
	for _, tag := range character.Backpack {
		options = append(options, tagOption(tags.SourceCharacterBackpackItem, tag, character.ID))
	}
	for _, tag := range character.StoryTags {
		options = append(options, tagOption(tags.SourceCharacterStoryTag, tag, character.ID))
	}
	for _, status := range character.Statuses {
		options = append(options, TagOption{
			Entity: tags.Entity{Source: tags.SourceCharacterStatus, ParentID: status.ID, CharacterID: character.ID},
			Name:   status.Name,
			Kind:   tags.KindStatus,
		})
	}
	return options
}

func sceneOptions(scene storage.SceneRecord) []TagOption {
	var options []TagOption
	for _, tag := range scene.Tags {
		options = append(options, TagOption{
			Entity: tags.Entity{Source: tags.SourceSceneTag, ParentID: tag.ID},
			Name:   tag.Name,
			Kind:   tagKind(tag),
		})
	}
	for _, status := range scene.Statuses {
		options = append(options, TagOption{
			Entity: tags.Entity{Source: tags.SourceSceneStatus, ParentID: status.ID},
			Name:   status.Name,
			Kind:   tags.KindStatus,
		})
	}
	return options
}

func fellowshipOptions(fellowship storage.FellowshipRecord) []TagOption {
	var options []TagOption
	for _, tag := range fellowship.Tags {
		options = append(options, TagOption{
			Entity: tags.Entity{Source: tags.SourceFellowshipTag, ParentID: tag.ID},
			Name:   tag.Name,
			Kind:   tagKind(tag),
		})
	}
	return options
}

// tagOption builds a character-owned option; only these are burnable.
func tagOption(source tags.Source, tag storage.TagRecord, characterID string) TagOption {
	return TagOption{
		Entity:   tags.Entity{Source: source, ParentID: tag.ID, CharacterID: characterID},
		Name:     tag.Name,
		Kind:     tagKind(tag),
		Burnable: tagKind(tag) == tags.KindTag,
		Burned:   tag.Burned,
	}
}

func tagKind(tag storage.TagRecord) tags.Kind {
	if tag.Weakness {
		return tags.KindWeakness
	}
	return tags.KindTag
}

func (s *Service) load(key domain.Key) (domain.Session, error) {
	session, ok := s.sessions.Get(key)
	if !ok {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionExpired, "session not found")
	}
	return session, nil
}

func (s *Service) save(session domain.Session) domain.Session {
	session.UpdatedAt = s.clock().UTC()
	s.sessions.Put(session)
	return session
}

func (s *Service) emit(ctx context.Context, evt storage.TelemetryEvent) {
	if err := s.telemetry.Emit(ctx, evt); err != nil {
		log.Printf("telemetry emit %s: %v", evt.EventName, err)
	}
}
