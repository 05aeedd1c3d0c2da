// Package service implements the persisted roll workflow: committing
// drafting sessions into rolls, narrator confirmation, amendment, and
// dice execution.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	"github.com/louisbranch/mist-engine/internal/random"
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	sessiondomain "github.com/louisbranch/mist-engine/internal/session/domain"
	"github.com/louisbranch/mist-engine/internal/session/memory"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
	"github.com/louisbranch/mist-engine/internal/telemetry"
)

// Stores groups the storage interfaces the workflow uses.
type Stores struct {
	Characters  storage.CharacterStore
	Scenes      storage.SceneStore
	Fellowships storage.FellowshipStore
	Rolls       storage.RollStore
	Narrators   storage.NarratorStore
}

// Workflow drives rolls through propose, confirm, and execute.
//
// Every transition is a read, a pure domain computation, and a single
// store write; no lock is held across store calls.
type Workflow struct {
	sessions  *memory.Repository
	stores    Stores
	telemetry *telemetry.Emitter
	clock     func() time.Time
	seedFunc  func() (int64, error)
}

// NewWorkflow creates a roll workflow with default dependencies.
func NewWorkflow(sessions *memory.Repository, stores Stores, emitter *telemetry.Emitter) *Workflow {
	return &Workflow{
		sessions:  sessions,
		stores:    stores,
		telemetry: emitter,
		clock:     time.Now,
		seedFunc:  random.NewSeed,
	}
}

func (w *Workflow) resolver() tags.Resolver {
	return tags.Resolver{
		Characters:  w.stores.Characters,
		Scenes:      w.stores.Scenes,
		Fellowships: w.stores.Fellowships,
	}
}

// Submit commits a drafting session. Propose and reaction drafts insert
// a new proposed roll; amend drafts rewrite the targeted roll and return
// it to proposed. The session is destroyed on success.
func (w *Workflow) Submit(ctx context.Context, key sessiondomain.Key) (domain.Roll, error) {
	session, err := w.load(key)
	if err != nil {
		return domain.Roll{}, err
	}
	if !key.Purpose.Allows(sessiondomain.ActionSubmit) {
		return domain.Roll{}, sessionActionError(key.Purpose, sessiondomain.ActionSubmit)
	}

	var roll domain.Roll
	if key.Purpose == sessiondomain.PurposeAmend {
		roll, err = w.submitAmend(ctx, session)
	} else {
		roll, err = w.submitNew(ctx, session)
	}
	if err != nil {
		return domain.Roll{}, err
	}

	w.sessions.Delete(key)
	return roll, nil
}

func (w *Workflow) submitNew(ctx context.Context, session sessiondomain.Session) (domain.Roll, error) {
	draft, err := domain.CreateRoll(sessiondomain.DraftContent(session), w.clock)
	if err != nil {
		return domain.Roll{}, err
	}

	record, err := w.stores.Rolls.CreateRoll(ctx, storage.FromRoll(draft))
	if err != nil {
		return domain.Roll{}, fmt.Errorf("create roll: %w", err)
	}
	roll := record.ToRoll()

	w.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventRollSubmitted,
		GuildID:   roll.GuildID,
		RollID:    roll.ID,
		ActorID:   roll.CreatorID,
		Attributes: map[string]any{
			"is_reaction":  roll.IsReaction,
			"help_count":   len(roll.Help),
			"hinder_count": len(roll.Hinder),
		},
	})
	return roll, nil
}

func (w *Workflow) submitAmend(ctx context.Context, session sessiondomain.Session) (domain.Roll, error) {
	record, err := w.stores.Rolls.GetRoll(ctx, session.GuildID, session.RollID)
	if err != nil {
		return domain.Roll{}, fmt.Errorf("load roll: %w", err)
	}
	roll := record.ToRoll()

	if !domain.CanAct(roll, session.Key.CreatorID, domain.ActionAmend, false) {
		return domain.Roll{}, domain.PermissionError("amend")
	}
	amended, err := domain.Amend(roll, w.clock)
	if err != nil {
		return domain.Roll{}, err
	}
	amended = domain.ReplaceContent(amended, sessiondomain.DraftContent(session))

	if err := w.stores.Rolls.UpdateRoll(ctx, storage.FromRoll(amended)); err != nil {
		return domain.Roll{}, fmt.Errorf("update roll: %w", err)
	}

	w.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventRollAmended,
		GuildID:   amended.GuildID,
		RollID:    amended.ID,
		ActorID:   session.Key.CreatorID,
	})
	return amended, nil
}

// Confirm commits a review session, signing the targeted roll off. Edits
// made during the review are applied and dangling tag references purged
// before the sign-off. A confirm session refuses a roll another narrator
// confirmed meanwhile; a reconfirm session carries that acknowledgement
// and overwrites the previous sign-off.
func (w *Workflow) Confirm(ctx context.Context, key sessiondomain.Key) (domain.Roll, error) {
	session, err := w.load(key)
	if err != nil {
		return domain.Roll{}, err
	}
	if !key.Purpose.Allows(sessiondomain.ActionConfirm) {
		return domain.Roll{}, sessionActionError(key.Purpose, sessiondomain.ActionConfirm)
	}

	record, err := w.stores.Rolls.GetRoll(ctx, session.GuildID, session.RollID)
	if err != nil {
		return domain.Roll{}, fmt.Errorf("load roll: %w", err)
	}
	roll := record.ToRoll()

	allowed, err := w.canConfirm(ctx, roll, key.CreatorID)
	if err != nil {
		return domain.Roll{}, err
	}
	if !allowed {
		return domain.Roll{}, domain.PermissionError("confirm")
	}
	if key.Purpose == sessiondomain.PurposeConfirm && roll.Status == domain.StatusConfirmed {
		return domain.Roll{}, domain.ReconfirmError(roll.ConfirmedBy)
	}

	roll = domain.ReplaceContent(roll, sessiondomain.DraftContent(session))
	roll, _, err = w.purge(ctx, roll, false)
	if err != nil {
		return domain.Roll{}, err
	}

	confirmed, err := domain.Confirm(roll, key.CreatorID, w.clock)
	if err != nil {
		return domain.Roll{}, err
	}
	if err := w.stores.Rolls.UpdateRoll(ctx, storage.FromRoll(confirmed)); err != nil {
		return domain.Roll{}, fmt.Errorf("update roll: %w", err)
	}

	w.sessions.Delete(key)
	w.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventRollConfirmed,
		GuildID:   confirmed.GuildID,
		RollID:    confirmed.ID,
		ActorID:   key.CreatorID,
		Attributes: map[string]any{
			"reconfirm": key.Purpose == sessiondomain.PurposeReconfirm,
		},
	})
	return confirmed, nil
}

// ExecuteRequest identifies a confirmed roll and the execution choices.
type ExecuteRequest struct {
	GuildID  string
	RollID   int64
	ActorID  string
	Strategy mist.Strategy
}

// ExecuteResult carries the sealed roll and the power breakdown behind
// its dice trace.
type ExecuteResult struct {
	Roll      domain.Roll
	Breakdown mist.PowerBreakdown
}

// Execute throws the dice on a confirmed roll. Only the roll's creator
// may execute. Dangling tag references are purged first and that purge
// persists even when a strategy gate rejects the execution afterwards.
func (w *Workflow) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	record, err := w.stores.Rolls.GetRoll(ctx, req.GuildID, req.RollID)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("load roll: %w", err)
	}
	roll := record.ToRoll()

	if !domain.CanAct(roll, req.ActorID, domain.ActionExecute, false) {
		return ExecuteResult{}, domain.PermissionError("execute")
	}
	if err := domain.Transition(roll, domain.ActionExecute); err != nil {
		return ExecuteResult{}, err
	}

	roll, resolved, err := w.purge(ctx, roll, true)
	if err != nil {
		return ExecuteResult{}, err
	}

	breakdown := mist.ComputePower(mist.PowerRequest{
		Help:   mist.BuildContributions(roll.Help, resolved.help, roll.BurnedTag),
		Hinder: mist.BuildContributions(roll.Hinder, resolved.hinder, nil),
		Might:  roll.Might,
	})

	if w.seedFunc == nil {
		return ExecuteResult{}, errors.New("seed generator is not configured")
	}
	seed, err := w.seedFunc()
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("generate seed: %w", err)
	}

	outcome, err := mist.Execute(mist.ExecutionRequest{
		Power:      breakdown.Power,
		Strategy:   req.Strategy,
		IsReaction: roll.IsReaction,
		Seed:       seed,
	})
	if err != nil {
		return ExecuteResult{}, err
	}

	executed, err := domain.Execute(roll, req.Strategy, domain.Result{
		Die1:           outcome.Die1,
		Die2:           outcome.Die2,
		Power:          outcome.Power,
		Total:          outcome.Total,
		Outcome:        outcome.Outcome,
		SpendablePower: outcome.SpendablePower,
		ExecutedAt:     w.clock().UTC(),
	}, w.clock)
	if err != nil {
		return ExecuteResult{}, err
	}

	if err := w.stores.Rolls.UpdateRoll(ctx, storage.FromRoll(executed)); err != nil {
		return ExecuteResult{}, fmt.Errorf("update roll: %w", err)
	}

	w.writeBurn(ctx, executed)

	w.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventRollExecuted,
		GuildID:   executed.GuildID,
		RollID:    executed.ID,
		ActorID:   req.ActorID,
		Attributes: map[string]any{
			"outcome":  outcome.Outcome.String(),
			"total":    outcome.Total,
			"power":    outcome.Power,
			"die1":     outcome.Die1,
			"die2":     outcome.Die2,
			"strategy": req.Strategy.String(),
		},
	})
	return ExecuteResult{Roll: executed, Breakdown: breakdown}, nil
}

// Get returns one roll by guild-scoped id.
func (w *Workflow) Get(ctx context.Context, guildID string, rollID int64) (domain.Roll, error) {
	record, err := w.stores.Rolls.GetRoll(ctx, guildID, rollID)
	if err != nil {
		return domain.Roll{}, err
	}
	return record.ToRoll(), nil
}

// List returns a filtered page of a guild's rolls.
func (w *Workflow) List(ctx context.Context, req storage.ListRollsRequest) ([]domain.Roll, string, error) {
	page, err := w.stores.Rolls.ListRolls(ctx, req)
	if err != nil {
		return nil, "", err
	}
	rolls := make([]domain.Roll, 0, len(page.Rolls))
	for _, record := range page.Rolls {
		rolls = append(rolls, record.ToRoll())
	}
	return rolls, page.NextPageToken, nil
}

// GrantNarrator records a narrator role grant for a guild member.
func (w *Workflow) GrantNarrator(ctx context.Context, guildID, userID string) error {
	return w.stores.Narrators.SetNarrator(ctx, storage.NarratorRecord{
		GuildID:   guildID,
		UserID:    userID,
		GrantedAt: w.clock().UTC(),
	})
}

// RevokeNarrator removes a narrator role grant.
func (w *Workflow) RevokeNarrator(ctx context.Context, guildID, userID string) error {
	return w.stores.Narrators.RemoveNarrator(ctx, guildID, userID)
}

// canConfirm reports whether the actor may confirm the roll: its creator
// always may, and narrator role holders may for any roll in their guild.
func (w *Workflow) canConfirm(ctx context.Context, roll domain.Roll, actorID string) (bool, error) {
	if domain.CanAct(roll, actorID, domain.ActionConfirm, false) {
		return true, nil
	}
	if w.stores.Narrators == nil {
		return false, nil
	}
	isNarrator, err := w.stores.Narrators.IsNarrator(ctx, roll.GuildID, actorID)
	if err != nil {
		return false, fmt.Errorf("check narrator role: %w", err)
	}
	return domain.CanAct(roll, actorID, domain.ActionConfirm, isNarrator), nil
}

type resolvedSets struct {
	help   map[tags.Key]tags.Resolved
	hinder map[tags.Key]tags.Resolved
}

// purge resolves the roll's tag sets and removes references whose parent
// records no longer exist. With persist set, the removal is written
// through the store immediately so the self-heal survives a later
// failure in the same interaction; otherwise the caller's pending write
// carries it.
func (w *Workflow) purge(ctx context.Context, roll domain.Roll, persist bool) (domain.Roll, resolvedSets, error) {
	resolver := w.resolver()
	help, danglingHelp, err := resolver.ResolveAll(ctx, roll.Help)
	if err != nil {
		return domain.Roll{}, resolvedSets{}, fmt.Errorf("resolve help tags: %w", err)
	}
	hinder, danglingHinder, err := resolver.ResolveAll(ctx, roll.Hinder)
	if err != nil {
		return domain.Roll{}, resolvedSets{}, fmt.Errorf("resolve hinder tags: %w", err)
	}
	sets := resolvedSets{help: help, hinder: hinder}

	dangling := append(danglingHelp, danglingHinder...)
	if len(dangling) == 0 {
		return roll, sets, nil
	}

	if persist {
		if _, err := w.stores.Rolls.DeleteInvalidTags(ctx, roll.GuildID, roll.ID, dangling, w.clock().UTC()); err != nil {
			return domain.Roll{}, resolvedSets{}, fmt.Errorf("purge invalid tags: %w", err)
		}
	}
	roll, removed := domain.PurgeInvalid(roll, dangling)

	w.emit(ctx, storage.TelemetryEvent{
		EventName: telemetry.EventTagsPurged,
		Severity:  string(telemetry.SeverityWarn),
		GuildID:   roll.GuildID,
		RollID:    roll.ID,
		Attributes: map[string]any{
			"purged": removed,
		},
	})
	return roll, sets, nil
}

// writeBurn flags the burned tag as spent on the owning character sheet.
// Failures are logged, not fatal: the roll already executed.
func (w *Workflow) writeBurn(ctx context.Context, roll domain.Roll) {
	if roll.BurnedTag == nil || w.stores.Characters == nil {
		return
	}
	entity, ok := tags.FindByKey(roll.Help, *roll.BurnedTag)
	if !ok || entity.CharacterID == "" {
		return
	}
	if err := w.stores.Characters.MarkTagsBurned(ctx, entity.CharacterID, []string{entity.ParentID}, w.clock().UTC()); err != nil {
		log.Printf("mark burned tag %s: %v", entity.ParentID, err)
	}
}

func (w *Workflow) load(key sessiondomain.Key) (sessiondomain.Session, error) {
	session, ok := w.sessions.Get(key)
	if !ok {
		return sessiondomain.Session{}, apperrors.New(apperrors.CodeSessionExpired, "session not found")
	}
	return session, nil
}

func sessionActionError(purpose sessiondomain.Purpose, action sessiondomain.Action) error {
	return apperrors.WithMetadata(
		apperrors.CodeSessionActionInvalid,
		fmt.Sprintf("%s sessions do not offer %s", purpose, action),
		map[string]string{"Purpose": purpose.String(), "Action": action.String()},
	)
}

func (w *Workflow) emit(ctx context.Context, evt storage.TelemetryEvent) {
	if err := w.telemetry.Emit(ctx, evt); err != nil {
		log.Printf("telemetry emit %s: %v", evt.EventName, err)
	}
}
