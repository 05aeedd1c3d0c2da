package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	sessiondomain "github.com/louisbranch/mist-engine/internal/session/domain"
	"github.com/louisbranch/mist-engine/internal/session/memory"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
	"github.com/louisbranch/mist-engine/internal/telemetry"
)

type fakeCharacterStore struct {
	character    storage.CharacterRecord
	characterErr error
	tagData      map[tags.Key]tags.TagData
	burnedBy     string
	burnedIDs    []string
}

func (f *fakeCharacterStore) PutCharacter(ctx context.Context, record storage.CharacterRecord) error {
	return nil
}

func (f *fakeCharacterStore) GetCharacter(ctx context.Context, guildID, characterID string) (storage.CharacterRecord, error) {
	return f.character, f.characterErr
}

func (f *fakeCharacterStore) GetCharacterByOwner(ctx context.Context, guildID, ownerID string) (storage.CharacterRecord, error) {
	return f.character, f.characterErr
}

func (f *fakeCharacterStore) ListCharacters(ctx context.Context, guildID string, pageSize int, pageToken string) (storage.CharacterPage, error) {
	return storage.CharacterPage{}, nil
}

func (f *fakeCharacterStore) MarkTagsBurned(ctx context.Context, characterID string, tagIDs []string, updatedAt time.Time) error {
	f.burnedBy = characterID
	f.burnedIDs = append(f.burnedIDs, tagIDs...)
	return nil
}

func (f *fakeCharacterStore) CharacterTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	data, ok := f.tagData[entity.Key()]
	return data, ok, nil
}

type fakeSceneStore struct {
	tagData map[tags.Key]tags.TagData
}

func (f *fakeSceneStore) PutScene(ctx context.Context, record storage.SceneRecord) error {
	return nil
}

func (f *fakeSceneStore) GetScene(ctx context.Context, sceneID string) (storage.SceneRecord, error) {
	return storage.SceneRecord{}, storage.ErrNotFound
}

func (f *fakeSceneStore) GetActiveScene(ctx context.Context, guildID string) (storage.SceneRecord, error) {
	return storage.SceneRecord{}, storage.ErrNotFound
}

func (f *fakeSceneStore) SceneTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	data, ok := f.tagData[entity.Key()]
	return data, ok, nil
}

type fakeFellowshipStore struct{}

func (f *fakeFellowshipStore) PutFellowship(ctx context.Context, record storage.FellowshipRecord) error {
	return nil
}

func (f *fakeFellowshipStore) GetFellowship(ctx context.Context, guildID string) (storage.FellowshipRecord, error) {
	return storage.FellowshipRecord{}, storage.ErrNotFound
}

func (f *fakeFellowshipStore) FellowshipTagData(ctx context.Context, entity tags.Entity) (tags.TagData, bool, error) {
	return tags.TagData{}, false, nil
}

// fakeRollStore keeps records in memory and mimics the real store's
// sequential id assignment and targeted tag deletion.
type fakeRollStore struct {
	rolls   map[int64]storage.RollRecord
	nextID  int64
	deleted []tags.Entity
	listReq storage.ListRollsRequest
	page    storage.RollPage
	listErr error
}

func newFakeRollStore() *fakeRollStore {
	return &fakeRollStore{rolls: make(map[int64]storage.RollRecord), nextID: 1}
}

func (f *fakeRollStore) CreateRoll(ctx context.Context, record storage.RollRecord) (storage.RollRecord, error) {
	record.ID = f.nextID
	f.nextID++
	f.rolls[record.ID] = record
	return record, nil
}

func (f *fakeRollStore) GetRoll(ctx context.Context, guildID string, rollID int64) (storage.RollRecord, error) {
	record, ok := f.rolls[rollID]
	if !ok {
		return storage.RollRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeRollStore) UpdateRoll(ctx context.Context, record storage.RollRecord) error {
	f.rolls[record.ID] = record
	return nil
}

func (f *fakeRollStore) DeleteInvalidTags(ctx context.Context, guildID string, rollID int64, invalid []tags.Entity, updatedAt time.Time) (int, error) {
	f.deleted = append(f.deleted, invalid...)
	record, ok := f.rolls[rollID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	purged, removed := domain.PurgeInvalid(record.ToRoll(), invalid)
	purged.UpdatedAt = updatedAt
	f.rolls[rollID] = storage.FromRoll(purged)
	return removed, nil
}

func (f *fakeRollStore) ListRolls(ctx context.Context, req storage.ListRollsRequest) (storage.RollPage, error) {
	f.listReq = req
	return f.page, f.listErr
}

type fakeNarratorStore struct {
	narrator bool
	err      error
	granted  []storage.NarratorRecord
	removed  []string
}

func (f *fakeNarratorStore) SetNarrator(ctx context.Context, record storage.NarratorRecord) error {
	f.granted = append(f.granted, record)
	return nil
}

func (f *fakeNarratorStore) RemoveNarrator(ctx context.Context, guildID, userID string) error {
	f.removed = append(f.removed, userID)
	return nil
}

func (f *fakeNarratorStore) IsNarrator(ctx context.Context, guildID, userID string) (bool, error) {
	return f.narrator, f.err
}

type fakeTelemetryStore struct {
	events []storage.TelemetryEvent
}

func (f *fakeTelemetryStore) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTelemetryStore) named(name string) []storage.TelemetryEvent {
	var out []storage.TelemetryEvent
	for _, event := range f.events {
		if event.EventName == name {
			out = append(out, event)
		}
	}
	return out
}

type testStores struct {
	characters  *fakeCharacterStore
	scenes      *fakeSceneStore
	fellowships *fakeFellowshipStore
	rolls       *fakeRollStore
	narrators   *fakeNarratorStore
	telemetry   *fakeTelemetryStore
}

var testTime = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestWorkflow() (*Workflow, *testStores) {
	stores := &testStores{
		characters:  &fakeCharacterStore{},
		scenes:      &fakeSceneStore{},
		fellowships: &fakeFellowshipStore{},
		rolls:       newFakeRollStore(),
		narrators:   &fakeNarratorStore{},
		telemetry:   &fakeTelemetryStore{},
	}
	workflow := &Workflow{
		sessions: memory.NewRepository(),
		stores: Stores{
			Characters:  stores.characters,
			Scenes:      stores.scenes,
			Fellowships: stores.fellowships,
			Rolls:       stores.rolls,
			Narrators:   stores.narrators,
		},
		telemetry: telemetry.NewEmitter(stores.telemetry),
		clock:     func() time.Time { return testTime },
		seedFunc:  func() (int64, error) { return 7, nil },
	}
	return workflow, stores
}

func putSession(w *Workflow, session sessiondomain.Session) sessiondomain.Session {
	session.CreatedAt = testTime
	session.UpdatedAt = testTime
	w.sessions.Put(session)
	return session
}

// grit/shaken/darkness are the recurring fixtures: a burnable character
// tag, a tier-3 character status, and a scene tag.
var (
	gritEntity    = tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit", CharacterID: "char-1"}
	shakenEntity  = tags.Entity{Source: tags.SourceCharacterStatus, ParentID: "status-shaken", CharacterID: "char-1"}
	darkEntity    = tags.Entity{Source: tags.SourceSceneTag, ParentID: "tag-darkness"}
	lanternEntity = tags.Entity{Source: tags.SourceCharacterBackpackItem, ParentID: "tag-lantern", CharacterID: "char-1"}
	goneEntity    = tags.Entity{Source: tags.SourceCharacterStoryTag, ParentID: "tag-gone", CharacterID: "char-1"}
)

func resolveFixtures(stores *testStores) {
	stores.characters.tagData = map[tags.Key]tags.TagData{
		gritEntity.Key():    {Name: "grit", Kind: tags.KindTag},
		shakenEntity.Key():  {Name: "shaken-3"},
		lanternEntity.Key(): {Name: "storm lantern", Kind: tags.KindTag},
	}
	stores.scenes.tagData = map[tags.Key]tags.TagData{
		darkEntity.Key(): {Name: "unnatural darkness", Kind: tags.KindTag},
	}
}

func TestSubmitProposeCreatesRoll(t *testing.T) {
	workflow, stores := newTestWorkflow()
	key := sessiondomain.Key{CreatorID: "user-1", Purpose: sessiondomain.PurposePropose}
	burned := gritEntity.Key()
	putSession(workflow, sessiondomain.Session{
		Key:         key,
		GuildID:     "guild-1",
		CharacterID: "char-1",
		SceneID:     "scene-1",
		Help:        []tags.Entity{gritEntity, shakenEntity},
		Hinder:      []tags.Entity{darkEntity},
		BurnedTag:   &burned,
		Description: "leap the chasm",
		Might:       1,
	})

	roll, err := workflow.Submit(context.Background(), key)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if roll.ID != 1 {
		t.Fatalf("expected first roll id 1, got %d", roll.ID)
	}
	if roll.Status != domain.StatusProposed {
		t.Fatalf("expected proposed, got %s", roll.Status)
	}
	if roll.Description != "leap the chasm" || roll.Might != 1 {
		t.Fatalf("unexpected content %+v", roll)
	}
	if len(roll.Help) != 2 || len(roll.Hinder) != 1 {
		t.Fatalf("unexpected tag sets %+v", roll)
	}
	if roll.BurnedTag == nil || *roll.BurnedTag != burned {
		t.Fatalf("expected burn carried, got %v", roll.BurnedTag)
	}
	if roll.CreatedAt != testTime {
		t.Fatalf("expected clock timestamp, got %v", roll.CreatedAt)
	}

	if _, ok := workflow.sessions.Get(key); ok {
		t.Fatal("expected session destroyed")
	}
	if _, err := workflow.Get(context.Background(), "guild-1", 1); err != nil {
		t.Fatalf("expected roll persisted: %v", err)
	}
	if events := stores.telemetry.named(telemetry.EventRollSubmitted); len(events) != 1 {
		t.Fatalf("expected 1 submit event, got %d", len(events))
	}
}

func TestSubmitAssignsSequentialIDs(t *testing.T) {
	workflow, _ := newTestWorkflow()
	for i, creator := range []string{"user-1", "user-2"} {
		key := sessiondomain.Key{CreatorID: creator, Purpose: sessiondomain.PurposePropose}
		putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1"})
		roll, err := workflow.Submit(context.Background(), key)
		if err != nil {
			t.Fatalf("submit %s: %v", creator, err)
		}
		if roll.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, roll.ID)
		}
	}
}

func TestSubmitExpiredSession(t *testing.T) {
	workflow, _ := newTestWorkflow()
	key := sessiondomain.Key{CreatorID: "user-1", Purpose: sessiondomain.PurposePropose}

	_, err := workflow.Submit(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodeSessionExpired) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestSubmitRejectedForReviewSessions(t *testing.T) {
	workflow, _ := newTestWorkflow()
	key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: sessiondomain.PurposeConfirm}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1", RollID: 1})

	_, err := workflow.Submit(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodeSessionActionInvalid) {
		t.Fatalf("expected action error, got %v", err)
	}
}

func seedRoll(stores *testStores, record storage.RollRecord) storage.RollRecord {
	record.CreatedAt = testTime
	record.UpdatedAt = testTime
	stores.rolls.rolls[record.ID] = record
	if record.ID >= stores.rolls.nextID {
		stores.rolls.nextID = record.ID + 1
	}
	return record
}

func TestSubmitAmendRewritesRoll(t *testing.T) {
	workflow, stores := newTestWorkflow()
	seedRoll(stores, storage.RollRecord{
		ID:          3,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Description: "old text",
		Status:      domain.StatusConfirmed,
		ConfirmedBy: "narrator-1",
		Help:        []tags.Entity{gritEntity},
	})

	key := sessiondomain.Key{CreatorID: "user-1", Purpose: sessiondomain.PurposeAmend}
	putSession(workflow, sessiondomain.Session{
		Key:         key,
		GuildID:     "guild-1",
		CharacterID: "char-1",
		RollID:      3,
		Help:        []tags.Entity{gritEntity, lanternEntity},
		Description: "new text",
		Might:       2,
	})

	roll, err := workflow.Submit(context.Background(), key)
	if err != nil {
		t.Fatalf("submit amend: %v", err)
	}
	if roll.Status != domain.StatusProposed {
		t.Fatalf("expected proposed after amend, got %s", roll.Status)
	}
	if roll.ConfirmedBy != "" {
		t.Fatalf("expected sign-off cleared, got %q", roll.ConfirmedBy)
	}
	if roll.Description != "new text" || roll.Might != 2 || len(roll.Help) != 2 {
		t.Fatalf("expected edited content, got %+v", roll)
	}

	stored, _ := stores.rolls.GetRoll(context.Background(), "guild-1", 3)
	if stored.Status != domain.StatusProposed || stored.Description != "new text" {
		t.Fatalf("expected persisted amend, got %+v", stored)
	}
	if _, ok := workflow.sessions.Get(key); ok {
		t.Fatal("expected session destroyed")
	}
	if events := stores.telemetry.named(telemetry.EventRollAmended); len(events) != 1 {
		t.Fatalf("expected 1 amend event, got %d", len(events))
	}
}

func TestSubmitAmendRequiresCreator(t *testing.T) {
	workflow, stores := newTestWorkflow()
	seedRoll(stores, storage.RollRecord{
		ID:        3,
		GuildID:   "guild-1",
		CreatorID: "user-1",
		Status:    domain.StatusProposed,
	})

	key := sessiondomain.Key{CreatorID: "user-2", Purpose: sessiondomain.PurposeAmend}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-2", RollID: 3})

	_, err := workflow.Submit(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestSubmitAmendRejectsExecutedRoll(t *testing.T) {
	workflow, stores := newTestWorkflow()
	seedRoll(stores, storage.RollRecord{
		ID:        3,
		GuildID:   "guild-1",
		CreatorID: "user-1",
		Status:    domain.StatusExecuted,
	})

	key := sessiondomain.Key{CreatorID: "user-1", Purpose: sessiondomain.PurposeAmend}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1", RollID: 3})

	_, err := workflow.Submit(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if _, ok := workflow.sessions.Get(key); !ok {
		t.Fatal("expected session kept on failure")
	}
}

func TestConfirmSignsOff(t *testing.T) {
	workflow, stores := newTestWorkflow()
	resolveFixtures(stores)
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Status:      domain.StatusProposed,
		Help:        []tags.Entity{gritEntity},
	})

	key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: sessiondomain.PurposeConfirm}
	putSession(workflow, sessiondomain.Session{
		Key:         key,
		GuildID:     "guild-1",
		CharacterID: "char-1",
		RollID:      5,
		Help:        []tags.Entity{gritEntity, lanternEntity},
		Description: "reviewed",
	})

	roll, err := workflow.Confirm(context.Background(), key)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if roll.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", roll.Status)
	}
	if roll.ConfirmedBy != "narrator-1" {
		t.Fatalf("expected narrator sign-off, got %q", roll.ConfirmedBy)
	}
	if len(roll.Help) != 2 || roll.Description != "reviewed" {
		t.Fatalf("expected review edits applied, got %+v", roll)
	}
	if _, ok := workflow.sessions.Get(key); ok {
		t.Fatal("expected session destroyed")
	}
	if events := stores.telemetry.named(telemetry.EventRollConfirmed); len(events) != 1 {
		t.Fatalf("expected 1 confirm event, got %d", len(events))
	}
}

func TestConfirmPurgesDanglingReferences(t *testing.T) {
	workflow, stores := newTestWorkflow()
	resolveFixtures(stores)
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Status:      domain.StatusProposed,
		Help:        []tags.Entity{gritEntity, goneEntity},
	})

	key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: sessiondomain.PurposeConfirm}
	putSession(workflow, sessiondomain.Session{
		Key:         key,
		GuildID:     "guild-1",
		CharacterID: "char-1",
		RollID:      5,
		Help:        []tags.Entity{gritEntity, goneEntity},
	})

	roll, err := workflow.Confirm(context.Background(), key)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(roll.Help) != 1 || !tags.ContainsKey(roll.Help, gritEntity.Key()) {
		t.Fatalf("expected dangling reference purged, got %+v", roll.Help)
	}
	if roll.PurgedTagCount != 1 {
		t.Fatalf("expected purge count 1, got %d", roll.PurgedTagCount)
	}
	if len(stores.rolls.deleted) != 0 {
		t.Fatal("expected purge to ride the confirm write, not a separate delete")
	}
	if events := stores.telemetry.named(telemetry.EventTagsPurged); len(events) != 1 {
		t.Fatalf("expected 1 purge event, got %d", len(events))
	}

	stored, _ := stores.rolls.GetRoll(context.Background(), "guild-1", 5)
	if len(stored.Help) != 1 {
		t.Fatalf("expected persisted purge, got %+v", stored.Help)
	}
}

func TestConfirmDetectsConcurrentSignOff(t *testing.T) {
	workflow, stores := newTestWorkflow()
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		Status:      domain.StatusConfirmed,
		ConfirmedBy: "narrator-0",
	})

	key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: sessiondomain.PurposeConfirm}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1", RollID: 5})

	_, err := workflow.Confirm(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodeReconfirmUnacked) {
		t.Fatalf("expected reconfirm error, got %v", err)
	}
}

func TestReconfirmOverwritesSignOff(t *testing.T) {
	workflow, stores := newTestWorkflow()
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		Status:      domain.StatusConfirmed,
		ConfirmedBy: "narrator-0",
	})

	key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: sessiondomain.PurposeReconfirm}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1", RollID: 5})

	roll, err := workflow.Confirm(context.Background(), key)
	if err != nil {
		t.Fatalf("reconfirm: %v", err)
	}
	if roll.ConfirmedBy != "narrator-1" {
		t.Fatalf("expected sign-off overwritten, got %q", roll.ConfirmedBy)
	}
	events := stores.telemetry.named(telemetry.EventRollConfirmed)
	if len(events) != 1 || events[0].Attributes["reconfirm"] != true {
		t.Fatalf("expected reconfirm-flagged event, got %+v", events)
	}
}

func TestConfirmRejectsExecutedRoll(t *testing.T) {
	workflow, stores := newTestWorkflow()
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:        5,
		GuildID:   "guild-1",
		CreatorID: "user-1",
		Status:    domain.StatusExecuted,
	})

	for _, purpose := range []sessiondomain.Purpose{sessiondomain.PurposeConfirm, sessiondomain.PurposeReconfirm} {
		key := sessiondomain.Key{CreatorID: "narrator-1", Purpose: purpose}
		putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-1", RollID: 5})

		_, err := workflow.Confirm(context.Background(), key)
		if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
			t.Fatalf("purpose %s: expected transition error, got %v", purpose, err)
		}
	}
}

func TestConfirmRequiresNarratorOrCreator(t *testing.T) {
	workflow, stores := newTestWorkflow()
	seedRoll(stores, storage.RollRecord{
		ID:        5,
		GuildID:   "guild-1",
		CreatorID: "user-1",
		Status:    domain.StatusProposed,
	})

	key := sessiondomain.Key{CreatorID: "user-2", Purpose: sessiondomain.PurposeConfirm}
	putSession(workflow, sessiondomain.Session{Key: key, GuildID: "guild-1", CharacterID: "char-2", RollID: 5})

	_, err := workflow.Confirm(context.Background(), key)
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestExecuteSealsRoll(t *testing.T) {
	workflow, stores := newTestWorkflow()
	resolveFixtures(stores)
	burned := gritEntity.Key()
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Status:      domain.StatusConfirmed,
		ConfirmedBy: "narrator-1",
		Help:        []tags.Entity{gritEntity, shakenEntity},
		Hinder:      []tags.Entity{darkEntity},
		BurnedTag:   &burned,
		Might:       1,
	})

	result, err := workflow.Execute(context.Background(), ExecuteRequest{
		GuildID: "guild-1",
		RollID:  5,
		ActorID: "user-1",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	roll := result.Roll
	if roll.Status != domain.StatusExecuted {
		t.Fatalf("expected executed, got %s", roll.Status)
	}
	if roll.Result == nil {
		t.Fatal("expected dice trace")
	}

	// burned grit 3 + shaken-3 status 3 - darkness 1 + might 1
	if result.Breakdown.Power != 6 {
		t.Fatalf("expected power 6, got %d", result.Breakdown.Power)
	}
	trace := roll.Result
	if trace.Power != 6 {
		t.Fatalf("expected trace power 6, got %d", trace.Power)
	}
	if trace.Die1 < 1 || trace.Die1 > 6 || trace.Die2 < 1 || trace.Die2 > 6 {
		t.Fatalf("dice out of range: %d %d", trace.Die1, trace.Die2)
	}
	if trace.Total != trace.Die1+trace.Die2+trace.Power {
		t.Fatalf("total %d does not match dice %d+%d and power %d", trace.Total, trace.Die1, trace.Die2, trace.Power)
	}
	if want := mist.ClassifyOutcome(trace.Die1, trace.Die2, trace.Total, false); trace.Outcome != want {
		t.Fatalf("expected outcome %s, got %s", want, trace.Outcome)
	}
	if trace.ExecutedAt != testTime {
		t.Fatalf("expected clock timestamp, got %v", trace.ExecutedAt)
	}

	if stores.characters.burnedBy != "char-1" || len(stores.characters.burnedIDs) != 1 || stores.characters.burnedIDs[0] != "tag-grit" {
		t.Fatalf("expected burned tag written back, got %s %v", stores.characters.burnedBy, stores.characters.burnedIDs)
	}
	if events := stores.telemetry.named(telemetry.EventRollExecuted); len(events) != 1 {
		t.Fatalf("expected 1 execute event, got %d", len(events))
	}

	stored, _ := stores.rolls.GetRoll(context.Background(), "guild-1", 5)
	if stored.Status != domain.StatusExecuted || stored.ExecutedAt == nil {
		t.Fatalf("expected persisted trace, got %+v", stored)
	}
}

func TestExecuteCreatorOnly(t *testing.T) {
	workflow, stores := newTestWorkflow()
	stores.narrators.narrator = true
	seedRoll(stores, storage.RollRecord{
		ID:        5,
		GuildID:   "guild-1",
		CreatorID: "user-1",
		Status:    domain.StatusConfirmed,
	})

	_, err := workflow.Execute(context.Background(), ExecuteRequest{
		GuildID: "guild-1",
		RollID:  5,
		ActorID: "narrator-1",
	})
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected permission error even for narrators, got %v", err)
	}
}

func TestExecuteRequiresConfirmedStatus(t *testing.T) {
	workflow, stores := newTestWorkflow()
	for _, status := range []domain.Status{domain.StatusProposed, domain.StatusExecuted} {
		seedRoll(stores, storage.RollRecord{
			ID:        5,
			GuildID:   "guild-1",
			CreatorID: "user-1",
			Status:    status,
		})
		_, err := workflow.Execute(context.Background(), ExecuteRequest{
			GuildID: "guild-1",
			RollID:  5,
			ActorID: "user-1",
		})
		if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
			t.Fatalf("status %s: expected transition error, got %v", status, err)
		}
	}
}

func TestExecutePurgePersistsOnStrategyRejection(t *testing.T) {
	workflow, stores := newTestWorkflow()
	resolveFixtures(stores)
	burned := gritEntity.Key()
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Status:      domain.StatusConfirmed,
		Help:        []tags.Entity{gritEntity, shakenEntity, goneEntity},
		BurnedTag:   &burned,
		Might:       0,
	})

	// power 3 + 3 = 6 after the purge; throw caution needs at most 2
	_, err := workflow.Execute(context.Background(), ExecuteRequest{
		GuildID:  "guild-1",
		RollID:   5,
		ActorID:  "user-1",
		Strategy: mist.StrategyThrowCaution,
	})
	if !apperrors.IsCode(err, apperrors.CodeStrategyPrecondition) {
		t.Fatalf("expected strategy gate, got %v", err)
	}

	if len(stores.rolls.deleted) != 1 || stores.rolls.deleted[0].Key() != goneEntity.Key() {
		t.Fatalf("expected targeted delete of the dangler, got %v", stores.rolls.deleted)
	}
	stored, _ := stores.rolls.GetRoll(context.Background(), "guild-1", 5)
	if stored.Status != domain.StatusConfirmed {
		t.Fatalf("expected roll still confirmed, got %s", stored.Status)
	}
	if len(stored.Help) != 2 || tags.ContainsKey(stored.Help, goneEntity.Key()) {
		t.Fatalf("expected purge persisted despite rejection, got %+v", stored.Help)
	}
	if stored.PurgedTagCount != 1 {
		t.Fatalf("expected purge count persisted, got %d", stored.PurgedTagCount)
	}
}

func TestExecuteStrategyAdjustments(t *testing.T) {
	tests := []struct {
		name            string
		strategy        mist.Strategy
		totalAdjust     int
		spendableAdjust int
	}{
		{"throw caution", mist.StrategyThrowCaution, -1, 1},
		{"hedge risks", mist.StrategyHedgeRisks, 1, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			workflow, stores := newTestWorkflow()
			resolveFixtures(stores)
			// two plain help tags give power 2, legal for both strategies
			seedRoll(stores, storage.RollRecord{
				ID:          5,
				GuildID:     "guild-1",
				CreatorID:   "user-1",
				CharacterID: "char-1",
				Status:      domain.StatusConfirmed,
				Help:        []tags.Entity{gritEntity, lanternEntity},
			})

			result, err := workflow.Execute(context.Background(), ExecuteRequest{
				GuildID:  "guild-1",
				RollID:   5,
				ActorID:  "user-1",
				Strategy: tc.strategy,
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			trace := result.Roll.Result
			if trace.Power != 2 {
				t.Fatalf("expected power 2, got %d", trace.Power)
			}
			if trace.Total != trace.Die1+trace.Die2+2+tc.totalAdjust {
				t.Fatalf("expected strategy total adjustment %d, got total %d with dice %d %d",
					tc.totalAdjust, trace.Total, trace.Die1, trace.Die2)
			}
			if result.Roll.Strategy != tc.strategy {
				t.Fatalf("expected strategy recorded, got %s", result.Roll.Strategy)
			}
			switch trace.Outcome {
			case mist.OutcomeMixedSuccess, mist.OutcomeStrongSuccess:
				if want := 2 + tc.spendableAdjust; trace.SpendablePower != want {
					t.Fatalf("expected spendable %d, got %d", want, trace.SpendablePower)
				}
			default:
				if trace.SpendablePower != 0 {
					t.Fatalf("expected no spendable power on failure, got %d", trace.SpendablePower)
				}
			}
		})
	}
}

func TestExecuteReactionHasNoMixedTier(t *testing.T) {
	workflow, stores := newTestWorkflow()
	resolveFixtures(stores)
	seedRoll(stores, storage.RollRecord{
		ID:          5,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		Status:      domain.StatusConfirmed,
		Help:        []tags.Entity{gritEntity},
		IsReaction:  true,
		ReactionTo:  2,
	})

	result, err := workflow.Execute(context.Background(), ExecuteRequest{
		GuildID: "guild-1",
		RollID:  5,
		ActorID: "user-1",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	trace := result.Roll.Result
	if trace.Outcome == mist.OutcomeMixedSuccess {
		t.Fatal("reaction rolls must not produce a mixed tier")
	}
	if want := mist.ClassifyOutcome(trace.Die1, trace.Die2, trace.Total, true); trace.Outcome != want {
		t.Fatalf("expected outcome %s, got %s", want, trace.Outcome)
	}
}

func TestGetRollMissing(t *testing.T) {
	workflow, _ := newTestWorkflow()

	_, err := workflow.Get(context.Background(), "guild-1", 404)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRolls(t *testing.T) {
	workflow, stores := newTestWorkflow()
	stores.rolls.page = storage.RollPage{
		Rolls: []storage.RollRecord{
			{ID: 1, GuildID: "guild-1", CreatorID: "user-1", Status: domain.StatusProposed},
			{ID: 2, GuildID: "guild-1", CreatorID: "user-2", Status: domain.StatusExecuted},
		},
		NextPageToken: "next",
	}

	rolls, token, err := workflow.List(context.Background(), storage.ListRollsRequest{
		GuildID:  "guild-1",
		Filter:   `status = "proposed"`,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rolls) != 2 || token != "next" {
		t.Fatalf("unexpected page: %d rolls, token %q", len(rolls), token)
	}
	if stores.rolls.listReq.Filter != `status = "proposed"` {
		t.Fatalf("expected filter forwarded, got %q", stores.rolls.listReq.Filter)
	}
}

func TestNarratorGrants(t *testing.T) {
	workflow, stores := newTestWorkflow()

	if err := workflow.GrantNarrator(context.Background(), "guild-1", "narrator-1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if len(stores.narrators.granted) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(stores.narrators.granted))
	}
	grant := stores.narrators.granted[0]
	if grant.GuildID != "guild-1" || grant.UserID != "narrator-1" || grant.GrantedAt != testTime {
		t.Fatalf("unexpected grant %+v", grant)
	}

	if err := workflow.RevokeNarrator(context.Background(), "guild-1", "narrator-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(stores.narrators.removed) != 1 || stores.narrators.removed[0] != "narrator-1" {
		t.Fatalf("unexpected removals %v", stores.narrators.removed)
	}
}
