package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/mist-engine/internal/mist"
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
)

func proposedRoll(guildID string) storage.RollRecord {
	return storage.RollRecord{
		GuildID:       guildID,
		CreatorID:     "user-1",
		CharacterID:   "char-1",
		SceneID:       "scene-1",
		Description:   "leap across the chasm",
		Justification: "grit carries her through",
		Might:         1,
		Status:        domain.StatusProposed,
		Help: []tags.Entity{
			{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit", CharacterID: "char-1"},
		},
		Hinder: []tags.Entity{
			{Source: tags.SourceSceneTag, ParentID: "tag-dark"},
		},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func TestCreateRollSequentialIDs(t *testing.T) {
	store := openTestStore(t)

	first, err := store.CreateRoll(context.Background(), proposedRoll("guild-1"))
	if err != nil {
		t.Fatalf("create roll: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first id = %d, want 1", first.ID)
	}

	second, err := store.CreateRoll(context.Background(), proposedRoll("guild-1"))
	if err != nil {
		t.Fatalf("create second roll: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second id = %d, want 2", second.ID)
	}

	other, err := store.CreateRoll(context.Background(), proposedRoll("guild-2"))
	if err != nil {
		t.Fatalf("create roll in other guild: %v", err)
	}
	if other.ID != 1 {
		t.Fatalf("other guild id = %d, want 1", other.ID)
	}
}

func TestRollRoundTrip(t *testing.T) {
	store := openTestStore(t)

	record := proposedRoll("guild-1")
	burned := tags.Key{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit"}
	record.BurnedTag = &burned
	record.NarrationLink = "https://example.test/narration/1"
	record.IsReaction = true
	record.ReactionTo = 9

	created, err := store.CreateRoll(context.Background(), record)
	if err != nil {
		t.Fatalf("create roll: %v", err)
	}

	got, err := store.GetRoll(context.Background(), "guild-1", created.ID)
	if err != nil {
		t.Fatalf("get roll: %v", err)
	}
	if got.Status != domain.StatusProposed {
		t.Fatalf("status = %v, want proposed", got.Status)
	}
	if got.Description != record.Description || got.Justification != record.Justification {
		t.Fatalf("content = %q %q", got.Description, got.Justification)
	}
	if got.NarrationLink != record.NarrationLink {
		t.Fatalf("narration link = %q", got.NarrationLink)
	}
	if got.Might != 1 || !got.IsReaction || got.ReactionTo != 9 {
		t.Fatalf("roll fields = might %d reaction %v to %d", got.Might, got.IsReaction, got.ReactionTo)
	}
	if !reflect.DeepEqual(got.Help, record.Help) {
		t.Fatalf("help = %+v, want %+v", got.Help, record.Help)
	}
	if !reflect.DeepEqual(got.Hinder, record.Hinder) {
		t.Fatalf("hinder = %+v, want %+v", got.Hinder, record.Hinder)
	}
	if got.BurnedTag == nil || *got.BurnedTag != burned {
		t.Fatalf("burned = %+v, want %+v", got.BurnedTag, burned)
	}
	if got.Strategy != mist.StrategyNone {
		t.Fatalf("strategy = %v, want none", got.Strategy)
	}
	if got.Outcome != mist.OutcomeUnspecified || got.ExecutedAt != nil {
		t.Fatalf("expected no dice trace, got outcome %v executed %v", got.Outcome, got.ExecutedAt)
	}
	if !got.CreatedAt.Equal(testTime) || !got.UpdatedAt.Equal(testTime) {
		t.Fatalf("timestamps = %v %v", got.CreatedAt, got.UpdatedAt)
	}

	if _, err := store.GetRoll(context.Background(), "guild-2", created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected guild scoping, got %v", err)
	}
	if _, err := store.GetRoll(context.Background(), "guild-1", 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRollPersistsDiceTrace(t *testing.T) {
	store := openTestStore(t)

	created, err := store.CreateRoll(context.Background(), proposedRoll("guild-1"))
	if err != nil {
		t.Fatalf("create roll: %v", err)
	}

	executedAt := testTime.Add(time.Hour)
	created.Status = domain.StatusExecuted
	created.ConfirmedBy = "narrator-1"
	created.Strategy = mist.StrategyThrowCaution
	created.Die1 = 4
	created.Die2 = 6
	created.Power = 2
	created.FinalTotal = 11
	created.Outcome = mist.OutcomeStrongSuccess
	created.SpendablePower = 3
	created.ExecutedAt = &executedAt
	created.UpdatedAt = executedAt
	if err := store.UpdateRoll(context.Background(), created); err != nil {
		t.Fatalf("update roll: %v", err)
	}

	got, err := store.GetRoll(context.Background(), "guild-1", created.ID)
	if err != nil {
		t.Fatalf("get roll: %v", err)
	}
	if got.Status != domain.StatusExecuted || got.ConfirmedBy != "narrator-1" {
		t.Fatalf("status = %v confirmed by %q", got.Status, got.ConfirmedBy)
	}
	if got.Strategy != mist.StrategyThrowCaution {
		t.Fatalf("strategy = %v", got.Strategy)
	}
	if got.Die1 != 4 || got.Die2 != 6 || got.Power != 2 || got.FinalTotal != 11 {
		t.Fatalf("trace = %d %d %d %d", got.Die1, got.Die2, got.Power, got.FinalTotal)
	}
	if got.Outcome != mist.OutcomeStrongSuccess || got.SpendablePower != 3 {
		t.Fatalf("outcome = %v spendable %d", got.Outcome, got.SpendablePower)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(executedAt) {
		t.Fatalf("executed at = %v, want %v", got.ExecutedAt, executedAt)
	}

	missing := created
	missing.ID = 99
	if err := store.UpdateRoll(context.Background(), missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestDeleteInvalidTags(t *testing.T) {
	store := openTestStore(t)

	keep := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit", CharacterID: "char-1"}
	gone := tags.Entity{Source: tags.SourceCharacterStoryTag, ParentID: "tag-gone", CharacterID: "char-1"}
	dark := tags.Entity{Source: tags.SourceSceneTag, ParentID: "tag-dark"}

	record := proposedRoll("guild-1")
	record.Help = []tags.Entity{keep, gone}
	record.Hinder = []tags.Entity{dark}
	goneKey := gone.Key()
	record.BurnedTag = &goneKey

	created, err := store.CreateRoll(context.Background(), record)
	if err != nil {
		t.Fatalf("create roll: %v", err)
	}

	purgedAt := testTime.Add(time.Hour)
	removed, err := store.DeleteInvalidTags(context.Background(), "guild-1", created.ID, []tags.Entity{gone, dark}, purgedAt)
	if err != nil {
		t.Fatalf("delete invalid: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	got, err := store.GetRoll(context.Background(), "guild-1", created.ID)
	if err != nil {
		t.Fatalf("get roll: %v", err)
	}
	if len(got.Help) != 1 || got.Help[0].Key() != keep.Key() {
		t.Fatalf("help = %+v", got.Help)
	}
	if len(got.Hinder) != 0 {
		t.Fatalf("hinder = %+v", got.Hinder)
	}
	if got.BurnedTag != nil {
		t.Fatalf("expected burn cleared with its tag, got %+v", got.BurnedTag)
	}
	if got.PurgedTagCount != 2 {
		t.Fatalf("purged count = %d, want 2", got.PurgedTagCount)
	}
	if got.Description != record.Description || got.Status != domain.StatusProposed {
		t.Fatalf("expected other fields untouched, got %+v", got)
	}
	if !got.UpdatedAt.Equal(purgedAt) {
		t.Fatalf("updated at = %v, want %v", got.UpdatedAt, purgedAt)
	}

	removed, err = store.DeleteInvalidTags(context.Background(), "guild-1", created.ID, []tags.Entity{gone, dark}, purgedAt)
	if err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if removed != 0 {
		t.Fatalf("repeat removed = %d, want 0", removed)
	}

	removed, err = store.DeleteInvalidTags(context.Background(), "guild-1", created.ID, nil, purgedAt)
	if err != nil || removed != 0 {
		t.Fatalf("empty invalid set = %d, %v", removed, err)
	}
}

func seedRollListing(t *testing.T, store *Store) {
	t.Helper()
	for i := 0; i < 5; i++ {
		record := proposedRoll("guild-1")
		record.CreatedAt = testTime.Add(time.Duration(i) * time.Minute)
		record.UpdatedAt = record.CreatedAt
		if i >= 3 {
			executedAt := record.CreatedAt.Add(time.Minute)
			record.Status = domain.StatusExecuted
			record.ConfirmedBy = "narrator-1"
			record.Die1 = 5
			record.Die2 = 5
			record.Power = 1
			record.FinalTotal = 11
			record.Outcome = mist.OutcomeStrongSuccess
			record.SpendablePower = 2
			record.ExecutedAt = &executedAt
		}
		if _, err := store.CreateRoll(context.Background(), record); err != nil {
			t.Fatalf("seed roll %d: %v", i, err)
		}
	}
	if _, err := store.CreateRoll(context.Background(), proposedRoll("guild-2")); err != nil {
		t.Fatalf("seed other guild: %v", err)
	}
}

func TestListRollsPagination(t *testing.T) {
	store := openTestStore(t)
	seedRollListing(t, store)

	page, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 2})
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(page.Rolls) != 2 || page.NextPageToken == "" {
		t.Fatalf("page 1 = %d rolls token %q", len(page.Rolls), page.NextPageToken)
	}
	if page.Rolls[0].ID != 5 || page.Rolls[1].ID != 4 {
		t.Fatalf("page 1 ids = %d %d, want 5 4", page.Rolls[0].ID, page.Rolls[1].ID)
	}

	page, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Rolls) != 2 || page.Rolls[0].ID != 3 || page.Rolls[1].ID != 2 {
		t.Fatalf("page 2 = %+v", page.Rolls)
	}

	page, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page.Rolls) != 1 || page.Rolls[0].ID != 1 || page.NextPageToken != "" {
		t.Fatalf("page 3 = %d rolls token %q", len(page.Rolls), page.NextPageToken)
	}
}

func TestListRollsAscending(t *testing.T) {
	store := openTestStore(t)
	seedRollListing(t, store)

	page, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 3, OrderBy: "id"})
	if err != nil {
		t.Fatalf("list ascending: %v", err)
	}
	if len(page.Rolls) != 3 || page.Rolls[0].ID != 1 || page.Rolls[2].ID != 3 {
		t.Fatalf("ascending page = %+v", page.Rolls)
	}

	page, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 3, OrderBy: "id", PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list ascending page 2: %v", err)
	}
	if len(page.Rolls) != 2 || page.Rolls[0].ID != 4 || page.NextPageToken != "" {
		t.Fatalf("ascending page 2 = %+v token %q", page.Rolls, page.NextPageToken)
	}
}

func TestListRollsFilter(t *testing.T) {
	store := openTestStore(t)
	seedRollListing(t, store)

	page, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", Filter: `status = "proposed"`})
	if err != nil {
		t.Fatalf("filter by status: %v", err)
	}
	if len(page.Rolls) != 3 {
		t.Fatalf("proposed rolls = %d, want 3", len(page.Rolls))
	}
	for _, record := range page.Rolls {
		if record.Status != domain.StatusProposed {
			t.Fatalf("unexpected status %v", record.Status)
		}
	}

	page, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", Filter: `outcome = "strong_success"`})
	if err != nil {
		t.Fatalf("filter by outcome: %v", err)
	}
	if len(page.Rolls) != 2 {
		t.Fatalf("strong successes = %d, want 2", len(page.Rolls))
	}

	page, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", Filter: `is_reaction = false AND might >= 1`})
	if err != nil {
		t.Fatalf("compound filter: %v", err)
	}
	if len(page.Rolls) != 5 {
		t.Fatalf("compound filter rolls = %d, want 5", len(page.Rolls))
	}

	if _, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", Filter: `severity = "INFO"`}); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestListRollsTokenBoundToQuery(t *testing.T) {
	store := openTestStore(t)
	seedRollListing(t, store)

	page, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 2, Filter: `status = "proposed"`})
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	_, err = store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", PageSize: 2, Filter: `status = "executed"`, PageToken: page.NextPageToken})
	if err == nil {
		t.Fatal("expected token minted under a different filter to be rejected")
	}
}

func TestListRollsValidation(t *testing.T) {
	store := openTestStore(t)
	seedRollListing(t, store)

	if _, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-1", OrderBy: "created_at desc"}); err == nil {
		t.Fatal("expected unsupported order_by to be rejected")
	}
	if _, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: ""}); err == nil {
		t.Fatal("expected missing guild to be rejected")
	}

	page, err := store.ListRolls(context.Background(), storage.ListRollsRequest{GuildID: "guild-2"})
	if err != nil {
		t.Fatalf("list other guild: %v", err)
	}
	if len(page.Rolls) != 1 {
		t.Fatalf("guild-2 rolls = %d, want 1", len(page.Rolls))
	}
}
