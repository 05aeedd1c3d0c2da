package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
)

var testTime = time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleCharacter() storage.CharacterRecord {
	return storage.CharacterRecord{
		ID:      "char-1",
		GuildID: "guild-1",
		OwnerID: "user-1",
		Name:    "Asha",
		Themes: []storage.ThemeRecord{{
			ID:   "theme-1",
			Name: "Storm-Touched",
			Tags: []storage.TagRecord{
				{ID: "tag-grit", Name: "grit"},
				{ID: "tag-fear", Name: "fear of heights", Weakness: true},
			},
		}},
		Backpack:  []storage.TagRecord{{ID: "tag-lantern", Name: "storm lantern"}},
		StoryTags: []storage.TagRecord{{ID: "tag-oath", Name: "blood oath"}},
		Statuses:  []storage.StatusRecord{{ID: "status-shaken", Name: "shaken-3"}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	want := sampleCharacter()

	if err := store.PutCharacter(context.Background(), want); err != nil {
		t.Fatalf("put character: %v", err)
	}

	got, err := store.GetCharacter(context.Background(), "guild-1", "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Name != "Asha" || got.OwnerID != "user-1" {
		t.Fatalf("unexpected character %+v", got)
	}
	if !reflect.DeepEqual(got.Themes, want.Themes) {
		t.Fatalf("themes = %+v, want %+v", got.Themes, want.Themes)
	}
	if !reflect.DeepEqual(got.Backpack, want.Backpack) {
		t.Fatalf("backpack = %+v, want %+v", got.Backpack, want.Backpack)
	}
	if !reflect.DeepEqual(got.Statuses, want.Statuses) {
		t.Fatalf("statuses = %+v, want %+v", got.Statuses, want.Statuses)
	}
	if !got.CreatedAt.Equal(testTime) || !got.UpdatedAt.Equal(testTime) {
		t.Fatalf("timestamps = %v %v", got.CreatedAt, got.UpdatedAt)
	}

	if _, err := store.GetCharacter(context.Background(), "guild-2", "char-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected guild scoping, got %v", err)
	}
}

func TestGetCharacterByOwner(t *testing.T) {
	store := openTestStore(t)
	if err := store.PutCharacter(context.Background(), sampleCharacter()); err != nil {
		t.Fatalf("put character: %v", err)
	}

	got, err := store.GetCharacterByOwner(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if got.ID != "char-1" {
		t.Fatalf("id = %q, want char-1", got.ID)
	}

	if _, err := store.GetCharacterByOwner(context.Background(), "guild-1", "user-9"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPutCharacterReplacesSheet(t *testing.T) {
	store := openTestStore(t)
	record := sampleCharacter()
	if err := store.PutCharacter(context.Background(), record); err != nil {
		t.Fatalf("put character: %v", err)
	}

	record.Name = "Asha the Unbroken"
	record.Backpack = append(record.Backpack, storage.TagRecord{ID: "tag-rope", Name: "coil of rope"})
	record.UpdatedAt = testTime.Add(time.Hour)
	if err := store.PutCharacter(context.Background(), record); err != nil {
		t.Fatalf("update character: %v", err)
	}

	got, err := store.GetCharacter(context.Background(), "guild-1", "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Name != "Asha the Unbroken" || len(got.Backpack) != 2 {
		t.Fatalf("expected replaced sheet, got %+v", got)
	}
	if !got.UpdatedAt.Equal(testTime.Add(time.Hour)) {
		t.Fatalf("updated_at = %v", got.UpdatedAt)
	}
}

func TestListCharactersPagination(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"char-a", "char-b", "char-c"} {
		record := sampleCharacter()
		record.ID = id
		record.OwnerID = "owner-" + id
		if err := store.PutCharacter(context.Background(), record); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	page, err := store.ListCharacters(context.Background(), "guild-1", 2, "")
	if err != nil {
		t.Fatalf("list characters: %v", err)
	}
	if len(page.Characters) != 2 || page.NextPageToken == "" {
		t.Fatalf("page 1 = %d records token %q", len(page.Characters), page.NextPageToken)
	}
	if page.Characters[0].ID != "char-a" || page.Characters[1].ID != "char-b" {
		t.Fatalf("unexpected order %+v", page.Characters)
	}

	page, err = store.ListCharacters(context.Background(), "guild-1", 2, page.NextPageToken)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Characters) != 1 || page.NextPageToken != "" {
		t.Fatalf("page 2 = %d records token %q", len(page.Characters), page.NextPageToken)
	}
	if page.Characters[0].ID != "char-c" {
		t.Fatalf("unexpected page 2 %+v", page.Characters)
	}
}

func TestMarkTagsBurned(t *testing.T) {
	store := openTestStore(t)
	if err := store.PutCharacter(context.Background(), sampleCharacter()); err != nil {
		t.Fatalf("put character: %v", err)
	}

	burnedAt := testTime.Add(time.Hour)
	err := store.MarkTagsBurned(context.Background(), "char-1", []string{"tag-grit", "theme-1", "unknown-id"}, burnedAt)
	if err != nil {
		t.Fatalf("mark burned: %v", err)
	}

	got, err := store.GetCharacter(context.Background(), "guild-1", "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if !got.Themes[0].Burned {
		t.Fatal("expected theme burned")
	}
	if !got.Themes[0].Tags[0].Burned {
		t.Fatal("expected theme tag burned")
	}
	if got.Themes[0].Tags[1].Burned {
		t.Fatal("expected weakness untouched")
	}
	if !got.UpdatedAt.Equal(burnedAt) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, burnedAt)
	}

	if err := store.MarkTagsBurned(context.Background(), "char-9", []string{"tag-grit"}, burnedAt); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for missing character, got %v", err)
	}
}

func TestCharacterTagData(t *testing.T) {
	store := openTestStore(t)
	if err := store.PutCharacter(context.Background(), sampleCharacter()); err != nil {
		t.Fatalf("put character: %v", err)
	}

	tests := []struct {
		name     string
		entity   tags.Entity
		wantData tags.TagData
		wantOK   bool
	}{
		{
			name:     "theme resolves as tag",
			entity:   tags.Entity{Source: tags.SourceCharacterTheme, ParentID: "theme-1", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "Storm-Touched", Kind: tags.KindTag},
			wantOK:   true,
		},
		{
			name:     "theme tag",
			entity:   tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "grit", Kind: tags.KindTag},
			wantOK:   true,
		},
		{
			name:     "weakness kind",
			entity:   tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-fear", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "fear of heights", Kind: tags.KindWeakness},
			wantOK:   true,
		},
		{
			name:     "backpack item",
			entity:   tags.Entity{Source: tags.SourceCharacterBackpackItem, ParentID: "tag-lantern", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "storm lantern", Kind: tags.KindTag},
			wantOK:   true,
		},
		{
			name:     "story tag",
			entity:   tags.Entity{Source: tags.SourceCharacterStoryTag, ParentID: "tag-oath", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "blood oath", Kind: tags.KindTag},
			wantOK:   true,
		},
		{
			name:     "status",
			entity:   tags.Entity{Source: tags.SourceCharacterStatus, ParentID: "status-shaken", CharacterID: "char-1"},
			wantData: tags.TagData{Name: "shaken-3", Kind: tags.KindStatus},
			wantOK:   true,
		},
		{
			name:   "dangling tag id",
			entity: tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-gone", CharacterID: "char-1"},
		},
		{
			name:   "missing character",
			entity: tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit", CharacterID: "char-9"},
		},
		{
			name:   "no attribution",
			entity: tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-grit"},
		},
		{
			name:   "wrong source family",
			entity: tags.Entity{Source: tags.SourceSceneTag, ParentID: "tag-grit", CharacterID: "char-1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, ok, err := store.CharacterTagData(context.Background(), tc.entity)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && data != tc.wantData {
				t.Fatalf("data = %+v, want %+v", data, tc.wantData)
			}
		})
	}
}

func TestSceneActiveSwap(t *testing.T) {
	store := openTestStore(t)
	first := storage.SceneRecord{
		ID:        "scene-1",
		GuildID:   "guild-1",
		Name:      "The Drowned Market",
		Active:    true,
		Tags:      []storage.TagRecord{{ID: "tag-dark", Name: "unnatural darkness"}},
		Statuses:  []storage.StatusRecord{{ID: "status-flood", Name: "rising water-2"}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if err := store.PutScene(context.Background(), first); err != nil {
		t.Fatalf("put scene 1: %v", err)
	}

	active, err := store.GetActiveScene(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != "scene-1" || !active.Active {
		t.Fatalf("active = %+v", active)
	}

	second := storage.SceneRecord{
		ID:        "scene-2",
		GuildID:   "guild-1",
		Name:      "Rooftops",
		Active:    true,
		CreatedAt: testTime.Add(time.Hour),
		UpdatedAt: testTime.Add(time.Hour),
	}
	if err := store.PutScene(context.Background(), second); err != nil {
		t.Fatalf("put scene 2: %v", err)
	}

	active, err = store.GetActiveScene(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("get active after swap: %v", err)
	}
	if active.ID != "scene-2" {
		t.Fatalf("expected scene-2 active, got %s", active.ID)
	}

	prior, err := store.GetScene(context.Background(), "scene-1")
	if err != nil {
		t.Fatalf("get scene 1: %v", err)
	}
	if prior.Active {
		t.Fatal("expected scene-1 deactivated")
	}
	if len(prior.Tags) != 1 || prior.Tags[0].Name != "unnatural darkness" {
		t.Fatalf("expected tags preserved, got %+v", prior.Tags)
	}

	if _, err := store.GetActiveScene(context.Background(), "guild-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for other guild, got %v", err)
	}
}

func TestSceneTagData(t *testing.T) {
	store := openTestStore(t)
	scene := storage.SceneRecord{
		ID:        "scene-1",
		GuildID:   "guild-1",
		Name:      "The Drowned Market",
		Active:    true,
		Tags:      []storage.TagRecord{{ID: "tag-dark", Name: "unnatural darkness"}},
		Statuses:  []storage.StatusRecord{{ID: "status-flood", Name: "rising water-2"}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if err := store.PutScene(context.Background(), scene); err != nil {
		t.Fatalf("put scene: %v", err)
	}

	data, ok, err := store.SceneTagData(context.Background(), tags.Entity{Source: tags.SourceSceneTag, ParentID: "tag-dark"})
	if err != nil || !ok {
		t.Fatalf("resolve scene tag: ok=%v err=%v", ok, err)
	}
	if data.Name != "unnatural darkness" || data.Kind != tags.KindTag {
		t.Fatalf("data = %+v", data)
	}

	data, ok, err = store.SceneTagData(context.Background(), tags.Entity{Source: tags.SourceSceneStatus, ParentID: "status-flood"})
	if err != nil || !ok {
		t.Fatalf("resolve scene status: ok=%v err=%v", ok, err)
	}
	if data.Name != "rising water-2" || data.Kind != tags.KindStatus {
		t.Fatalf("data = %+v", data)
	}

	_, ok, err = store.SceneTagData(context.Background(), tags.Entity{Source: tags.SourceSceneTag, ParentID: "tag-gone"})
	if err != nil || ok {
		t.Fatalf("expected dangling, got ok=%v err=%v", ok, err)
	}
}

func TestFellowshipRoundTrip(t *testing.T) {
	store := openTestStore(t)
	record := storage.FellowshipRecord{
		GuildID:   "guild-1",
		ID:        "fellowship-1",
		Name:      "The Lantern Bearers",
		Tags:      []storage.TagRecord{{ID: "tag-bond", Name: "sworn to the light"}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if err := store.PutFellowship(context.Background(), record); err != nil {
		t.Fatalf("put fellowship: %v", err)
	}

	got, err := store.GetFellowship(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("get fellowship: %v", err)
	}
	if got.Name != "The Lantern Bearers" || len(got.Tags) != 1 {
		t.Fatalf("unexpected fellowship %+v", got)
	}

	data, ok, err := store.FellowshipTagData(context.Background(), tags.Entity{Source: tags.SourceFellowshipTag, ParentID: "tag-bond"})
	if err != nil || !ok {
		t.Fatalf("resolve fellowship tag: ok=%v err=%v", ok, err)
	}
	if data.Name != "sworn to the light" {
		t.Fatalf("data = %+v", data)
	}

	if _, err := store.GetFellowship(context.Background(), "guild-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNarratorGrantRevoke(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.IsNarrator(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("is narrator: %v", err)
	}
	if ok {
		t.Fatal("expected no grant")
	}

	grant := storage.NarratorRecord{GuildID: "guild-1", UserID: "user-1", GrantedAt: testTime}
	if err := store.SetNarrator(context.Background(), grant); err != nil {
		t.Fatalf("set narrator: %v", err)
	}
	if err := store.SetNarrator(context.Background(), grant); err != nil {
		t.Fatalf("repeat grant: %v", err)
	}

	ok, err = store.IsNarrator(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("is narrator: %v", err)
	}
	if !ok {
		t.Fatal("expected grant")
	}

	ok, err = store.IsNarrator(context.Background(), "guild-2", "user-1")
	if err != nil {
		t.Fatalf("is narrator other guild: %v", err)
	}
	if ok {
		t.Fatal("expected guild scoping")
	}

	if err := store.RemoveNarrator(context.Background(), "guild-1", "user-1"); err != nil {
		t.Fatalf("remove narrator: %v", err)
	}
	if err := store.RemoveNarrator(context.Background(), "guild-1", "user-1"); err != nil {
		t.Fatalf("repeat remove: %v", err)
	}

	ok, err = store.IsNarrator(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("is narrator after revoke: %v", err)
	}
	if ok {
		t.Fatal("expected grant revoked")
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	store := openTestStore(t)

	err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{
		Timestamp:  testTime,
		EventName:  "roll.executed",
		Severity:   "INFO",
		GuildID:    "guild-1",
		RollID:     3,
		ActorID:    "user-1",
		Attributes: map[string]any{"outcome": "strong_success"},
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	var count int
	var attributes string
	row := store.sqlDB.QueryRow(`SELECT COUNT(*), MAX(attributes) FROM telemetry_events WHERE guild_id = 'guild-1'`)
	if err := row.Scan(&count, &attributes); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
	if attributes != `{"outcome":"strong_success"}` {
		t.Fatalf("attributes = %s", attributes)
	}

	if err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{Severity: "INFO"}); err == nil {
		t.Fatal("expected missing event name to be rejected")
	}
}

func TestReopenKeepsDataAndMigrations(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/engine.db"

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.PutCharacter(context.Background(), sampleCharacter()); err != nil {
		t.Fatalf("put character: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetCharacter(context.Background(), "guild-1", "char-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != "Asha" {
		t.Fatalf("unexpected character %+v", got)
	}
}
