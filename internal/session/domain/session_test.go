package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	rolldomain "github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func TestStartSessionNormalizesInput(t *testing.T) {
	session, err := StartSession(StartSessionInput{
		Key:         Key{CreatorID: "  user-1  ", Purpose: PurposePropose},
		GuildID:     " guild-1 ",
		CharacterID: " char-1 ",
		SceneID:     " scene-1 ",
	}, fixedClock)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if session.Key.CreatorID != "user-1" {
		t.Fatalf("expected trimmed creator id, got %q", session.Key.CreatorID)
	}
	if session.GuildID != "guild-1" || session.CharacterID != "char-1" || session.SceneID != "scene-1" {
		t.Fatalf("expected trimmed context, got %q %q %q", session.GuildID, session.CharacterID, session.SceneID)
	}
	if !session.CreatedAt.Equal(fixedClock()) || !session.UpdatedAt.Equal(fixedClock()) {
		t.Fatalf("expected clock timestamps, got %v / %v", session.CreatedAt, session.UpdatedAt)
	}
}

func TestStartSessionValidation(t *testing.T) {
	tests := []struct {
		name  string
		input StartSessionInput
		want  apperrors.Code
	}{
		{
			name:  "missing creator",
			input: StartSessionInput{Key: Key{Purpose: PurposePropose}, GuildID: "guild-1", CharacterID: "char-1"},
			want:  apperrors.CodeSessionEmptyCreatorID,
		},
		{
			name:  "missing purpose",
			input: StartSessionInput{Key: Key{CreatorID: "user-1"}, GuildID: "guild-1", CharacterID: "char-1"},
			want:  apperrors.CodeSessionPurposeInvalid,
		},
		{
			name:  "missing guild",
			input: StartSessionInput{Key: Key{CreatorID: "user-1", Purpose: PurposePropose}, CharacterID: "char-1"},
			want:  apperrors.CodeSessionEmptyGuildID,
		},
		{
			name:  "missing character",
			input: StartSessionInput{Key: Key{CreatorID: "user-1", Purpose: PurposePropose}, GuildID: "guild-1"},
			want:  apperrors.CodeSessionEmptyCharacter,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := StartSession(tc.input, fixedClock)
			if !apperrors.IsCode(err, tc.want) {
				t.Fatalf("expected code %s, got %v", tc.want, err)
			}
		})
	}
}

func TestParsePurposeRoundTrip(t *testing.T) {
	purposes := []Purpose{PurposePropose, PurposeReaction, PurposeAmend, PurposeConfirm, PurposeReconfirm}
	for _, purpose := range purposes {
		parsed, err := ParsePurpose(purpose.String())
		if err != nil {
			t.Fatalf("parse %q: %v", purpose.String(), err)
		}
		if parsed != purpose {
			t.Fatalf("expected %v, got %v", purpose, parsed)
		}
	}

	if _, err := ParsePurpose("interrogate"); !apperrors.IsCode(err, apperrors.CodeSessionPurposeInvalid) {
		t.Fatalf("expected invalid purpose error, got %v", err)
	}
}

func TestAllowedActionsByPurpose(t *testing.T) {
	tests := []struct {
		purpose Purpose
		submit  bool
		confirm bool
	}{
		{PurposePropose, true, false},
		{PurposeReaction, true, false},
		{PurposeAmend, true, false},
		{PurposeConfirm, false, true},
		{PurposeReconfirm, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.purpose.String(), func(t *testing.T) {
			if got := tc.purpose.Allows(ActionSubmit); got != tc.submit {
				t.Fatalf("submit allowed = %v, want %v", got, tc.submit)
			}
			if got := tc.purpose.Allows(ActionConfirm); got != tc.confirm {
				t.Fatalf("confirm allowed = %v, want %v", got, tc.confirm)
			}
			if !tc.purpose.Allows(ActionCancel) {
				t.Fatal("expected cancel to always be allowed")
			}
		})
	}
}

func TestSeedFromRollCopiesDraftContent(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	shaken := tags.Entity{Source: tags.SourceSceneStatus, ParentID: "status-shaken"}
	burned := clever.Key()
	roll := rolldomain.Roll{
		ID:          7,
		GuildID:     "guild-1",
		CreatorID:   "user-1",
		CharacterID: "char-1",
		SceneID:     "scene-1",
		Description: "leap the chasm",
		Might:       2,
		Help:        []tags.Entity{clever},
		Hinder:      []tags.Entity{shaken},
		BurnedTag:   &burned,
	}

	session, err := SeedFromRoll(Key{CreatorID: "narrator-1", Purpose: PurposeConfirm}, roll, fixedClock)
	if err != nil {
		t.Fatalf("seed from roll: %v", err)
	}

	if session.RollID != 7 {
		t.Fatalf("expected roll id 7, got %d", session.RollID)
	}
	if session.Key.CreatorID != "narrator-1" {
		t.Fatalf("expected session owned by actor, got %q", session.Key.CreatorID)
	}
	if !tags.ContainsKey(session.Help, clever.Key()) || !tags.ContainsKey(session.Hinder, shaken.Key()) {
		t.Fatal("expected help and hinder copied")
	}
	if session.BurnedTag == nil || *session.BurnedTag != burned {
		t.Fatalf("expected burn mark copied, got %v", session.BurnedTag)
	}
	if session.Might != 2 || session.Description != "leap the chasm" {
		t.Fatalf("expected draft fields copied, got might=%d description=%q", session.Might, session.Description)
	}

	// The seeded sets are private copies.
	session.Help[0].CharacterID = "char-2"
	if roll.Help[0].CharacterID != "char-1" {
		t.Fatal("expected seeded help to be independent of the roll")
	}
}

func TestSeedReactionExcludesOriginalTags(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	shaken := tags.Entity{Source: tags.SourceSceneStatus, ParentID: "status-shaken"}
	original := rolldomain.Roll{
		ID:     3,
		Help:   []tags.Entity{clever},
		Hinder: []tags.Entity{shaken},
	}

	session, err := SeedReaction(StartSessionInput{
		Key:         Key{CreatorID: "user-2", Purpose: PurposeReaction},
		GuildID:     "guild-1",
		CharacterID: "char-2",
	}, original, fixedClock)
	if err != nil {
		t.Fatalf("seed reaction: %v", err)
	}

	if !session.IsReaction || session.ReactionTo != 3 {
		t.Fatalf("expected reaction linkage, got %v -> %d", session.IsReaction, session.ReactionTo)
	}
	if len(session.ExcludedTags) != 2 {
		t.Fatalf("expected 2 excluded keys, got %d", len(session.ExcludedTags))
	}

	if _, err := AddHelp(session, clever); !apperrors.IsCode(err, apperrors.CodeTagReactionReuse) {
		t.Fatalf("expected reaction reuse error for help, got %v", err)
	}
	if _, err := AddHinder(session, shaken); !apperrors.IsCode(err, apperrors.CodeTagReactionReuse) {
		t.Fatalf("expected reaction reuse error for hinder, got %v", err)
	}

	fresh := tags.Entity{Source: tags.SourceCharacterStoryTag, ParentID: "tag-vow", CharacterID: "char-2"}
	if _, err := AddHelp(session, fresh); err != nil {
		t.Fatalf("expected unrelated entity accepted, got %v", err)
	}
}

func TestAddHelpUpdatesAttribution(t *testing.T) {
	session := Session{Key: Key{CreatorID: "user-1", Purpose: PurposePropose}}
	mine := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}

	session, err := AddHelp(session, mine)
	if err != nil {
		t.Fatalf("add help: %v", err)
	}
	theirs := mine
	theirs.CharacterID = "char-2"
	session, err = AddHelp(session, theirs)
	if err != nil {
		t.Fatalf("add help again: %v", err)
	}

	if len(session.Help) != 1 {
		t.Fatalf("expected single entry, got %d", len(session.Help))
	}
	if session.Help[0].CharacterID != "char-2" {
		t.Fatalf("expected attribution updated, got %q", session.Help[0].CharacterID)
	}
}

func TestRemoveHelpClearsBurn(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	session := Session{Help: []tags.Entity{clever}}
	session = SetBurned(session, clever.Key())
	if session.BurnedTag == nil {
		t.Fatal("expected burn mark set")
	}

	session = RemoveHelp(session, clever.Key())
	if len(session.Help) != 0 {
		t.Fatalf("expected help emptied, got %v", session.Help)
	}
	if session.BurnedTag != nil {
		t.Fatalf("expected burn cleared, got %v", session.BurnedTag)
	}
}

func TestReplaceHelpPagePreservesOtherPages(t *testing.T) {
	pageOne := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	pageTwoOld := tags.Entity{Source: tags.SourceCharacterBackpackItem, ParentID: "item-rope", CharacterID: "char-1"}
	pageTwoNew := tags.Entity{Source: tags.SourceCharacterBackpackItem, ParentID: "item-lantern", CharacterID: "char-1"}
	session := Session{Help: []tags.Entity{pageOne, pageTwoOld}}

	visible := []tags.Key{pageTwoOld.Key(), pageTwoNew.Key()}
	session, err := ReplaceHelpPage(session, visible, []tags.Entity{pageTwoNew})
	if err != nil {
		t.Fatalf("replace help page: %v", err)
	}

	if !tags.ContainsKey(session.Help, pageOne.Key()) {
		t.Fatal("expected off-page selection preserved")
	}
	if tags.ContainsKey(session.Help, pageTwoOld.Key()) {
		t.Fatal("expected deselected entry removed")
	}
	if !tags.ContainsKey(session.Help, pageTwoNew.Key()) {
		t.Fatal("expected new selection added")
	}
}

func TestSetBurnedIsExclusiveAndScoped(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	rope := tags.Entity{Source: tags.SourceCharacterBackpackItem, ParentID: "item-rope", CharacterID: "char-1"}
	session := Session{Help: []tags.Entity{clever, rope}}

	session = SetBurned(session, clever.Key())
	session = SetBurned(session, rope.Key())
	if session.BurnedTag == nil || *session.BurnedTag != rope.Key() {
		t.Fatalf("expected burn moved to rope, got %v", session.BurnedTag)
	}

	outside := tags.Key{Source: tags.SourceSceneTag, ParentID: "tag-fog"}
	session = SetBurned(session, outside)
	if session.BurnedTag == nil || *session.BurnedTag != rope.Key() {
		t.Fatalf("expected burn unchanged for key outside help, got %v", session.BurnedTag)
	}

	session = ClearBurned(session)
	if session.BurnedTag != nil {
		t.Fatalf("expected burn cleared, got %v", session.BurnedTag)
	}
}

func TestSetMightRange(t *testing.T) {
	session := Session{}

	session, err := SetMight(session, -12)
	if err != nil {
		t.Fatalf("set might -12: %v", err)
	}
	session, err = SetMight(session, 12)
	if err != nil {
		t.Fatalf("set might 12: %v", err)
	}
	if session.Might != 12 {
		t.Fatalf("expected might 12, got %d", session.Might)
	}

	if _, err := SetMight(session, 13); !apperrors.IsCode(err, apperrors.CodeMightOutOfRange) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	_, err = SetMight(session, -13)
	if !apperrors.IsCode(err, apperrors.CodeMightOutOfRange) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	meta := apperrors.GetMetadata(err)
	if meta["Min"] != "-12" || meta["Max"] != "12" {
		t.Fatalf("unexpected range metadata: %v", meta)
	}

	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected structured error, got %T", err)
	}
}

func TestSetHelpAttributionIgnoresUnknownKey(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	session := Session{Help: []tags.Entity{clever}}

	session = SetHelpAttribution(session, clever.Key(), "char-9")
	if session.Help[0].CharacterID != "char-9" {
		t.Fatalf("expected attribution updated, got %q", session.Help[0].CharacterID)
	}

	unknown := tags.Key{Source: tags.SourceFellowshipTag, ParentID: "tag-bond"}
	session = SetHelpAttribution(session, unknown, "char-9")
	if len(session.Help) != 1 {
		t.Fatalf("expected no insertion, got %d entries", len(session.Help))
	}
}

func TestDraftContentMapsSession(t *testing.T) {
	clever := tags.Entity{Source: tags.SourceCharacterThemeTag, ParentID: "tag-clever", CharacterID: "char-1"}
	burned := clever.Key()
	session := Session{
		Key:         Key{CreatorID: "user-1", Purpose: PurposePropose},
		GuildID:     "guild-1",
		CharacterID: "char-1",
		SceneID:     "scene-1",
		Description: "leap the chasm",
		Might:       -2,
		Help:        []tags.Entity{clever},
		BurnedTag:   &burned,
		IsReaction:  true,
		ReactionTo:  4,
	}

	input := DraftContent(session)
	if input.GuildID != "guild-1" || input.CreatorID != "user-1" {
		t.Fatalf("expected identity mapped, got %q %q", input.GuildID, input.CreatorID)
	}
	if input.Might != -2 || !input.IsReaction || input.ReactionTo != 4 {
		t.Fatalf("expected draft fields mapped, got %+v", input)
	}
	if input.BurnedTag == nil || *input.BurnedTag != burned {
		t.Fatalf("expected burn mark mapped, got %v", input.BurnedTag)
	}

	// The mapped sets are private copies.
	input.Help[0].CharacterID = "char-2"
	if session.Help[0].CharacterID != "char-1" {
		t.Fatal("expected draft content to be independent of the session")
	}
}
