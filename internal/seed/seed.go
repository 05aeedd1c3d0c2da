// Package seed loads deterministic development fixtures into the engine
// store. Scenarios use fixed ids and timestamps so reruns are idempotent
// and local bug reports reference stable entities.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/storage/sqlite"
)

// Config holds fixture loading configuration.
type Config struct {
	// DBPath is the sqlite database to load fixtures into.
	DBPath string
	// Scenario restricts the run to one named scenario. Empty runs all.
	Scenario string
	// Verbose prints each record as it is written.
	Verbose bool
}

// DefaultConfig returns the standard local development configuration.
func DefaultConfig() Config {
	return Config{DBPath: filepath.Join("data", "engine.db")}
}

// fixtureTime anchors every seeded timestamp.
var fixtureTime = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

// Scenario is a named set of fixtures loaded together.
type Scenario struct {
	Name        string
	Description string
	apply       func(ctx context.Context, store *sqlite.Store, report func(format string, args ...any)) error
}

// Scenarios returns the available fixture scenarios in load order.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "rivermoot",
			Description: "full guild: two characters, active scene, fellowship, narrator",
			apply:       applyRivermoot,
		},
		{
			Name:        "frontier",
			Description: "sparse guild: one character, no active scene",
			apply:       applyFrontier,
		},
	}
}

// ListScenarios returns "name - description" lines for -list output.
func ListScenarios() []string {
	scenarios := Scenarios()
	lines := make([]string, 0, len(scenarios))
	for _, scenario := range scenarios {
		lines = append(lines, fmt.Sprintf("%s - %s", scenario.Name, scenario.Description))
	}
	return lines
}

// Run loads the selected scenarios into the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	selected, err := selectScenarios(cfg.Scenario)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	report := func(format string, args ...any) {
		if cfg.Verbose {
			fmt.Fprintf(out, "  "+format+"\n", args...)
		}
	}

	for _, scenario := range selected {
		if err := scenario.apply(ctx, store, report); err != nil {
			return fmt.Errorf("seed %s: %w", scenario.Name, err)
		}
		fmt.Fprintf(out, "seeded %s\n", scenario.Name)
	}
	return nil
}

func selectScenarios(name string) ([]Scenario, error) {
	scenarios := Scenarios()
	name = strings.TrimSpace(name)
	if name == "" {
		return scenarios, nil
	}
	for _, scenario := range scenarios {
		if scenario.Name == name {
			return []Scenario{scenario}, nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open engine sqlite store: %w", err)
	}
	return store, nil
}

// applyRivermoot seeds a guild with everything the roll flow can touch:
// two characters, an active scene, a fellowship, and a narrator grant.
func applyRivermoot(ctx context.Context, store *sqlite.Store, report func(format string, args ...any)) error {
	const guildID = "guild-rivermoot"

	asha := storage.CharacterRecord{
		ID:      "char-asha",
		GuildID: guildID,
		OwnerID: "user-asha",
		Name:    "Asha",
		Themes: []storage.ThemeRecord{{
			ID:   "theme-storm-touched",
			Name: "Storm-Touched",
			Tags: []storage.TagRecord{
				{ID: "tag-grit", Name: "grit"},
				{ID: "tag-fear-heights", Name: "fear of heights", Weakness: true},
			},
		}},
		Backpack:  []storage.TagRecord{{ID: "tag-storm-lantern", Name: "storm lantern"}},
		StoryTags: []storage.TagRecord{{ID: "tag-blood-oath", Name: "blood oath"}},
		Statuses:  []storage.StatusRecord{{ID: "status-soaked", Name: "soaked-2"}},
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := store.PutCharacter(ctx, asha); err != nil {
		return fmt.Errorf("put character %s: %w", asha.ID, err)
	}
	report("character %s (%s)", asha.Name, asha.ID)

	bren := storage.CharacterRecord{
		ID:      "char-bren",
		GuildID: guildID,
		OwnerID: "user-bren",
		Name:    "Bren",
		Themes: []storage.ThemeRecord{{
			ID:   "theme-iron-ledger",
			Name: "Iron Ledger",
			Tags: []storage.TagRecord{
				{ID: "tag-patience", Name: "unshakeable patience"},
				{ID: "tag-guild-debt", Name: "debt to the guild", Weakness: true},
			},
		}},
		Backpack:  []storage.TagRecord{{ID: "tag-ledger", Name: "ledger of favors"}},
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := store.PutCharacter(ctx, bren); err != nil {
		return fmt.Errorf("put character %s: %w", bren.ID, err)
	}
	report("character %s (%s)", bren.Name, bren.ID)

	scene := storage.SceneRecord{
		ID:        "scene-drowned-market",
		GuildID:   guildID,
		Name:      "The Drowned Market",
		Active:    true,
		Tags:      []storage.TagRecord{{ID: "tag-darkness", Name: "unnatural darkness"}},
		Statuses:  []storage.StatusRecord{{ID: "status-flood", Name: "rising water-2"}},
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := store.PutScene(ctx, scene); err != nil {
		return fmt.Errorf("put scene %s: %w", scene.ID, err)
	}
	report("scene %s (%s)", scene.Name, scene.ID)

	fellowship := storage.FellowshipRecord{
		ID:        "fellowship-lantern-bearers",
		GuildID:   guildID,
		Name:      "The Lantern Bearers",
		Tags:      []storage.TagRecord{{ID: "tag-sworn-light", Name: "sworn to the light"}},
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := store.PutFellowship(ctx, fellowship); err != nil {
		return fmt.Errorf("put fellowship %s: %w", fellowship.ID, err)
	}
	report("fellowship %s (%s)", fellowship.Name, fellowship.ID)

	narrator := storage.NarratorRecord{GuildID: guildID, UserID: "user-maren", GrantedAt: fixtureTime}
	if err := store.SetNarrator(ctx, narrator); err != nil {
		return fmt.Errorf("set narrator %s: %w", narrator.UserID, err)
	}
	report("narrator %s", narrator.UserID)

	return nil
}

// applyFrontier seeds a guild with the minimum a draft needs, leaving the
// no-active-scene path reachable in local runs.
func applyFrontier(ctx context.Context, store *sqlite.Store, report func(format string, args ...any)) error {
	const guildID = "guild-frontier"

	odile := storage.CharacterRecord{
		ID:      "char-odile",
		GuildID: guildID,
		OwnerID: "user-odile",
		Name:    "Odile",
		Themes: []storage.ThemeRecord{{
			ID:   "theme-cartographer",
			Name: "Cartographer's Eye",
			Tags: []storage.TagRecord{
				{ID: "tag-steady-hands", Name: "steady hands"},
				{ID: "tag-night-blind", Name: "night blindness", Weakness: true},
			},
		}},
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := store.PutCharacter(ctx, odile); err != nil {
		return fmt.Errorf("put character %s: %w", odile.ID, err)
	}
	report("character %s (%s)", odile.Name, odile.ID)

	return nil
}
