// Package tags models polymorphic references to narrative tags and resolves
// them against the records that own them.
//
// An Entity is a lightweight, immutable pointer to where a tag lives (a
// character theme, a backpack item, a scene status, ...) rather than to the
// tag's display text. Display names change and collide; identity never does.
package tags

import "strings"

// Source identifies the record family that owns a tag.
type Source int

const (
	// SourceUnspecified represents an invalid tag source value.
	SourceUnspecified Source = iota
	// SourceCharacterTheme references a character theme used as a tag.
	SourceCharacterTheme
	// SourceCharacterThemeTag references a tag inside a character theme.
	SourceCharacterThemeTag
	// SourceCharacterBackpackItem references an item in a character backpack.
	SourceCharacterBackpackItem
	// SourceCharacterStoryTag references a free-floating character story tag.
	SourceCharacterStoryTag
	// SourceCharacterStatus references a status on a character.
	SourceCharacterStatus
	// SourceSceneTag references a tag on the active scene.
	SourceSceneTag
	// SourceSceneStatus references a status on the active scene.
	SourceSceneStatus
	// SourceFellowshipTag references a tag on the fellowship sheet.
	SourceFellowshipTag
)

// String returns the wire identifier for the source.
func (s Source) String() string {
	switch s {
	case SourceCharacterTheme:
		return "character_theme"
	case SourceCharacterThemeTag:
		return "character_theme_tag"
	case SourceCharacterBackpackItem:
		return "character_backpack_item"
	case SourceCharacterStoryTag:
		return "character_story_tag"
	case SourceCharacterStatus:
		return "character_status"
	case SourceSceneTag:
		return "scene_tag"
	case SourceSceneStatus:
		return "scene_status"
	case SourceFellowshipTag:
		return "fellowship_tag"
	default:
		return "unspecified"
	}
}

// ParseSource maps a wire identifier back to a Source.
// Unknown identifiers map to SourceUnspecified.
func ParseSource(value string) Source {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "character_theme":
		return SourceCharacterTheme
	case "character_theme_tag":
		return SourceCharacterThemeTag
	case "character_backpack_item":
		return SourceCharacterBackpackItem
	case "character_story_tag":
		return SourceCharacterStoryTag
	case "character_status":
		return SourceCharacterStatus
	case "scene_tag":
		return SourceSceneTag
	case "scene_status":
		return SourceSceneStatus
	case "fellowship_tag":
		return SourceFellowshipTag
	default:
		return SourceUnspecified
	}
}

// CharacterOwned reports whether the source family lives on a character sheet.
func (s Source) CharacterOwned() bool {
	switch s {
	case SourceCharacterTheme,
		SourceCharacterThemeTag,
		SourceCharacterBackpackItem,
		SourceCharacterStoryTag,
		SourceCharacterStatus:
		return true
	default:
		return false
	}
}

// SceneOwned reports whether the source family lives on a scene.
func (s Source) SceneOwned() bool {
	return s == SourceSceneTag || s == SourceSceneStatus
}

// FellowshipOwned reports whether the source family lives on the fellowship sheet.
func (s Source) FellowshipOwned() bool {
	return s == SourceFellowshipTag
}

// Entity is a polymorphic reference to one tag source.
//
// CharacterID is set iff the source is character-owned; scene and fellowship
// tags have no owning character. Entities never carry resolved display names.
type Entity struct {
	Source      Source
	ParentID    string
	CharacterID string
}

// Key is the identity of an entity. Two entities are the same tag reference
// iff their keys are equal; CharacterID is attribution, not identity.
type Key struct {
	Source   Source
	ParentID string
}

// Key returns the identity key for the entity.
func (e Entity) Key() Key {
	return Key{Source: e.Source, ParentID: e.ParentID}
}

// ContainsKey reports whether the slice holds an entity with the given key.
func ContainsKey(entities []Entity, key Key) bool {
	for _, candidate := range entities {
		if candidate.Key() == key {
			return true
		}
	}
	return false
}

// FindByKey returns the entity with the given key, if present.
func FindByKey(entities []Entity, key Key) (Entity, bool) {
	for _, candidate := range entities {
		if candidate.Key() == key {
			return candidate, true
		}
	}
	return Entity{}, false
}

// AddEntity appends the entity unless an entity with the same key is already
// present, in which case the existing entry is replaced in place. Replacement
// keeps identity stable while letting attribution (CharacterID) change.
func AddEntity(entities []Entity, entity Entity) []Entity {
	for i, candidate := range entities {
		if candidate.Key() == entity.Key() {
			entities[i] = entity
			return entities
		}
	}
	return append(entities, entity)
}

// RemoveKey removes the entity with the given key, preserving order.
func RemoveKey(entities []Entity, key Key) []Entity {
	out := entities[:0]
	for _, candidate := range entities {
		if candidate.Key() != key {
			out = append(out, candidate)
		}
	}
	return out
}

// CloneEntities returns a copy of the slice. A nil input stays nil.
func CloneEntities(entities []Entity) []Entity {
	if entities == nil {
		return nil
	}
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}
