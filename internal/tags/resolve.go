package tags

import (
	"context"
	"fmt"
)

// Kind classifies what a resolved tag is for power calculation.
type Kind int

const (
	// KindUnspecified represents an invalid kind value.
	KindUnspecified Kind = iota
	// KindTag is a plain narrative tag.
	KindTag
	// KindStatus is a tiered status whose value is the numeric name suffix.
	KindStatus
	// KindWeakness is a weakness tag; it only ever hinders.
	KindWeakness
)

// String returns the wire identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindStatus:
		return "status"
	case KindWeakness:
		return "weakness"
	default:
		return "unspecified"
	}
}

// TagData is the live lookup result for an entity reference, as reported by
// the owning store. Kind may be KindUnspecified for sources whose kind is
// implied by the source itself.
type TagData struct {
	Name string
	Kind Kind
}

// Resolved is the transient, display-ready view of an entity. It is derived
// on demand and never persisted.
type Resolved struct {
	Name     string
	Kind     Kind
	Burnable bool
}

// CharacterSource looks up tag data owned by character records.
type CharacterSource interface {
	CharacterTagData(ctx context.Context, entity Entity) (TagData, bool, error)
}

// SceneSource looks up tag data owned by scene records.
type SceneSource interface {
	SceneTagData(ctx context.Context, entity Entity) (TagData, bool, error)
}

// FellowshipSource looks up tag data owned by the fellowship sheet.
type FellowshipSource interface {
	FellowshipTagData(ctx context.Context, entity Entity) (TagData, bool, error)
}

// Resolver resolves entities against the stores that own their records.
//
// A missing parent record is not an error: records are edited and deleted
// concurrently with roll drafting, so danglers are expected and callers
// prune them. Only store failures surface as errors.
type Resolver struct {
	Characters  CharacterSource
	Scenes      SceneSource
	Fellowships FellowshipSource
}

// Resolve looks up one entity. The second return value reports whether the
// parent record still exists.
func (r Resolver) Resolve(ctx context.Context, entity Entity) (Resolved, bool, error) {
	data, ok, err := r.lookup(ctx, entity)
	if err != nil {
		return Resolved{}, false, err
	}
	if !ok {
		return Resolved{}, false, nil
	}

	kind := deriveKind(entity.Source, data.Kind)
	return Resolved{
		Name:     data.Name,
		Kind:     kind,
		Burnable: kind == KindTag && entity.Source.CharacterOwned(),
	}, true, nil
}

// ResolveAll resolves a set of entities, partitioning them into the resolved
// map keyed by identity and the dangling references that no longer exist.
func (r Resolver) ResolveAll(ctx context.Context, entities []Entity) (map[Key]Resolved, []Entity, error) {
	resolved := make(map[Key]Resolved, len(entities))
	var dangling []Entity
	for _, entity := range entities {
		res, ok, err := r.Resolve(ctx, entity)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			dangling = append(dangling, entity)
			continue
		}
		resolved[entity.Key()] = res
	}
	return resolved, dangling, nil
}

func (r Resolver) lookup(ctx context.Context, entity Entity) (TagData, bool, error) {
	switch {
	case entity.Source.CharacterOwned():
		if r.Characters == nil {
			return TagData{}, false, fmt.Errorf("character source is not configured")
		}
		return r.Characters.CharacterTagData(ctx, entity)
	case entity.Source.SceneOwned():
		if r.Scenes == nil {
			return TagData{}, false, fmt.Errorf("scene source is not configured")
		}
		return r.Scenes.SceneTagData(ctx, entity)
	case entity.Source.FellowshipOwned():
		if r.Fellowships == nil {
			return TagData{}, false, fmt.Errorf("fellowship source is not configured")
		}
		return r.Fellowships.FellowshipTagData(ctx, entity)
	default:
		// Unspecified sources cannot resolve; treat them as dangling.
		return TagData{}, false, nil
	}
}

// deriveKind trusts the source family over the stored kind for statuses, so
// a mislabeled record cannot smuggle a status into the flat +1 tag lane.
func deriveKind(source Source, stored Kind) Kind {
	switch source {
	case SourceCharacterStatus, SourceSceneStatus:
		return KindStatus
	}
	if stored == KindUnspecified {
		return KindTag
	}
	return stored
}
