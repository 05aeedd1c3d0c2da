package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// JSON documents persisted inside sheet and roll columns. Enums are
// stored as wire identifiers so rows stay readable and stable across
// enum reordering.

type tagDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Weakness bool   `json:"weakness,omitempty"`
	Burned   bool   `json:"burned,omitempty"`
}

type statusDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type themeDoc struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Burned bool     `json:"burned,omitempty"`
	Tags   []tagDoc `json:"tags"`
}

type entityDoc struct {
	Source      string `json:"source"`
	ParentID    string `json:"parent_id"`
	CharacterID string `json:"character_id,omitempty"`
}

func encodeTags(records []storage.TagRecord) (string, error) {
	docs := make([]tagDoc, 0, len(records))
	for _, r := range records {
		docs = append(docs, tagDoc{ID: r.ID, Name: r.Name, Weakness: r.Weakness, Burned: r.Burned})
	}
	return encodeJSON(docs)
}

func decodeTags(value string) ([]storage.TagRecord, error) {
	var docs []tagDoc
	if err := decodeJSON(value, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	records := make([]storage.TagRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, storage.TagRecord{ID: d.ID, Name: d.Name, Weakness: d.Weakness, Burned: d.Burned})
	}
	return records, nil
}

func encodeStatuses(records []storage.StatusRecord) (string, error) {
	docs := make([]statusDoc, 0, len(records))
	for _, r := range records {
		docs = append(docs, statusDoc{ID: r.ID, Name: r.Name})
	}
	return encodeJSON(docs)
}

func decodeStatuses(value string) ([]storage.StatusRecord, error) {
	var docs []statusDoc
	if err := decodeJSON(value, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	records := make([]storage.StatusRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, storage.StatusRecord{ID: d.ID, Name: d.Name})
	}
	return records, nil
}

func encodeThemes(records []storage.ThemeRecord) (string, error) {
	docs := make([]themeDoc, 0, len(records))
	for _, r := range records {
		doc := themeDoc{ID: r.ID, Name: r.Name, Burned: r.Burned, Tags: make([]tagDoc, 0, len(r.Tags))}
		for _, t := range r.Tags {
			doc.Tags = append(doc.Tags, tagDoc{ID: t.ID, Name: t.Name, Weakness: t.Weakness, Burned: t.Burned})
		}
		docs = append(docs, doc)
	}
	return encodeJSON(docs)
}

func decodeThemes(value string) ([]storage.ThemeRecord, error) {
	var docs []themeDoc
	if err := decodeJSON(value, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	records := make([]storage.ThemeRecord, 0, len(docs))
	for _, d := range docs {
		record := storage.ThemeRecord{ID: d.ID, Name: d.Name, Burned: d.Burned}
		for _, t := range d.Tags {
			record.Tags = append(record.Tags, storage.TagRecord{ID: t.ID, Name: t.Name, Weakness: t.Weakness, Burned: t.Burned})
		}
		records = append(records, record)
	}
	return records, nil
}

func encodeEntities(entities []tags.Entity) (string, error) {
	docs := make([]entityDoc, 0, len(entities))
	for _, e := range entities {
		docs = append(docs, entityDoc{
			Source:      e.Source.String(),
			ParentID:    e.ParentID,
			CharacterID: e.CharacterID,
		})
	}
	return encodeJSON(docs)
}

func decodeEntities(value string) ([]tags.Entity, error) {
	var docs []entityDoc
	if err := decodeJSON(value, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	entities := make([]tags.Entity, 0, len(docs))
	for _, d := range docs {
		entities = append(entities, tags.Entity{
			Source:      tags.ParseSource(d.Source),
			ParentID:    d.ParentID,
			CharacterID: d.CharacterID,
		})
	}
	return entities, nil
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(data), nil
}

func decodeJSON(value string, target any) error {
	if value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
