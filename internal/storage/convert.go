package storage

import (
	"github.com/louisbranch/mist-engine/internal/roll/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// ToRoll converts a persisted record into its domain aggregate.
func (r RollRecord) ToRoll() domain.Roll {
	roll := domain.Roll{
		ID:             r.ID,
		GuildID:        r.GuildID,
		CreatorID:      r.CreatorID,
		CharacterID:    r.CharacterID,
		SceneID:        r.SceneID,
		Description:    r.Description,
		NarrationLink:  r.NarrationLink,
		Justification:  r.Justification,
		Might:          r.Might,
		Status:         r.Status,
		ConfirmedBy:    r.ConfirmedBy,
		Help:           tags.CloneEntities(r.Help),
		Hinder:         tags.CloneEntities(r.Hinder),
		IsReaction:     r.IsReaction,
		ReactionTo:     r.ReactionTo,
		Strategy:       r.Strategy,
		PurgedTagCount: r.PurgedTagCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.BurnedTag != nil {
		burned := *r.BurnedTag
		roll.BurnedTag = &burned
	}
	if r.ExecutedAt != nil {
		roll.Result = &domain.Result{
			Die1:           r.Die1,
			Die2:           r.Die2,
			Power:          r.Power,
			Total:          r.FinalTotal,
			Outcome:        r.Outcome,
			SpendablePower: r.SpendablePower,
			ExecutedAt:     *r.ExecutedAt,
		}
	}
	return roll
}

// FromRoll converts a domain aggregate into its persisted record.
func FromRoll(roll domain.Roll) RollRecord {
	record := RollRecord{
		ID:             roll.ID,
		GuildID:        roll.GuildID,
		CreatorID:      roll.CreatorID,
		CharacterID:    roll.CharacterID,
		SceneID:        roll.SceneID,
		Description:    roll.Description,
		NarrationLink:  roll.NarrationLink,
		Justification:  roll.Justification,
		Might:          roll.Might,
		Status:         roll.Status,
		ConfirmedBy:    roll.ConfirmedBy,
		Help:           tags.CloneEntities(roll.Help),
		Hinder:         tags.CloneEntities(roll.Hinder),
		IsReaction:     roll.IsReaction,
		ReactionTo:     roll.ReactionTo,
		Strategy:       roll.Strategy,
		PurgedTagCount: roll.PurgedTagCount,
		CreatedAt:      roll.CreatedAt,
		UpdatedAt:      roll.UpdatedAt,
	}
	if roll.BurnedTag != nil {
		burned := *roll.BurnedTag
		record.BurnedTag = &burned
	}
	if roll.Result != nil {
		record.Die1 = roll.Result.Die1
		record.Die2 = roll.Result.Die2
		record.Power = roll.Result.Power
		record.FinalTotal = roll.Result.Total
		record.Outcome = roll.Result.Outcome
		record.SpendablePower = roll.Result.SpendablePower
		executedAt := roll.Result.ExecutedAt
		record.ExecutedAt = &executedAt
	}
	return record
}
