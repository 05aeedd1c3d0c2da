package mist

import (
	"strconv"
	"strings"

	"github.com/louisbranch/mist-engine/internal/tags"
)

// Contribution is one resolved tag feeding a power calculation. Callers
// resolve entities first; dangling references never reach this package.
type Contribution struct {
	Name string
	Kind tags.Kind
	// Burned marks the single burned help tag, which contributes +3
	// instead of +1. Ignored on the hinder side.
	Burned bool
}

// PowerRequest describes a power calculation over both sides of a roll.
type PowerRequest struct {
	Help   []Contribution
	Hinder []Contribution
	Might  int
}

// PowerBreakdown reports the power total and its per-side components, so
// surfaces can show players where the number came from.
type PowerBreakdown struct {
	HighestHelpStatus   int
	HelpTagSum          int
	HighestHinderStatus int
	HinderTagSum        int
	Might               int
	Power               int
}

// ComputePower computes the net modifier added to the dice.
//
// Per side, statuses contribute only the single highest tier among them;
// stacking two statuses never beats the bigger one alone. Every non-status
// tag contributes +1, except the burned help tag at +3. Weaknesses count as
// plain tags on the hinder side. Both sides are computed independently,
// subtracted, and the flat Might adjustment added:
//
//	power = (highestHelpStatus + helpTagSum) - (highestHinderStatus + hinderTagSum) + might
//
// Empty sides contribute 0, so ComputePower(PowerRequest{}) is 0.
func ComputePower(request PowerRequest) PowerBreakdown {
	breakdown := PowerBreakdown{Might: request.Might}

	for _, entry := range request.Help {
		if entry.Kind == tags.KindStatus {
			if value := StatusValue(entry.Name); value > breakdown.HighestHelpStatus {
				breakdown.HighestHelpStatus = value
			}
			continue
		}
		if entry.Burned {
			breakdown.HelpTagSum += 3
		} else {
			breakdown.HelpTagSum++
		}
	}

	for _, entry := range request.Hinder {
		if entry.Kind == tags.KindStatus {
			if value := StatusValue(entry.Name); value > breakdown.HighestHinderStatus {
				breakdown.HighestHinderStatus = value
			}
			continue
		}
		breakdown.HinderTagSum++
	}

	breakdown.Power = breakdown.HighestHelpStatus + breakdown.HelpTagSum -
		breakdown.HighestHinderStatus - breakdown.HinderTagSum + request.Might
	return breakdown
}

// BuildContributions converts resolved entities into power contributions.
// Entities absent from the resolved map are dangling and skipped; the
// entity matching the burned key is marked burned.
func BuildContributions(entities []tags.Entity, resolved map[tags.Key]tags.Resolved, burned *tags.Key) []Contribution {
	out := make([]Contribution, 0, len(entities))
	for _, entity := range entities {
		key := entity.Key()
		res, ok := resolved[key]
		if !ok {
			continue
		}
		out = append(out, Contribution{
			Name:   res.Name,
			Kind:   res.Kind,
			Burned: burned != nil && *burned == key,
		})
	}
	return out
}

// StatusValue extracts the tier from a status name. The tier is the integer
// suffix after the final dash ("shaken-3" is tier 3); names without a
// parsable positive suffix are tier 1.
func StatusValue(name string) int {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return 1
	}
	value, err := strconv.Atoi(name[idx+1:])
	if err != nil || value < 1 {
		return 1
	}
	return value
}
