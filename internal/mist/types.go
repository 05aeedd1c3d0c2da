// Package mist implements the roll mechanics of the engine: power
// calculation over help and hinder tag sets, execution strategies, and
// outcome classification for two six-sided dice.
package mist

import (
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
)

// Bounds for the flat Might adjustment to power.
const (
	MightMin = -12
	MightMax = 12
)

// Outcome thresholds for the final roll total.
const (
	// StrongSuccessThreshold is the total needed for a strong success.
	StrongSuccessThreshold = 10
	// MixedSuccessThreshold is the total needed for a mixed success on
	// standard rolls. Reaction rolls have no mixed tier.
	MixedSuccessThreshold = 7
)

// Strategy power gates.
const (
	// ThrowCautionMaxPower is the highest power that may throw caution.
	ThrowCautionMaxPower = 2
	// HedgeRisksMinPower is the lowest power that may hedge risks.
	HedgeRisksMinPower = 2
)

// Outcome represents the narrative tier of an executed roll.
type Outcome int

const (
	// OutcomeUnspecified represents an invalid outcome value.
	OutcomeUnspecified Outcome = iota
	// OutcomeFailure is a miss; the narrator drives consequences.
	OutcomeFailure
	// OutcomeMixedSuccess succeeds at a cost. Standard rolls only.
	OutcomeMixedSuccess
	// OutcomeStrongSuccess succeeds cleanly.
	OutcomeStrongSuccess
)

// String returns the wire identifier for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFailure:
		return "failure"
	case OutcomeMixedSuccess:
		return "mixed_success"
	case OutcomeStrongSuccess:
		return "strong_success"
	default:
		return "unspecified"
	}
}

// DisplayName returns the narrative name for the outcome.
func (o Outcome) DisplayName() string {
	switch o {
	case OutcomeFailure:
		return "Failure"
	case OutcomeMixedSuccess:
		return "Mixed success"
	case OutcomeStrongSuccess:
		return "Strong success"
	default:
		return "Unspecified"
	}
}

// ParseOutcome maps a wire identifier to an Outcome. The empty string maps
// to OutcomeUnspecified.
func ParseOutcome(value string) Outcome {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "failure":
		return OutcomeFailure
	case "mixed_success":
		return OutcomeMixedSuccess
	case "strong_success":
		return OutcomeStrongSuccess
	default:
		return OutcomeUnspecified
	}
}

// Strategy is a once-per-execution risk trade applied before dice are
// rolled, validated against the roll's power.
type Strategy int

const (
	// StrategyNone applies no adjustment.
	StrategyNone Strategy = iota
	// StrategyThrowCaution trades roll total for effect: -1 to the total,
	// +1 spendable power. Requires power <= 2.
	StrategyThrowCaution
	// StrategyHedgeRisks trades effect for accuracy: +1 to the total,
	// -1 spendable power. Requires power >= 2.
	StrategyHedgeRisks
)

// String returns the wire identifier for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyThrowCaution:
		return "throw_caution"
	case StrategyHedgeRisks:
		return "hedge_risks"
	default:
		return "none"
	}
}

// DisplayName returns the narrative name for the strategy.
func (s Strategy) DisplayName() string {
	switch s {
	case StrategyThrowCaution:
		return "Throw caution to the wind"
	case StrategyHedgeRisks:
		return "Hedge your risks"
	default:
		return "None"
	}
}

// ParseStrategy maps a wire identifier to a Strategy. The empty string maps
// to StrategyNone.
func ParseStrategy(value string) (Strategy, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "none":
		return StrategyNone, nil
	case "throw_caution":
		return StrategyThrowCaution, nil
	case "hedge_risks":
		return StrategyHedgeRisks, nil
	default:
		return StrategyNone, apperrors.WithMetadata(apperrors.CodeStrategyInvalid,
			"unknown execution strategy", map[string]string{"Strategy": value})
	}
}

// TotalAdjustment is the strategy's delta to the final roll total.
func (s Strategy) TotalAdjustment() int {
	switch s {
	case StrategyThrowCaution:
		return -1
	case StrategyHedgeRisks:
		return 1
	default:
		return 0
	}
}

// SpendableAdjustment is the strategy's delta to spendable power on success.
func (s Strategy) SpendableAdjustment() int {
	switch s {
	case StrategyThrowCaution:
		return 1
	case StrategyHedgeRisks:
		return -1
	default:
		return 0
	}
}

// Validate checks the strategy's power gate. Violations reject the
// execution; power is never silently clamped to fit.
func (s Strategy) Validate(power int) error {
	switch s {
	case StrategyNone:
		return nil
	case StrategyThrowCaution:
		if power > ThrowCautionMaxPower {
			return preconditionError(s, "at most "+strconv.Itoa(ThrowCautionMaxPower), power)
		}
		return nil
	case StrategyHedgeRisks:
		if power < HedgeRisksMinPower {
			return preconditionError(s, "at least "+strconv.Itoa(HedgeRisksMinPower), power)
		}
		return nil
	default:
		return apperrors.New(apperrors.CodeStrategyInvalid, "unknown execution strategy")
	}
}

func preconditionError(s Strategy, requirement string, power int) error {
	return apperrors.WithMetadata(apperrors.CodeStrategyPrecondition,
		"strategy power gate not met", map[string]string{
			"Strategy":    s.DisplayName(),
			"Requirement": requirement,
			"Power":       strconv.Itoa(power),
		})
}
