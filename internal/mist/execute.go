package mist

import (
	"github.com/louisbranch/mist-engine/internal/dice"
)

// ExecutionRequest describes a confirmed roll ready for dice. Power must be
// computed from the already-purged tag sets.
type ExecutionRequest struct {
	Power      int
	Strategy   Strategy
	IsReaction bool
	Seed       int64
}

// ExecutionResult captures the dice, the adjusted total, and the outcome.
type ExecutionResult struct {
	Die1     int
	Die2     int
	Power    int
	Strategy Strategy
	// Total is die1 + die2 + power + the strategy adjustment.
	Total   int
	Outcome Outcome
	// SpendablePower is the effect budget on a success, zero on a failure.
	SpendablePower int
}

// Execute validates the strategy gate, rolls two six-sided dice, and
// classifies the outcome. It is deterministic with respect to Seed.
func Execute(request ExecutionRequest) (ExecutionResult, error) {
	if err := request.Strategy.Validate(request.Power); err != nil {
		return ExecutionResult{}, err
	}

	pair := dice.RollPair(request.Seed)
	total := pair.Total() + request.Power + request.Strategy.TotalAdjustment()
	outcome := ClassifyOutcome(pair.Die1, pair.Die2, total, request.IsReaction)

	spendable := 0
	if outcome == OutcomeMixedSuccess || outcome == OutcomeStrongSuccess {
		spendable = SpendablePower(request.Power, request.Strategy)
	}

	return ExecutionResult{
		Die1:           pair.Die1,
		Die2:           pair.Die2,
		Power:          request.Power,
		Strategy:       request.Strategy,
		Total:          total,
		Outcome:        outcome,
		SpendablePower: spendable,
	}, nil
}

// ClassifyOutcome maps dice and total to a narrative tier. Double ones
// always fail and double sixes always succeed, regardless of modifiers.
// Reaction rolls have a single success threshold and no mixed tier.
func ClassifyOutcome(die1, die2, total int, isReaction bool) Outcome {
	switch {
	case die1 == 1 && die2 == 1:
		return OutcomeFailure
	case die1 == 6 && die2 == 6:
		return OutcomeStrongSuccess
	}

	if isReaction {
		if total >= StrongSuccessThreshold {
			return OutcomeStrongSuccess
		}
		return OutcomeFailure
	}

	switch {
	case total >= StrongSuccessThreshold:
		return OutcomeStrongSuccess
	case total >= MixedSuccessThreshold:
		return OutcomeMixedSuccess
	default:
		return OutcomeFailure
	}
}

// SpendablePower is the effect budget granted by a successful roll:
// at least 1 even for weak rolls, adjusted by the strategy trade, and
// never negative.
func SpendablePower(power int, strategy Strategy) int {
	spendable := power
	if spendable < 1 {
		spendable = 1
	}
	spendable += strategy.SpendableAdjustment()
	if spendable < 0 {
		spendable = 0
	}
	return spendable
}
