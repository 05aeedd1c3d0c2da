// Package errors carries machine-readable codes through the engine so the
// transport layer can localize rejections without string matching.
package errors

import "google.golang.org/grpc/codes"

// Code identifies one rejection category. Codes double as catalog keys for
// the localized message templates.
type Code string

const (
	// CodeUnknown covers failures no other code describes.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeSessionEmptyCreatorID Code = "SESSION_EMPTY_CREATOR_ID"
	CodeSessionEmptyGuildID   Code = "SESSION_EMPTY_GUILD_ID"
	CodeSessionEmptyCharacter Code = "SESSION_EMPTY_CHARACTER_ID"
	CodeSessionPurposeInvalid Code = "SESSION_PURPOSE_INVALID"
	CodeSessionActionInvalid  Code = "SESSION_ACTION_INVALID"

	// Tag errors
	CodeTagSourceInvalid Code = "TAG_SOURCE_INVALID"
	CodeTagNotBurnable   Code = "TAG_NOT_BURNABLE"
	CodeTagPageTooLarge  Code = "TAG_PAGE_TOO_LARGE"
	CodeTagReactionReuse Code = "TAG_REACTION_REUSE"

	// Might errors
	CodeMightOutOfRange Code = "MIGHT_OUT_OF_RANGE"

	// Roll workflow errors
	CodeRollEmptyGuildID     Code = "ROLL_EMPTY_GUILD_ID"
	CodeRollEmptyCreatorID   Code = "ROLL_EMPTY_CREATOR_ID"
	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeReconfirmUnacked     Code = "RECONFIRM_NOT_ACKNOWLEDGED"
	CodeStrategyInvalid      Code = "STRATEGY_INVALID"
	CodeStrategyPrecondition Code = "STRATEGY_PRECONDITION"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode picks the gRPC status for a code. Validation problems map to
// InvalidArgument, state conflicts to FailedPrecondition, and anything
// unrecognized to Internal so bugs never masquerade as client mistakes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeSessionEmptyCreatorID,
		CodeSessionEmptyGuildID,
		CodeSessionEmptyCharacter,
		CodeSessionPurposeInvalid,
		CodeTagSourceInvalid,
		CodeTagPageTooLarge,
		CodeMightOutOfRange,
		CodeRollEmptyGuildID,
		CodeRollEmptyCreatorID,
		CodeStrategyInvalid:
		return codes.InvalidArgument

	case CodeTagNotBurnable,
		CodeTagReactionReuse,
		CodeSessionActionInvalid,
		CodeInvalidTransition,
		CodeReconfirmUnacked,
		CodeStrategyPrecondition:
		return codes.FailedPrecondition

	case CodeNotFound,
		CodeSessionExpired:
		return codes.NotFound

	case CodePermissionDenied:
		return codes.PermissionDenied

	default:
		return codes.Internal
	}
}
