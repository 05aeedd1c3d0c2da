package errors

// Error carries a machine-readable code through the call stack together with
// the metadata its user-facing message template needs. Message is internal,
// log-oriented text; translation happens at the transport boundary.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// New returns an error with a code and an internal message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns an error that chains to cause for errors.Is/As traversal.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata returns an error whose metadata feeds the message template
// for its code.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, so two errors built at different sites compare equal
// under errors.Is when they mean the same failure.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && e.Code == other.Code
}
