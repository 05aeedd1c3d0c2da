package errors

import (
	"errors"

	"github.com/louisbranch/mist-engine/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale serves callers that do not state a locale preference.
const DefaultLocale = "en-US"

// Domain identifies this service in ErrorInfo details.
const Domain = "github.com/louisbranch/mist-engine"

// HandleError translates err into the gRPC status surfaced to clients.
// Domain errors carry ErrorInfo plus a LocalizedMessage rendered for locale;
// anything else collapses to a generic internal status so internals never
// leak.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return status.Error(codes.Internal, "an unexpected error occurred")
	}

	catalog := i18n.GetCatalog(orDefaultLocale(locale))
	rendered := catalog.Format(string(domainErr.Code), domainErr.Metadata)
	return domainErr.toStatus(catalog.Locale(), rendered)
}

// UserMessage renders the user-facing text for err in locale without
// building a status. Non-domain errors render the generic unknown message.
func UserMessage(err error, locale string) string {
	catalog := i18n.GetCatalog(orDefaultLocale(locale))

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return catalog.Format(string(domainErr.Code), domainErr.Metadata)
	}
	return catalog.Format(string(CodeUnknown), nil)
}

// GetCode returns the code carried by err, or CodeUnknown for foreign errors.
func GetCode(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata returns the metadata carried by err, nil for foreign errors.
func GetMetadata(err error) map[string]string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Metadata
	}
	return nil
}

// toStatus attaches machine-readable and localized detail to the status.
// When detail attachment fails the bare status still goes out.
func (e *Error) toStatus(locale, userMessage string) error {
	st := status.New(e.Code.GRPCCode(), e.Message)
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func orDefaultLocale(locale string) string {
	if locale == "" {
		return DefaultLocale
	}
	return locale
}
