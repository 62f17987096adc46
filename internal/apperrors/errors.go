package apperrors

import (
	"errors"
	"fmt"
)

// Process exit statuses. Fatal errors each get their own status so wrapper
// scripts can tell them apart.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitUsage          = 2
	ExitNoRelease      = 253
	ExitInvalidDate    = 254
	ExitAuthentication = 255
)

// ErrAuthentication is returned when the login did not yield the identity cookie.
// It carries no account details since it ends up in Sentry events.
type ErrAuthentication struct {
	Cookie string
}

// Error implements the error interface.
func (e *ErrAuthentication) Error() string {
	if e.Cookie != "" {
		return fmt.Sprintf("login failed: session cookie %q not set", e.Cookie)
	}
	return "login failed"
}

// Is allows for error checking with errors.Is().
func (e *ErrAuthentication) Is(target error) bool {
	_, ok := target.(*ErrAuthentication)
	return ok
}

// NewAuthenticationError creates a new ErrAuthentication.
func NewAuthenticationError(cookie string) *ErrAuthentication {
	return &ErrAuthentication{Cookie: cookie}
}

// ErrInvalidDate is returned when a release date does not match DD.MM.YYYY
// or is not a real calendar date.
type ErrInvalidDate struct {
	Value string
}

// Error implements the error interface.
func (e *ErrInvalidDate) Error() string {
	return fmt.Sprintf("invalid release date %q, expected DD.MM.YYYY", e.Value)
}

// Is allows for error checking with errors.Is().
func (e *ErrInvalidDate) Is(target error) bool {
	_, ok := target.(*ErrInvalidDate)
	return ok
}

// NewInvalidDateError creates a new ErrInvalidDate.
func NewInvalidDateError(value string) *ErrInvalidDate {
	return &ErrInvalidDate{Value: value}
}

// ErrNoRelease is returned when no edition was published for the requested
// date or offset.
type ErrNoRelease struct {
	Date   string
	Offset int
}

// Error implements the error interface.
func (e *ErrNoRelease) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("no release published on %s", e.Date)
	}
	return fmt.Sprintf("no release found %d releases back", e.Offset)
}

// Is allows for error checking with errors.Is().
func (e *ErrNoRelease) Is(target error) bool {
	_, ok := target.(*ErrNoRelease)
	return ok
}

// NewNoReleaseError creates an ErrNoRelease for an absolute date.
func NewNoReleaseError(date string) *ErrNoRelease {
	return &ErrNoRelease{Date: date}
}

// NewNoReleaseAtOffsetError creates an ErrNoRelease for a relative offset.
func NewNoReleaseAtOffsetError(offset int) *ErrNoRelease {
	return &ErrNoRelease{Offset: offset}
}

// ErrLinkNotFound is returned when the release page has no download link for a format.
type ErrLinkNotFound struct {
	Format string
	Label  string
}

// Error implements the error interface.
func (e *ErrLinkNotFound) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("no %s download link labelled %q on release page", e.Format, e.Label)
	}
	return fmt.Sprintf("no %s download link on release page", e.Format)
}

// Is allows for error checking with errors.Is().
func (e *ErrLinkNotFound) Is(target error) bool {
	_, ok := target.(*ErrLinkNotFound)
	return ok
}

// NewLinkNotFoundError creates a new ErrLinkNotFound.
func NewLinkNotFoundError(format, label string) *ErrLinkNotFound {
	return &ErrLinkNotFound{Format: format, Label: label}
}

// ErrUnexpectedStatus is returned when the portal answers with a status the
// caller cannot handle.
type ErrUnexpectedStatus struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Is allows for error checking with errors.Is().
func (e *ErrUnexpectedStatus) Is(target error) bool {
	_, ok := target.(*ErrUnexpectedStatus)
	return ok
}

// NewUnexpectedStatusError creates a new ErrUnexpectedStatus.
func NewUnexpectedStatusError(url string, statusCode int) *ErrUnexpectedStatus {
	return &ErrUnexpectedStatus{URL: url, StatusCode: statusCode}
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, &ErrAuthentication{}) ||
		errors.Is(err, &ErrInvalidDate{}) ||
		errors.Is(err, &ErrNoRelease{})
}

// ExitCode maps an error returned by a run to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, &ErrAuthentication{}):
		return ExitAuthentication
	case errors.Is(err, &ErrInvalidDate{}):
		return ExitInvalidDate
	case errors.Is(err, &ErrNoRelease{}):
		return ExitNoRelease
	default:
		return ExitFailure
	}
}
