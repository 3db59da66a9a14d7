package browser

import (
	"errors"
	"fmt"
)

// ErrBrowserStarting is returned when a command arrives while a launch is in
// flight and the caller chose not to wait. Callers are expected to retry.
var ErrBrowserStarting = errors.New("browser is starting")

// ValidationError reports a missing or malformed request field. The HTTP
// layer maps it to a 400; no browser interaction has happened.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// LaunchError reports that the browser failed to start after exhausting the
// retry budget. The session is left in the Error state; a later command
// triggers a fresh launch cycle.
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser failed to start after %d attempts: %v", e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports that an explicit navigation target failed to load
// within its timeout. Not retried; the caller decides.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError reports that an expected page element never became
// visible within its bounded wait.
type ElementNotFoundError struct {
	Selector string
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %q not found: %v", e.Selector, e.Err)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }
