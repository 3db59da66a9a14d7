// Package browser manages the single automated browser session: launching
// and relaunching the underlying browser process, serializing commands
// against its one page, and exposing the session's state to callers.
package browser

// State describes the readiness of the browser session for commands.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateNavigating
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	}
	return "unknown"
}

// BlankURL is the sentinel current URL before the first navigation completes.
const BlankURL = "about:blank"

// session is the single mutable record describing the browser session.
// There is exactly one instance, owned by the Controller; every field is
// guarded by the Controller's state mutex so the record is always observed
// as a unit (the page handle is never seen without its lifecycle state).
type session struct {
	page          Page
	state         State
	currentURL    string
	screenshotRef string
	starting      bool
	retries       int
}

// Snapshot is a read-only projection of the session for polling clients.
type Snapshot struct {
	Ready      bool   `json:"ready"`
	State      string `json:"state"`
	URL        string `json:"url"`
	Screenshot string `json:"screenshot"`
}

// Result is what a successful command reports back: the page's URL after the
// command and a cache-busted reference to the latest screenshot.
type Result struct {
	URL        string `json:"url"`
	Screenshot string `json:"screenshot"`
}
