// Package shortlink mints share codes for characters and resolves them to
// redirects.
package shortlink

import (
	"net/http"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/models"
)

// Home is where unresolvable links send the browser.
const Home = "/"

type State string

const (
	StateActive   State = "active"
	StateNotFound State = "not_found"
	StateExpired  State = "expired"
	StateError    State = "error"
)

// Decision is the single HTTP response a short code produces.
type Decision struct {
	State    State
	Status   int
	Location string
}

// Resolve decides the redirect for a lookup result. link is nil when no
// record exists. The result depends only on its arguments.
func Resolve(link *models.ShortURL, lookupErr error, now time.Time) Decision {
	switch {
	case lookupErr != nil:
		return Decision{State: StateError, Status: http.StatusInternalServerError, Location: Home}
	case link == nil:
		return Decision{State: StateNotFound, Status: http.StatusNotFound, Location: Home}
	case link.Expired(now):
		return Decision{State: StateExpired, Status: http.StatusGone, Location: Home}
	default:
		return Decision{State: StateActive, Status: http.StatusFound, Location: link.OriginalURL}
	}
}
