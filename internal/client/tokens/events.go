package tokens

import (
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/models"
)

// EventKind names a token lifecycle event.
type EventKind string

const (
	EventTokenRefreshed EventKind = "tokenRefreshed"
	EventTokenExpired   EventKind = "tokenExpired"
	EventRefreshFailed  EventKind = "refreshFailed"
	EventLoginRequired  EventKind = "loginRequired"
)

// Event is the payload delivered to subscribers. Tokens is set for
// tokenRefreshed; Err and RetryAfter for refreshFailed and loginRequired.
type Event struct {
	Kind       EventKind
	Tokens     *models.TokenPair
	Err        error
	RetryAfter time.Duration
}
