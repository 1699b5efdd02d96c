package challenge

import "errors"

var (
	// ErrUnregisteredSubject is returned when a challenge is requested for a
	// subject the registry does not know about. This is a caller error: the
	// subject has to register first.
	ErrUnregisteredSubject = errors.New("challenge: subject is not registered")

	// ErrExpiredOrConsumed is returned when a challenge cannot be taken from
	// the store, either because its TTL lapsed or because something already
	// consumed it. Always recoverable by issuing a fresh challenge.
	ErrExpiredOrConsumed = errors.New("challenge: expired or already consumed")
)
