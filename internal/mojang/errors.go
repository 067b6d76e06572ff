package mojang

import "errors"

var (
	// ErrProtocolViolation is returned when the auth server answers with a client token other than
	// the one sent. It's never retried
	ErrProtocolViolation   = errors.New("server responded with an incorrect client token")
	ErrProfileNotFound     = errors.New("server could not find the requested profile")
	ErrProfileLookupFailed = errors.New("profile lookup failed")
	ErrProfileWithoutID    = errors.New("profile has no id")
)
