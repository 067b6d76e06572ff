package profiles

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSignature = errors.New("signature is missing from the textures payload")
	// ErrInvalidSignature and ErrUntrustedDomain both mean the payload has been tampered with
	ErrInvalidSignature = errors.New("textures payload has been tampered with (signature invalid)")
	ErrUntrustedDomain  = errors.New("textures payload has been tampered with (non-whitelisted domain)")
	ErrMalformedPayload = errors.New("could not decode the textures payload")
)

type PropertyError struct {
	Property string
	Err      error
	// Cause keeps the underlying decoder or verifier failure, if any
	Cause error
}

func (e *PropertyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("property %q: %s: %s", e.Property, e.Err, e.Cause)
	}

	return fmt.Sprintf("property %q: %s", e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

// IsTampering reports whether the error means a payload was altered or redirected
func IsTampering(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrUntrustedDomain)
}
