package xbox

import (
	"errors"
	"fmt"
)

// ErrXbox is the common kind of every classified Xbox Live failure
var ErrXbox = errors.New("xbox live authentication failed")

var (
	ErrNoXboxAccount           = fmt.Errorf("%w: the microsoft account does not have an xbox live account attached", ErrXbox)
	ErrXboxUnavailableInRegion = fmt.Errorf("%w: xbox live is not available in the account's country", ErrXbox)
	ErrChildAccount            = fmt.Errorf("%w: the account is a child account and must be added to a family", ErrXbox)
)

// ErrNoGameProfile means the account has passed the whole chain, but doesn't own the game
var ErrNoGameProfile = errors.New("the account has no game profile")

const (
	xErrNoAccount          int64 = 2148916233
	xErrUnavailableCountry int64 = 2148916235
	xErrChildAccount       int64 = 2148916238
)

// XboxError is an XSTS failure with a code that has no dedicated classification
type XboxError struct {
	Code     int64
	Message  string
	Redirect string
}

func (e *XboxError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: error id %d: %s", ErrXbox, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: error id %d", ErrXbox, e.Code)
}

func (e *XboxError) Unwrap() error {
	return ErrXbox
}

func classifyXErr(code int64, message string, redirect string) error {
	switch code {
	case xErrNoAccount:
		return ErrNoXboxAccount
	case xErrUnavailableCountry:
		return ErrXboxUnavailableInRegion
	case xErrChildAccount:
		return ErrChildAccount
	}

	return &XboxError{Code: code, Message: message, Redirect: redirect}
}
