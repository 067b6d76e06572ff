package session

import (
	"context"
	"errors"
	"fmt"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/trust"
	"ely.by/mcauth/internal/xbox"
)

var (
	ErrIllegalState    = errors.New("illegal session state")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Hop string

const (
	HopAuthenticate     Hop = "yggdrasil authenticate"
	HopRefresh          Hop = "yggdrasil refresh"
	HopMicrosoftAccount Hop = "microsoft account"
	HopXboxLive         Hop = "xbox live authenticate"
	HopXSTS             Hop = "xsts authorize"
	HopGameLogin        Hop = "game services login"
	HopGameProfile      Hop = "game profile"
)

// RequestError reports which network exchange of a login chain has failed
type RequestError struct {
	Hop Hop
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %s", e.Hop, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func requestError(hop Hop, err error) error {
	return &RequestError{Hop: hop, Err: err}
}

type Category int

const (
	CategoryUnknown Category = iota
	// The caller passed something that can never succeed
	CategoryBadInput
	// The user should be prompted for other credentials
	CategoryBadCredentials
	// The request may succeed when retried later
	CategoryServiceProblem
	// The data received can't be trusted
	CategoryTrustViolation
)

func (c Category) String() string {
	switch c {
	case CategoryBadInput:
		return "bad input"
	case CategoryBadCredentials:
		return "bad credentials"
	case CategoryServiceProblem:
		return "service problem"
	case CategoryTrustViolation:
		return "trust violation"
	}

	return "unknown"
}

// Classify tells what the caller should do about the error
func Classify(err error) Category {
	var serviceErr *transport.ServiceError
	var statusErr *transport.StatusError

	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrIllegalState),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, profiles.ErrInvalidProfile),
		errors.Is(err, mojang.ErrProfileNotFound):
		return CategoryBadInput
	case errors.Is(err, transport.ErrInvalidCredentials),
		errors.Is(err, transport.ErrUserMigrated),
		errors.Is(err, xbox.ErrXbox):
		return CategoryBadCredentials
	case errors.Is(err, mojang.ErrProtocolViolation),
		errors.Is(err, trust.ErrKeyFormat),
		errors.Is(err, profiles.ErrMissingSignature),
		errors.Is(err, profiles.ErrMalformedPayload),
		profiles.IsTampering(err):
		return CategoryTrustViolation
	case errors.Is(err, transport.ErrServiceUnreachable),
		errors.Is(err, mojang.ErrProfileLookupFailed),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &serviceErr),
		errors.As(err, &statusErr):
		return CategoryServiceProblem
	}

	return CategoryUnknown
}
