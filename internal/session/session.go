package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
)

type UserType string

const (
	UserTypeMojang    UserType = "mojang"
	UserTypeMicrosoft UserType = "msa"
)

type State int

const (
	StateLoggedOut State = iota
	StateLoggedIn
	StateProfileSelected
)

func (s State) String() string {
	switch s {
	case StateLoggedIn:
		return "logged in"
	case StateProfileSelected:
		return "profile selected"
	}

	return "logged out"
}

// Credentials are the secrets a session can present to an authenticator.
// ClientID pins the identity provider application a refresh token was issued to
type Credentials struct {
	Username     string
	Password     string
	AccessToken  string
	RefreshToken string
	ClientID     string
}

// Grant is what a successful login yields
type Grant struct {
	UserID            string
	AccessToken       string
	RefreshToken      string
	ClientID          string
	ExpiresAt         time.Time
	Properties        []profiles.Property
	AvailableProfiles []*profiles.Profile
	SelectedProfile   *profiles.Profile
}

// Authenticator acquires the identity for a session. The session owns the state
// transitions, authenticators only perform the exchanges
type Authenticator interface {
	UserType() UserType
	Login(ctx context.Context, clientToken string, credentials Credentials) (*Grant, error)
	SelectProfile(ctx context.Context, clientToken string, grant *Grant, profile *profiles.Profile) (*Grant, error)
	Logout(ctx context.Context, clientToken string, credentials Credentials, grant *Grant) error
}

// Session is a state machine of a user authentication:
// logged out -> logged in -> profile selected. It isn't safe for concurrent use
type Session struct {
	authenticator Authenticator
	clientToken   string
	credentials   Credentials
	grant         *Grant
}

// New creates a logged out session. An empty clientToken is replaced with a random one
func New(authenticator Authenticator, clientToken string) *Session {
	if clientToken == "" {
		clientToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return &Session{
		authenticator: authenticator,
		clientToken:   clientToken,
	}
}

func (s *Session) State() State {
	switch {
	case s.grant == nil:
		return StateLoggedOut
	case s.grant.SelectedProfile == nil:
		return StateLoggedIn
	}

	return StateProfileSelected
}

func (s *Session) LoggedIn() bool {
	return s.grant != nil
}

// CanPlayOnline reports whether the session can join servers
func (s *Session) CanPlayOnline() bool {
	return s.State() == StateProfileSelected && s.grant.AccessToken != ""
}

func (s *Session) UserType() UserType {
	return s.authenticator.UserType()
}

func (s *Session) ClientToken() string {
	return s.clientToken
}

func (s *Session) Username() string {
	return s.credentials.Username
}

func (s *Session) SetUsername(username string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}

	s.credentials.Username = username

	return nil
}

func (s *Session) SetPassword(password string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}

	s.credentials.Password = password

	return nil
}

func (s *Session) SetAccessToken(accessToken string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}

	s.credentials.AccessToken = accessToken

	return nil
}

func (s *Session) SetRefreshToken(refreshToken string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}

	s.credentials.RefreshToken = refreshToken

	return nil
}

func (s *Session) ensureMutable() error {
	if s.State() == StateProfileSelected {
		return fmt.Errorf("%w: credentials can't be changed once a profile is selected", ErrIllegalState)
	}

	return nil
}

func (s *Session) AccessToken() string {
	if s.grant == nil {
		return ""
	}

	return s.grant.AccessToken
}

func (s *Session) RefreshToken() string {
	return s.credentials.RefreshToken
}

// ExpiresAt is zero when the expiration of the access token is unknown
func (s *Session) ExpiresAt() time.Time {
	if s.grant == nil {
		return time.Time{}
	}

	return s.grant.ExpiresAt
}

func (s *Session) UserID() string {
	if s.grant == nil {
		return ""
	}

	return s.grant.UserID
}

func (s *Session) Properties() []profiles.Property {
	if s.grant == nil {
		return nil
	}

	return slices.Clone(s.grant.Properties)
}

func (s *Session) AvailableProfiles() []*profiles.Profile {
	if s.grant == nil {
		return nil
	}

	return slices.Clone(s.grant.AvailableProfiles)
}

func (s *Session) SelectedProfile() *profiles.Profile {
	if s.grant == nil {
		return nil
	}

	return s.grant.SelectedProfile
}

// Login drives the whole authentication chain of the authenticator. On failure the session
// keeps its previous state
func (s *Session) Login(ctx context.Context) error {
	grant, err := s.authenticator.Login(ctx, s.clientToken, s.credentials)
	if err != nil {
		return err
	}

	if grant.UserID == "" {
		grant.UserID = s.credentials.Username
	}

	s.grant = grant
	s.credentials.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		s.credentials.RefreshToken = grant.RefreshToken
	}

	if grant.ClientID != "" {
		s.credentials.ClientID = grant.ClientID
	}

	return nil
}

// Logout invalidates the session on the server side if the authenticator supports it.
// The invalidation is best-effort, the local state is cleared anyway
func (s *Session) Logout(ctx context.Context) error {
	if s.grant == nil {
		return fmt.Errorf("%w: not logged in", ErrIllegalState)
	}

	err := s.authenticator.Logout(ctx, s.clientToken, s.credentials, s.grant)
	if err != nil {
		slog.Warn("Unable to invalidate the session", slog.String("user_type", string(s.UserType())), slog.Any("error", err))
	}

	s.grant = nil
	s.credentials.AccessToken = ""
	s.credentials.RefreshToken = ""
	s.credentials.ClientID = ""

	return nil
}

// SelectGameProfile binds the session to one of the available profiles. A profile can be
// selected once per login
func (s *Session) SelectGameProfile(ctx context.Context, profile *profiles.Profile) error {
	switch s.State() {
	case StateLoggedOut:
		return fmt.Errorf("%w: not logged in", ErrIllegalState)
	case StateProfileSelected:
		return fmt.Errorf("%w: a profile is already selected", ErrIllegalState)
	}

	if profile == nil || !slices.ContainsFunc(s.grant.AvailableProfiles, profile.Equal) {
		return fmt.Errorf("%w: the profile %s is not available for the session", ErrInvalidArgument, profile)
	}

	grant, err := s.authenticator.SelectProfile(ctx, s.clientToken, s.grant, profile)
	if err != nil {
		return err
	}

	if grant.SelectedProfile == nil {
		return fmt.Errorf("%w: the server hasn't selected the profile", transport.ErrServiceUnreachable)
	}

	s.grant = grant
	s.credentials.AccessToken = grant.AccessToken

	return nil
}
