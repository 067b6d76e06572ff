package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"golang.org/x/oauth2"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/tokencache"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/xbox"
)

type IdentityProvider interface {
	ClientID() string
	RpsTicket(accessToken string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	DeviceCode(ctx context.Context, consumer xbox.DeviceCodeConsumer) (*oauth2.Token, error)
}

type AuthorizationCodeProvider interface {
	AuthorizationCode(ctx context.Context, username string, password string) (string, error)
}

type XboxClient interface {
	AuthenticateUser(ctx context.Context, rpsTicket string) (*xbox.Ticket, error)
	Authorize(ctx context.Context, xbl *xbox.Ticket) (*xbox.Ticket, error)
	LoginWithXbox(ctx context.Context, xsts *xbox.Ticket) (*xbox.GameToken, error)
	Profile(ctx context.Context, accessToken string) (*xbox.GameProfile, error)
}

type MicrosoftOptions struct {
	// ClientID of the identity provider application, the game launcher one when empty
	ClientID string
	OAuth    xbox.OAuthOptions
	// DeviceCode receives the code the user has to enter. The device code strategy
	// is disabled when it's nil
	DeviceCode xbox.DeviceCodeConsumer
	Tokens     tokencache.Store
}

// MicrosoftAuthenticator acquires a Microsoft account token by refreshing a stored refresh token,
// by submitting the password through the live.com sign in page or with the device code grant,
// then chains it through Xbox Live to the game services
type MicrosoftAuthenticator struct {
	clientID     string
	identity     func(clientID string) IdentityProvider
	codeProvider AuthorizationCodeProvider
	xbox         XboxClient
	deviceCode   xbox.DeviceCodeConsumer
	tokens       tokencache.Store
}

func NewMicrosoftAuthenticator(httpClient *http.Client, xboxClient XboxClient, opts MicrosoftOptions) *MicrosoftAuthenticator {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = xbox.LauncherClientID
	}

	tokens := opts.Tokens
	if isNilStore(tokens) {
		tokens = tokencache.Nop{}
	}

	return &MicrosoftAuthenticator{
		clientID: clientID,
		identity: func(clientID string) IdentityProvider {
			return xbox.NewOAuth(clientID, httpClient, opts.OAuth)
		},
		codeProvider: xbox.NewLiveLogin(httpClient),
		xbox:         xboxClient,
		deviceCode:   opts.DeviceCode,
		tokens:       tokens,
	}
}

func (a *MicrosoftAuthenticator) UserType() UserType {
	return UserTypeMicrosoft
}

func (a *MicrosoftAuthenticator) Login(ctx context.Context, _ string, credentials Credentials) (*Grant, error) {
	token, clientID, err := a.acquireToken(ctx, credentials)
	if err != nil {
		return nil, err
	}

	if token.RefreshToken != "" {
		err = a.tokens.Save(ctx, cacheKey(clientID, credentials.Username), token)
		if err != nil {
			slog.Warn("Unable to store the refresh token", slog.String("client_id", clientID), slog.Any("error", err))
		}
	}

	grant, err := a.exchange(ctx, a.identity(clientID), token)
	if err != nil {
		return nil, err
	}

	grant.RefreshToken = token.RefreshToken
	grant.ClientID = clientID

	return grant, nil
}

// acquireToken picks the first available strategy: a refresh token (explicit or stored one),
// the password, the device code
func (a *MicrosoftAuthenticator) acquireToken(ctx context.Context, credentials Credentials) (*oauth2.Token, string, error) {
	clientID := a.clientID
	if credentials.ClientID != "" {
		clientID = credentials.ClientID
	}

	if credentials.RefreshToken != "" {
		token, err := a.identity(clientID).Refresh(ctx, credentials.RefreshToken)
		if err != nil {
			return nil, "", requestError(HopMicrosoftAccount, err)
		}

		return token, clientID, nil
	}

	if cached, cachedClientID := a.loadToken(ctx, clientID, credentials.Username); cached != nil {
		token, err := a.identity(cachedClientID).Refresh(ctx, cached.RefreshToken)
		if err == nil {
			return token, cachedClientID, nil
		}

		if !errors.Is(err, transport.ErrInvalidCredentials) {
			return nil, "", requestError(HopMicrosoftAccount, err)
		}

		slog.Warn("The stored refresh token was rejected", slog.String("client_id", cachedClientID), slog.Any("error", err))
		a.removeToken(ctx, cachedClientID, credentials.Username)
	}

	if credentials.Password != "" {
		if credentials.Username == "" {
			return nil, "", fmt.Errorf("%w: username is not set", transport.ErrInvalidCredentials)
		}

		// Only the launcher application may use the live.com sign in page
		code, err := a.codeProvider.AuthorizationCode(ctx, credentials.Username, credentials.Password)
		if err != nil {
			return nil, "", requestError(HopMicrosoftAccount, err)
		}

		token, err := a.identity(xbox.LauncherClientID).ExchangeCode(ctx, code)
		if err != nil {
			return nil, "", requestError(HopMicrosoftAccount, err)
		}

		return token, xbox.LauncherClientID, nil
	}

	if a.deviceCode == nil {
		return nil, "", fmt.Errorf("%w: neither refresh token nor password is set", transport.ErrInvalidCredentials)
	}

	token, err := a.identity(clientID).DeviceCode(ctx, a.deviceCode)
	if err != nil {
		return nil, "", requestError(HopMicrosoftAccount, err)
	}

	return token, clientID, nil
}

// loadToken looks up a stored token of the configured application first, then of the launcher one
func (a *MicrosoftAuthenticator) loadToken(ctx context.Context, clientID string, username string) (*oauth2.Token, string) {
	candidates := []string{clientID}
	if clientID != xbox.LauncherClientID {
		candidates = append(candidates, xbox.LauncherClientID)
	}

	for _, candidate := range candidates {
		token, err := a.tokens.Load(ctx, cacheKey(candidate, username))
		if err != nil {
			slog.Warn("Unable to load the refresh token", slog.String("client_id", candidate), slog.Any("error", err))
			continue
		}

		if token != nil && token.RefreshToken != "" {
			return token, candidate
		}
	}

	return nil, ""
}

func (a *MicrosoftAuthenticator) removeToken(ctx context.Context, clientID string, username string) {
	err := a.tokens.Remove(ctx, cacheKey(clientID, username))
	if err != nil {
		slog.Warn("Unable to remove the refresh token", slog.String("client_id", clientID), slog.Any("error", err))
	}
}

func (a *MicrosoftAuthenticator) exchange(ctx context.Context, identity IdentityProvider, token *oauth2.Token) (*Grant, error) {
	xbl, err := a.xbox.AuthenticateUser(ctx, identity.RpsTicket(token.AccessToken))
	if err != nil {
		return nil, requestError(HopXboxLive, err)
	}

	xsts, err := a.xbox.Authorize(ctx, xbl)
	if err != nil {
		return nil, requestError(HopXSTS, err)
	}

	gameToken, err := a.xbox.LoginWithXbox(ctx, xsts)
	if err != nil {
		return nil, requestError(HopGameLogin, err)
	}

	profile, err := a.resolveProfile(ctx, gameToken.AccessToken)
	if err != nil {
		return nil, requestError(HopGameProfile, err)
	}

	grant := &Grant{
		UserID:      gameToken.Username,
		AccessToken: gameToken.AccessToken,
		ExpiresAt:   xbox.TokenExpiry(gameToken.AccessToken),
	}

	if grant.ExpiresAt.IsZero() && gameToken.ExpiresIn > 0 {
		grant.ExpiresAt = time.Now().Add(time.Duration(gameToken.ExpiresIn) * time.Second)
	}

	if profile != nil {
		grant.AvailableProfiles = []*profiles.Profile{profile}
		grant.SelectedProfile = profile
	}

	return grant, nil
}

// resolveProfile never fails the login unless the context is done: an account without the game
// is logged in without a profile, any other failure falls back to the profile of the token claims
func (a *MicrosoftAuthenticator) resolveProfile(ctx context.Context, accessToken string) (*profiles.Profile, error) {
	gameProfile, err := a.xbox.Profile(ctx, accessToken)
	if err == nil {
		profile, err := gameProfile.Profile()
		if err == nil {
			return profile, nil
		}

		slog.Warn("The game profile is malformed", slog.Any("error", err))
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	} else if errors.Is(err, xbox.ErrNoGameProfile) {
		return nil, nil
	} else {
		slog.Warn("Unable to fetch the game profile", slog.Any("error", err))
	}

	profile, err := xbox.ProfileFromToken(accessToken)
	if err != nil {
		slog.Warn("Unable to read the profile from the game token", slog.Any("error", err))
		return nil, nil
	}

	return profile, nil
}

func (a *MicrosoftAuthenticator) SelectProfile(context.Context, string, *Grant, *profiles.Profile) (*Grant, error) {
	return nil, fmt.Errorf("%w: microsoft accounts have a single profile selected at login", ErrIllegalState)
}

// Logout forgets the stored refresh token. Microsoft tokens can't be revoked
func (a *MicrosoftAuthenticator) Logout(ctx context.Context, _ string, credentials Credentials, grant *Grant) error {
	clientID := grant.ClientID
	if clientID == "" {
		clientID = a.clientID
	}

	return a.tokens.Remove(ctx, cacheKey(clientID, credentials.Username))
}

// isNilStore also catches a nil pointer stored in the interface
func isNilStore(store tokencache.Store) bool {
	if store == nil {
		return true
	}

	value := reflect.ValueOf(store)

	return value.Kind() == reflect.Pointer && value.IsNil()
}

func cacheKey(clientID string, username string) string {
	if username == "" {
		username = tokencache.DefaultAccount
	}

	return clientID + "/" + username
}
