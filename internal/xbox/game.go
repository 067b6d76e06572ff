package xbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
)

type loginWithXboxRequest struct {
	IdentityToken string `json:"identityToken"`
}

type GameToken struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
}

// LoginWithXbox exchanges the XSTS ticket for a game services access token
func (c *Client) LoginWithXbox(ctx context.Context, xsts *Ticket) (*GameToken, error) {
	var token GameToken
	err := c.client.PostJSON(ctx, c.endpoints.LoginWithXbox, &loginWithXboxRequest{
		IdentityToken: fmt.Sprintf("XBL3.0 x=%s;%s", xsts.UserHash, xsts.Token),
	}, &token)
	if err != nil {
		return nil, err
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s returned no access token", transport.ErrServiceUnreachable, c.endpoints.LoginWithXbox)
	}

	return &token, nil
}

type Skin struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	URL     string `json:"url"`
	Variant string `json:"variant"`
	Alias   string `json:"alias,omitempty"`
}

type Cape struct {
	ID    string `json:"id"`
	State string `json:"state"`
	URL   string `json:"url"`
	Alias string `json:"alias,omitempty"`
}

type GameProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skins []Skin `json:"skins"`
	Capes []Cape `json:"capes"`
}

func (p *GameProfile) Profile() (*profiles.Profile, error) {
	id, err := profiles.ParseID(p.ID)
	if err != nil {
		return nil, err
	}

	return profiles.NewProfile(id, p.Name)
}

// Profile fetches the game profile owned by the account. ErrNoGameProfile is returned
// when the account doesn't own the game
func (c *Client) Profile(ctx context.Context, accessToken string) (*GameProfile, error) {
	var profile GameProfile
	err := c.client.GetJSON(ctx, c.endpoints.GameProfile, http.Header{
		"Authorization": {"Bearer " + accessToken},
	}, &profile)
	if err != nil {
		var serviceErr *transport.ServiceError
		if errors.As(err, &serviceErr) && serviceErr.Status == http.StatusNotFound {
			return nil, ErrNoGameProfile
		}

		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil, ErrNoGameProfile
		}

		return nil, err
	}

	if profile.ID == "" {
		return nil, ErrNoGameProfile
	}

	return &profile, nil
}

type profileData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gameTokenClaims struct {
	jwt.RegisteredClaims
	XUID        string            `json:"xuid"`
	Profiles    map[string]string `json:"profiles"`
	ProfileData []profileData     `json:"pfd"`
}

// ProfileFromToken extracts the game profile embedded into the game services access token claims.
// The token is issued to us by the service itself, so its signature isn't verified.
// Returns nil when the token carries no profile
func ProfileFromToken(accessToken string) (*profiles.Profile, error) {
	var claims gameTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, err
	}

	for _, data := range claims.ProfileData {
		if data.Type != "mc" {
			continue
		}

		id, err := profiles.ParseID(data.ID)
		if err != nil {
			return nil, err
		}

		if id == uuid.Nil && data.Name == "" {
			continue
		}

		return profiles.NewProfile(id, data.Name)
	}

	return nil, nil
}

// TokenExpiry returns the expiration time of the game services access token,
// or zero time if it can't be determined
func TokenExpiry(accessToken string) time.Time {
	var claims gameTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}

	return claims.ExpiresAt.Time
}
