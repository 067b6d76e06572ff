package session

import (
	"context"
	"fmt"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
)

type YggdrasilClient interface {
	Authenticate(ctx context.Context, username string, password string, clientToken string) (*mojang.AuthResponse, error)
	Refresh(ctx context.Context, accessToken string, clientToken string, selectedProfile *profiles.Profile) (*mojang.AuthResponse, error)
	Invalidate(ctx context.Context, accessToken string, clientToken string) error
}

// YggdrasilAuthenticator logs in against the legacy auth server with a password or
// by refreshing a previously issued access token
type YggdrasilAuthenticator struct {
	client YggdrasilClient
}

func NewYggdrasilAuthenticator(client YggdrasilClient) *YggdrasilAuthenticator {
	return &YggdrasilAuthenticator{client: client}
}

func (a *YggdrasilAuthenticator) UserType() UserType {
	return UserTypeMojang
}

// Login refreshes the access token when there is one, otherwise authenticates with the password.
// The token has precedence since a session logged in with a password holds both of them
func (a *YggdrasilAuthenticator) Login(ctx context.Context, clientToken string, credentials Credentials) (*Grant, error) {
	if credentials.Username == "" {
		return nil, fmt.Errorf("%w: username is not set", transport.ErrInvalidCredentials)
	}

	var response *mojang.AuthResponse
	var err error
	switch {
	case credentials.AccessToken != "":
		response, err = a.client.Refresh(ctx, credentials.AccessToken, clientToken, nil)
		if err != nil {
			return nil, requestError(HopRefresh, err)
		}
	case credentials.Password != "":
		response, err = a.client.Authenticate(ctx, credentials.Username, credentials.Password, clientToken)
		if err != nil {
			return nil, requestError(HopAuthenticate, err)
		}
	default:
		return nil, fmt.Errorf("%w: neither password nor access token is set", transport.ErrInvalidCredentials)
	}

	return newYggdrasilGrant(response, credentials.Username), nil
}

func (a *YggdrasilAuthenticator) SelectProfile(ctx context.Context, clientToken string, grant *Grant, profile *profiles.Profile) (*Grant, error) {
	response, err := a.client.Refresh(ctx, grant.AccessToken, clientToken, profile)
	if err != nil {
		return nil, requestError(HopRefresh, err)
	}

	selected := newYggdrasilGrant(response, grant.UserID)
	selected.AvailableProfiles = grant.AvailableProfiles
	if response.User == nil {
		selected.UserID = grant.UserID
		selected.Properties = grant.Properties
	}

	if selected.SelectedProfile == nil {
		selected.SelectedProfile = profile
	} else if !selected.SelectedProfile.Equal(profile) {
		return nil, requestError(HopRefresh, fmt.Errorf("%w: the server has selected %s instead of %s", transport.ErrServiceUnreachable, selected.SelectedProfile, profile))
	}

	return selected, nil
}

func (a *YggdrasilAuthenticator) Logout(ctx context.Context, clientToken string, _ Credentials, grant *Grant) error {
	return a.client.Invalidate(ctx, grant.AccessToken, clientToken)
}

func newYggdrasilGrant(response *mojang.AuthResponse, username string) *Grant {
	grant := &Grant{
		UserID:            username,
		AccessToken:       response.AccessToken,
		AvailableProfiles: response.AvailableProfiles,
		SelectedProfile:   response.SelectedProfile,
	}

	if response.User != nil {
		if response.User.ID != "" {
			grant.UserID = response.User.ID
		}

		grant.Properties = response.User.Properties
	}

	return grant
}
