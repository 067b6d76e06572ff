package xbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"ely.by/mcauth/internal/transport"
)

const (
	liveTokenURL      = "https://login.live.com/oauth20_token.srf"
	liveDeviceAuthURL = "https://login.live.com/oauth20_connect.srf"
	xboxSignInScope   = "XboxLive.signin"
	offlineScope      = "offline_access"
)

type DeviceCodeConsumer func(code *oauth2.DeviceAuthResponse)

// OAuth drives the identity provider grants. The game launcher client talks to live.com with
// the legacy MBI_SSL scope, any other client is an Azure application using the v2 endpoints
type OAuth struct {
	clientID string
	config   *oauth2.Config
	http     *http.Client
}

type OAuthOptions struct {
	// Authority is the Azure AD tenant, "consumers" unless set
	Authority     string
	OfflineAccess bool
}

func NewOAuth(clientID string, httpClient *http.Client, opts OAuthOptions) *OAuth {
	if clientID == "" {
		clientID = LauncherClientID
	}

	config := &oauth2.Config{ClientID: clientID}
	if clientID == LauncherClientID {
		config.Endpoint = oauth2.Endpoint{
			AuthURL:       DefaultLiveAuthorizeURL,
			DeviceAuthURL: liveDeviceAuthURL,
			TokenURL:      liveTokenURL,
			AuthStyle:     oauth2.AuthStyleInParams,
		}
		config.RedirectURL = desktopRedirect
		config.Scopes = []string{launcherScope}
	} else {
		authority := opts.Authority
		if authority == "" {
			authority = "consumers"
		}

		config.Endpoint = microsoft.AzureADEndpoint(authority)
		config.Endpoint.AuthStyle = oauth2.AuthStyleInParams
		config.Scopes = []string{xboxSignInScope}
		if opts.OfflineAccess {
			config.Scopes = append(config.Scopes, offlineScope)
		}
	}

	return &OAuth{
		clientID: clientID,
		config:   config,
		http:     httpClient,
	}
}

func (o *OAuth) ClientID() string {
	return o.clientID
}

// RpsTicket formats the identity provider access token the way the XBL user authentication expects it
func (o *OAuth) RpsTicket(accessToken string) string {
	if o.clientID == LauncherClientID {
		return accessToken
	}

	return "d=" + accessToken
}

func (o *OAuth) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(o.context(ctx), code, oauth2.SetAuthURLParam("scope", launcherScope))
	if err != nil {
		return nil, classifyOAuthError(ctx, err)
	}

	return token, nil
}

func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", transport.ErrInvalidCredentials)
	}

	token, err := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyOAuthError(ctx, err)
	}

	// Some providers don't rotate refresh tokens
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	return token, nil
}

// DeviceCode obtains a device code, hands it to the consumer and polls until
// the user completes the authentication out-of-band or the code expires
func (o *OAuth) DeviceCode(ctx context.Context, consumer DeviceCodeConsumer) (*oauth2.Token, error) {
	if consumer == nil {
		return nil, errors.New("device code consumer is not set")
	}

	ctx = o.context(ctx)
	code, err := o.config.DeviceAuth(ctx)
	if err != nil {
		return nil, classifyOAuthError(ctx, err)
	}

	consumer(code)

	token, err := o.config.DeviceAccessToken(ctx, code)
	if err != nil {
		return nil, classifyOAuthError(ctx, err)
	}

	return token, nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.http == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, o.http)
}

func classifyOAuthError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client", "access_denied", "expired_token":
			return fmt.Errorf("%w: %w", transport.ErrInvalidCredentials, err)
		}

		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}

		return &transport.ServiceError{
			Status:    status,
			ErrorType: retrieveErr.ErrorCode,
			Message:   retrieveErr.ErrorDescription,
		}
	}

	return fmt.Errorf("%w: %w", transport.ErrServiceUnreachable, err)
}
