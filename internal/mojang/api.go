package mojang

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/trust"
)

type JSONClient interface {
	GetJSON(ctx context.Context, url string, header http.Header, out any) error
	PostJSON(ctx context.Context, url string, in any, out any) error
}

type EndpointsSource interface {
	Endpoints() trust.Endpoints
}

// YggdrasilApi talks to the auth server, the profiles api and the session server.
// Endpoints are taken from the trust registry on every call, so a registered
// alternate root applies to the requests made after the registration
type YggdrasilApi struct {
	client    JSONClient
	endpoints EndpointsSource
}

func NewYggdrasilApi(client JSONClient, endpoints EndpointsSource) *YggdrasilApi {
	return &YggdrasilApi{
		client:    client,
		endpoints: endpoints,
	}
}

type Agent struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

var MinecraftAgent = Agent{Name: "Minecraft", Version: 1}

type authenticateRequest struct {
	Agent       Agent  `json:"agent"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientToken string `json:"clientToken"`
	RequestUser bool   `json:"requestUser"`
}

type refreshRequest struct {
	ClientToken     string            `json:"clientToken"`
	AccessToken     string            `json:"accessToken"`
	SelectedProfile *profiles.Profile `json:"selectedProfile,omitempty"`
	RequestUser     bool              `json:"requestUser"`
}

type invalidateRequest struct {
	ClientToken string `json:"clientToken"`
	AccessToken string `json:"accessToken"`
}

type User struct {
	ID         string              `json:"id"`
	Properties []profiles.Property `json:"properties"`
}

type AuthResponse struct {
	AccessToken       string              `json:"accessToken"`
	ClientToken       string              `json:"clientToken"`
	SelectedProfile   *profiles.Profile   `json:"selectedProfile"`
	AvailableProfiles []*profiles.Profile `json:"availableProfiles"`
	User              *User               `json:"user"`
}

// Authenticate exchanges account credentials for an access token
// See https://wiki.vg/Legacy_Mojang_Authentication#Authenticate
func (a *YggdrasilApi) Authenticate(ctx context.Context, username string, password string, clientToken string) (*AuthResponse, error) {
	return a.authRequest(ctx, "authenticate", clientToken, &authenticateRequest{
		Agent:       MinecraftAgent,
		Username:    username,
		Password:    password,
		ClientToken: clientToken,
		RequestUser: true,
	})
}

// Refresh renews the access token. When selectedProfile is not nil, the new token is bound to it
// See https://wiki.vg/Legacy_Mojang_Authentication#Refresh
func (a *YggdrasilApi) Refresh(ctx context.Context, accessToken string, clientToken string, selectedProfile *profiles.Profile) (*AuthResponse, error) {
	return a.authRequest(ctx, "refresh", clientToken, &refreshRequest{
		ClientToken:     clientToken,
		AccessToken:     accessToken,
		SelectedProfile: selectedProfile,
		RequestUser:     true,
	})
}

// See https://wiki.vg/Legacy_Mojang_Authentication#Invalidate
func (a *YggdrasilApi) Invalidate(ctx context.Context, accessToken string, clientToken string) error {
	return a.client.PostJSON(ctx, a.authEndpoint("invalidate"), &invalidateRequest{
		ClientToken: clientToken,
		AccessToken: accessToken,
	}, nil)
}

func (a *YggdrasilApi) authRequest(ctx context.Context, method string, clientToken string, request any) (*AuthResponse, error) {
	endpoint := a.authEndpoint(method)

	var response AuthResponse
	if err := a.client.PostJSON(ctx, endpoint, request, &response); err != nil {
		return nil, err
	}

	// A substituted client token wins over any other problem of the response.
	// An empty one is reported as a violation only when the response is otherwise complete
	substituted := response.ClientToken != clientToken
	if substituted && response.ClientToken != "" {
		return nil, ErrProtocolViolation
	}

	if response.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s returned no access token", transport.ErrServiceUnreachable, endpoint)
	}

	if substituted {
		return nil, ErrProtocolViolation
	}

	return &response, nil
}

func (a *YggdrasilApi) authEndpoint(method string) string {
	return resolve(a.endpoints.Endpoints().Auth, method, nil)
}

// SearchProfiles resolves a page of names into profiles. Names unknown to the server
// are just absent from the result
// See https://wiki.vg/Mojang_API#Usernames_to_UUIDs
func (a *YggdrasilApi) SearchProfiles(ctx context.Context, names []string) ([]*profiles.Profile, error) {
	var result []*profiles.Profile
	err := a.client.PostJSON(ctx, resolve(a.endpoints.Endpoints().Profiles, "minecraft", nil), names, &result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

type joinRequest struct {
	AccessToken     string `json:"accessToken"`
	SelectedProfile string `json:"selectedProfile"`
	ServerID        string `json:"serverId"`
}

// See https://wiki.vg/Protocol_Encryption#Client
func (a *YggdrasilApi) Join(ctx context.Context, accessToken string, profileID uuid.UUID, serverID string) error {
	return a.client.PostJSON(ctx, resolve(a.endpoints.Endpoints().Session, "join", nil), &joinRequest{
		AccessToken:     accessToken,
		SelectedProfile: profiles.UndashedID(profileID),
		ServerID:        serverID,
	}, nil)
}

type ProfileResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Properties []profiles.Property `json:"properties"`
}

// HasJoined returns nil when the server doesn't know about the join
// See https://wiki.vg/Protocol_Encryption#Server
func (a *YggdrasilApi) HasJoined(ctx context.Context, name string, serverID string) (*ProfileResponse, error) {
	return a.sessionProfile(ctx, resolve(a.endpoints.Endpoints().Session, "hasJoined", url.Values{
		"username": {name},
		"serverId": {serverID},
	}))
}

// GetProfileProperties returns nil when there is no profile with such id
// See https://wiki.vg/Mojang_API#UUID_to_Profile_and_Skin.2FCape
func (a *YggdrasilApi) GetProfileProperties(ctx context.Context, id uuid.UUID) (*ProfileResponse, error) {
	return a.sessionProfile(ctx, resolve(a.endpoints.Endpoints().Session, "profile/"+profiles.UndashedID(id), url.Values{
		"unsigned": {"false"},
	}))
}

func (a *YggdrasilApi) sessionProfile(ctx context.Context, endpoint string) (*ProfileResponse, error) {
	var result *ProfileResponse
	if err := a.client.GetJSON(ctx, endpoint, nil, &result); err != nil {
		return nil, err
	}

	if result == nil || result.ID == "" {
		return nil, nil
	}

	return result, nil
}

func resolve(base *url.URL, path string, query url.Values) string {
	reference := &url.URL{Path: path}
	if query != nil {
		reference.RawQuery = query.Encode()
	}

	return base.ResolveReference(reference).String()
}
