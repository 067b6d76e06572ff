package mojang

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/trust"
)

type YggdrasilApiSuite struct {
	suite.Suite
	api *YggdrasilApi
}

func (s *YggdrasilApiSuite) SetupTest() {
	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)

	client, err := transport.New(httpClient)
	s.Require().NoError(err)

	s.api = NewYggdrasilApi(client, trust.NewRegistry(client))
}

func (s *YggdrasilApiSuite) TearDownTest() {
	gock.Off()
}

func (s *YggdrasilApiSuite) TestAuthenticate() {
	gock.New("https://authserver.mojang.com").
		Post("/authenticate").
		JSON(map[string]any{
			"agent":       map[string]any{"name": "Minecraft", "version": 1},
			"username":    "user@example.com",
			"password":    "secret",
			"clientToken": "client-token",
			"requestUser": true,
		}).
		Reply(200).
		JSON(map[string]any{
			"accessToken": "access-token",
			"clientToken": "client-token",
			"availableProfiles": []map[string]any{
				{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"},
			},
			"selectedProfile": map[string]any{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"},
			"user": map[string]any{
				"id": "9f9e0d8cf43a4ea7a7d0a4e1a6a5d2e1",
				"properties": []map[string]any{
					{"name": "preferredLanguage", "value": "en"},
				},
			},
		})

	response, err := s.api.Authenticate(context.Background(), "user@example.com", "secret", "client-token")
	s.Require().NoError(err)
	s.Require().Equal("access-token", response.AccessToken)
	s.Require().Len(response.AvailableProfiles, 1)
	s.Require().Equal("Notch", response.AvailableProfiles[0].Name)
	s.Require().Equal(uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), response.SelectedProfile.ID)
	s.Require().Equal("9f9e0d8cf43a4ea7a7d0a4e1a6a5d2e1", response.User.ID)
	s.Require().Equal([]profiles.Property{{Name: "preferredLanguage", Value: "en"}}, response.User.Properties)
}

func (s *YggdrasilApiSuite) TestAuthenticateWithSubstitutedClientToken() {
	gock.New("https://authserver.mojang.com").
		Post("/authenticate").
		Reply(200).
		JSON(map[string]any{
			"accessToken": "access-token",
			"clientToken": "another-client-token",
		})

	response, err := s.api.Authenticate(context.Background(), "user@example.com", "secret", "client-token")
	s.Require().Nil(response)
	s.Require().ErrorIs(err, ErrProtocolViolation)
}

func (s *YggdrasilApiSuite) TestRefreshWithSubstitutedClientTokenAndNoAccessToken() {
	gock.New("https://authserver.mojang.com").
		Post("/refresh").
		Reply(200).
		JSON(map[string]any{
			"clientToken": "another-client-token",
		})

	response, err := s.api.Refresh(context.Background(), "old-token", "client-token", nil)
	s.Require().Nil(response)
	s.Require().ErrorIs(err, ErrProtocolViolation)
	s.Require().NotErrorIs(err, transport.ErrServiceUnreachable)
}

func (s *YggdrasilApiSuite) TestAuthenticateWithoutClientToken() {
	gock.New("https://authserver.mojang.com").
		Post("/authenticate").
		Reply(200).
		JSON(map[string]any{
			"accessToken": "access-token",
		})

	_, err := s.api.Authenticate(context.Background(), "user@example.com", "secret", "client-token")
	s.Require().ErrorIs(err, ErrProtocolViolation)
}

func (s *YggdrasilApiSuite) TestAuthenticateWithInvalidCredentials() {
	gock.New("https://authserver.mojang.com").
		Post("/authenticate").
		Reply(403).
		JSON(map[string]any{
			"error":        "ForbiddenOperationException",
			"errorMessage": "Invalid credentials. Invalid username or password.",
		})

	_, err := s.api.Authenticate(context.Background(), "user@example.com", "wrong", "client-token")
	s.Require().ErrorIs(err, transport.ErrInvalidCredentials)
}

func (s *YggdrasilApiSuite) TestAuthenticateWithEmptyResponse() {
	gock.New("https://authserver.mojang.com").
		Post("/authenticate").
		Reply(200).
		JSON(map[string]any{})

	_, err := s.api.Authenticate(context.Background(), "user@example.com", "secret", "client-token")
	s.Require().ErrorIs(err, transport.ErrServiceUnreachable)
}

func (s *YggdrasilApiSuite) TestRefreshWithSelectedProfile() {
	gock.New("https://authserver.mojang.com").
		Post("/refresh").
		JSON(map[string]any{
			"clientToken":     "client-token",
			"accessToken":     "old-token",
			"selectedProfile": map[string]any{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"},
			"requestUser":     true,
		}).
		Reply(200).
		JSON(map[string]any{
			"accessToken":     "new-token",
			"clientToken":     "client-token",
			"selectedProfile": map[string]any{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"},
		})

	profile, _ := profiles.NewProfile(uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), "Notch")
	response, err := s.api.Refresh(context.Background(), "old-token", "client-token", profile)
	s.Require().NoError(err)
	s.Require().Equal("new-token", response.AccessToken)
	s.Require().True(profile.Equal(response.SelectedProfile))
}

func (s *YggdrasilApiSuite) TestInvalidate() {
	gock.New("https://authserver.mojang.com").
		Post("/invalidate").
		JSON(map[string]any{
			"clientToken": "client-token",
			"accessToken": "access-token",
		}).
		Reply(204)

	err := s.api.Invalidate(context.Background(), "access-token", "client-token")
	s.Require().NoError(err)
	s.Require().True(gock.IsDone())
}

func (s *YggdrasilApiSuite) TestSearchProfiles() {
	gock.New("https://api.mojang.com").
		Post("/profiles/minecraft").
		JSON([]string{"notch", "jeb_"}).
		Reply(200).
		JSON([]map[string]any{
			{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"},
		})

	result, err := s.api.SearchProfiles(context.Background(), []string{"notch", "jeb_"})
	s.Require().NoError(err)
	s.Require().Len(result, 1)
	s.Require().Equal("Notch", result[0].Name)
}

func (s *YggdrasilApiSuite) TestJoin() {
	gock.New("https://sessionserver.mojang.com").
		Post("/session/minecraft/join").
		JSON(map[string]any{
			"accessToken":     "access-token",
			"selectedProfile": "069a79f444e94726a5befca90e38aaf5",
			"serverId":        "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1",
		}).
		Reply(204)

	err := s.api.Join(context.Background(), "access-token", uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1")
	s.Require().NoError(err)
}

func (s *YggdrasilApiSuite) TestHasJoined() {
	s.Run("joined", func() {
		gock.New("https://sessionserver.mojang.com").
			Get("/session/minecraft/hasJoined").
			MatchParam("username", "Notch").
			MatchParam("serverId", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48").
			Reply(200).
			JSON(map[string]any{
				"id":   "069a79f444e94726a5befca90e38aaf5",
				"name": "Notch",
				"properties": []map[string]any{
					{"name": "textures", "value": "e30=", "signature": "c2ln"},
				},
			})

		response, err := s.api.HasJoined(context.Background(), "Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48")
		s.Require().NoError(err)
		s.Require().Equal("069a79f444e94726a5befca90e38aaf5", response.ID)
		s.Require().Len(response.Properties, 1)
	})

	s.Run("not joined", func() {
		gock.New("https://sessionserver.mojang.com").
			Get("/session/minecraft/hasJoined").
			Reply(204)

		response, err := s.api.HasJoined(context.Background(), "Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48")
		s.Require().NoError(err)
		s.Require().Nil(response)
	})
}

func (s *YggdrasilApiSuite) TestGetProfileProperties() {
	gock.New("https://sessionserver.mojang.com").
		Get("/session/minecraft/profile/069a79f444e94726a5befca90e38aaf5").
		MatchParam("unsigned", "false").
		Reply(200).
		JSON(map[string]any{
			"id":   "069a79f444e94726a5befca90e38aaf5",
			"name": "Notch",
			"properties": []map[string]any{
				{"name": "textures", "value": "e30=", "signature": "c2ln"},
			},
		})

	response, err := s.api.GetProfileProperties(context.Background(), uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"))
	s.Require().NoError(err)
	s.Require().Equal("Notch", response.Name)
	s.Require().Equal("c2ln", response.Properties[0].Signature)
}

func TestYggdrasilApi(t *testing.T) {
	suite.Run(t, new(YggdrasilApiSuite))
}

type staticEndpoints struct {
	endpoints trust.Endpoints
}

func (s *staticEndpoints) Endpoints() trust.Endpoints {
	return s.endpoints
}

func TestYggdrasilApiWithAlternateRoot(t *testing.T) {
	defer gock.Off()

	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)

	client, _ := transport.New(httpClient)
	api := NewYggdrasilApi(client, &staticEndpoints{trust.Endpoints{
		Auth:     mustParse(t, "https://authlib.example.com/api/yggdrasil/authserver/"),
		Profiles: mustParse(t, "https://authlib.example.com/api/yggdrasil/api/profiles/"),
		Session:  mustParse(t, "https://authlib.example.com/api/yggdrasil/sessionserver/session/minecraft/"),
	}})

	gock.New("https://authlib.example.com").
		Post("/api/yggdrasil/api/profiles/minecraft").
		Reply(200).
		JSON([]map[string]any{})

	result, err := api.SearchProfiles(context.Background(), []string{"notch"})
	require.NoError(t, err)
	require.Empty(t, result)
	require.True(t, gock.IsDone())
}
