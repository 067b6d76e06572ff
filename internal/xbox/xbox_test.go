package xbox

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ely.by/mcauth/internal/transport"
)

func ticketBody(token string, uhs string) map[string]any {
	return map[string]any{
		"IssueInstant": "2020-12-07T19:52:08.4463796Z",
		"NotAfter":     "2020-12-21T19:52:08.4463796Z",
		"Token":        token,
		"DisplayClaims": map[string]any{
			"xui": []map[string]any{{"uhs": uhs}},
		},
	}
}

type ClientSuite struct {
	suite.Suite
	client *Client
}

func (s *ClientSuite) SetupTest() {
	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)

	client, err := transport.New(httpClient)
	s.Require().NoError(err)

	s.client = NewClient(client)
}

func (s *ClientSuite) TearDownTest() {
	gock.Off()
}

func (s *ClientSuite) SetupSubTest() {
	gock.Off()
	s.SetupTest()
}

func (s *ClientSuite) TestAuthenticateUser() {
	gock.New("https://user.auth.xboxlive.com").
		Post("/user/authenticate").
		JSON(map[string]any{
			"RelyingParty": "http://auth.xboxlive.com",
			"TokenType":    "JWT",
			"Properties": map[string]any{
				"AuthMethod": "RPS",
				"SiteName":   "user.auth.xboxlive.com",
				"RpsTicket":  "d=azure-token",
			},
		}).
		Reply(200).
		JSON(ticketBody("xbl-token", "user-hash"))

	ticket, err := s.client.AuthenticateUser(context.Background(), "d=azure-token")
	s.Require().NoError(err)
	s.Require().Equal("xbl-token", ticket.Token)
	s.Require().Equal("user-hash", ticket.UserHash)
	s.Require().True(time.Date(2020, 12, 21, 19, 52, 8, 446379600, time.UTC).Equal(ticket.NotAfter))
}

func (s *ClientSuite) TestAuthenticateUserIncompleteTicket() {
	gock.New("https://user.auth.xboxlive.com").
		Post("/user/authenticate").
		Reply(200).
		JSON(map[string]any{"Token": "xbl-token"})

	_, err := s.client.AuthenticateUser(context.Background(), "token")
	s.Require().ErrorIs(err, transport.ErrServiceUnreachable)
}

func (s *ClientSuite) TestAuthenticateUserRejected() {
	gock.New("https://user.auth.xboxlive.com").
		Post("/user/authenticate").
		Reply(400)

	_, err := s.client.AuthenticateUser(context.Background(), "token")
	s.Require().IsType(&transport.StatusError{}, err)
}

func (s *ClientSuite) TestAuthorize() {
	gock.New("https://xsts.auth.xboxlive.com").
		Post("/xsts/authorize").
		JSON(map[string]any{
			"RelyingParty": "rp://api.minecraftservices.com/",
			"TokenType":    "JWT",
			"Properties": map[string]any{
				"UserTokens": []string{"xbl-token"},
				"SandboxId":  "RETAIL",
			},
		}).
		Reply(200).
		JSON(ticketBody("xsts-token", "user-hash"))

	ticket, err := s.client.Authorize(context.Background(), &Ticket{Token: "xbl-token", UserHash: "user-hash"})
	s.Require().NoError(err)
	s.Require().Equal("xsts-token", ticket.Token)
	s.Require().Equal("user-hash", ticket.UserHash)
}

func (s *ClientSuite) TestAuthorizeErrorCodes() {
	for code, expected := range map[int64]error{
		2148916233: ErrNoXboxAccount,
		2148916235: ErrXboxUnavailableInRegion,
		2148916238: ErrChildAccount,
	} {
		s.Run(expected.Error(), func() {
			gock.New("https://xsts.auth.xboxlive.com").
				Post("/xsts/authorize").
				Reply(401).
				JSON(map[string]any{
					"Identity": "0",
					"XErr":     code,
					"Message":  "",
					"Redirect": "https://start.ui.xboxlive.com/CreateAccount",
				})

			_, err := s.client.Authorize(context.Background(), &Ticket{Token: "xbl-token", UserHash: "user-hash"})
			s.Require().ErrorIs(err, expected)
			s.Require().ErrorIs(err, ErrXbox)

			var xboxErr *XboxError
			s.Require().False(errors.As(err, &xboxErr))
		})
	}

	s.Run("unknown code", func() {
		gock.New("https://xsts.auth.xboxlive.com").
			Post("/xsts/authorize").
			Reply(401).
			JSON(map[string]any{"XErr": 2148916227, "Message": "banned"})

		_, err := s.client.Authorize(context.Background(), &Ticket{Token: "xbl-token", UserHash: "user-hash"})
		s.Require().ErrorIs(err, ErrXbox)
		s.Require().NotErrorIs(err, ErrNoXboxAccount)

		var xboxErr *XboxError
		s.Require().ErrorAs(err, &xboxErr)
		s.Require().Equal(int64(2148916227), xboxErr.Code)
		s.Require().EqualError(err, "xbox live authentication failed: error id 2148916227: banned")
	})

	s.Run("status without code", func() {
		gock.New("https://xsts.auth.xboxlive.com").
			Post("/xsts/authorize").
			Reply(401)

		_, err := s.client.Authorize(context.Background(), &Ticket{Token: "xbl-token", UserHash: "user-hash"})
		s.Require().NotErrorIs(err, ErrXbox)
		s.Require().IsType(&transport.StatusError{}, err)
	})
}

func (s *ClientSuite) TestLoginWithXbox() {
	gock.New("https://api.minecraftservices.com").
		Post("/authentication/login_with_xbox").
		JSON(map[string]any{"identityToken": "XBL3.0 x=user-hash;xsts-token"}).
		Reply(200).
		JSON(map[string]any{
			"username":     "c5a1b1a6-0000-4000-8000-000000000000",
			"roles":        []string{},
			"access_token": "game-token",
			"token_type":   "Bearer",
			"expires_in":   86400,
		})

	token, err := s.client.LoginWithXbox(context.Background(), &Ticket{Token: "xsts-token", UserHash: "user-hash"})
	s.Require().NoError(err)
	s.Require().Equal("game-token", token.AccessToken)
	s.Require().Equal(86400, token.ExpiresIn)
}

func (s *ClientSuite) TestProfile() {
	s.Run("successfully", func() {
		gock.New("https://api.minecraftservices.com").
			Get("/minecraft/profile").
			MatchHeader("Authorization", "Bearer game-token").
			Reply(200).
			JSON(map[string]any{
				"id":   "069a79f444e94726a5befca90e38aaf5",
				"name": "Notch",
				"skins": []map[string]any{
					{
						"id":      "6a6e65e5-76dd-4c3c-a625-162924514568",
						"state":   "ACTIVE",
						"url":     "http://textures.minecraft.net/texture/292009a4925b58f02c77dadc3ecef07ea4c7472f64e0fdc32ce5522489362680",
						"variant": "CLASSIC",
					},
				},
				"capes": []map[string]any{},
			})

		gameProfile, err := s.client.Profile(context.Background(), "game-token")
		s.Require().NoError(err)
		s.Require().Len(gameProfile.Skins, 1)
		s.Require().Equal("CLASSIC", gameProfile.Skins[0].Variant)

		profile, err := gameProfile.Profile()
		s.Require().NoError(err)
		s.Require().Equal(uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), profile.ID)
		s.Require().Equal("Notch", profile.Name)
	})

	s.Run("no game", func() {
		gock.New("https://api.minecraftservices.com").
			Get("/minecraft/profile").
			Reply(404).
			JSON(map[string]any{
				"path":             "/minecraft/profile",
				"errorType":        "NOT_FOUND",
				"error":            "NOT_FOUND",
				"errorMessage":     "The server has not found anything matching the request URI",
				"developerMessage": "The server has not found anything matching the request URI",
			})

		_, err := s.client.Profile(context.Background(), "game-token")
		s.Require().ErrorIs(err, ErrNoGameProfile)
	})

	s.Run("expired token", func() {
		gock.New("https://api.minecraftservices.com").
			Get("/minecraft/profile").
			Reply(401)

		_, err := s.client.Profile(context.Background(), "game-token")
		s.Require().NotErrorIs(err, ErrNoGameProfile)
		s.Require().IsType(&transport.StatusError{}, err)
	})
}

func TestClient(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func signGameToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	return token
}

func TestProfileFromToken(t *testing.T) {
	t.Run("with profile", func(t *testing.T) {
		token := signGameToken(t, jwt.MapClaims{
			"xuid":     "2535405290000000",
			"profiles": map[string]any{"mc": "069a79f4-44e9-4726-a5be-fca90e38aaf5"},
			"pfd": []map[string]any{
				{"type": "mc", "id": "069a79f4-44e9-4726-a5be-fca90e38aaf5", "name": "Notch"},
			},
			"exp": 1900000000,
		})

		profile, err := ProfileFromToken(token)
		require.NoError(t, err)
		require.Equal(t, uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), profile.ID)
		require.Equal(t, "Notch", profile.Name)
		require.True(t, time.Unix(1900000000, 0).Equal(TokenExpiry(token)))
	})

	t.Run("without profile", func(t *testing.T) {
		token := signGameToken(t, jwt.MapClaims{"xuid": "2535405290000000"})

		profile, err := ProfileFromToken(token)
		require.NoError(t, err)
		require.Nil(t, profile)
		require.True(t, TokenExpiry(token).IsZero())
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, err := ProfileFromToken("opaque-token")
		require.Error(t, err)
		require.True(t, TokenExpiry("opaque-token").IsZero())
	})
}
