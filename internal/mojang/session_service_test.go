package mojang

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ely.by/mcauth/internal/profiles"
)

type sessionServerApiMock struct {
	mock.Mock
}

func (m *sessionServerApiMock) GetProfileProperties(ctx context.Context, id uuid.UUID) (*ProfileResponse, error) {
	args := m.Called(ctx, id)
	var result *ProfileResponse
	if casted, ok := args.Get(0).(*ProfileResponse); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *sessionServerApiMock) Join(ctx context.Context, accessToken string, profileID uuid.UUID, serverID string) error {
	return m.Called(ctx, accessToken, profileID, serverID).Error(0)
}

func (m *sessionServerApiMock) HasJoined(ctx context.Context, name string, serverID string) (*ProfileResponse, error) {
	args := m.Called(ctx, name, serverID)
	var result *ProfileResponse
	if casted, ok := args.Get(0).(*ProfileResponse); ok {
		result = casted
	}

	return result, args.Error(1)
}

var notchID = uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

type SessionServiceSuite struct {
	suite.Suite

	Api     *sessionServerApiMock
	Service *SessionService
}

func (s *SessionServiceSuite) SetupTest() {
	s.Api = &sessionServerApiMock{}
	s.Service = NewSessionService(s.Api, nil)
}

func (s *SessionServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *SessionServiceSuite) TearDownTest() {
	s.Api.AssertExpectations(s.T())
}

func (s *SessionServiceSuite) TestJoinServer() {
	s.Run("successfully", func() {
		s.Api.On("Join", mock.Anything, "access-token", notchID, "server-hash").Once().Return(nil)

		profile, _ := profiles.NewProfile(notchID, "Notch")
		err := s.Service.JoinServer(context.Background(), profile, "access-token", "server-hash")
		s.Require().NoError(err)
	})

	s.Run("profile without id", func() {
		profile, _ := profiles.NewProfile(uuid.Nil, "Notch")
		err := s.Service.JoinServer(context.Background(), profile, "access-token", "server-hash")
		s.Require().ErrorIs(err, ErrProfileWithoutID)
	})
}

func (s *SessionServiceSuite) TestHasJoined() {
	s.Run("joined", func() {
		s.Api.On("HasJoined", mock.Anything, "Notch", "server-hash").Once().Return(&ProfileResponse{
			ID:         "069a79f444e94726a5befca90e38aaf5",
			Name:       "Notch",
			Properties: []profiles.Property{{Name: "textures", Value: "e30=", Signature: "c2ln"}},
		}, nil)

		profile, err := s.Service.HasJoined(context.Background(), "Notch", "server-hash")
		s.Require().NoError(err)
		s.Require().Equal(notchID, profile.ID)
		s.Require().Equal("Notch", profile.Name)
		s.Require().Len(profile.Properties(), 1)
	})

	s.Run("not joined", func() {
		s.Api.On("HasJoined", mock.Anything, "Notch", "server-hash").Once().Return(nil, nil)

		profile, err := s.Service.HasJoined(context.Background(), "Notch", "server-hash")
		s.Require().NoError(err)
		s.Require().Nil(profile)
	})
}

func (s *SessionServiceSuite) TestFillProfileProperties() {
	s.Run("successfully", func() {
		s.Api.On("GetProfileProperties", mock.Anything, notchID).Once().Return(&ProfileResponse{
			ID:         "069a79f444e94726a5befca90e38aaf5",
			Name:       "Notch",
			Properties: []profiles.Property{{Name: "textures", Value: "e30=", Signature: "c2ln"}},
		}, nil)

		profile, _ := profiles.NewProfile(notchID, "Notch")
		profile.SetProperties([]profiles.Property{{Name: "stale", Value: "value"}})

		result, err := s.Service.FillProfileProperties(context.Background(), profile)
		s.Require().NoError(err)
		s.Require().Same(profile, result)
		s.Require().Equal([]profiles.Property{{Name: "textures", Value: "e30=", Signature: "c2ln"}}, result.Properties())
	})

	s.Run("profile without id is returned as is", func() {
		profile, _ := profiles.NewProfile(uuid.Nil, "Notch")

		result, err := s.Service.FillProfileProperties(context.Background(), profile)
		s.Require().NoError(err)
		s.Require().Same(profile, result)
	})

	s.Run("not found", func() {
		s.Api.On("GetProfileProperties", mock.Anything, notchID).Once().Return(nil, nil)

		profile, _ := profiles.NewProfile(notchID, "Notch")
		_, err := s.Service.FillProfileProperties(context.Background(), profile)
		s.Require().ErrorIs(err, ErrProfileNotFound)
	})

	s.Run("lookup failure", func() {
		expectedErr := errors.New("mock error")
		s.Api.On("GetProfileProperties", mock.Anything, notchID).Once().Return(nil, expectedErr)

		profile, _ := profiles.NewProfile(notchID, "Notch")
		_, err := s.Service.FillProfileProperties(context.Background(), profile)
		s.Require().ErrorIs(err, ErrProfileLookupFailed)
		s.Require().ErrorIs(err, expectedErr)
	})
}

func TestSessionService(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func TestServerID(t *testing.T) {
	// Well known values of the digest implementation used by the game
	require.Equal(t, "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48", ServerID("Notch", nil, nil))
	require.Equal(t, "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1", ServerID("jeb_", nil, nil))
	require.Equal(t, "88e16a1019277b15d58faf0541e11910eb756f6", ServerID("simon", nil, nil))

	require.Equal(t, ServerID("Notchsecretkey", nil, nil), ServerID("Notch", []byte("key"), []byte("secret")))
}

func TestPropertiesProviderWithInMemoryCache(t *testing.T) {
	api := &sessionServerApiMock{}
	response := &ProfileResponse{ID: "069a79f444e94726a5befca90e38aaf5", Name: "Notch"}

	started := make(chan struct{})
	release := make(chan struct{})
	api.On("GetProfileProperties", mock.Anything, notchID).Once().Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(response, nil)

	provider, err := NewPropertiesProviderWithInMemoryCache(api, time.Minute)
	require.NoError(t, err)
	defer provider.StopGC()

	var wg sync.WaitGroup
	results := make([]*ProfileResponse, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i > 0 {
				<-started
			}

			results[i], _ = provider.GetProfileProperties(context.Background(), notchID)
		}()
	}

	<-started
	// Let the other lookups join the running request
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, result := range results {
		require.Same(t, response, result)
	}

	result, err := provider.GetProfileProperties(context.Background(), notchID)
	require.NoError(t, err)
	require.Same(t, response, result)

	api.AssertExpectations(t)
}
