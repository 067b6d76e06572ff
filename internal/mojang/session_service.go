package mojang

import (
	"context"
	"crypto/sha1"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"ely.by/mcauth/internal/profiles"
)

type PropertiesProvider interface {
	GetProfileProperties(ctx context.Context, id uuid.UUID) (*ProfileResponse, error)
}

type SessionServerApi interface {
	PropertiesProvider
	Join(ctx context.Context, accessToken string, profileID uuid.UUID, serverID string) error
	HasJoined(ctx context.Context, name string, serverID string) (*ProfileResponse, error)
}

// SessionService implements both sides of the online-mode handshake and fills profiles with properties
type SessionService struct {
	api        SessionServerApi
	properties PropertiesProvider
}

// NewSessionService uses the api for properties lookups unless a dedicated (e.g. caching) provider is passed
func NewSessionService(api SessionServerApi, properties PropertiesProvider) *SessionService {
	if properties == nil {
		properties = api
	}

	return &SessionService{
		api:        api,
		properties: properties,
	}
}

func (s *SessionService) JoinServer(ctx context.Context, profile *profiles.Profile, accessToken string, serverID string) error {
	if profile == nil || profile.ID == uuid.Nil {
		return ErrProfileWithoutID
	}

	return s.api.Join(ctx, accessToken, profile.ID, serverID)
}

// HasJoined returns the profile of the player who has joined the server with the given id,
// or nil if there was no such join
func (s *SessionService) HasJoined(ctx context.Context, name string, serverID string) (*profiles.Profile, error) {
	response, err := s.api.HasJoined(ctx, name, serverID)
	if err != nil || response == nil {
		return nil, err
	}

	id, err := profiles.ParseID(response.ID)
	if err != nil {
		return nil, err
	}

	profile, err := profiles.NewProfile(id, name)
	if err != nil {
		return nil, err
	}

	profile.SetProperties(response.Properties)

	return profile, nil
}

// FillProfileProperties replaces properties of the profile with the signed ones known to the session server.
// A profile without an id is returned as is
func (s *SessionService) FillProfileProperties(ctx context.Context, profile *profiles.Profile) (*profiles.Profile, error) {
	if profile.ID == uuid.Nil {
		return profile, nil
	}

	response, err := s.properties.GetProfileProperties(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't look up properties for %s: %w", ErrProfileLookupFailed, profile, err)
	}

	if response == nil {
		return nil, fmt.Errorf("%w: couldn't fetch properties for %s", ErrProfileNotFound, profile)
	}

	profile.SetProperties(response.Properties)

	return profile, nil
}

// ServerID computes the hash both the client and the server send to the session server during
// the online-mode handshake: SHA-1 of the base (ISO-8859-1), the shared secret and the DER encoded
// server public key, rendered as a signed hexadecimal number
func ServerID(base string, publicKey []byte, secretKey []byte) string {
	hash := sha1.New()
	hash.Write(latin1(base))
	hash.Write(secretKey)
	hash.Write(publicKey)
	digest := hash.Sum(nil)

	negative := digest[0]&0x80 != 0
	if negative {
		// two's complement
		carry := true
		for i := len(digest) - 1; i >= 0; i-- {
			digest[i] = ^digest[i]
			if carry {
				digest[i]++
				carry = digest[i] == 0
			}
		}
	}

	result := new(big.Int).SetBytes(digest).Text(16)
	if negative {
		return "-" + result
	}

	return result
}

func latin1(s string) []byte {
	result := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			r = '?'
		}

		result = append(result, byte(r))
	}

	return result
}
