package profiles

import (
	"encoding/binary"
	"maps"

	"github.com/zeebo/blake3"

	"ely.by/mcauth/internal/trust"
)

type TrustSource interface {
	Snapshot() *trust.Snapshot
}

// Decoder resolves textures of profiles against the trust configuration of the registry.
// Decoded textures are cached on the profile under a digest of its property list
type Decoder struct {
	trust TrustSource
}

func NewDecoder(trust TrustSource) *Decoder {
	return &Decoder{trust: trust}
}

type texturesEntry struct {
	digest [32]byte
	// secure entries were verified against the snapshot of the recorded generation
	secure     bool
	generation uint64
	textures   map[TextureType]*Texture
}

func (e *texturesEntry) usable(digest [32]byte, requireSecure bool, generation uint64) bool {
	if e == nil || e.digest != digest {
		return false
	}

	if !requireSecure {
		return true
	}

	return e.secure && e.generation == generation
}

// ResolveTextures returns the textures described by the "textures" property of the profile.
// A profile without the property has no textures. When requireSecure is set, the payload
// must be signed by the active signing key and every texture must be hosted on a whitelisted domain
func (d *Decoder) ResolveTextures(profile *Profile, requireSecure bool) (map[TextureType]*Texture, error) {
	snapshot := d.trust.Snapshot()

	profile.mu.Lock()
	defer profile.mu.Unlock()

	digest := propertiesDigest(profile.properties)
	if profile.textures.usable(digest, requireSecure, snapshot.Generation) {
		return maps.Clone(profile.textures.textures), nil
	}

	var property *Property
	for i := range profile.properties {
		if profile.properties[i].Name == TexturesProperty {
			property = &profile.properties[i]
			break
		}
	}

	if property == nil {
		return map[TextureType]*Texture{}, nil
	}

	textures, err := decodeProperty(property, snapshot, requireSecure)
	if err != nil {
		return nil, err
	}

	profile.textures = &texturesEntry{
		digest:     digest,
		secure:     requireSecure,
		generation: snapshot.Generation,
		textures:   textures,
	}

	return maps.Clone(textures), nil
}

func decodeProperty(property *Property, snapshot *trust.Snapshot, requireSecure bool) (map[TextureType]*Texture, error) {
	if requireSecure {
		if !property.Signed() {
			return nil, &PropertyError{Property: property.Name, Err: ErrMissingSignature}
		}

		if err := trust.VerifySignature(snapshot.Key, property.Value, property.Signature); err != nil {
			return nil, &PropertyError{Property: property.Name, Err: ErrInvalidSignature, Cause: err}
		}
	}

	payload, err := DecodeTextures(property.Value)
	if err != nil {
		return nil, &PropertyError{Property: property.Name, Err: ErrMalformedPayload, Cause: err}
	}

	textures := make(map[TextureType]*Texture, len(payload.Textures))
	for textureType, texture := range payload.Textures {
		if texture == nil {
			continue
		}

		if requireSecure && !snapshot.IsWhitelisted(texture.URL) {
			return nil, &PropertyError{Property: property.Name, Err: ErrUntrustedDomain}
		}

		textures[textureType] = texture
	}

	return textures, nil
}

func propertiesDigest(properties []Property) [32]byte {
	hasher := blake3.New()
	var length [8]byte
	write := func(value string) {
		binary.BigEndian.PutUint64(length[:], uint64(len(value)))
		_, _ = hasher.Write(length[:])
		_, _ = hasher.Write([]byte(value))
	}

	for _, property := range properties {
		write(property.Name)
		write(property.Value)
		write(property.Signature)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))

	return digest
}
