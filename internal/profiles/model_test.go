package profiles

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewProfile(t *testing.T) {
	_, err := NewProfile(uuid.Nil, "")
	require.ErrorIs(t, err, ErrInvalidProfile)

	profile, err := NewProfile(uuid.Nil, "Notch")
	require.NoError(t, err)
	require.False(t, profile.Complete())

	profile, err = NewProfile(uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), "Notch")
	require.NoError(t, err)
	require.True(t, profile.Complete())
}

func TestProfile_Equal(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	a, _ := NewProfile(id, "Notch")
	b, _ := NewProfile(id, "Notch")
	b.SetProperties([]Property{{Name: "textures", Value: "e30="}})
	c, _ := NewProfile(id, "jeb_")

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(nil))
}

func TestProfile_JSON(t *testing.T) {
	var profile *Profile
	err := json.Unmarshal([]byte(`{
		"id": "069a79f444e94726a5befca90e38aaf5",
		"name": "Notch",
		"properties": [
			{"name": "textures", "value": "e30=", "signature": "c2ln"}
		]
	}`), &profile)
	require.NoError(t, err)
	require.Equal(t, uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), profile.ID)
	require.Equal(t, "Notch", profile.Name)

	property, ok := profile.Property("textures")
	require.True(t, ok)
	require.True(t, property.Signed())

	_, ok = profile.Property("missing")
	require.False(t, ok)

	serialized, err := json.Marshal(profile)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "069a79f444e94726a5befca90e38aaf5",
		"name": "Notch",
		"properties": [
			{"name": "textures", "value": "e30=", "signature": "c2ln"}
		]
	}`, string(serialized))

	err = json.Unmarshal([]byte(`{"properties": []}`), &profile)
	require.ErrorIs(t, err, ErrInvalidProfile)

	err = json.Unmarshal([]byte(`{"id": "not-an-id"}`), &profile)
	require.Error(t, err)
}

func TestTexture_Hash(t *testing.T) {
	for url, expected := range map[string]string{
		"http://textures.minecraft.net/texture/292009a4925b58f02c77dadc3ecef07ea4c7472f64e0fdc32ce5522489362680":  "292009a4925b58f02c77dadc3ecef07ea4c7472f64e0fdc32ce5522489362680",
		"http://textures.minecraft.net/texture/292009a4925b58f02c77dadc3ecef07ea4c7472f64e0fdc32ce5522489362680/": "292009a4925b58f02c77dadc3ecef07ea4c7472f64e0fdc32ce5522489362680",
		"http://ely.by/storage/skins/69c6740d2993e5d6f6a7fc92420efc29.png":                                         "69c6740d2993e5d6f6a7fc92420efc29",
		"http://skins.example.com/v1.2/hash":                                                                      "hash",
		"hash.png":                                                                                                "hash",
		"hash":                                                                                                    "hash",
	} {
		t.Run(url, func(t *testing.T) {
			require.Equal(t, expected, (&Texture{URL: url}).Hash())
		})
	}
}

func TestTexture_Model(t *testing.T) {
	require.Equal(t, ModelSlim, (&Texture{Metadata: map[string]string{"model": "slim"}}).Model())
	require.Equal(t, ModelNormal, (&Texture{Metadata: map[string]string{"model": "classic"}}).Model())
	require.Equal(t, ModelNormal, (&Texture{}).Model())
	require.Equal(t, "", (&Texture{}).MetadataValue("model"))
}
