package profiles

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

type TextureType string

const (
	Skin   TextureType = "SKIN"
	Cape   TextureType = "CAPE"
	Elytra TextureType = "ELYTRA"
)

type Model string

const (
	ModelNormal Model = "normal"
	ModelSlim   Model = "slim"
)

type Texture struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (t *Texture) MetadataValue(key string) string {
	return t.Metadata[key]
}

func (t *Texture) Model() Model {
	if t.MetadataValue("model") == string(ModelSlim) {
		return ModelSlim
	}

	return ModelNormal
}

// Hash is the last path segment of the URL without an extension. The texture servers
// name files after the hash of their content
func (t *Texture) Hash() string {
	url := strings.TrimSuffix(t.URL, "/")
	slash := strings.LastIndex(url, "/")
	dot := strings.LastIndex(url, ".")
	if dot < slash || dot == -1 {
		dot = len(url)
	}

	return url[slash+1 : dot]
}

// TexturesPayload is the document carried (base64 encoded) by the "textures" property
type TexturesPayload struct {
	Timestamp   int64                    `json:"timestamp"`
	ProfileID   string                   `json:"profileId"`
	ProfileName string                   `json:"profileName"`
	IsPublic    bool                     `json:"isPublic,omitempty"`
	Textures    map[TextureType]*Texture `json:"textures"`
}

func EncodeTextures(payload *TexturesPayload) (string, error) {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(serialized), nil
}

func DecodeTextures(encoded string) (*TexturesPayload, error) {
	serialized, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var payload *TexturesPayload
	if err := json.Unmarshal(serialized, &payload); err != nil {
		return nil, err
	}

	if payload == nil {
		payload = &TexturesPayload{}
	}

	return payload, nil
}
