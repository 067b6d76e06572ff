package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrInvalidProfile = errors.New("profile must have an id or a name")

const TexturesProperty = "textures"

type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

func (p Property) Signed() bool {
	return p.Signature != ""
}

// Profile is a game profile identified by its id and name. A profile may be known by its
// name only until it's resolved, but never has neither of them
type Profile struct {
	ID   uuid.UUID
	Name string

	properties []Property

	mu       sync.Mutex
	textures *texturesEntry
}

func NewProfile(id uuid.UUID, name string) (*Profile, error) {
	if id == uuid.Nil && name == "" {
		return nil, ErrInvalidProfile
	}

	return &Profile{ID: id, Name: name}, nil
}

// Complete reports whether both the id and the name are known
func (p *Profile) Complete() bool {
	return p.ID != uuid.Nil && p.Name != ""
}

func (p *Profile) Properties() []Property {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.properties)
}

// SetProperties replaces the property list. Previously decoded textures no longer match
// the new list and will be decoded again on the next access
func (p *Profile) SetProperties(properties []Property) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.properties = slices.Clone(properties)
	p.textures = nil
}

func (p *Profile) Property(name string) (Property, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, property := range p.properties {
		if property.Name == name {
			return property, true
		}
	}

	return Property{}, false
}

func (p *Profile) Equal(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}

	return p.ID == other.ID && p.Name == other.Name
}

func (p *Profile) String() string {
	return fmt.Sprintf("Profile{id=%s, name=%s}", UndashedID(p.ID), p.Name)
}

type profileJSON struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

func (p *Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(&profileJSON{
		ID:         UndashedID(p.ID),
		Name:       p.Name,
		Properties: p.Properties(),
	})
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := ParseID(raw.ID)
	if err != nil {
		return err
	}

	if id == uuid.Nil && raw.Name == "" {
		return ErrInvalidProfile
	}

	p.ID = id
	p.Name = raw.Name
	p.SetProperties(raw.Properties)

	return nil
}

// ParseID accepts both dashed and undashed forms. An empty string is the absent id
func ParseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile id %q: %w", raw, err)
	}

	return id, nil
}

// UndashedID renders the id the way the game services transfer it. The absent id is an empty string
func UndashedID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}

	return strings.ReplaceAll(id.String(), "-", "")
}
