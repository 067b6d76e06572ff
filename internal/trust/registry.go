package trust

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"ely.by/mcauth/internal/transport"
)

var defaultDomains = []string{".minecraft.net", ".mojang.com"}

var defaultEndpoints = Endpoints{
	Auth:     mustParseURL("https://authserver.mojang.com/"),
	Profiles: mustParseURL("https://api.mojang.com/profiles/"),
	Session:  mustParseURL("https://sessionserver.mojang.com/session/minecraft/"),
}

// Endpoints are base URIs of the three yggdrasil services. Each one ends with a slash,
// so a method path can be resolved relative to it
type Endpoints struct {
	Auth     *url.URL
	Profiles *url.URL
	Session  *url.URL
}

// Snapshot is an immutable view of the trust configuration. A registry swaps whole snapshots,
// so the key, the domains and the endpoints read from one snapshot always belong together
type Snapshot struct {
	// Generation increases with every successful registration, including a reset to defaults
	Generation uint64
	Root       *url.URL
	Key        *rsa.PublicKey
	Domains    []string
	Endpoints  Endpoints
}

// Official reports whether the snapshot points to the official services. Only official
// accounts can be migrated to the Microsoft identity chain
func (s *Snapshot) Official() bool {
	return s.Root == nil
}

// IsWhitelisted checks the host of the raw URL against the whitelisted domain suffixes.
// Unparsable URLs and URLs without a host are never whitelisted
func (s *Snapshot) IsWhitelisted(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, domain := range s.Domains {
		if strings.HasSuffix(host, strings.ToLower(domain)) {
			return true
		}
	}

	return false
}

type MetadataFetcher interface {
	GetJSON(ctx context.Context, url string, header http.Header, out any) error
}

type Option func(r *Registry)

// WithBuiltinKey replaces the signing key which the registry falls back to
// when no alternate root is registered
func WithBuiltinKey(key *rsa.PublicKey) Option {
	return func(r *Registry) {
		r.builtinKey = key
	}
}

type Registry struct {
	fetcher    MetadataFetcher
	validate   *validator.Validate
	builtinKey *rsa.PublicKey

	state      atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

func NewRegistry(fetcher MetadataFetcher, opts ...Option) *Registry {
	r := &Registry{
		fetcher:    fetcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		builtinKey: BuiltinKey(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.state.Store(r.defaults(0))

	return r
}

func (r *Registry) Snapshot() *Snapshot {
	return r.state.Load()
}

func (r *Registry) SigningKey() *rsa.PublicKey {
	return r.Snapshot().Key
}

func (r *Registry) WhitelistedDomains() []string {
	return slices.Clone(r.Snapshot().Domains)
}

func (r *Registry) Endpoints() Endpoints {
	return r.Snapshot().Endpoints
}

type serviceMetadata struct {
	Meta               map[string]any `json:"meta"`
	SkinDomains        []string       `json:"skinDomains" validate:"dive,required"`
	SignaturePublicKey string         `json:"signaturePublickey" validate:"required"`
}

// RegisterServiceRoot points the registry to an alternate yggdrasil implementation.
// Endpoints are resolved by suffixing the root, the metadata served by the root itself
// provides the signing key and extra skin domains. A nil root restores the defaults
// without touching the network. On failure the previous snapshot stays active
func (r *Registry) RegisterServiceRoot(ctx context.Context, root *url.URL) error {
	if root == nil {
		r.state.Store(r.defaults(r.generation.Add(1)))
		slog.Debug("trust registry reset to the official services")

		return nil
	}

	root = withTrailingSlash(root)

	var metadata serviceMetadata
	if err := r.fetcher.GetJSON(ctx, root.String(), nil, &metadata); err != nil {
		if ctx.Err() != nil || errors.Is(err, transport.ErrServiceUnreachable) {
			return fmt.Errorf("unable to fetch metadata of %s: %w", root, err)
		}

		return fmt.Errorf("%w: unable to fetch metadata of %s: %w", transport.ErrServiceUnreachable, root, err)
	}

	if err := r.validate.Struct(&metadata); err != nil {
		return &KeyFormatError{Reason: "metadata is incomplete", Err: err}
	}

	key, err := ParsePublicKey(metadata.SignaturePublicKey)
	if err != nil {
		return err
	}

	domains := slices.Clone(defaultDomains)
	for _, domain := range metadata.SkinDomains {
		if !slices.Contains(domains, domain) {
			domains = append(domains, domain)
		}
	}

	r.state.Store(&Snapshot{
		Generation: r.generation.Add(1),
		Root:       root,
		Key:        key,
		Domains:    domains,
		Endpoints: Endpoints{
			Auth:     root.ResolveReference(&url.URL{Path: "authserver/"}),
			Profiles: root.ResolveReference(&url.URL{Path: "api/profiles/"}),
			Session:  root.ResolveReference(&url.URL{Path: "sessionserver/session/minecraft/"}),
		},
	})

	slog.Info("trust registry switched to an alternate service root", slog.String("root", root.String()), slog.Any("domains", domains))

	return nil
}

func (r *Registry) defaults(generation uint64) *Snapshot {
	return &Snapshot{
		Generation: generation,
		Key:        r.builtinKey,
		Domains:    slices.Clone(defaultDomains),
		Endpoints:  defaultEndpoints,
	}
}

// DefaultDomains returns the built-in whitelisted domain suffixes
func DefaultDomains() []string {
	return slices.Clone(defaultDomains)
}

func withTrailingSlash(u *url.URL) *url.URL {
	clone := *u
	if !strings.HasSuffix(clone.Path, "/") {
		clone.Path += "/"
		if clone.RawPath != "" {
			clone.RawPath += "/"
		}
	}

	return &clone
}

func mustParseURL(raw string) *url.URL {
	parsed, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}

	return parsed
}
