package di

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"os"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/trust"
)

var trustDiOptions = di.Options(
	di.Provide(newTrustRegistry),
	di.Provide(newTexturesDecoder),
)

func newTrustRegistry(ctx context.Context, config *viper.Viper, client *transport.Client) (*trust.Registry, error) {
	var opts []trust.Option
	if keyPath := config.GetString("yggdrasil.signature_key"); keyPath != "" {
		key, err := readPublicKey(keyPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, trust.WithBuiltinKey(key))
	}

	registry := trust.NewRegistry(client, opts...)

	root := config.GetString("yggdrasil.root")
	if root == "" {
		return registry, nil
	}

	rootURL, err := url.ParseRequestURI(root)
	if err != nil {
		return nil, fmt.Errorf("invalid yggdrasil.root: %w", err)
	}

	err = registry.RegisterServiceRoot(ctx, rootURL)
	if err != nil {
		return nil, err
	}

	return registry, nil
}

func readPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.Contains(data, []byte("-----BEGIN")) {
		return trust.ParsePublicKey(string(data))
	}

	return trust.ParsePublicKeyDER(data)
}

func newTexturesDecoder(registry *trust.Registry) *profiles.Decoder {
	return profiles.NewDecoder(registry)
}
