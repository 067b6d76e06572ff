package trust

import (
	"crypto/rsa"
	"crypto/x509"
	_ "embed"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var ErrKeyFormat = errors.New("invalid signing key format")

type KeyFormatError struct {
	Reason string
	Err    error
}

func (e *KeyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", ErrKeyFormat, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s", ErrKeyFormat, e.Reason)
}

func (e *KeyFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrKeyFormat}
	}

	return []error{ErrKeyFormat, e.Err}
}

//go:embed yggdrasil_session_pubkey.der
var builtinKeyDER []byte

var builtinKey = mustParseBuiltinKey()

func mustParseBuiltinKey() *rsa.PublicKey {
	key, err := ParsePublicKeyDER(builtinKeyDER)
	if err != nil {
		panic(fmt.Errorf("the built-in signing key is broken: %w", err))
	}

	return key
}

// BuiltinKey returns the signing key used when no alternate service root is registered
func BuiltinKey() *rsa.PublicKey {
	return builtinKey
}

// ParsePublicKey accepts a PEM-like string as it's published in service root metadata:
// header and footer are optional, the body is a base64 encoded PKIX (or PKCS#1) RSA key
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	body := encoded
	if block, _ := pem.Decode([]byte(strings.TrimSpace(encoded))); block != nil {
		return ParsePublicKeyDER(block.Bytes)
	}

	body = strings.ReplaceAll(body, "-----BEGIN PUBLIC KEY-----", "")
	body = strings.ReplaceAll(body, "-----END PUBLIC KEY-----", "")
	body = strings.Join(strings.Fields(body), "")
	if body == "" {
		return nil, &KeyFormatError{Reason: "empty key"}
	}

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, &KeyFormatError{Reason: "body is not base64", Err: err}
	}

	return ParsePublicKeyDER(der)
}

func ParsePublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		pkcs1, pkcs1Err := x509.ParsePKCS1PublicKey(der)
		if pkcs1Err != nil {
			return nil, &KeyFormatError{Reason: "not a PKIX or PKCS#1 public key", Err: err}
		}

		return pkcs1, nil
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &KeyFormatError{Reason: fmt.Sprintf("expected an RSA key, got %T", parsed)}
	}

	return key, nil
}
