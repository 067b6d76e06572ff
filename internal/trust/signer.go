package trust

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"errors"
)

var randomReader = rand.Reader

var ErrSignatureMismatch = errors.New("signature mismatch")

func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{Key: key}
}

// Signer produces SHA1withRSA signatures of textures payloads the same way the session server does.
// It's used to build trusted fixtures and by tooling that serves its own service root
type Signer struct {
	Key *rsa.PrivateKey
}

func (s *Signer) SignTextures(ctx context.Context, textures string) (string, error) {
	messageHash := sha1.Sum([]byte(textures))
	signature, err := rsa.SignPKCS1v15(randomReader, s.Key, crypto.SHA1, messageHash[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

func (s *Signer) GetPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	return &s.Key.PublicKey, nil
}

// VerifySignature checks a base64 encoded SHA1withRSA signature of the value
func VerifySignature(key *rsa.PublicKey, value string, signature string) error {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Join(ErrSignatureMismatch, err)
	}

	messageHash := sha1.Sum([]byte(value))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA1, messageHash[:], decoded); err != nil {
		return errors.Join(ErrSignatureMismatch, err)
	}

	return nil
}
