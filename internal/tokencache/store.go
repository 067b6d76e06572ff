package tokencache

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
)

// Store persists identity provider tokens between runs. Load returns nil, nil when
// nothing is stored for the account
type Store interface {
	Load(ctx context.Context, account string) (*oauth2.Token, error)
	Save(ctx context.Context, account string, token *oauth2.Token) error
	Remove(ctx context.Context, account string) error
}

// Nop stores nothing
type Nop struct{}

func (Nop) Load(context.Context, string) (*oauth2.Token, error) {
	return nil, nil
}

func (Nop) Save(context.Context, string, *oauth2.Token) error {
	return nil
}

func (Nop) Remove(context.Context, string) error {
	return nil
}

// DefaultAccount is used for sessions without a username (device code flow)
const DefaultAccount = "default"

func normalizeAccount(account string) string {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		return DefaultAccount
	}

	return account
}
