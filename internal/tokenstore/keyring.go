package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// Keyring stores the token as a JSON secret in the OS credential store
// (macOS Keychain, Secret Service, Windows Credential Manager).
type Keyring struct {
	service string
	user    string
}

var _ Store = (*Keyring)(nil)

// NewKeyring returns a store for the secret identified by service and user.
func NewKeyring(service, user string) *Keyring {
	return &Keyring{service: service, user: user}
}

// Read loads the stored token.
func (k *Keyring) Read(ctx context.Context) (*oauth2.Token, error) {
	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(secret), &token); err != nil {
		return nil, fmt.Errorf("parsing keyring secret: %w", err)
	}
	return &token, nil
}

// Write replaces the stored token.
func (k *Keyring) Write(ctx context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// Clear deletes the secret. Clearing an absent secret is not an error.
func (k *Keyring) Clear(ctx context.Context) error {
	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring secret: %w", err)
	}
	return nil
}
