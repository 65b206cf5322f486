// Package tokenstore persists the OAuth2 token pair between CLI runs.
package tokenstore

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned by Read when nothing has been stored yet.
	ErrNotFound = errors.New("no token stored")

	// ErrReadOnly is returned when writing to a store backed by configuration.
	ErrReadOnly = errors.New("token store is read-only")
)

// Store reads and writes one token pair.
type Store interface {
	Read(ctx context.Context) (*oauth2.Token, error)
	Write(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

// Env serves a token pair supplied through configuration. It cannot be written.
type Env struct {
	token *oauth2.Token
}

var _ Store = (*Env)(nil)

// NewEnv returns a read-only store for the given tokens.
func NewEnv(accessToken, refreshToken string) *Env {
	return &Env{token: &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}}
}

// Read returns the configured tokens, or ErrNotFound if both are empty.
func (e *Env) Read(ctx context.Context) (*oauth2.Token, error) {
	if e.token.AccessToken == "" && e.token.RefreshToken == "" {
		return nil, ErrNotFound
	}
	token := *e.token
	return &token, nil
}

func (e *Env) Write(context.Context, *oauth2.Token) error { return ErrReadOnly }

func (e *Env) Clear(context.Context) error { return ErrReadOnly }
