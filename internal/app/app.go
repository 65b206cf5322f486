package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	allegro "github.com/florianilch/allegro-rest"
	"github.com/florianilch/allegro-rest/internal/callback"
	"github.com/florianilch/allegro-rest/internal/tokenstore"
)

// CodePrompt asks the user for an authorization code. It must return when
// ctx is cancelled.
type CodePrompt func(ctx context.Context) (string, error)

// App wires the configured API client to its token store.
type App struct {
	cfg   *Config
	api   *allegro.API
	store tokenstore.Store
}

// New creates the API client for cfg and resumes the stored session, if any.
func New(ctx context.Context, cfg *Config, opts ...allegro.Option) (*App, error) {
	env, ok := allegro.EnvironmentByName(cfg.Environment)
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", cfg.Environment)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	token, err := store.Read(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		slog.DebugContext(ctx, "no stored token", "storage", cfg.Auth.Storage)
	case err != nil:
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	creds := allegro.Credentials{
		ClientID:     cfg.Client.ID,
		ClientSecret: cfg.Client.Secret,
		RedirectURI:  cfg.Client.RedirectURI,
	}
	opts = append([]allegro.Option{allegro.WithEnvironment(env), allegro.WithToken(token)}, opts...)

	return &App{
		cfg:   cfg,
		api:   allegro.New(creds, opts...),
		store: store,
	}, nil
}

// API returns the client.
func (a *App) API() *allegro.API {
	return a.api
}

// Store returns the configured token store.
func (a *App) Store() tokenstore.Store {
	return a.store
}

// CallbackEnabled reports whether Login listens for the browser redirect.
func (a *App) CallbackEnabled() bool {
	return a.cfg.Auth.Callback && callback.IsLoopback(a.cfg.Client.RedirectURI)
}

// Login obtains an authorization code, from the callback server or from
// prompt, whichever delivers first, and exchanges it. The new tokens are
// persisted. prompt may be nil when the callback server is enabled.
func (a *App) Login(ctx context.Context, prompt CodePrompt) (*allegro.Response, error) {
	code, err := a.obtainCode(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, errors.New("authorization code cannot be empty")
	}

	return a.exchange(ctx, func(ctx context.Context) (*allegro.Response, error) {
		return a.api.ExchangeCode(ctx, code)
	})
}

// Refresh trades the held refresh token for a new pair and persists it.
// It fails if the token endpoint answers with the pair already held.
func (a *App) Refresh(ctx context.Context) (*allegro.Response, error) {
	if a.api.RefreshToken() == "" {
		return nil, errors.New("no refresh token available, run 'auth login' first")
	}
	return a.exchange(ctx, a.api.RefreshTokens)
}

// exchange runs a token exchange and saves the result when the pair changed.
// The response is returned even when the exchange did not yield tokens.
//
// Success is inferred from the held pair changing, since the SDK reports an
// incomplete token response only through the unchanged pair. A server that
// answers with exactly the pair already held is therefore reported as a
// failure and nothing is written; the stored pair is still current then.
func (a *App) exchange(ctx context.Context, fn func(context.Context) (*allegro.Response, error)) (*allegro.Response, error) {
	before, _ := a.api.Token()

	resp, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	after, _ := a.api.Token()
	if sameTokens(before, after) {
		return resp, fmt.Errorf("token endpoint returned status %d without a token pair", resp.StatusCode)
	}

	if err := a.store.Write(ctx, after); err != nil {
		return resp, fmt.Errorf("failed to write token: %w", err)
	}
	slog.InfoContext(ctx, "token saved", "storage", a.cfg.Auth.Storage, "expiry", after.Expiry)

	return resp, nil
}

func sameTokens(a, b *oauth2.Token) bool {
	return a.AccessToken == b.AccessToken && a.RefreshToken == b.RefreshToken
}

// obtainCode races the callback server against prompt. Uses errgroup for
// runtime error monitoring; the first delivered code cancels the other source.
func (a *App) obtainCode(ctx context.Context, prompt CodePrompt) (string, error) {
	if !a.CallbackEnabled() {
		if prompt == nil {
			return "", errors.New("callback disabled and no prompt available")
		}
		return prompt(ctx)
	}

	server, err := callback.New(a.cfg.Client.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("failed to create callback server: %w", err)
	}

	slog.InfoContext(ctx, "starting callback server", "redirect_uri", a.cfg.Client.RedirectURI)
	serverErrCh, err := server.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("callback server startup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "callback server shutdown failed", "error", err)
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	waitCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	codes := make(chan string, 2)

	g.Go(func() error {
		select {
		case res := <-server.Results():
			if res.Err != nil {
				return res.Err
			}
			codes <- res.Code
			cancel()
			return nil
		case err := <-serverErrCh:
			if err != nil {
				return fmt.Errorf("callback server: %w", err)
			}
			return nil
		case <-waitCtx.Done():
			return nil
		}
	})

	if prompt != nil {
		g.Go(func() error {
			code, err := prompt(waitCtx)
			if err != nil {
				if waitCtx.Err() != nil {
					// Cancelled because the callback delivered first.
					return nil
				}
				return err
			}
			codes <- code
			cancel()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	select {
	case code := <-codes:
		return code, nil
	default:
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no authorization code received")
	}
}
