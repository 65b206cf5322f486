package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/allegro-rest/internal/app"
	"github.com/florianilch/allegro-rest/internal/tokenstore"
)

// authCommand returns the 'auth' subcommand for managing API authorization.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage API authorization",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print the authorization URL",
				Action: authURLAction,
			},
			{
				Name:  "login",
				Usage: "Authorize the application and save the tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-callback",
						Usage: "do not listen on the redirect URI, always ask for the code",
					},
				},
				Action: authLoginAction,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the saved tokens",
				Action: authRefreshAction,
			},
			{
				Name:   "status",
				Usage:  "Show the saved tokens",
				Action: authStatusAction,
			},
			{
				Name:   "logout",
				Usage:  "Clear the saved tokens",
				Action: authLogoutAction,
			},
		},
	}
}

func authURLAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(ctx context.Context, application *app.App) error {
		_, err := fmt.Fprintln(cmd.Root().Writer, application.API().AuthorizationURI())
		return err
	})
}

func authLoginAction(ctx context.Context, cmd *cli.Command) error {
	var extra map[string]any
	if cmd.Bool("no-callback") {
		extra = map[string]any{"auth.callback": false}
	}

	return withApp(ctx, cmd, extra, func(ctx context.Context, application *app.App) error {
		if _, ok := application.Store().(*tokenstore.Env); ok {
			return errors.New("cannot login with env storage (read-only), configure file or keyring storage")
		}

		out := cmd.Root().Writer
		fmt.Fprintln(out, "=== Allegro Login ===")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "1. Visit this URL in your browser:\n   %s\n\n", application.API().AuthorizationURI())
		fmt.Fprintln(out, "2. Authorize the application")

		var prompt app.CodePrompt
		switch {
		case term.IsTerminal(int(os.Stdin.Fd())):
			prompt = func(ctx context.Context) (string, error) {
				return readSecureInput(ctx, out, "\nEnter authorization code: ")
			}
		case !application.CallbackEnabled():
			prompt = func(ctx context.Context) (string, error) {
				return readLine(ctx, os.Stdin)
			}
		}

		if application.CallbackEnabled() {
			fmt.Fprintln(out, "3. Wait for the redirect, or paste the code from its URL")
		} else {
			fmt.Fprintln(out, "3. Paste the code from the redirect URL")
		}

		resp, err := application.Login(ctx, prompt)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("%w: %s", err, resp.String())
			}
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "=== Login Successful ===")
		fmt.Fprintln(out, "Tokens saved to configured storage")
		return nil
	})
}

func authRefreshAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(ctx context.Context, application *app.App) error {
		resp, err := application.Refresh(ctx)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("%w: %s", err, resp.String())
			}
			return err
		}
		_, err = fmt.Fprintln(cmd.Root().Writer, "Tokens refreshed")
		return err
	})
}

func authStatusAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(ctx context.Context, application *app.App) error {
		out := cmd.Root().Writer

		token, err := application.Store().Read(ctx)
		if errors.Is(err, tokenstore.ErrNotFound) {
			fmt.Fprintln(out, "Not logged in")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}

		fmt.Fprintf(out, "Access token:  %s\n", presence(token.AccessToken))
		fmt.Fprintf(out, "Refresh token: %s\n", presence(token.RefreshToken))
		switch {
		case token.Expiry.IsZero():
			fmt.Fprintln(out, "Expiry:        unknown")
		case token.Expiry.Before(time.Now()):
			fmt.Fprintf(out, "Expiry:        %s (expired)\n", token.Expiry.Format(time.RFC3339))
		default:
			fmt.Fprintf(out, "Expiry:        %s\n", token.Expiry.Format(time.RFC3339))
		}
		return nil
	})
}

func authLogoutAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(ctx context.Context, application *app.App) error {
		if err := application.Store().Clear(ctx); err != nil {
			if errors.Is(err, tokenstore.ErrReadOnly) {
				return errors.New("cannot logout with env storage (read-only), configure file or keyring storage")
			}
			return fmt.Errorf("failed to clear token: %w", err)
		}

		fmt.Fprintln(cmd.Root().Writer, "=== Logout Successful ===")
		return nil
	})
}

func presence(token string) string {
	if token == "" {
		return "missing"
	}
	return "present"
}

// readSecureInput reads user input with hidden display and context cancellation support.
// term.ReadPassword has no context support, so it runs in a goroutine.
func readSecureInput(ctx context.Context, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return strings.TrimSpace(res.value), nil
	}
}

// readLine reads one line from a non-terminal input such as a pipe.
func readLine(ctx context.Context, in io.Reader) (string, error) {
	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			errCh <- fmt.Errorf("failed to read input: %w", err)
			return
		}
		resultCh <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case line := <-resultCh:
		return line, nil
	}
}
