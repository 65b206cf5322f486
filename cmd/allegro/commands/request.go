package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	allegro "github.com/florianilch/allegro-rest"
	"github.com/florianilch/allegro-rest/internal/app"
)

func versionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "api-version",
			Usage: "media type version",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "beta",
			Usage: "use the beta media type",
		},
	}
}

func queryFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "query",
		Usage: "query parameter as key=value, repeatable",
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "data",
		Usage: "JSON request body, or @file to read it from a file (@- for stdin)",
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "GET a resource",
		ArgsUsage: "<path>",
		Flags:     append(versionFlags(), queryFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				query, err := parseQuery(cmd.StringSlice("query"))
				if err != nil {
					return nil, err
				}
				return r.Get(ctx, query, opts...)
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "DELETE a resource",
		ArgsUsage: "<path>",
		Flags:     append(versionFlags(), queryFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				query, err := parseQuery(cmd.StringSlice("query"))
				if err != nil {
					return nil, err
				}
				return r.Delete(ctx, query, opts...)
			})
		},
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "PUT a JSON body to a resource",
		ArgsUsage: "<path>",
		Flags:     append(versionFlags(), dataFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				body, err := readData(cmd.String("data"), os.Stdin)
				if err != nil {
					return nil, err
				}
				return r.Put(ctx, body, opts...)
			})
		},
	}
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "POST a JSON body to a resource",
		ArgsUsage: "<path>",
		Flags:     append(versionFlags(), dataFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				body, err := readData(cmd.String("data"), os.Stdin)
				if err != nil {
					return nil, err
				}
				return r.Post(ctx, body, opts...)
			})
		},
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "POST a JSON body or a file to a resource on the upload host",
		ArgsUsage: "<path>",
		Flags: append(versionFlags(),
			dataFlag(),
			&cli.StringFlag{
				Name:  "file",
				Usage: "binary file to upload instead of --data",
			},
			&cli.StringFlag{
				Name:  "content-type",
				Usage: "content type of --file",
				Value: "application/octet-stream",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				if path := cmd.String("file"); path != "" {
					f, err := os.Open(path)
					if err != nil {
						return nil, err
					}
					defer f.Close()
					return r.UploadRaw(ctx, cmd.String("content-type"), f, opts...)
				}

				body, err := readData(cmd.String("data"), os.Stdin)
				if err != nil {
					return nil, err
				}
				return r.Upload(ctx, body, opts...)
			})
		},
	}
}

func commandCommand() *cli.Command {
	return &cli.Command{
		Name:      "command",
		Usage:     "Send a command with a fresh UUID, e.g. 'command sale offer-publication'",
		ArgsUsage: "<path> <name>",
		Flags: append(versionFlags(),
			dataFlag(),
			&cli.StringFlag{
				Name:  "id",
				Usage: "command UUID to reuse instead of a generated one",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().Get(1)
			if name == "" {
				return errors.New("command name is required")
			}

			return runRequest(ctx, cmd, func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error) {
				body, err := readData(cmd.String("data"), os.Stdin)
				if err != nil {
					return nil, err
				}

				if id := cmd.String("id"); id != "" {
					return r.Commands().SendWithID(ctx, name, id, body, opts...)
				}

				id, resp, err := r.Commands().Send(ctx, name, body, opts...)
				if err == nil {
					fmt.Fprintf(cmd.Root().ErrWriter, "command id: %s\n", id)
				}
				return resp, err
			})
		},
	}
}

type requestFunc func(ctx context.Context, r *allegro.Resource, opts []allegro.RequestOption) (*allegro.Response, error)

// runRequest resolves the path argument, performs the request and writes the
// response body to stdout. Non-2xx statuses fail the command after the body
// has been written.
func runRequest(ctx context.Context, cmd *cli.Command, fn requestFunc) error {
	segments := splitPath(cmd.Args().First())
	if len(segments) == 0 {
		return errors.New("resource path is required")
	}

	opts := []allegro.RequestOption{allegro.WithVersion(cmd.Int("api-version"))}
	if cmd.Bool("beta") {
		opts = append(opts, allegro.WithBeta())
	}

	return withApp(ctx, cmd, nil, func(ctx context.Context, application *app.App) error {
		resp, err := fn(ctx, application.API().Path(segments...), opts)
		if err != nil {
			return err
		}

		if err := writeBody(cmd.Root().Writer, resp.Body); err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return nil
	})
}

func writeBody(w io.Writer, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if body[len(body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// splitPath turns "sale/offers/123" into its segments. Leading, trailing and
// repeated slashes are ignored.
func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// parseQuery parses key=value pairs. No pairs yields a nil query so that no
// "?" is appended.
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q, expected key=value", pair)
		}
		query.Add(key, value)
	}
	return query, nil
}

// readData returns the request body given by --data. An empty value sends an
// empty JSON object.
func readData(data string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case data == "":
		return json.RawMessage("{}"), nil
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}

	if !json.Valid(raw) {
		return nil, errors.New("request body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
