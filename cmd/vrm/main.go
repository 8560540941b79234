package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"thde.io/vrm"
	"thde.io/vrm/internal/store"
)

// CLI holds the global flags and the subcommands of vrm.
type CLI struct {
	Token   string `help:"API token." env:"VRM_TOKEN" required:""`
	AppKey  string `help:"Application key." env:"VRM_APPKEY" required:"" name:"app-key"`
	BaseURL string `help:"API base URL." env:"VRM_BASE_URL" name:"base-url" default:"${base_url}"`
	Verbose bool   `help:"Log requests to stderr." short:"v"`

	User     UserCmd     `cmd:"" help:"Show the user owning the token."`
	Buckets  BucketsCmd  `cmd:"" help:"List buckets."`
	Fields   FieldsCmd   `cmd:"" help:"List field definitions by bucket."`
	Contacts ContactsCmd `cmd:"" help:"List contacts as JSON lines."`
	Contact  ContactCmd  `cmd:"" help:"Show a contact with all custom fields."`
	Notes    NotesCmd    `cmd:"" help:"List the notes of a contact."`
	Export   ExportCmd   `cmd:"" help:"Export contacts into a SQLite database."`
}

// UserCmd prints the user owning the token.
type UserCmd struct{}

func (c *UserCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return out.Encode(user)
}

// BucketsCmd prints every bucket as a JSON line.
type BucketsCmd struct{}

func (c *BucketsCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	buckets, err := client.Buckets(ctx)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if err := out.Encode(b); err != nil {
			return err
		}
	}
	return nil
}

// FieldsCmd prints the field definitions of every bucket.
type FieldsCmd struct{}

func (c *FieldsCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	groups, err := client.FieldDescriptors(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if err := out.Encode(g); err != nil {
			return err
		}
	}
	return nil
}

// ContactsCmd prints every contact, optionally filtered by a bookmark.
type ContactsCmd struct {
	Bookmark string `help:"Only list contacts matching the named bookmark." short:"b"`
}

func (c *ContactsCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	q, err := contactsQuery(ctx, client, c.Bookmark)
	if err != nil {
		return err
	}

	for contact, err := range client.ContactsIter(ctx, q) {
		if err != nil {
			return err
		}
		if err := out.Encode(contact); err != nil {
			return err
		}
	}
	return nil
}

// ContactCmd prints a single contact with its custom fields.
type ContactCmd struct {
	ID string `arg:"" help:"Contact id."`
}

func (c *ContactCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	detail, err := client.ContactDetail(ctx, vrm.ContactID(c.ID))
	if err != nil {
		return err
	}
	return out.Encode(detail)
}

// NotesCmd prints the notes of a contact.
type NotesCmd struct {
	ContactID string `arg:"" help:"Contact id." name:"contact-id"`
}

func (c *NotesCmd) Run(ctx context.Context, client *vrm.Client, out *json.Encoder) error {
	for note, err := range client.NotesIter(ctx, vrm.ContactID(c.ContactID)) {
		if err != nil {
			return err
		}
		if err := out.Encode(note); err != nil {
			return err
		}
	}
	return nil
}

// ExportCmd copies contacts into a SQLite database.
type ExportCmd struct {
	DB       string `help:"SQLite database file." default:"vrm.db" type:"path"`
	Bookmark string `help:"Only export contacts matching the named bookmark." short:"b"`
	Details  bool   `help:"Also export the custom fields of every contact."`
}

func (c *ExportCmd) Run(ctx context.Context, client *vrm.Client, logger *slog.Logger) error {
	q, err := contactsQuery(ctx, client, c.Bookmark)
	if err != nil {
		return err
	}

	s, err := store.Open(ctx, c.DB, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Export(ctx, client, q, c.Details)
	if err != nil {
		return fmt.Errorf("export stopped after %d contacts: %w", n, err)
	}
	return nil
}

// contactsQuery resolves a bookmark name into a contact list filter.
func contactsQuery(ctx context.Context, client *vrm.Client, bookmark string) (vrm.ContactsQuery, error) {
	if bookmark == "" {
		return vrm.ContactsQuery{}, nil
	}

	b, err := client.Bookmark(ctx, bookmark)
	if err != nil {
		return vrm.ContactsQuery{}, err
	}
	return vrm.ContactsQuery{Bookmark: b.ID}, nil
}

// newParser builds the kong parser for cli.
func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("vrm"),
		kong.Description("Command line client for the VRM contact management API."),
		kong.UsageOnError(),
		kong.Vars{"base_url": vrm.DefaultURL},
	}, opts...)
	return kong.New(cli, opts...)
}

// run executes the selected command with a client configured from cli.
// Command output goes to stdout, logs to stderr.
func run(ctx context.Context, cli *CLI, kctx *kong.Context, stdout, stderr io.Writer) error {
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	baseURL, err := url.Parse(cli.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	client := vrm.New(cli.Token, cli.AppKey,
		vrm.WithBaseURL(baseURL),
		vrm.WithLogger(logger),
	)

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(client, json.NewEncoder(stdout), logger)
}

func main() {
	cli := &CLI{}
	parser, err := newParser(cli)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, cli, kctx, os.Stdout, os.Stderr)
	kctx.FatalIfErrorf(err)
}
