package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/config"
	"github.com/hpungsan/ecapsule/internal/db"
	"github.com/hpungsan/ecapsule/internal/devserver"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/files"
	"github.com/hpungsan/ecapsule/internal/validate"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

// cliEnv carries what commands need from the process.
type cliEnv struct {
	baseDir string
	cfg     *config.Config
	logger  *slog.Logger
	stdin   io.Reader
	stdout  io.Writer

	// now overrides time.Now (tests)
	now func() time.Time
}

func (e *cliEnv) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *cliEnv) *cli.App {
	app := &cli.App{
		Name:    "ecapsule",
		Usage:   "Create time-locked memory capsules",
		Version: Version,
		Writer:  env.stdout,
		Reader:  env.stdin,
		Commands: []*cli.Command{
			acceptCmd(env),
			createCmd(env),
			declineCmd(env),
			designsCmd(env),
			friendsCmd(env),
			listCmd(env),
			loginCmd(env),
			serveCmd(env),
			sharesCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newClient builds an API client from configuration.
func newClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	return api.New(api.Options{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.AccessToken,
		Timeout:    cfg.RequestTimeout(),
		FriendsTTL: cfg.FriendsTTL(),
		Logger:     logger,
		UserAgent:  "ecapsule/" + Version,
	})
}

// createCmd creates the create command.
func createCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a capsule step by step (flags pre-fill the draft)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Capsule title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Capsule description (markdown)"},
			&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "Image or video path (repeatable)"},
			&cli.StringFlag{Name: "open-at", Usage: "Opening time (RFC 3339 or YYYY-MM-DD HH:MM)"},
			&cli.StringFlag{Name: "vision", Usage: "Note to your future self"},
			&cli.StringFlag{Name: "privacy", Usage: "private|friends|public"},
			&cli.StringFlag{Name: "design", Usage: "Design id (list them with: ecapsule designs)"},
			&cli.StringSliceFlag{Name: "share", Usage: "Recipient id (repeatable)"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the prompts and submit the pre-filled draft"},
		},
		Action: func(c *cli.Context) error {
			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			w := wizard.New(wizard.Options{
				Creator:      client,
				MaxFileBytes: env.cfg.MaxFileBytes,
				Logger:       env.logger,
			})
			if err := prefill(c, w, env.cfg.MaxFileBytes); err != nil {
				return outputError(err)
			}

			var created *api.Created
			if c.Bool("yes") {
				created, err = submitAll(c, w)
			} else {
				p := newPrompter(env.stdin, env.stdout)
				created, err = runWizard(c.Context, w, p, env.cfg.MaxFileBytes, client.ListFriends)
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(env.stdout, created)
		},
	}
}

// prefill applies the create flags to the draft.
func prefill(c *cli.Context, w *wizard.Wizard, maxFileBytes int64) error {
	fields := []struct{ flag, field string }{
		{"title", capsule.FieldTitle},
		{"description", capsule.FieldDescription},
		{"open-at", capsule.FieldTime},
		{"vision", capsule.FieldVision},
		{"privacy", capsule.FieldPrivacy},
		{"design", capsule.FieldDesign},
	}
	for _, f := range fields {
		if !c.IsSet(f.flag) {
			continue
		}
		if err := w.SetField(f.field, c.String(f.flag)); err != nil {
			return err
		}
	}

	for _, path := range c.StringSlice("image") {
		blob, err := files.ReadBlob(path, maxFileBytes)
		if err != nil {
			return err
		}
		added, err := w.AddImage(blob)
		if err != nil {
			return err
		}
		if !added {
			return errors.NewFileRejected(blob.Name, w.FileErrors()[blob.Name])
		}
	}

	for _, id := range c.StringSlice("share") {
		if err := w.ToggleRecipient(id); err != nil {
			return err
		}
	}
	return nil
}

// submitAll advances through every step and submits, stopping at the first
// step that does not validate.
func submitAll(c *cli.Context, w *wizard.Wizard) (*api.Created, error) {
	for !w.IsFinal() {
		if !w.Next() {
			return nil, errors.NewValidationFailed(w.Errors())
		}
	}
	return w.Submit(c.Context)
}

// designsCmd creates the designs command.
func designsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "designs",
		Usage: "List capsule designs",
		Action: func(c *cli.Context) error {
			return outputJSON(env.stdout, capsule.Designs())
		},
	}
}

// friendsCmd creates the friends command.
func friendsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "friends",
		Usage: "List friends who can receive a capsule",
		Action: func(c *cli.Context) error {
			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			friends, err := client.ListFriends(c.Context)
			if err != nil {
				return outputError(err)
			}
			if friends == nil {
				friends = []api.Friend{}
			}
			return outputJSON(env.stdout, friends)
		},
	}
}

// loginCmd creates the login command.
func loginCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the access token in ~/.ecapsule/config.json",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Account email"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password (prompted when omitted)"},
		},
		Action: func(c *cli.Context) error {
			password := c.String("password")
			if password == "" {
				line, err := newPrompter(env.stdin, env.stdout).ask("Password: ")
				if err != nil {
					return outputError(errors.NewInvalidRequest("password is required"))
				}
				password = line
			}

			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			session, err := client.Login(c.Context, c.String("email"), password)
			if err != nil {
				return outputError(err)
			}

			// Only the file config is saved back; env overrides stay out of it
			stored, err := config.Load(env.baseDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			stored.AccessToken = session.AccessToken
			if err := config.Save(env.baseDir, stored); err != nil {
				return outputError(errors.NewInternal(err))
			}

			return outputJSON(env.stdout, map[string]any{"user": session.User, "saved": true})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local development API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default from config)"},
			&cli.StringSliceFlag{Name: "user", Aliases: []string{"u"}, Usage: "Seed an account as email:password[:name] (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			bind := env.cfg.DevBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := env.cfg.DevPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			database, err := db.Init(env.baseDir)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()
			db.ConfigurePool(database, env.cfg)

			for _, spec := range c.StringSlice("user") {
				email, password, name, err := devserver.ParseUserSpec(spec)
				if err != nil {
					return outputError(err)
				}
				u, err := devserver.SeedUser(database, email, password, name)
				if err != nil {
					return outputError(err)
				}
				env.logger.Info("seeded user", "id", u.ID, "email", u.Email)
			}

			srv := devserver.NewServer(database, devserver.Options{
				Version:      Version,
				Bind:         bind,
				Port:         port,
				MaxFileBytes: env.cfg.MaxFileBytes,
				Logger:       env.logger,
			})
			if err := devserver.Run(srv, env.logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. Field errors are listed one per line.
func outputError(err error) error {
	var cErr *errors.CapsuleError
	if !stderrors.As(err, &cErr) {
		return cli.Exit(err.Error(), 1)
	}
	msg := fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message)
	fields := validate.Errors(errors.Fields(err))
	for _, name := range fields.Fields() {
		msg += fmt.Sprintf("\n  %s: %s", name, fields[name])
	}
	return cli.Exit(msg, 1)
}
