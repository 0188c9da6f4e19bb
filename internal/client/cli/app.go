// Package cli wires the sharing core into a terminal client: local key
// cache, API client, passphrase prompt and the command tree.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/teamvault/sharecore/internal/client/api"
	"github.com/teamvault/sharecore/internal/client/config"
	"github.com/teamvault/sharecore/internal/client/group"
	"github.com/teamvault/sharecore/internal/client/keyring"
	"github.com/teamvault/sharecore/internal/client/migrations"
	"github.com/teamvault/sharecore/internal/client/passphrase"
	"github.com/teamvault/sharecore/internal/client/pgp"
	"github.com/teamvault/sharecore/internal/client/progress"
	"github.com/teamvault/sharecore/internal/client/repositories/keys"
	"github.com/teamvault/sharecore/internal/client/session"
	"github.com/teamvault/sharecore/internal/client/share"
	"github.com/teamvault/sharecore/internal/logging"

	_ "modernc.org/sqlite"
)

// App owns every long-lived collaborator of one CLI session.
type App struct {
	config *config.Config
	log    logging.Logger

	db       *sql.DB
	keys     keys.Repository
	client   api.Client
	keyring  *keyring.Cache
	session  *session.Cache
	pass     *passphrase.Controller
	crypto   *pgp.Service
	sim      *share.Simulator
	orch     *share.Orchestrator
	groups   *group.Service
	reporter progress.Reporter
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	db, err := initDatabase(ctx, cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing key cache: %w", err)
	}

	repo := keys.NewSQLiteRepository(db)
	client := api.NewHTTPClient(cfg.ServerBaseURL, nil, log)
	kr := keyring.New(repo, client, log)

	sess, err := session.NewCache()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	prompter := &terminalPrompter{out: os.Stderr}
	pass := passphrase.NewController(kr, prompter, sess, log)
	prompter.provide = pass.Provide
	prompter.cancel = pass.Cancel

	crypto := pgp.NewService()
	sim := share.NewSimulator(client, log)
	orch := share.NewOrchestrator(client, kr, crypto, share.NoLock, log)
	groups := group.NewService(client, sim, orch, kr, pass, group.NewMemoryStore(), share.NoLock, log)

	return &App{
		config:   cfg,
		log:      log,
		db:       db,
		keys:     repo,
		client:   client,
		keyring:  kr,
		session:  sess,
		pass:     pass,
		crypto:   crypto,
		sim:      sim,
		orch:     orch,
		groups:   groups,
		reporter: &colorReporter{out: os.Stderr},
	}, nil
}

// Run executes the command tree with the given arguments (without the
// program name).
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) Close() error {
	a.session.Forget()
	return a.db.Close()
}

func initDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
