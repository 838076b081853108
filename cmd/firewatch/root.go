package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	githubadapter "github.com/firewatchhq/firewatch/internal/adapter/driven/github"
	"github.com/firewatchhq/firewatch/internal/adapter/driven/graphite"
	"github.com/firewatchhq/firewatch/internal/adapter/driven/localgit"
	sqliteadapter "github.com/firewatchhq/firewatch/internal/adapter/driven/sqlite"
	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/config"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
	"github.com/firewatchhq/firewatch/internal/identity"
	"github.com/firewatchhq/firewatch/internal/paths"
)

// app holds everything a command needs: parsed global flags, the loaded
// config, the open store, and the wired services. Commands call bootstrap
// at the top of RunE; shutdown closes the store exactly once no matter how
// the command exits.
type app struct {
	configPath string
	repoFlag   string
	formatFlag string
	verbose    bool

	cfg *config.Config
	db  *sqliteadapter.DB

	git          *localgit.Client
	dir          string
	checkoutRepo string

	ghClient driven.GitHubClient
	ghWriter driven.GitHubWriter
	stacks   driven.StackProvider

	entries  driven.EntryStore
	prs      driven.PRStore
	syncMeta driven.SyncMetaStore
	acks     driven.AckStore
	freezes  driven.FreezeStore
	meta     driven.MetaStore

	sync       *application.SyncService
	query      *application.QueryService
	worklist   *application.WorklistService
	actionable *application.ActionableService
	lookout    *application.LookoutService
	feedback   *application.FeedbackService
	status     *application.StatusService
	stack      *application.StackService
	check      *application.CheckService

	ready bool
}

func newApp() *app {
	return &app{}
}

// shutdown closes the store. Safe to call before bootstrap and after a
// failed bootstrap; the second call is a no-op.
func (a *app) shutdown() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
	a.db = nil
}

// bootstrap loads config, opens the store, and wires adapters and services.
// Idempotent so subcommands can call it unconditionally.
func (a *app) bootstrap(ctx context.Context) error {
	if a.ready {
		return nil
	}

	// 1. Load configuration (defaults, user file, project file, env).
	cfg, err := config.LoadWithPath(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// 2. Open the store (dual reader/writer with WAL mode) and migrate.
	dbPath := paths.DatabaseFile()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sqliteadapter.NewDB(dbPath)
	if err != nil {
		return err
	}
	a.db = db
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Debug("store opened", "path", dbPath)

	// 3. Wire the store repos.
	a.entries = sqliteadapter.NewEntryRepo(db)
	a.prs = sqliteadapter.NewPRRepo(db)
	a.syncMeta = sqliteadapter.NewSyncMetaRepo(db)
	a.acks = sqliteadapter.NewAckRepo(db)
	a.freezes = sqliteadapter.NewFreezeRepo(db)
	a.meta = sqliteadapter.NewMetaRepo(db)

	// 4. Detect the local checkout. Stack tooling keys off it; without a
	// checkout, stack enrichment and `stack` are simply unavailable.
	a.git = localgit.New()
	if dir, err := os.Getwd(); err == nil {
		a.dir = dir
		if repo, err := a.git.DetectRepo(ctx, dir); err == nil {
			a.checkoutRepo = repo
			a.stacks = graphite.New(dir, repo)
			slog.Debug("checkout detected", "repo", repo, "dir", dir)
		} else {
			slog.Debug("no github checkout detected", "error", err)
		}
	}

	// 5. GitHub client, nil without a token. Reads against the local cache
	// keep working; sync and write actions report ErrAuth instead.
	if token, source, err := githubadapter.DetectToken(ctx, cfg.GitHubToken); err == nil {
		gh := githubadapter.NewClient(token)
		a.ghClient = gh
		a.ghWriter = gh
		slog.Debug("github token resolved", "source", source)
	} else {
		slog.Debug("running without github token", "error", err)
	}

	// 6. Services. Enrichers need the stack provider; the syncer needs the
	// GitHub client; auto-sync needs both the syncer and the config knob.
	var enrichers []application.Enricher
	if a.stacks != nil {
		enrichers = append(enrichers,
			application.NewStackEnricher(a.stacks),
			application.NewProvenanceEnricher(a.stacks, a.git, a.dir),
		)
	}
	if a.ghClient != nil {
		a.sync = application.NewSyncService(a.ghClient, a.prs, a.entries, a.syncMeta, enrichers...)
	}

	var syncer application.Syncer
	var staleThreshold time.Duration
	if a.sync != nil && cfg.Sync.AutoSync {
		syncer = a.sync
		staleThreshold = cfg.Sync.StaleThreshold
	}
	commitImpliesRead := cfg.Feedback.CommitImpliesRead

	a.query = application.NewQueryService(a.entries, a.freezes, a.syncMeta, syncer, staleThreshold)
	a.worklist = application.NewWorklistService(a.query, a.acks, commitImpliesRead)
	a.actionable = application.NewActionableService(a.prs, a.entries, a.acks, commitImpliesRead)
	a.lookout = application.NewLookoutService(a.query, a.entries, a.prs, a.acks, a.meta, commitImpliesRead)
	a.feedback = application.NewFeedbackService(a.entries, a.acks, a.freezes, a.ghClient, a.ghWriter, identity.NewCache(), cfg.User.GitHubUsername)
	a.status = application.NewStatusService(a.entries, a.prs, a.acks, a.freezes, a.syncMeta, a.ghClient, a.stacks)
	a.stack = application.NewStackService(a.git, a.stacks, a.dir)
	a.check = application.NewCheckService(a.entries, a.ghClient)

	a.ready = true
	return nil
}

// targetRepo resolves the repo an operation applies to: the --repo flag,
// then the current checkout, then a single configured repo. required
// distinguishes commands that can run across all repos from ones that
// need exactly one.
func (a *app) targetRepo(required bool) (string, error) {
	if a.repoFlag != "" {
		return a.repoFlag, nil
	}
	if a.checkoutRepo != "" {
		return a.checkoutRepo, nil
	}
	if len(a.cfg.Repos) == 1 {
		return a.cfg.Repos[0], nil
	}
	if !required {
		return "", nil
	}
	return "", fmt.Errorf("%w: no --repo flag, no checkout, %d repos configured",
		fwerr.ErrRepoDetect, len(a.cfg.Repos))
}

// syncRepos resolves the repo set for a sync run: explicit args, then the
// configured list, then the current checkout.
func (a *app) syncRepos(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.cfg.Repos) > 0 {
		return a.cfg.Repos, nil
	}
	if a.checkoutRepo != "" {
		return []string{a.checkoutRepo}, nil
	}
	return nil, fmt.Errorf("%w: pass repos as arguments or configure them", fwerr.ErrRepoDetect)
}

// outputFormat resolves the render format: the --format flag when set,
// otherwise the configured default.
func (a *app) outputFormat() (string, error) {
	format := a.formatFlag
	if format == "" {
		format = a.cfg.Output.DefaultFormat
	}
	switch format {
	case formatJSONL, formatJSON, formatHuman:
		return format, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want jsonl, json, or human)", fwerr.ErrValidation, format)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firewatch",
		Short: "Local-first GitHub PR activity tracker",
		Long: `Firewatch syncs pull request activity into a local cache and answers
questions about it: what happened, what needs a response, and what went
stale. Every comment gets a stable five-character id usable in follow-up
commands like ack, reply, and close.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: XDG discovery chain)")
	cmd.PersistentFlags().StringVar(&a.repoFlag, "repo", "", "repository as owner/name (default: current checkout)")
	cmd.PersistentFlags().StringVar(&a.formatFlag, "format", "", "output format: jsonl, json, or human")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newSyncCmd(a),
		newListCmd(a),
		newWorklistCmd(a),
		newActionableCmd(a),
		newLookoutCmd(a),
		newCheckCmd(a),
		newAckCmd(a),
		newAcksCmd(a),
		newReplyCmd(a),
		newCloseCmd(a),
		newApproveCmd(a),
		newRejectCmd(a),
		newEditCmd(a),
		newFreezeCmd(a),
		newUnfreezeCmd(a),
		newStackCmd(a),
		newCacheCmd(a),
		newDoctorCmd(a),
	)

	return cmd
}
