// Package pipeline is the KGTorrent controller.  It interprets the requested
// command, evaluates the guard preconditions against the store and the
// archive, sequences the data preparation stage, and narrows and dispatches
// the notebook download.  The stages themselves live behind the Store,
// loader, preprocessor and fetch boundaries; the controller only decides
// whether and in what order they run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/fetch"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/loader"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/preprocess"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"go.uber.org/zap"
)

// Command selects which pipeline stages run.
type Command string

const (
	// CommandInit builds the KGTorrent database from scratch and downloads
	// notebooks.  It refuses to touch an existing database.
	CommandInit Command = "init"
	// CommandRefresh rebuilds an existing database from a newer Meta Kaggle
	// dump, after operator confirmation, and downloads notebooks.
	CommandRefresh Command = "refresh"
	// CommandDownload only downloads notebooks from an already initialized
	// database.
	CommandDownload Command = "download"
)

// ParseCommand validates a caller-supplied command name.
func ParseCommand(s string) (Command, error) {
	switch cmd := Command(strings.ToLower(s)); cmd {
	case CommandInit, CommandRefresh, CommandDownload:
		return cmd, nil
	default:
		return "", errors.Errorf("unknown command %q (want init, refresh or download)", s)
	}
}

// Request is one pipeline invocation: the command, the download strategy, and
// the notebook identifiers to restrict the download to.  An empty Matching
// set selects nothing; callers must enumerate the identifiers they want.
type Request struct {
	Command  Command
	Strategy fetch.Selector
	Matching []string
}

// Store is the slice of the store adapter the controller drives.
type Store interface {
	Exists(ctx context.Context) (bool, error)
	Recreate(ctx context.Context, dropIfExists bool) error
	WriteTables(ctx context.Context, tables map[string]*sdata.Table) error
	ApplyConstraints(ctx context.Context, constraints []sdata.Constraint) error
	QueryIdentifiers(ctx context.Context, languages []string) ([]string, error)
	Close() error
}

// ErrAborted marks a guard decision to stop before any stage mutates
// anything.  It is an operator-facing outcome, not a stage failure; the
// wrapped message carries the reason.
var ErrAborted = errors.New("pipeline aborted")

// IsAbort reports whether err is a guard abort.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted)
}

// Controller runs the pipeline.  The function-valued fields default to the
// real loader, preprocessor and strategy registry; tests substitute fakes.
// A Controller runs exactly one Request: Run closes the store.
type Controller struct {
	Config  *config.Configuration
	Store   Store
	Confirm Confirmer
	// Out receives operator-facing output (statistics, skip notices).
	Out io.Writer

	Load        func(ctx context.Context, metaKagglePath, constraintsPath string) (map[string]*sdata.Table, []sdata.Constraint, error)
	Process     func(ctx context.Context, tables map[string]*sdata.Table, constraints []sdata.Constraint) (map[string]*sdata.Table, []sdata.Constraint, *preprocess.Stats, error)
	NewStrategy func(sel fetch.Selector, cfg *config.Configuration) (fetch.Strategy, error)
}

// New returns a Controller wired to the real collaborators.
func New(cfg *config.Configuration, store Store) *Controller {
	return &Controller{
		Config:      cfg,
		Store:       store,
		Confirm:     &StdinConfirmer{In: os.Stdin, Out: os.Stdout},
		Out:         os.Stdout,
		Load:        loader.Load,
		Process:     preprocess.Process,
		NewStrategy: fetch.New,
	}
}

// Run executes req: guard, then data preparation (except for download), then
// notebook download.  Stage failures propagate immediately; there is no
// compensating rollback, so a failed init or refresh can leave the database
// half populated and is recovered by re-running the command.
func (c *Controller) Run(ctx context.Context, req Request) (retErr error) {
	defer log.Span(ctx, "pipeline.Run",
		zap.String("command", string(req.Command)),
		zap.String("strategy", string(req.Strategy)))(log.Errorp(&retErr))

	proceed, reason, err := c.guard(ctx, req.Command)
	if err != nil {
		return err
	}
	if !proceed {
		return errors.Wrap(ErrAborted, reason)
	}
	if req.Command != CommandDownload {
		if err := c.prepare(ctx); err != nil {
			return err
		}
	}
	return c.dispatch(ctx, req)
}

// guard evaluates the run preconditions without mutating anything.  The
// final decision is the conjunction of the database check and the archive
// check; the archive check runs even when the database check has already
// decided to abort, so the operator sees the archive problem too.
func (c *Controller) guard(ctx context.Context, cmd Command) (proceed bool, reason string, _ error) {
	exists, err := c.Store.Exists(ctx)
	if err != nil {
		return false, "", errors.Wrap(err, "check database existence")
	}
	var reasons []string
	if exists {
		switch cmd {
		case CommandInit:
			reasons = append(reasons, "the database already exists; use a database name that is not in use, or run refresh")
		case CommandRefresh:
			ok, err := c.Confirm.Confirm(ctx,
				"The database already exists. This operation will drop it and repopulate it from the provided Meta Kaggle version.\nAre you sure? [yes]")
			if err != nil {
				return false, "", errors.Wrap(err, "read confirmation")
			}
			if !ok {
				reasons = append(reasons, "refresh of the existing database was not confirmed")
			}
		case CommandDownload:
			log.Info(ctx, "database exists; only downloading notebooks")
		}
	}
	// A nonexistent database is fine here.  For download it fails later, at
	// the identifier query; the guard does not front-run that.
	if cmd == CommandInit || cmd == CommandDownload {
		empty, err := emptyDir(c.Config.ArchivePath)
		if err != nil {
			return false, "", errors.Wrapf(err, "inspect archive %s", c.Config.ArchivePath)
		}
		if !empty {
			reasons = append(reasons, fmt.Sprintf("archive %s is not empty; point KGTORRENT_ARCHIVE_PATH at an empty directory", c.Config.ArchivePath))
		}
	}
	proceed = len(reasons) == 0
	log.Info(ctx, "guard decided",
		zap.Bool("proceed", proceed),
		zap.Bool("databaseExists", exists))
	return proceed, strings.Join(reasons, "; "), nil
}

// emptyDir reports whether path has no entries.  A missing directory counts
// as empty; it is created before the download stage.
func emptyDir(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.EnsureStack(err)
	}
	return len(entries) == 0, nil
}

// prepare is the data preparation stage: load the dump, preprocess it,
// recreate the database, bulk-write the tables and apply the foreign keys.
// Each step consumes the previous step's output; none is retried.
func (c *Controller) prepare(ctx context.Context) (retErr error) {
	defer log.Span(ctx, "pipeline.prepare")(log.Errorp(&retErr))

	raw, rawConstraints, err := c.Load(ctx, c.Config.MetaKagglePath, c.Config.ConstraintsPath)
	if err != nil {
		return errors.Wrap(err, "load Meta Kaggle dump")
	}
	tables, constraints, stats, err := c.Process(ctx, raw, rawConstraints)
	if err != nil {
		return errors.Wrap(err, "preprocess tables")
	}
	// The raw dump is large; drop it as soon as it is consumed.
	raw, rawConstraints = nil, nil
	fmt.Fprintln(c.Out, stats)

	if err := c.Store.Recreate(ctx, true); err != nil {
		return errors.Wrap(err, "recreate database")
	}
	if err := c.Store.WriteTables(ctx, tables); err != nil {
		return errors.Wrap(err, "write tables")
	}
	if err := c.Store.ApplyConstraints(ctx, constraints); err != nil {
		return errors.Wrap(err, "apply foreign keys")
	}
	// The processed tables are proportional to the whole dump and must not
	// outlive this stage.
	tables, constraints = nil, nil
	return nil
}

// dispatch queries the downloadable notebook identifiers, releases the
// store, and hands the dispatch set to the selected strategy.  The store is
// closed before any download so the fetch stage can never touch it.
func (c *Controller) dispatch(ctx context.Context, req Request) (retErr error) {
	defer log.Span(ctx, "pipeline.dispatch")(log.Errorp(&retErr))

	identifiers, err := c.Store.QueryIdentifiers(ctx, c.Config.Languages)
	if err != nil {
		return errors.Wrap(err, "query notebook identifiers")
	}
	log.Info(ctx, "notebooks in the database", zap.Int("count", len(identifiers)))
	if err := c.Store.Close(); err != nil {
		return errors.Wrap(err, "close store")
	}

	if req.Strategy == fetch.SelectorSkip {
		fmt.Fprintln(c.Out, "download skipped")
		return nil
	}
	dispatch := intersect(identifiers, req.Matching)
	log.Info(ctx, "download starting",
		zap.String("strategy", string(req.Strategy)),
		zap.Int("notebooks", len(dispatch)))
	if err := os.MkdirAll(c.Config.ArchivePath, 0o755); err != nil {
		return errors.Wrapf(err, "create archive %s", c.Config.ArchivePath)
	}
	strategy, err := c.NewStrategy(req.Strategy, c.Config)
	if err != nil {
		return err
	}
	return strategy.Fetch(ctx, dispatch, c.Config.ArchivePath)
}

// intersect returns the sorted set intersection of a and b.  When b is empty
// the result is empty: an empty match filter selects nothing.
func intersect(a, b []string) []string {
	want := make(map[string]struct{}, len(b))
	for _, s := range b {
		want[s] = struct{}{}
	}
	out := []string{}
	seen := make(map[string]struct{})
	for _, s := range a {
		if _, ok := want[s]; !ok {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
