// Package fetch downloads notebooks into the local archive.  Each download
// mechanism is a Strategy; the pipeline controller picks one by Selector and
// treats it as a single blocking call.  Per-notebook retries and partial
// failures are handled here, never by the controller.
package fetch

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Selector names a download strategy.
type Selector string

const (
	// SelectorAPI downloads through the Kaggle API.  Notebooks fetched this
	// way miss code cell outputs.
	SelectorAPI Selector = "API"
	// SelectorHTTP downloads the full rendered notebook over HTTP.
	SelectorHTTP Selector = "HTTP"
	// SelectorSkip is a pseudo-strategy: it is valid at the dispatch
	// boundary and means "do not download at all".  It has no registry
	// entry.
	SelectorSkip Selector = "SKIP"
)

// ParseSelector validates a caller-supplied strategy name.
func ParseSelector(s string) (Selector, error) {
	switch sel := Selector(strings.ToUpper(s)); sel {
	case SelectorAPI, SelectorHTTP, SelectorSkip:
		return sel, nil
	default:
		return "", errors.Errorf("unknown download strategy %q (want API, HTTP or SKIP)", s)
	}
}

// Strategy retrieves the given notebooks into dest.  Implementations retry
// individual notebooks and tolerate partial failure; they return an error
// only when the whole operation is broken (for example, an unreachable
// endpoint or a cancelled context).
type Strategy interface {
	Fetch(ctx context.Context, identifiers []string, dest string) error
}

var registry = map[Selector]func(cfg *config.Configuration) Strategy{
	SelectorHTTP: func(cfg *config.Configuration) Strategy { return NewHTTPStrategy(cfg) },
	SelectorAPI:  func(cfg *config.Configuration) Strategy { return NewAPIStrategy(cfg) },
}

// New instantiates the strategy named by sel.  SelectorSkip is rejected: the
// caller must short-circuit before reaching the registry.
func New(sel Selector, cfg *config.Configuration) (Strategy, error) {
	factory, ok := registry[sel]
	if !ok {
		return nil, errors.Errorf("no download strategy registered for %q", sel)
	}
	return factory(cfg), nil
}

var (
	fetchedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kgtorrent_notebooks_fetched_total",
		Help: "Notebooks successfully downloaded into the archive, by strategy.",
	}, []string{"strategy"})

	failedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kgtorrent_notebooks_failed_total",
		Help: "Notebooks that could not be downloaded after all retries, by strategy.",
	}, []string{"strategy"})
)

const (
	maxAttempts   = 3
	retryInterval = time.Second
)

// splitIdentifier splits a notebook identifier (author/slug) into its parts.
func splitIdentifier(id string) (user, slug string, _ error) {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("malformed notebook identifier %q (want author/slug)", id)
	}
	return parts[0], parts[1], nil
}

// notebookPath is where a notebook lands inside the archive.
func notebookPath(dest, user, slug string) string {
	return filepath.Join(dest, user+"_"+slug+".ipynb")
}

// downloadAll is the scaffolding shared by the strategies: a bounded worker
// pool with per-notebook retries, a record of local paths, and a manifest
// written at the end.  get fetches the raw bytes of one notebook.
func downloadAll(ctx context.Context, strategy string, identifiers []string, dest string, workers int, get func(ctx context.Context, user, slug string) ([]byte, error)) (retErr error) {
	defer log.Span(ctx, "fetch.downloadAll",
		zap.String("strategy", strategy),
		zap.Int("notebooks", len(identifiers)))(log.Errorp(&retErr))

	var (
		mu     sync.Mutex
		local  = make(map[string]string, len(identifiers))
		failed int
	)
	eg, ctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	eg.SetLimit(workers)
	for _, id := range identifiers {
		id := id
		eg.Go(func() error {
			user, slug, err := splitIdentifier(id)
			if err != nil {
				return err
			}
			data, err := getWithRetry(ctx, get, user, slug)
			if err != nil {
				if ctx.Err() != nil {
					return errors.EnsureStack(context.Cause(ctx))
				}
				log.Error(ctx, "notebook download failed", zap.String("notebook", id), zap.Error(err))
				failedMetric.WithLabelValues(strategy).Inc()
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // partial failure is not fatal
			}
			path := notebookPath(dest, user, slug)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", path)
			}
			fetchedMetric.WithLabelValues(strategy).Inc()
			mu.Lock()
			local[id] = path
			mu.Unlock()
			log.Debug(ctx, "notebook downloaded", zap.String("notebook", id), zap.String("path", path))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info(ctx, "download finished",
		zap.Int("downloaded", len(local)),
		zap.Int("failed", failed))
	return writeManifest(dest, local)
}

func getWithRetry(ctx context.Context, get func(ctx context.Context, user, slug string) ([]byte, error), user, slug string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryInterval << (attempt - 1)):
			case <-ctx.Done():
				return nil, errors.EnsureStack(context.Cause(ctx))
			}
		}
		data, err := get(ctx, user, slug)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// writeManifest records every downloaded notebook's local path in
// manifest.csv inside the archive, so the archive is self-describing.
func writeManifest(dest string, local map[string]string) (retErr error) {
	f, err := os.Create(filepath.Join(dest, "manifest.csv"))
	if err != nil {
		return errors.Wrap(err, "create manifest")
	}
	defer errors.Close(&retErr, f, "close manifest")

	ids := make([]string, 0, len(local))
	for id := range local {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	w := csv.NewWriter(f)
	if err := w.Write([]string{"identifier", "local_path"}); err != nil {
		return errors.EnsureStack(err)
	}
	for _, id := range ids {
		if err := w.Write([]string{id, local[id]}); err != nil {
			return errors.EnsureStack(err)
		}
	}
	w.Flush()
	return errors.EnsureStack(w.Error())
}
