package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/fetch"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/preprocess"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"github.com/stretchr/testify/require"
)

// fakeStore records every call so tests can assert on ordering and on what
// never ran.
type fakeStore struct {
	calls       []string
	exists      bool
	identifiers []string
	queryErr    error
	closed      bool
}

func (s *fakeStore) Exists(context.Context) (bool, error) {
	s.calls = append(s.calls, "Exists")
	return s.exists, nil
}

func (s *fakeStore) Recreate(_ context.Context, dropIfExists bool) error {
	s.calls = append(s.calls, "Recreate")
	return nil
}

func (s *fakeStore) WriteTables(context.Context, map[string]*sdata.Table) error {
	s.calls = append(s.calls, "WriteTables")
	return nil
}

func (s *fakeStore) ApplyConstraints(context.Context, []sdata.Constraint) error {
	s.calls = append(s.calls, "ApplyConstraints")
	return nil
}

func (s *fakeStore) QueryIdentifiers(context.Context, []string) ([]string, error) {
	s.calls = append(s.calls, "QueryIdentifiers")
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.identifiers, nil
}

func (s *fakeStore) Close() error {
	s.calls = append(s.calls, "Close")
	s.closed = true
	return nil
}

type stubConfirmer struct {
	answer bool
	asked  int
}

func (c *stubConfirmer) Confirm(context.Context, string) (bool, error) {
	c.asked++
	return c.answer, nil
}

// recorder tracks the external collaborators the controller drove.
type recorder struct {
	loads, processes, factories int
	fetched                     [][]string
	fetchDest                   string
	storeClosedAtFetch          bool
}

type recordingStrategy struct {
	store *fakeStore
	rec   *recorder
}

func (s *recordingStrategy) Fetch(_ context.Context, identifiers []string, dest string) error {
	s.rec.fetched = append(s.rec.fetched, identifiers)
	s.rec.fetchDest = dest
	s.rec.storeClosedAtFetch = s.store.closed
	return nil
}

func newTestController(t *testing.T, store *fakeStore) (*Controller, *recorder, *bytes.Buffer) {
	t.Helper()
	rec := &recorder{}
	cfg := config.Defaults()
	cfg.ArchivePath = t.TempDir()
	out := &bytes.Buffer{}
	c := &Controller{
		Config:  cfg,
		Store:   store,
		Confirm: &stubConfirmer{answer: true},
		Out:     out,
		Load: func(context.Context, string, string) (map[string]*sdata.Table, []sdata.Constraint, error) {
			rec.loads++
			return map[string]*sdata.Table{
				"Kernels": {Name: "Kernels", Columns: []string{"id"}},
			}, nil, nil
		},
		Process: func(_ context.Context, tables map[string]*sdata.Table, constraints []sdata.Constraint) (map[string]*sdata.Table, []sdata.Constraint, *preprocess.Stats, error) {
			rec.processes++
			return tables, constraints, &preprocess.Stats{Passes: 1}, nil
		},
		NewStrategy: func(sel fetch.Selector, _ *config.Configuration) (fetch.Strategy, error) {
			rec.factories++
			return &recordingStrategy{store: store, rec: rec}, nil
		},
	}
	return c, rec, out
}

func TestParseCommand(t *testing.T) {
	for in, want := range map[string]Command{
		"init":     CommandInit,
		"REFRESH":  CommandRefresh,
		"Download": CommandDownload,
	} {
		got, err := ParseCommand(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseCommand("rebuild")
	require.Error(t, err)
	_, err = ParseCommand("")
	require.Error(t, err)
}

func TestInitAgainstExistingDatabaseAborts(t *testing.T) {
	store := &fakeStore{exists: true}
	c, rec, _ := newTestController(t, store)

	err := c.Run(log.Test(t), Request{Command: CommandInit, Strategy: fetch.SelectorHTTP})
	require.True(t, IsAbort(err), "got %v", err)
	// Nothing past the read-only existence check ran.
	require.Equal(t, []string{"Exists"}, store.calls)
	require.Zero(t, rec.loads)
	require.Zero(t, rec.factories)
}

func TestAbortReportsEveryFailedCheck(t *testing.T) {
	store := &fakeStore{exists: true}
	c, _, _ := newTestController(t, store)
	require.NoError(t, os.WriteFile(filepath.Join(c.Config.ArchivePath, "old.ipynb"), []byte("x"), 0o644))

	err := c.Run(log.Test(t), Request{Command: CommandInit, Strategy: fetch.SelectorHTTP})
	require.True(t, IsAbort(err))
	// Both the database problem and the archive problem are reported.
	require.Contains(t, err.Error(), "already exists")
	require.Contains(t, err.Error(), "not empty")
}

func TestInitAbortsEvenWithEmptyArchive(t *testing.T) {
	store := &fakeStore{exists: true}
	c, _, _ := newTestController(t, store)
	err := c.Run(log.Test(t), Request{Command: CommandInit, Strategy: fetch.SelectorSkip})
	require.True(t, IsAbort(err))
}

func TestRefreshConfirmed(t *testing.T) {
	store := &fakeStore{exists: true}
	c, rec, _ := newTestController(t, store)
	confirm := &stubConfirmer{answer: true}
	c.Confirm = confirm

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandRefresh, Strategy: fetch.SelectorSkip}))
	require.Equal(t, 1, confirm.asked)
	require.Equal(t, 1, rec.loads)
	require.Contains(t, store.calls, "Recreate")
}

func TestRefreshDeclined(t *testing.T) {
	store := &fakeStore{exists: true}
	c, rec, _ := newTestController(t, store)
	c.Confirm = &stubConfirmer{answer: false}

	err := c.Run(log.Test(t), Request{Command: CommandRefresh, Strategy: fetch.SelectorSkip})
	require.True(t, IsAbort(err))
	require.Equal(t, []string{"Exists"}, store.calls)
	require.Zero(t, rec.loads)
}

func TestRefreshAgainstMissingDatabaseNeedsNoConfirmation(t *testing.T) {
	store := &fakeStore{}
	c, _, _ := newTestController(t, store)
	confirm := &stubConfirmer{answer: false}
	c.Confirm = confirm

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandRefresh, Strategy: fetch.SelectorSkip}))
	require.Zero(t, confirm.asked)
}

func TestNonEmptyArchiveAbortsInitAndDownload(t *testing.T) {
	for _, cmd := range []Command{CommandInit, CommandDownload} {
		t.Run(string(cmd), func(t *testing.T) {
			store := &fakeStore{exists: cmd == CommandDownload}
			c, _, _ := newTestController(t, store)
			require.NoError(t, os.WriteFile(filepath.Join(c.Config.ArchivePath, "old.ipynb"), []byte("x"), 0o644))

			err := c.Run(log.Test(t), Request{Command: cmd, Strategy: fetch.SelectorHTTP})
			require.True(t, IsAbort(err), "got %v", err)
			require.Contains(t, err.Error(), "not empty")
			require.Equal(t, []string{"Exists"}, store.calls)
		})
	}
}

func TestNonEmptyArchiveDoesNotAbortRefresh(t *testing.T) {
	store := &fakeStore{}
	c, _, _ := newTestController(t, store)
	require.NoError(t, os.WriteFile(filepath.Join(c.Config.ArchivePath, "old.ipynb"), []byte("x"), 0o644))

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandRefresh, Strategy: fetch.SelectorSkip}))
}

func TestMissingArchiveDirectoryCountsAsEmpty(t *testing.T) {
	store := &fakeStore{}
	c, _, _ := newTestController(t, store)
	c.Config.ArchivePath = filepath.Join(t.TempDir(), "not-yet-created")

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandInit, Strategy: fetch.SelectorSkip}))
}

func TestDownloadNeverPreparesData(t *testing.T) {
	store := &fakeStore{exists: true, identifiers: []string{"a/x"}}
	c, rec, _ := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandDownload, Strategy: fetch.SelectorHTTP, Matching: []string{"a/x"}}))
	require.Zero(t, rec.loads)
	require.Zero(t, rec.processes)
	require.NotContains(t, store.calls, "Recreate")
	require.NotContains(t, store.calls, "WriteTables")
	require.Equal(t, [][]string{{"a/x"}}, rec.fetched)
}

func TestDownloadAgainstMissingDatabaseFailsAtQuery(t *testing.T) {
	store := &fakeStore{exists: false, queryErr: errors.New("unknown database kgtorrent")}
	c, _, _ := newTestController(t, store)

	err := c.Run(log.Test(t), Request{Command: CommandDownload, Strategy: fetch.SelectorHTTP})
	require.Error(t, err)
	// A stage failure, not a guard abort.
	require.False(t, IsAbort(err))
	require.Contains(t, store.calls, "QueryIdentifiers")
}

func TestDispatchSetIsIntersection(t *testing.T) {
	store := &fakeStore{exists: true, identifiers: []string{"a", "b", "c"}}
	c, rec, _ := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{
		Command:  CommandDownload,
		Strategy: fetch.SelectorHTTP,
		Matching: []string{"b", "c", "d"},
	}))
	require.Equal(t, [][]string{{"b", "c"}}, rec.fetched)
	require.Equal(t, c.Config.ArchivePath, rec.fetchDest)
}

func TestEmptyMatchingDispatchesEmptySet(t *testing.T) {
	store := &fakeStore{exists: true, identifiers: []string{"a", "b"}}
	c, rec, _ := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandDownload, Strategy: fetch.SelectorHTTP}))
	// The strategy still runs, with nothing to fetch.
	require.Equal(t, 1, rec.factories)
	require.Equal(t, [][]string{{}}, rec.fetched)
}

func TestSkipNeverInstantiatesStrategy(t *testing.T) {
	store := &fakeStore{exists: true, identifiers: []string{"a"}}
	c, rec, out := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandDownload, Strategy: fetch.SelectorSkip, Matching: []string{"a"}}))
	require.Zero(t, rec.factories)
	require.Empty(t, rec.fetched)
	require.True(t, store.closed)
	require.Contains(t, out.String(), "download skipped")
}

func TestStoreClosedBeforeFetch(t *testing.T) {
	store := &fakeStore{exists: true, identifiers: []string{"a"}}
	c, rec, _ := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandDownload, Strategy: fetch.SelectorHTTP, Matching: []string{"a"}}))
	require.True(t, rec.storeClosedAtFetch)
}

func TestInitEndToEnd(t *testing.T) {
	store := &fakeStore{exists: false, identifiers: []string{"a/x", "b/y"}}
	c, rec, out := newTestController(t, store)

	require.NoError(t, c.Run(log.Test(t), Request{Command: CommandInit, Strategy: fetch.SelectorSkip}))
	require.Equal(t, 1, rec.loads)
	require.Equal(t, 1, rec.processes)
	require.Equal(t, []string{"Exists", "Recreate", "WriteTables", "ApplyConstraints", "QueryIdentifiers", "Close"}, store.calls)
	require.Zero(t, rec.factories)
	// Preprocessing statistics are surfaced to the operator.
	require.Contains(t, out.String(), "TABLE")
}

func TestIntersect(t *testing.T) {
	require.Equal(t, []string{"b", "c"}, intersect([]string{"c", "a", "b"}, []string{"d", "b", "c"}))
	require.Empty(t, intersect([]string{"a", "b"}, nil))
	require.Empty(t, intersect(nil, []string{"a"}))
	// Duplicate store rows collapse into a set.
	require.Equal(t, []string{"a"}, intersect([]string{"a", "a"}, []string{"a"}))
}

func TestStdinConfirmer(t *testing.T) {
	for in, want := range map[string]bool{
		"yes\n":   true,
		"YES\n":   true,
		" Yes \n": true,
		"yes":     true, // EOF without newline
		"no\n":    false,
		"y\n":     false,
		"\n":      false,
		"":        false,
	} {
		c := &StdinConfirmer{In: strings.NewReader(in), Out: &bytes.Buffer{}}
		got, err := c.Confirm(context.Background(), "sure?")
		require.NoError(t, err)
		require.Equal(t, want, got, "input %q", in)
	}
}
