// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package restoretree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bareos-community/restoretree/internal/bsr"
	"github.com/bareos-community/restoretree/internal/catalog"
	"github.com/bareos-community/restoretree/internal/selection"
	"github.com/bareos-community/restoretree/internal/serialize"
	"github.com/bareos-community/restoretree/internal/tree"
)

// Handle identifies one restore session. It is a uuid.UUID rather than a
// sequential counter so that handles remain unique across process restarts
// and concurrent directors.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// State is one position in the restore session's state machine.
type State int

const (
	// SelectStart is the initial state: the tree has not been built yet.
	SelectStart State = iota
	// SelectTree is entered once a tree has been built from catalog rows;
	// ChangeDirectory/ListFiles/MarkUnmark/Estimate are available.
	SelectTree
	// SelectRestoreOptions is entered once FinishSelection has synthesized
	// and written a BSR; only CommitRestoreSession or AbortRestoreSession
	// may follow.
	SelectRestoreOptions
	// Committed is the terminal success state; no further calls are valid.
	Committed
	// Aborted is the terminal cancellation state; no further calls are valid.
	Aborted
)

func (s State) String() string {
	switch s {
	case SelectStart:
		return "SelectStart"
	case SelectTree:
		return "SelectTree"
	case SelectRestoreOptions:
		return "SelectRestoreOptions"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Session drives one restore preparation pipeline end to end: ingest,
// interactive selection, BSR synthesis, and commit. A Session's state
// transitions are not safe for concurrent callers (the director layer
// above is expected to serialize calls per handle), but the underlying
// Tree may be read and marked concurrently once built.
type Session struct {
	handle Handle
	state  State
	logger *slog.Logger

	t       *tree.Tree
	engine  *selection.Engine
	fold    selection.CaseFold
	workDir string
	lastErr error
	bsrPath string
}

// NewSession creates a fresh Session in SelectStart, ready for
// StartFromJobIDs. caseFold controls whether Ls/Find/Mark glob matching
// ignores case; regex matching is always case-sensitive.
func NewSession(caseFold bool, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	fold := selection.CaseFold(caseFold)
	return &Session{
		handle: Handle(uuid.New()),
		state:  SelectStart,
		logger: logger,
		fold:   fold,
	}
}

// Handle returns this session's identifying handle.
func (s *Session) Handle() Handle { return s.handle }

// SetWorkDir sets the directory auto-generated .bsr files are written
// into when FinishSelection is called without an explicit path. Defaults
// to the process working directory.
func (s *Session) SetWorkDir(dir string) { s.workDir = dir }

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// ErrorString renders the last error this session recorded, or "" if none,
// so a rejected call leaves a human-readable reason retrievable without
// forcing the caller to inspect a Go error value.
func (s *Session) ErrorString() string {
	if s.lastErr == nil {
		return ""
	}
	return s.lastErr.Error()
}

func (s *Session) reject(err error) error {
	s.lastErr = err
	return err
}

// watchContext propagates ctx cancellation onto flag for the duration of
// one call; the returned stop function releases the watcher.
func watchContext(ctx context.Context, flag *tree.CancelFlag) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			flag.Cancel()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

func (s *Session) requireState(want State) error {
	if s.state != want {
		return s.reject(fmt.Errorf("%w: in %s, need %s", ErrWrongState, s.state, want))
	}
	return nil
}

// StartFromJobIDs builds the directory tree by streaming rows for jobIDs
// from rows. selectParents requests that ancestor jobs of each named job
// also be included automatically; this extension point is deliberately
// deferred and always fails with ErrNotImplemented rather than silently
// restoring the wrong set of jobs.
//
// On success the session transitions SelectStart -> SelectTree. On any
// failure the session remains in SelectStart with no tree built.
func (s *Session) StartFromJobIDs(ctx context.Context, jobIDs []uint32, selectParents bool, rows catalog.RowSource) error {
	if err := s.requireState(SelectStart); err != nil {
		return err
	}
	if selectParents {
		return s.reject(ErrNotImplemented)
	}

	b := tree.NewBuilder(tree.WithLogger(s.logger))
	cancel := &tree.CancelFlag{}
	defer watchContext(ctx, cancel)()

	var ingestErr error
	err := rows.StreamRows(ctx, jobIDs, func(row catalog.Row) error {
		if cancel.Cancelled() {
			return tree.ErrCancelled
		}
		lst, err := catalog.DecodeLstat(row.Lstat)
		if err != nil {
			ingestErr = fmt.Errorf("%w: %v", tree.ErrMalformedRow, err)
			return ingestErr
		}
		b.InsertRow(tree.InsertRowInput{
			Path:      row.Path,
			Filename:  row.Filename,
			FileIndex: row.FileIndex,
			JobID:     row.JobID,
			Mode:      lst.Mode,
			Nlink:     lst.Nlink,
			LinkFI:    lst.LinkFI,
			DeltaSeq:  row.DeltaSeq,
			FHInfo:    row.FHInfo,
			FHNode:    row.FHNode,
			Size:      row.Size,
		})
		return nil
	})
	if err != nil {
		if ingestErr != nil {
			return s.reject(ingestErr)
		}
		return s.reject(&CatalogError{Op: "StreamRows", Err: err})
	}

	s.t = b.Build()
	s.engine = selection.NewEngine(s.t, s.fold)
	s.state = SelectTree
	s.lastErr = nil
	return nil
}

// LoadSnapshot restores a previously Saved tree instead of re-ingesting
// catalog rows. markOnLoad
// forces every node's Extract/ExtractDir bits on, matching a cold-start
// "select everything" restore.
func (s *Session) LoadSnapshot(path string, markOnLoad bool) error {
	if err := s.requireState(SelectStart); err != nil {
		return err
	}

	t, err := serialize.Load(path, markOnLoad, s.logger)
	if err != nil {
		return s.reject(err)
	}

	s.t = t
	s.engine = selection.NewEngine(t, s.fold)
	s.state = SelectTree
	s.lastErr = nil
	return nil
}

// SaveSnapshot persists the current tree to path, atomically.
func (s *Session) SaveSnapshot(path string) error {
	if err := s.requireState(SelectTree); err != nil {
		return err
	}
	if err := serialize.Save(path, s.t.Export()); err != nil {
		return s.reject(err)
	}
	return nil
}

// CurrentDirectory returns the fully-qualified path of the selection
// engine's current node.
func (s *Session) CurrentDirectory() (string, error) {
	if err := s.requireState(SelectTree); err != nil {
		return "", err
	}
	return s.engine.Pwd(), nil
}

// ChangeDirectory moves the selection cursor.
func (s *Session) ChangeDirectory(path string) error {
	if err := s.requireState(SelectTree); err != nil {
		return err
	}
	if err := s.engine.Cd(path); err != nil {
		return s.reject(err)
	}
	return nil
}

// ListFiles lists the current directory's children matching pattern ("" for
// all).
func (s *Session) ListFiles(pattern string) ([]selection.Entry, error) {
	if err := s.requireState(SelectTree); err != nil {
		return nil, err
	}
	out, err := s.engine.Ls(pattern)
	if err != nil {
		return nil, s.reject(err)
	}
	return out, nil
}

// FindFiles reports every descendant of the current node whose name
// matches pattern.
func (s *Session) FindFiles(pattern string) ([]selection.Entry, error) {
	if err := s.requireState(SelectTree); err != nil {
		return nil, err
	}
	out, err := s.engine.Find(pattern)
	if err != nil {
		return nil, s.reject(err)
	}
	return out, nil
}

// MarkUnmarkRequest selects one of the `mark`/`unmark` command forms.
// Exactly one selector must be set: All requests the recursive bulk form,
// Regex selects via extended regex instead of glob, and UnmarkDirOnly
// restricts the operation to the directory's own extract_dir bit.
type MarkUnmarkRequest struct {
	Pattern       string
	Regex         string
	All           bool
	UnmarkDirOnly bool
	Mark          bool // true = mark, false = unmark
}

// MarkUnmark dispatches one MarkUnmarkRequest and returns the count of
// nodes touched (0 for the bulk All/UnmarkDirOnly forms, which do not
// count).
func (s *Session) MarkUnmark(ctx context.Context, req MarkUnmarkRequest) (int, error) {
	if err := s.requireState(SelectTree); err != nil {
		return 0, err
	}

	cancel := &tree.CancelFlag{}
	defer watchContext(ctx, cancel)()

	switch {
	case req.UnmarkDirOnly:
		s.engine.UnmarkDir()
		return 0, nil
	case req.All:
		var err error
		if req.Mark {
			err = s.engine.MarkAll(cancel)
		} else {
			err = s.engine.UnmarkAll(cancel)
		}
		if err != nil {
			return 0, s.reject(err)
		}
		return 0, nil
	case req.Regex != "":
		var n int
		var err error
		if req.Mark {
			n, err = s.engine.MarkRegex(req.Regex)
		} else {
			n, err = s.engine.UnmarkRegex(req.Regex)
		}
		if err != nil {
			return 0, s.reject(err)
		}
		return n, nil
	default:
		var n int
		var err error
		if req.Mark {
			n, err = s.engine.Mark(req.Pattern, cancel)
		} else {
			n, err = s.engine.Unmark(req.Pattern, cancel)
		}
		if err != nil {
			return 0, s.reject(err)
		}
		return n, nil
	}
}

// Lsmark lists every marked node under the current directory.
func (s *Session) Lsmark() ([]selection.Entry, error) {
	if err := s.requireState(SelectTree); err != nil {
		return nil, err
	}
	return s.engine.Lsmark(), nil
}

// Estimate reports the marked file/directory counts and byte total under
// the current directory.
func (s *Session) Estimate() (selection.Stats, error) {
	if err := s.requireState(SelectTree); err != nil {
		return selection.Stats{}, err
	}
	return s.engine.Estimate(), nil
}

// FinishSelection synthesizes the bootstrap record from the current marks
// and writes it to bsrPath, or to an auto-generated "restore-<handle>.bsr"
// in the working directory if bsrPath is empty. On success the session
// transitions SelectTree -> SelectRestoreOptions.
func (s *Session) FinishSelection(ctx context.Context, jobIDs []uint32, vols catalog.VolumeSource, bsrPath string) (bsr.Stats, error) {
	var zero bsr.Stats
	if err := s.requireState(SelectTree); err != nil {
		return zero, err
	}

	cancel := &tree.CancelFlag{}
	defer watchContext(ctx, cancel)()

	b, stats, err := bsr.Synthesize(ctx, s.t, jobIDs, vols, s.logger, cancel)
	if err != nil {
		return zero, s.reject(err)
	}

	if bsrPath == "" {
		bsrPath = filepath.Join(s.workDir, fmt.Sprintf("restore-%s.bsr", s.handle))
	}
	if err := os.WriteFile(bsrPath, []byte(bsr.Emit(b)), 0o644); err != nil {
		return zero, s.reject(fmt.Errorf("restoretree: write bsr: %w", err))
	}

	s.bsrPath = bsrPath
	s.state = SelectRestoreOptions
	s.lastErr = nil
	return stats, nil
}

// BootstrapPath returns the path FinishSelection wrote the BSR to.
func (s *Session) BootstrapPath() (string, error) {
	if err := s.requireState(SelectRestoreOptions); err != nil {
		return "", err
	}
	return s.bsrPath, nil
}

// RestoreSelections names the references a commit requires: the restore
// job template, the target client, and the catalog the job runs against.
type RestoreSelections struct {
	Job     string
	Client  string
	Catalog string
}

// CommitRestoreSession validates sel and finalizes the session. The real
// submission of a restore job to a Director happens in the layer above;
// this performs the session's own terminal bookkeeping and returns the
// path of the BSR the caller should hand to that Director. A commit with
// any selection missing fails with ErrIncompleteSelections and leaves the
// session in SelectRestoreOptions.
func (s *Session) CommitRestoreSession(sel RestoreSelections) (string, error) {
	if err := s.requireState(SelectRestoreOptions); err != nil {
		return "", err
	}
	if sel.Job == "" || sel.Client == "" || sel.Catalog == "" {
		return "", s.reject(fmt.Errorf("%w: job=%q client=%q catalog=%q",
			ErrIncompleteSelections, sel.Job, sel.Client, sel.Catalog))
	}
	s.state = Committed
	s.lastErr = nil
	return s.bsrPath, nil
}

// AbortRestoreSession cancels the session from any non-terminal state,
// removing any BSR file FinishSelection already wrote.
func (s *Session) AbortRestoreSession() error {
	if s.state == Committed || s.state == Aborted {
		return s.reject(fmt.Errorf("%w: in %s, need a non-terminal state", ErrWrongState, s.state))
	}
	if s.bsrPath != "" {
		if err := os.Remove(s.bsrPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("restoretree: failed to remove bsr on abort", "path", s.bsrPath, "err", err)
		}
	}
	s.state = Aborted
	s.lastErr = nil
	return nil
}
