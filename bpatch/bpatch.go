package bpatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/sokinpui/bpatch/cli"
	"github.com/sokinpui/bpatch/internal/builtin"
	"github.com/sokinpui/bpatch/internal/fs"
	"github.com/sokinpui/bpatch/internal/nvim"
	"github.com/sokinpui/bpatch/internal/parser"
	"github.com/sokinpui/bpatch/internal/patcher"
	"github.com/sokinpui/bpatch/internal/source"
	"github.com/sokinpui/bpatch/internal/state"
	"github.com/sokinpui/bpatch/internal/syntax"
	"github.com/sokinpui/bpatch/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	pathResolver     *fs.PathResolver
	sourceProvider   *source.SourceProvider
	progressCallback ProgressUpdate
	stdout           io.Writer

	stateRoot    string
	stateManager *state.Manager
}

// Option customizes an App.
type Option func(*App)

// WithStateDir keeps undo history under dir instead of the git root.
func WithStateDir(dir string) Option {
	return func(a *App) { a.stateRoot = dir }
}

// WithStdout redirects diffs and listings, which go to os.Stdout by default.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	a := &App{
		cfg:            cfg,
		pathResolver:   fs.NewPathResolver(cfg.LookupDirs),
		sourceProvider: source.New(),
		stdout:         os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetNotify routes input status messages, such as the clipboard fallback,
// to n instead of the terminal.
func (a *App) SetNotify(n source.Notify) {
	a.sourceProvider.SetNotify(n)
}

// state opens the history store on first use so dry runs leave no trace.
func (a *App) state() (*state.Manager, error) {
	if a.stateManager != nil {
		return a.stateManager, nil
	}
	var (
		m   *state.Manager
		err error
	)
	if a.stateRoot != "" {
		m, err = state.Open(a.stateRoot)
	} else {
		m, err = state.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	a.stateManager = m
	return m, nil
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	case a.cfg.List:
		return a.listPresets()
	default:
		return a.processPatchSets(ctx)
	}
}

// processPatchSets loads every requested patch set and applies them.
func (a *App) processPatchSets(ctx context.Context) (model.Summary, error) {
	sets, err := a.LoadSets()
	if err != nil {
		return model.Summary{}, err
	}
	if len(sets) == 0 {
		return model.Summary{Message: "No patch sets given. Nothing to do."}, nil
	}
	return a.ApplySets(ctx, sets)
}

// LoadSets collects the presets and documents named in the config. With
// neither, the document comes from stdin or the clipboard.
func (a *App) LoadSets() ([]model.PatchSet, error) {
	var sets []model.PatchSet
	for _, name := range a.cfg.Presets {
		set, err := builtin.Load(name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if len(a.cfg.Presets) > 0 && len(a.cfg.Files) == 0 {
		return sets, nil
	}

	docs, err := a.sourceProvider.Load(a.cfg.Files)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		set, err := parser.Parse(doc.Name, doc.Data)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// patchRef locates a patch's result: the file it targets and its position
// among that file's patches.
type patchRef struct {
	path  string
	index int
}

// ApplySets applies the given patch sets and summarizes the outcome.
func (a *App) ApplySets(ctx context.Context, sets []model.PatchSet) (model.Summary, error) {
	var (
		patches []model.Patch
		refs    = make([][]patchRef, len(sets))
		perPath = make(map[string]int)
	)
	for i, set := range sets {
		if err := set.Validate(); err != nil {
			return model.Summary{}, err
		}
		for _, p := range set.Patches {
			p.Path = a.pathResolver.Resolve(p.Path)
			refs[i] = append(refs[i], patchRef{path: p.Path, index: perPath[p.Path]})
			perPath[p.Path]++
			patches = append(patches, p)
		}
	}

	opts := patcher.Options{
		DryRun:       a.cfg.DryRun,
		AllowMissing: a.cfg.AllowMissing,
		Jobs:         a.cfg.Jobs,
	}
	if a.cfg.CheckSyntax {
		opts.Check = syntax.Check
	}

	slog.Debug("applying patch sets", "sets", len(sets), "patches", len(patches), "dry_run", opts.DryRun)
	results := patcher.ApplyAll(ctx, patches, opts, a.progressCallback)

	summary := model.Summary{DryRun: a.cfg.DryRun}
	byPath := make(map[string]model.FileResult, len(results))
	written := make(map[string][2]string)

	for _, r := range results {
		byPath[r.Path] = r
		display := a.displayPath(r.Path)

		switch {
		case r.Err != nil:
			slog.Error("failed to patch file", "path", r.Path, "error", r.Err)
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", display, r.Err))
			continue
		case r.Changed:
			summary.Modified = append(summary.Modified, display)
		default:
			summary.Unchanged = append(summary.Unchanged, display)
		}

		if missed := r.Missed(); len(missed) > 0 {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %d old block(s) not found", display, len(missed)))
		}
		if n := convertedMatches(r); n > 0 {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %d block(s) matched only with CRLF line endings", display, n))
		}
		if r.Written {
			written[r.Path] = [2]string{r.Before, r.After}
		}
		if a.cfg.DryRun && r.Changed {
			if err := a.printDiff(display, r); err != nil {
				return summary, err
			}
		}
	}

	for i, set := range sets {
		if setApplied(refs[i], byPath) {
			summary.Notes = append(summary.Notes, set.Notes...)
		}
	}

	if len(written) > 0 {
		a.recordHistory(written, &summary)
		reloadEditor()
	}

	verb := "Applied"
	if a.cfg.DryRun {
		verb = "Dry run of"
	}
	summary.Message = fmt.Sprintf("%s %d patch set(s).", verb, len(sets))
	return summary, nil
}

func convertedMatches(r model.FileResult) int {
	n := 0
	for _, res := range r.Results {
		if res.ConvertedCRLF {
			n++
		}
	}
	return n
}

// setApplied reports whether every file of a set succeeded and at least
// one of its patches changed something.
func setApplied(refs []patchRef, byPath map[string]model.FileResult) bool {
	applied := false
	for _, ref := range refs {
		r := byPath[ref.path]
		if r.Err != nil || ref.index >= len(r.Results) {
			return false
		}
		switch r.Results[ref.index].Outcome {
		case model.OutcomeNotFound:
			return false
		case model.OutcomeApplied:
			applied = true
		}
	}
	return applied
}

func (a *App) printDiff(display string, r model.FileResult) error {
	diff, err := patcher.UnifiedDiff(display, r.Before, r.After)
	if err != nil {
		return fmt.Errorf("failed to render diff for %s: %w", display, err)
	}
	_, err = io.WriteString(a.stdout, diff)
	return err
}

func (a *App) recordHistory(written map[string][2]string, summary *model.Summary) {
	if a.cfg.NoHistory {
		return
	}
	m, err := a.state()
	if err == nil {
		var entry state.HistoryEntry
		entry, err = m.Record(written)
		if err == nil {
			slog.Debug("recorded history entry", "id", entry.ID, "files", len(entry.Operations))
			return
		}
	}
	slog.Warn("history not recorded", "error", err)
	summary.Warnings = append(summary.Warnings, fmt.Sprintf("undo unavailable for this run: %v", err))
}

// reloadEditor lets a running Neovim pick up rewritten files.
func reloadEditor() {
	if err := nvim.Reload(); err != nil && !errors.Is(err, nvim.ErrNoInstance) {
		slog.Warn("could not reload neovim buffers", "error", err)
	}
}

// listPresets prints the built-in patch sets to stdout.
func (a *App) listPresets() (model.Summary, error) {
	for _, name := range builtin.Names() {
		set, err := builtin.Load(name)
		if err != nil {
			return model.Summary{}, err
		}
		if _, err := fmt.Fprintf(a.stdout, "%-16s %s\n", name, set.Name); err != nil {
			return model.Summary{}, err
		}
	}
	return model.Summary{}, nil
}

// undoLastOperation handles the undo logic. The history pointer only moves
// once every file of the entry is restored, so a conflicting undo can be
// retried after the conflict is resolved.
func (a *App) undoLastOperation() (model.Summary, error) {
	m, err := a.state()
	if err != nil {
		return model.Summary{}, err
	}
	ops := m.GetOperationsToUndo()
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	summary := a.replay(ops, m.Undo)
	if summary.HasFailures() {
		summary.Message = "Undo incomplete. Resolve the conflicts and run --undo again."
		return summary, nil
	}
	if err := m.CommitUndo(); err != nil {
		return summary, err
	}
	summary.Message = "Undid last operation."
	return summary, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	m, err := a.state()
	if err != nil {
		return model.Summary{}, err
	}
	ops := m.GetOperationsToRedo()
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	summary := a.replay(ops, m.Redo)
	if summary.HasFailures() {
		summary.Message = "Redo incomplete. Resolve the conflicts and run --redo again."
		return summary, nil
	}
	if err := m.CommitRedo(); err != nil {
		return summary, err
	}
	summary.Message = "Redid last undone operation."
	return summary, nil
}

func (a *App) replay(ops []state.Operation, apply func(state.Operation) error) model.Summary {
	total := len(ops)
	if a.progressCallback != nil {
		a.progressCallback(0, total)
	}

	var summary model.Summary
	for i, op := range ops {
		display := a.displayPath(op.Path)
		if err := apply(op); err != nil {
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", display, err))
		} else {
			summary.Modified = append(summary.Modified, display)
		}
		if a.progressCallback != nil {
			a.progressCallback(i+1, total)
		}
	}
	if len(summary.Modified) > 0 {
		reloadEditor()
	}
	return summary
}

// displayPath converts an absolute file path to be relative to the current
// working directory for cleaner display.
func (a *App) displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil {
		return p // Fallback to absolute path
	}
	return rel
}
