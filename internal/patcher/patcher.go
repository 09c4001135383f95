package patcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/bpatch/internal/fs"
	"github.com/sokinpui/bpatch/model"
)

// DefaultJobs is the number of files patched concurrently when Options.Jobs is unset.
const DefaultJobs = 4

var (
	// ErrBlockNotFound is matched by errors reporting a missing old block.
	ErrBlockNotFound = errors.New("old block not found")
	// ErrNotText is returned for targets that are not valid UTF-8.
	ErrNotText = errors.New("not a UTF-8 text file")
)

// MismatchError reports the patches of a file whose old block was not found.
type MismatchError struct {
	Path   string
	Missed []model.Patch
	Total  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d of %d old block(s) not found", e.Path, len(e.Missed), e.Total)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrBlockNotFound
}

// CheckFunc validates the new content of a file before it is written.
type CheckFunc func(ctx context.Context, path string, content []byte) error

// Options controls how patches are applied to files.
type Options struct {
	// DryRun computes results without writing anything.
	DryRun bool
	// AllowMissing writes a file even if some of its old blocks were not found.
	AllowMissing bool
	// Check, if set, must accept the patched content before it is written.
	Check CheckFunc
	// Jobs bounds how many files are patched at once.
	Jobs int
}

// ApplyContent replaces the old block of p in content with its new block.
// The content is left untouched with OutcomeAlreadyApplied when the old
// block is gone and the new block is present, or when the new block embeds
// the old block and is already in place, which keeps re-runs from stacking
// such a patch.
func ApplyContent(content string, p model.Patch) (string, model.PatchResult) {
	result := model.PatchResult{Patch: p}
	old, repl, converted := adaptLineEndings(content, p.Old, p.New)

	found := strings.Count(content, old)
	present := repl != "" && strings.Contains(content, repl)
	if present && (found == 0 || strings.Contains(repl, old)) {
		result.Outcome = model.OutcomeAlreadyApplied
		return content, result
	}
	if found == 0 {
		result.Outcome = model.OutcomeNotFound
		return content, result
	}

	limit := -1
	if p.Count > 0 {
		limit = p.Count
		found = min(found, p.Count)
	}
	result.Outcome = model.OutcomeApplied
	result.Replacements = found
	result.ConvertedCRLF = converted
	return strings.Replace(content, old, repl, limit), result
}

// adaptLineEndings converts the blocks to CRLF for CRLF content. A
// multi-line old block present verbatim in LF form is kept as is. The
// returned flag reports whether the old block was converted to match.
func adaptLineEndings(content, old, repl string) (string, string, bool) {
	if !strings.Contains(content, "\r\n") || strings.Contains(old, "\r") {
		return old, repl, false
	}
	if !strings.Contains(old, "\n") {
		return old, toCRLF(repl), false
	}
	if strings.Contains(content, old) {
		return old, repl, false
	}
	return toCRLF(old), toCRLF(repl), true
}

func toCRLF(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

// PatchFile reads path, applies patches in order and writes the full
// content back if it changed. The returned error is also stored in the
// result's Err field.
func PatchFile(ctx context.Context, path string, patches []model.Patch, opts Options) (model.FileResult, error) {
	result := model.FileResult{Path: path}
	fail := func(err error) (model.FileResult, error) {
		result.Err = err
		return result, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("failed to read target: %w", err))
	}
	if !utf8.Valid(data) {
		return fail(fmt.Errorf("%s: %w", path, ErrNotText))
	}

	content := string(data)
	result.Before = content
	for _, p := range patches {
		var res model.PatchResult
		content, res = ApplyContent(content, p)
		result.Results = append(result.Results, res)
		slog.Debug("patch evaluated",
			"path", path,
			"outcome", res.Outcome.String(),
			"replacements", res.Replacements,
			"crlf", res.ConvertedCRLF)
	}
	result.After = content
	result.Changed = content != result.Before

	if missed := result.Missed(); len(missed) > 0 {
		mismatch := &MismatchError{Path: path, Missed: missed, Total: len(patches)}
		if !opts.AllowMissing {
			return fail(mismatch)
		}
		slog.Warn("writing partially applied file", "path", path, "missed", len(missed))
	}

	if !result.Changed {
		return result, nil
	}

	if opts.Check != nil {
		if err := opts.Check(ctx, path, []byte(content)); err != nil {
			return fail(fmt.Errorf("patched content rejected: %w", err))
		}
	}

	if opts.DryRun {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := fs.WriteFileAtomic(path, []byte(content), fs.FileMode(path)); err != nil {
		return fail(fmt.Errorf("failed to write target: %w", err))
	}
	result.Written = true
	return result, nil
}

// ApplyAll groups patches by target path and patches the files
// concurrently. Patches on the same file run in their given order inside a
// single worker. Results are returned in first-seen path order; progress,
// if set, is called with the number of finished files.
func ApplyAll(ctx context.Context, patches []model.Patch, opts Options, progress func(done, total int)) []model.FileResult {
	var order []string
	groups := make(map[string][]model.Patch)
	for _, p := range patches {
		if _, seen := groups[p.Path]; !seen {
			order = append(order, p.Path)
		}
		groups[p.Path] = append(groups[p.Path], p)
	}

	total := len(order)
	results := make([]model.FileResult, total)
	if progress != nil {
		progress(0, total)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(jobs)
	for i, path := range order {
		i, path := i, path
		g.Go(func() error {
			results[i], _ = PatchFile(ctx, path, groups[path], opts)
			if progress != nil {
				mu.Lock()
				done++
				progress(done, total)
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers record failures in their results and never return an error.
	_ = g.Wait()

	return results
}
