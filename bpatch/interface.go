package bpatch

import (
	"context"
	"fmt"
	"io"

	"github.com/sokinpui/bpatch/cli"
	"github.com/sokinpui/bpatch/internal/parser"
	"github.com/sokinpui/bpatch/internal/patcher"
	"github.com/sokinpui/bpatch/model"
)

// Config for using bpatch as a library.
type Config struct {
	// Directories to resolve relative target paths against.
	LookupDirs []string
	// Compute results without writing files.
	DryRun bool
	// Write files even if some of their old blocks are missing.
	AllowMissing bool
	// Parse patched JS/TS/Go/Python output before writing it.
	CheckSyntax bool
	// Directory holding undo history. Empty disables history.
	StateDir string
}

// Patch replaces oldBlock with newBlock in the file at path and reports
// what happened. A missing old block returns an error matching
// patcher.ErrBlockNotFound and leaves the file untouched.
func Patch(path, oldBlock, newBlock string) (model.PatchResult, error) {
	p := model.Patch{Path: path, Old: oldBlock, New: newBlock}
	if err := p.Validate(); err != nil {
		return model.PatchResult{}, err
	}

	res, err := patcher.PatchFile(context.Background(), path, []model.Patch{p}, patcher.Options{})
	var result model.PatchResult
	if len(res.Results) > 0 {
		result = res.Results[0]
	}
	return result, err
}

// Apply applies the given patch sets and returns a summary.
func Apply(ctx context.Context, sets []model.PatchSet, config Config) (model.Summary, error) {
	cliCfg := &cli.Config{
		LookupDirs:   config.LookupDirs,
		DryRun:       config.DryRun,
		AllowMissing: config.AllowMissing,
		CheckSyntax:  config.CheckSyntax,
		NoHistory:    config.StateDir == "",
		Jobs:         patcher.DefaultJobs,
	}

	// Library callers get results from the summary; diffs are not printed.
	opts := []Option{WithStdout(io.Discard)}
	if config.StateDir != "" {
		opts = append(opts, WithStateDir(config.StateDir))
	}
	app, err := New(cliCfg, opts...)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize bpatch app: %w", err)
	}
	return app.ApplySets(ctx, sets)
}

// ApplyDocument parses a Markdown or YAML patch set and applies it. The
// format is chosen from name's extension, or sniffed when it has none.
func ApplyDocument(ctx context.Context, name string, data []byte, config Config) (model.Summary, error) {
	set, err := parser.Parse(name, data)
	if err != nil {
		return model.Summary{}, err
	}
	return Apply(ctx, []model.PatchSet{set}, config)
}
