package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sokinpui/bpatch/bpatch"
	"github.com/sokinpui/bpatch/cli"
	"github.com/sokinpui/bpatch/internal/logger"
	"github.com/sokinpui/bpatch/internal/tui"
	"github.com/sokinpui/bpatch/internal/ui"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		var flagErr *cli.FlagError
		if !errors.As(err, &flagErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{LogDir: cfg.LogDir, Debug: cfg.Verbose, JSON: cfg.LogJSON}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	app, err := bpatch.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Modes that print to stdout, and explicit plain mode, skip the TUI.
	if cfg.DryRun || cfg.List || cfg.NoAnimation {
		os.Exit(runPlain(ctx, app, cfg))
	}
	os.Exit(runTUI(ctx, app))
}

func runPlain(ctx context.Context, app *bpatch.App, cfg *cli.Config) int {
	if !cfg.List {
		bar := ui.NewProgressBar("Patching")
		app.SetProgressCallback(bar.Update)
	}

	summary, err := app.Execute(ctx)
	if err != nil {
		var detailed *bpatch.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		return 1
	}
	if !cfg.List {
		ui.PrintSummary(summary)
	}
	if summary.HasFailures() {
		return 1
	}
	return 0
}

func runTUI(ctx context.Context, app *bpatch.App) int {
	model := tui.New(ctx, app)
	p := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	app.SetProgressCallback(func(current, total int) {
		p.Send(tui.ProgressMsg{Current: current, Total: total})
	})
	// The program owns the terminal; status lines go through it.
	app.SetNotify(func(msg string, warning bool) {
		p.Send(tui.StatusMsg{Text: msg, Warning: warning})
	})

	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}
	if m, ok := final.(tui.Model); ok && (m.Err() != nil || m.Summary().HasFailures()) {
		return 1
	}
	return 0
}
