package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Presets      []string
	Files        []string
	LookupDirs   []string
	DryRun       bool
	AllowMissing bool
	CheckSyntax  bool
	NoHistory    bool
	Jobs         int
	List         bool
	Undo         bool
	Redo         bool
	NoAnimation  bool
	Verbose      bool
	LogDir       string
	LogJSON      bool
}

// FlagError wraps flag syntax errors, which pflag has already printed
// together with the usage text.
type FlagError struct {
	Err error
}

func (e *FlagError) Error() string { return e.Err.Error() }

func (e *FlagError) Unwrap() error { return e.Err }

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse parses args into a Config.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("bpatch", pflag.ContinueOnError)

	flags.StringSliceVarP(&cfg.Presets, "preset", "p", []string{}, "Apply a built-in patch set (repeatable). See --list.")
	flags.StringSliceVarP(&cfg.LookupDirs, "lookup-dir", "l", []string{}, "Directory to resolve relative target paths against (default: current directory).")
	flags.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print the resulting diff instead of writing files.")
	flags.BoolVar(&cfg.AllowMissing, "allow-missing", false, "Write files even when some of their old blocks are not found.")
	flags.BoolVar(&cfg.CheckSyntax, "check-syntax", false, "Refuse to write JS/TS/Go/Python files that no longer parse.")
	flags.BoolVar(&cfg.NoHistory, "no-history", false, "Do not record this run for --undo.")
	flags.IntVarP(&cfg.Jobs, "jobs", "j", 4, "Number of files to patch concurrently.")
	flags.BoolVar(&cfg.List, "list", false, "List built-in patch sets.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner and print a plain summary.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging.")
	flags.StringVar(&cfg.LogDir, "log-dir", "", "Write logs to a rotating file in this directory.")
	flags.BoolVar(&cfg.LogJSON, "log-json", false, "Emit logs as JSON.")

	// Mutually exclusive history group
	flags.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last applied run.")
	flags.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone run.")

	flags.Usage = func() {
		fmt.Println("Usage: bpatch [flags] [patch-set files...]")
		fmt.Println("\nApply literal block patches described in Markdown or YAML patch sets.")
		fmt.Println("Without files or presets, the patch set is read from stdin (pipe) or the clipboard.")
		fmt.Println("\nExample: bpatch -p floor-page -p register-page")
		fmt.Println("\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, &FlagError{Err: err}
	}
	cfg.Files = flags.Args()

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}
	if (cfg.Undo || cfg.Redo) && (len(cfg.Presets) > 0 || len(cfg.Files) > 0) {
		return nil, fmt.Errorf("error: --undo and --redo do not take patch sets")
	}
	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("error: --jobs must be at least 1")
	}

	return cfg, nil
}
