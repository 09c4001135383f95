package model

import "fmt"

// Patch describes a single literal block replacement in one target file.
type Patch struct {
	Path        string `yaml:"path"`
	Old         string `yaml:"old"`
	New         string `yaml:"new"`
	Count       int    `yaml:"count,omitempty"` // 0 replaces every occurrence
	Description string `yaml:"description,omitempty"`
}

// Validate reports whether the patch can be applied at all.
func (p Patch) Validate() error {
	switch {
	case p.Path == "":
		return fmt.Errorf("patch has no target path")
	case p.Old == "":
		return fmt.Errorf("patch for %s has an empty old block", p.Path)
	case p.Old == p.New:
		return fmt.Errorf("patch for %s replaces a block with itself", p.Path)
	case p.Count < 0:
		return fmt.Errorf("patch for %s has a negative count", p.Path)
	}
	return nil
}

// PatchSet is an ordered, named group of patches, usually loaded from a
// Markdown or YAML document.
type PatchSet struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Notes       []string `yaml:"notes,omitempty"`
	Patches     []Patch  `yaml:"patches"`
	// Source is where the set was loaded from (file path, "stdin", "preset:dashboard").
	Source string `yaml:"-"`
}

// Validate checks the set and every patch in it.
func (s PatchSet) Validate() error {
	if len(s.Patches) == 0 {
		return fmt.Errorf("patch set %q has no patches", s.Label())
	}
	for i, p := range s.Patches {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("patch set %q, patch %d: %w", s.Label(), i+1, err)
		}
	}
	return nil
}

// Label returns the name of the set, falling back to its source.
func (s PatchSet) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Source
}

// Outcome is the result of applying one patch to one piece of content.
type Outcome int

const (
	// OutcomeNotFound means neither the old nor the new block was present.
	OutcomeNotFound Outcome = iota
	// OutcomeApplied means the old block was found and replaced.
	OutcomeApplied
	// OutcomeAlreadyApplied means the new block is already in place.
	OutcomeAlreadyApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyApplied:
		return "already-applied"
	default:
		return "not-found"
	}
}

// PatchResult records what happened to a single patch.
type PatchResult struct {
	Patch        Patch
	Outcome      Outcome
	Replacements int

	// ConvertedCRLF is set when the blocks only matched after converting
	// their line endings to CRLF.
	ConvertedCRLF bool
}

// FileResult collects the results of every patch against one target file.
type FileResult struct {
	Path    string
	Results []PatchResult
	Before  string
	After   string
	Changed bool
	Written bool
	Err     error
}

// Failed reports whether the file could not be patched as requested.
func (r FileResult) Failed() bool {
	return r.Err != nil
}

// Missed returns the patches whose old block was not found.
func (r FileResult) Missed() []Patch {
	var missed []Patch
	for _, res := range r.Results {
		if res.Outcome == OutcomeNotFound {
			missed = append(missed, res.Patch)
		}
	}
	return missed
}

// Summary holds the results of an operation for display.
type Summary struct {
	Modified  []string
	Unchanged []string
	Failed    []string
	Warnings  []string
	Notes     []string
	Message   string
	DryRun    bool
}

// HasFailures reports whether any file failed.
func (s Summary) HasFailures() bool {
	return len(s.Failed) > 0
}
