package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/bpatch/model"
)

var (
	// pathHintRegex matches a heading or paragraph that is only a
	// backticked path, e.g. `src/pages/FloorPage.jsx` or `a.go`:
	pathHintRegex = regexp.MustCompile("^`([^`\n]+)`:?$")

	// oldFenceRegex detects markdown patch documents in unnamed input.
	oldFenceRegex = regexp.MustCompile("(?m)^(```|~~~)old\\b")
)

// Parse decodes a patch set document. The format is chosen from the
// extension of name; unnamed input (stdin, clipboard) is sniffed.
func Parse(name string, data []byte) (model.PatchSet, error) {
	var (
		set model.PatchSet
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		set, err = ParseMarkdown(data)
	case ".yaml", ".yml":
		set, err = ParseYAML(data)
	default:
		if oldFenceRegex.Match(data) {
			set, err = ParseMarkdown(data)
		} else {
			set, err = ParseYAML(data)
		}
	}
	if err != nil {
		return model.PatchSet{}, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	set.Source = name
	if err := set.Validate(); err != nil {
		return model.PatchSet{}, err
	}
	return set, nil
}

// ParseMarkdown builds a patch set from a markdown document. A level-1
// heading names the set. A heading or paragraph holding a single
// backticked path selects the target for the following patches. Each
// fenced block tagged "old" must be followed by one tagged "new". A
// paragraph between the target and an old block describes that patch,
// paragraphs before the first target describe the set, and list items
// become notes.
func ParseMarkdown(source []byte) (model.PatchSet, error) {
	blocks, err := ExtractBlocks(source)
	if err != nil {
		return model.PatchSet{}, err
	}

	var (
		set         model.PatchSet
		description []string
		target      string
		patchDesc   string
		pendingOld  *Block
	)

	for i := range blocks {
		b := blocks[i]
		switch b.Kind {
		case KindHeading:
			if path := extractPathFromHint(b.Text); path != "" {
				target, patchDesc = path, ""
				continue
			}
			if b.Level == 1 && set.Name == "" {
				set.Name = b.Text
			}

		case KindParagraph:
			if path := extractPathFromHint(b.Text); path != "" {
				target, patchDesc = path, ""
				continue
			}
			if target == "" {
				description = append(description, b.Text)
			} else {
				patchDesc = b.Text
			}

		case KindList:
			set.Notes = append(set.Notes, b.Items...)

		case KindCode:
			switch b.Lang {
			case "old":
				if pendingOld != nil {
					return model.PatchSet{}, fmt.Errorf("line %d: old block at line %d has no new block", b.Line, pendingOld.Line)
				}
				if target == "" {
					return model.PatchSet{}, fmt.Errorf("line %d: old block has no target path before it", b.Line)
				}
				pendingOld = &blocks[i]

			case "new":
				if pendingOld == nil {
					return model.PatchSet{}, fmt.Errorf("line %d: new block without a preceding old block", b.Line)
				}
				count, err := countAttr(pendingOld)
				if err != nil {
					return model.PatchSet{}, err
				}
				set.Patches = append(set.Patches, model.Patch{
					Path:        target,
					Old:         pendingOld.Content,
					New:         b.Content,
					Count:       count,
					Description: patchDesc,
				})
				pendingOld, patchDesc = nil, ""
			}
		}
	}

	if pendingOld != nil {
		return model.PatchSet{}, fmt.Errorf("line %d: old block has no new block", pendingOld.Line)
	}

	set.Description = strings.Join(description, "\n\n")
	return set, nil
}

// ParseYAML decodes a patch set from YAML. Unknown fields are rejected so
// a misspelled key does not silently drop a block.
func ParseYAML(data []byte) (model.PatchSet, error) {
	var set model.PatchSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return model.PatchSet{}, fmt.Errorf("document is empty")
		}
		return model.PatchSet{}, err
	}
	return set, nil
}

func extractPathFromHint(hint string) string {
	match := pathHintRegex.FindStringSubmatch(strings.TrimSpace(hint))
	if len(match) < 2 {
		return ""
	}
	path := strings.TrimSpace(match[1])
	// Disallow spaces to avoid treating commands like `npm run build` as a path.
	if strings.Contains(path, " ") {
		return ""
	}
	return path
}

func countAttr(b *Block) (int, error) {
	raw, ok := b.Attrs["count"]
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return 0, fmt.Errorf("line %d: invalid count %q", b.Line, raw)
	}
	return count, nil
}
