// Package builtin holds the patch sets shipped inside the binary.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sokinpui/bpatch/internal/parser"
	"github.com/sokinpui/bpatch/model"
)

//go:embed patches/*.md
var patches embed.FS

// Names lists the available presets in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(patches, "patches")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Load parses the preset with the given name.
func Load(name string) (model.PatchSet, error) {
	data, err := patches.ReadFile(path.Join("patches", name+".md"))
	if err != nil {
		return model.PatchSet{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	set, err := parser.Parse(name+".md", data)
	if err != nil {
		return model.PatchSet{}, err
	}
	set.Source = "preset:" + name
	return set, nil
}
