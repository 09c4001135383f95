package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/bpatch/model"
)

const markdownDoc = "# Floor fixes\n" +
	"\n" +
	"Makes tables clickable.\n" +
	"\n" +
	"## `src/pages/FloorPage.jsx`\n" +
	"\n" +
	"Replace the click handler.\n" +
	"\n" +
	"```old\n" +
	"    const handleTableClick = (table) => {\n" +
	"        toast.info(table.name);\n" +
	"    };\n" +
	"```\n" +
	"\n" +
	"```new\n" +
	"    const handleTableClick = async (table) => {\n" +
	"\n" +
	"        await select(table);\n" +
	"    };\n" +
	"```\n" +
	"\n" +
	"`src/pages/RegisterPage.jsx`\n" +
	"\n" +
	"```old count=1\n" +
	"useState('')\n" +
	"```\n" +
	"\n" +
	"```new\n" +
	"useState(null)\n" +
	"```\n" +
	"\n" +
	"```js\n" +
	"// unrelated example, ignored\n" +
	"```\n" +
	"\n" +
	"## Notes\n" +
	"\n" +
	"- Tables open the register\n" +
	"- Register remembers the table\n"

func TestParseMarkdown(t *testing.T) {
	set, err := Parse("floor.md", []byte(markdownDoc))
	require.NoError(t, err)

	want := model.PatchSet{
		Name:        "Floor fixes",
		Description: "Makes tables clickable.",
		Notes:       []string{"Tables open the register", "Register remembers the table"},
		Source:      "floor.md",
		Patches: []model.Patch{
			{
				Path:        "src/pages/FloorPage.jsx",
				Old:         "    const handleTableClick = (table) => {\n        toast.info(table.name);\n    };",
				New:         "    const handleTableClick = async (table) => {\n\n        await select(table);\n    };",
				Description: "Replace the click handler.",
			},
			{
				Path:  "src/pages/RegisterPage.jsx",
				Old:   "useState('')",
				New:   "useState(null)",
				Count: 1,
			},
		},
	}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMarkdownErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "old without target",
			doc:     "```old\na\n```\n\n```new\nb\n```\n",
			wantErr: "no target path",
		},
		{
			name:    "new without old",
			doc:     "`a.txt`\n\n```new\nb\n```\n",
			wantErr: "without a preceding old block",
		},
		{
			name:    "dangling old",
			doc:     "`a.txt`\n\n```old\na\n```\n",
			wantErr: "has no new block",
		},
		{
			name:    "two olds in a row",
			doc:     "`a.txt`\n\n```old\na\n```\n\n```old\nb\n```\n",
			wantErr: "has no new block",
		},
		{
			name:    "bad count",
			doc:     "`a.txt`\n\n```old count=x\na\n```\n\n```new\nb\n```\n",
			wantErr: "invalid count",
		},
		{
			name:    "no patches",
			doc:     "# Nothing here\n",
			wantErr: "has no patches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("doc.md", []byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseYAML(t *testing.T) {
	doc := `name: dashboard tweaks
notes:
  - Added last sell
patches:
  - path: src/Dashboard.jsx
    description: swap label
    old: |-
      <span>Revenue</span>
    new: |-
      <span>Last Sell:</span>
    count: 1
`
	set, err := Parse("tweaks.yaml", []byte(doc))
	require.NoError(t, err)

	want := model.PatchSet{
		Name:   "dashboard tweaks",
		Notes:  []string{"Added last sell"},
		Source: "tweaks.yaml",
		Patches: []model.Patch{{
			Path:        "src/Dashboard.jsx",
			Old:         "<span>Revenue</span>",
			New:         "<span>Last Sell:</span>",
			Count:       1,
			Description: "swap label",
		}},
	}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	doc := "patches:\n  - path: a\n    old: x\n    nwe: y\n"
	_, err := Parse("a.yml", []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nwe")
}

func TestParseValidatesPatches(t *testing.T) {
	doc := "patches:\n  - path: a\n    old: same\n    new: same\n"
	_, err := Parse("a.yml", []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replaces a block with itself")
}

func TestParseSniffsUnnamedInput(t *testing.T) {
	md := "`a.txt`\n\n```old\nx\n```\n\n```new\ny\n```\n"
	set, err := Parse("stdin", []byte(md))
	require.NoError(t, err)
	require.Len(t, set.Patches, 1)
	assert.Equal(t, "stdin", set.Label())

	yml := "patches:\n  - {path: a.txt, old: x, new: y}\n"
	set, err = Parse("clipboard", []byte(yml))
	require.NoError(t, err)
	require.Len(t, set.Patches, 1)
	assert.Equal(t, "y", set.Patches[0].New)

	_, err = Parse("stdin", []byte(""))
	assert.Error(t, err)
}

func TestExtractPathFromHint(t *testing.T) {
	assert.Equal(t, "src/a.go", extractPathFromHint("`src/a.go`"))
	assert.Equal(t, "src/a.go", extractPathFromHint("  `src/a.go`:  "))
	assert.Empty(t, extractPathFromHint("`go run main.go`"))
	assert.Empty(t, extractPathFromHint("see `src/a.go` for details"))
}
