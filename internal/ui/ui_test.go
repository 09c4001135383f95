package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sokinpui/bpatch/model"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })
	return &buf
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(model.Summary{
		Message:   "Applied 1 patch set.",
		Modified:  []string{"src/Floor.jsx"},
		Unchanged: []string{"src/Dashboard.jsx"},
		Failed:    []string{"src/Register.jsx"},
		Notes:     []string{"Added selectedTable state"},
	})

	for _, want := range []string{
		"Applied 1 patch set.",
		"Modified:", "src/Floor.jsx",
		"Already patched:", "src/Dashboard.jsx",
		"Failed:", "src/Register.jsx",
		"- Added selectedTable state",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderSummaryDryRun(t *testing.T) {
	out := RenderSummary(model.Summary{DryRun: true, Modified: []string{"a.jsx"}})
	assert.Contains(t, out, "Would modify:")
	assert.NotContains(t, out, "Modified:")
}

func TestRenderEmptySummary(t *testing.T) {
	assert.Contains(t, RenderSummary(model.Summary{}), "Nothing to do.")
}

func TestMessagesGoToOutput(t *testing.T) {
	buf := captureOutput(t)
	Warning("missing %d block(s)", 2)
	Path("- %s", "a.jsx")
	assert.Contains(t, buf.String(), "missing 2 block(s)")
	assert.Contains(t, buf.String(), "  - a.jsx")
}

func TestProgressBar(t *testing.T) {
	buf := captureOutput(t)
	bar := NewProgressBar("Patching")
	bar.Update(0, 2)
	bar.Update(1, 2)
	bar.Update(2, 2)

	out := buf.String()
	assert.Contains(t, out, "[1/2] 50.0%")
	assert.Contains(t, out, "[2/2] 100.0%")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
