package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/bpatch/model"
)

func TestUpdateProgressAndSummary(t *testing.T) {
	m := New(context.Background(), nil)
	assert.Contains(t, m.View(), "Processing...")

	next, cmd := m.Update(ProgressMsg{Current: 1, Total: 3})
	assert.Nil(t, cmd)
	m = next.(Model)
	assert.Contains(t, m.View(), "Patching... [1/3]")

	next, cmd = m.Update(summaryMsg{model.Summary{Modified: []string{"a.jsx"}, Message: "Applied 1 patch set(s)."}})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.Contains(t, m.View(), "a.jsx")
	assert.Equal(t, []string{"a.jsx"}, m.Summary().Modified)
	assert.NoError(t, m.Err())
	assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
}

func TestUpdateError(t *testing.T) {
	m := New(context.Background(), nil)
	next, _ := m.Update(errorMsg{errors.New("boom")})
	m = next.(Model)
	assert.EqualError(t, m.Err(), "boom")
	assert.Contains(t, m.View(), "Error: boom")
}

func TestQuitCancelsRun(t *testing.T) {
	m := New(context.Background(), nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.ErrorIs(t, m.Err(), context.Canceled)
	assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
}

func TestStatusMessages(t *testing.T) {
	m := New(context.Background(), nil)
	next, cmd := m.Update(StatusMsg{Text: "--- Reading from clipboard ---"})
	assert.Nil(t, cmd)
	m = next.(Model)
	assert.Contains(t, m.View(), "Reading from clipboard")

	next, _ = m.Update(StatusMsg{Text: "Clipboard is empty. Nothing to process.", Warning: true})
	m = next.(Model)
	next, _ = m.Update(summaryMsg{model.Summary{Message: "No patch sets given. Nothing to do."}})
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "Clipboard is empty.")
	assert.Contains(t, view, "Nothing to do.")
	assert.NotContains(t, view, "Reading from clipboard")
}
