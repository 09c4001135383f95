package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUndoRedo(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Page.jsx")
	require.NoError(t, os.WriteFile(target, []byte("after"), 0o644))

	m, err := Open(root)
	require.NoError(t, err)

	entry, err := m.Record(map[string][2]string{target: {"before", "after"}})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	require.Len(t, entry.Operations, 1)

	ops := m.GetOperationsToUndo()
	require.Len(t, ops, 1)
	require.NoError(t, m.Undo(ops[0]))
	require.NoError(t, m.CommitUndo())
	assertContent(t, target, "before")

	// Nothing left to undo.
	assert.Empty(t, m.GetOperationsToUndo())

	ops = m.GetOperationsToRedo()
	require.Len(t, ops, 1)
	require.NoError(t, m.Redo(ops[0]))
	require.NoError(t, m.CommitRedo())
	assertContent(t, target, "after")
	assert.Empty(t, m.GetOperationsToRedo())
}

func TestUndoRefusesEditedFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Page.jsx")
	require.NoError(t, os.WriteFile(target, []byte("after"), 0o644))

	m, err := Open(root)
	require.NoError(t, err)
	_, err = m.Record(map[string][2]string{target: {"before", "after"}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("hand edited"), 0o644))

	ops := m.GetOperationsToUndo()
	err = m.Undo(ops[0])
	assert.ErrorIs(t, err, ErrConflict)
	assertContent(t, target, "hand edited")
}

func TestUndoRetriesAfterConflict(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Page.jsx")
	require.NoError(t, os.WriteFile(target, []byte("v3"), 0o644))

	m, err := Open(root)
	require.NoError(t, err)
	_, err = m.Record(map[string][2]string{target: {"v1", "v2"}})
	require.NoError(t, err)
	_, err = m.Record(map[string][2]string{target: {"v2", "v3"}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("edited"), 0o644))
	ops := m.GetOperationsToUndo()
	require.ErrorIs(t, m.Undo(ops[0]), ErrConflict)

	// The failed attempt leaves the pointer on the last entry.
	_, index := m.History()
	assert.Equal(t, 1, index)

	require.NoError(t, os.WriteFile(target, []byte("v3"), 0o644))
	ops = m.GetOperationsToUndo()
	require.NoError(t, m.Undo(ops[0]))
	require.NoError(t, m.CommitUndo())
	assertContent(t, target, "v2")

	_, index = m.History()
	assert.Equal(t, 0, index)
}

func TestUndoSkipsAlreadyRestoredFiles(t *testing.T) {
	root := t.TempDir()
	done := filepath.Join(root, "Done.jsx")
	require.NoError(t, os.WriteFile(done, []byte("before"), 0o644))

	m, err := Open(root)
	require.NoError(t, err)
	_, err = m.Record(map[string][2]string{done: {"before", "after"}})
	require.NoError(t, err)

	ops := m.GetOperationsToUndo()
	require.NoError(t, m.Undo(ops[0]))
	assertContent(t, done, "before")
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	root := t.TempDir()

	m, err := Open(root)
	require.NoError(t, err)
	first, err := m.Record(map[string][2]string{"/tmp/a": {"1", "2"}, "/tmp/b": {"3", "4"}})
	require.NoError(t, err)
	_, err = m.Record(map[string][2]string{"/tmp/a": {"2", "5"}})
	require.NoError(t, err)
	require.NoError(t, m.CommitUndo())

	reopened, err := Open(root)
	require.NoError(t, err)
	history, index := reopened.History()
	require.Len(t, history, 2)
	assert.Equal(t, 0, index)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, first.Timestamp, history[0].Timestamp)
	assert.Equal(t, first.Operations, history[0].Operations)

	// A new entry after an undo drops the redo tail.
	_, err = reopened.Record(map[string][2]string{"/tmp/c": {"x", "y"}})
	require.NoError(t, err)
	history, index = reopened.History()
	assert.Len(t, history, 2)
	assert.Equal(t, 1, index)
	assert.Equal(t, "/tmp/c", history[1].Operations[0].Path)
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, err := Open(t.TempDir())
	require.NoError(t, err)

	hash, err := m.Snapshot([]byte("content"))
	require.NoError(t, err)
	again, err := m.Snapshot([]byte("content"))
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	data, err := m.Object(hash)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	_, err = m.Object("deadbeef")
	assert.Error(t, err)
}

func TestLoadRejectsCorruptState(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, stateDirName), 0o755))

	for name, content := range map[string]string{
		"bad index":     "x\n",
		"bad header":    "0\n\n123\nmodify\n/a\nh1\nh2\n",
		"short record":  "0\n\n123 id\nmodify\n/a\nh1\n",
		"index too big": "3\n\n123 id\nmodify\n/a\nh1\nh2\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(root, stateDirName, stateFileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Open(root)
			assert.Error(t, err)
		})
	}
}

func assertContent(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}
