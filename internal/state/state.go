package state

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokinpui/bpatch/internal/fs"
)

const (
	stateDirName  = ".bpatch"
	stateFileName = "state.bpatch"
	objectsDir    = "objects"
)

// ActionModify is the only action recorded: a target rewritten in place.
const ActionModify = "modify"

// ErrConflict is returned when a file changed since the recorded operation.
var ErrConflict = errors.New("file changed since the recorded operation")

// Operation represents a single file rewrite.
type Operation struct {
	Path       string
	Action     string
	BeforeHash string // SHA256 of the content before the patch
	AfterHash  string // SHA256 of the content after the patch
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	ID         string
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file and the snapshot store.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates a state manager rooted at the git top-level, or the working
// directory outside a repository.
func New() (*Manager, error) {
	rootDir, err := findGitRoot()
	if err != nil {
		rootDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
	}
	return Open(rootDir)
}

// Open creates and loads a state manager whose state lives under rootDir.
func Open(rootDir string) (*Manager, error) {
	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// The state file is a sequence of blank-line separated blocks. The first
// block is the current index; each following block is a history entry:
//
//	<unix timestamp> <entry id>
//	<action>
//	<path>
//	<before hash>
//	<after hash>
//	...
func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not read state file: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		header := strings.Fields(lines[0])
		if len(header) != 2 {
			return fmt.Errorf("invalid state file: malformed entry header %q", lines[0])
		}
		ts, err := strconv.ParseInt(header[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", header[0], err)
		}

		entry := HistoryEntry{ID: header[1], Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record in entry %s", entry.ID)
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				Action:     opLines[i],
				Path:       opLines[i+1],
				BeforeHash: opLines[i+2],
				AfterHash:  opLines[i+3],
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if index < -1 || index >= len(m.state.History) {
		return fmt.Errorf("invalid state file: index %d out of range", index)
	}
	m.state.CurrentIndex = index
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		lines := []string{fmt.Sprintf("%d %s", entry.Timestamp, entry.ID)}
		for _, op := range entry.Operations {
			lines = append(lines, op.Action, op.Path, op.BeforeHash, op.AfterHash)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := fs.WriteFileAtomic(m.statePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	return nil
}

// Snapshot stores content in the object store and returns its hash.
func (m *Manager) Snapshot(content []byte) (string, error) {
	hash := fs.HashBytes(content)
	path := m.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := fs.WriteFileAtomic(path, content, 0o644); err != nil {
		return "", fmt.Errorf("could not store snapshot: %w", err)
	}
	return hash, nil
}

// Object returns the content stored under hash.
func (m *Manager) Object(hash string) ([]byte, error) {
	data, err := os.ReadFile(m.objectPath(hash))
	if err != nil {
		return nil, fmt.Errorf("missing snapshot %s: %w", hash, err)
	}
	return data, nil
}

func (m *Manager) objectPath(hash string) string {
	return filepath.Join(m.StateDir, objectsDir, hash)
}

// Record snapshots before/after contents of changed files and adds them to
// the history as one entry. Entries after the current index are dropped.
func (m *Manager) Record(changes map[string][2]string) (HistoryEntry, error) {
	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ops := make([]Operation, 0, len(paths))
	for _, p := range paths {
		before, err := m.Snapshot([]byte(changes[p][0]))
		if err != nil {
			return HistoryEntry{}, err
		}
		after, err := m.Snapshot([]byte(changes[p][1]))
		if err != nil {
			return HistoryEntry{}, err
		}
		ops = append(ops, Operation{Path: p, Action: ActionModify, BeforeHash: before, AfterHash: after})
	}
	return m.Write(ops)
}

// Write adds a new set of operations to the history.
func (m *Manager) Write(operations []Operation) (HistoryEntry, error) {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	entry := HistoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	}
	m.state.History = append(m.state.History, entry)
	m.state.CurrentIndex++
	return entry, m.save()
}

// GetOperationsToUndo returns the operations of the current entry. The
// history pointer stays put until CommitUndo.
func (m *Manager) GetOperationsToUndo() []Operation {
	if m.state.CurrentIndex < 0 {
		return nil
	}
	return m.state.History[m.state.CurrentIndex].Operations
}

// CommitUndo moves the history pointer back once the current entry has
// been fully restored.
func (m *Manager) CommitUndo() error {
	if m.state.CurrentIndex < 0 {
		return nil
	}
	m.state.CurrentIndex--
	return m.save()
}

// GetOperationsToRedo returns the operations of the next entry. The
// history pointer stays put until CommitRedo.
func (m *Manager) GetOperationsToRedo() []Operation {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil
	}
	return m.state.History[nextIndex].Operations
}

// CommitRedo moves the history pointer forward once the next entry has
// been fully reapplied.
func (m *Manager) CommitRedo() error {
	if m.state.CurrentIndex+1 >= len(m.state.History) {
		return nil
	}
	m.state.CurrentIndex++
	return m.save()
}

// History returns the recorded entries and the current index.
func (m *Manager) History() ([]HistoryEntry, int) {
	return m.state.History, m.state.CurrentIndex
}

// Undo restores the before content of op if the file still holds its
// after content.
func (m *Manager) Undo(op Operation) error {
	return m.swap(op.Path, op.AfterHash, op.BeforeHash)
}

// Redo restores the after content of op if the file still holds its
// before content.
func (m *Manager) Redo(op Operation) error {
	return m.swap(op.Path, op.BeforeHash, op.AfterHash)
}

func (m *Manager) swap(path, expectHash, targetHash string) error {
	current, err := fs.GetFileSHA256(path)
	if err != nil {
		return err
	}
	// Restored by an earlier, interrupted attempt.
	if current == targetHash {
		return nil
	}
	// Core safety check: never overwrite edits made after the operation.
	if current != expectHash {
		return fmt.Errorf("%s: %w", path, ErrConflict)
	}
	content, err := m.Object(targetHash)
	if err != nil {
		return err
	}
	return fs.WriteFileAtomic(path, content, fs.FileMode(path))
}
