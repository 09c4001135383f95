package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/bpatch/internal/ui"
)

// Names given to patch documents that do not come from a file.
const (
	StdinName     = "stdin"
	ClipboardName = "clipboard"
)

// Document is raw patch set text together with where it came from.
type Document struct {
	Name string
	Data []byte
}

// Notify receives status messages about where input is read from.
type Notify func(msg string, warning bool)

func printNotice(msg string, warning bool) {
	if warning {
		ui.Warning("%s", msg)
		return
	}
	ui.Header("%s", msg)
}

// SourceProvider determines and retrieves patch set documents.
type SourceProvider struct {
	stdin         io.Reader
	stdinPiped    func() bool
	readClipboard func() (string, error)
	notify        Notify
}

// New creates a SourceProvider reading from the process stdin and the
// system clipboard. Status messages are printed through ui.
func New() *SourceProvider {
	return &SourceProvider{
		stdin:         os.Stdin,
		stdinPiped:    stdinIsPiped,
		readClipboard: clipboard.ReadAll,
		notify:        printNotice,
	}
}

// SetNotify replaces the receiver of status messages. A nil n drops them.
func (sp *SourceProvider) SetNotify(n Notify) {
	sp.notify = n
}

func (sp *SourceProvider) notice(msg string, warning bool) {
	if sp.notify != nil {
		sp.notify(msg, warning)
	}
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// Load reads the named documents; "-" means stdin. With no names it reads
// stdin if piped, else the clipboard. An empty clipboard yields no documents.
func (sp *SourceProvider) Load(names []string) ([]Document, error) {
	if len(names) == 0 {
		doc, err := sp.fallback()
		if err != nil || doc == nil {
			return nil, err
		}
		return []Document{*doc}, nil
	}

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		if name == "-" {
			data, err := sp.readStdin()
			if err != nil {
				return nil, err
			}
			docs = append(docs, Document{Name: StdinName, Data: data})
			continue
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read patch set: %w", err)
		}
		docs = append(docs, Document{Name: name, Data: data})
	}
	return docs, nil
}

func (sp *SourceProvider) fallback() (*Document, error) {
	if sp.stdinPiped() {
		sp.notice("--- Reading from stdin ---", false)
		data, err := sp.readStdin()
		if err != nil {
			return nil, err
		}
		return &Document{Name: StdinName, Data: data}, nil
	}

	sp.notice("--- Reading from clipboard ---", false)
	content, err := sp.readClipboard()
	if err != nil {
		return nil, fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		sp.notice("Clipboard is empty. Nothing to process.", true)
		return nil, nil
	}
	return &Document{Name: ClipboardName, Data: []byte(content)}, nil
}

func (sp *SourceProvider) readStdin() ([]byte, error) {
	data, err := io.ReadAll(sp.stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	return data, nil
}
