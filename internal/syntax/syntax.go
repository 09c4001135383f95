// Package syntax checks patched source files with tree-sitter so a patch
// that breaks the target's grammar is caught before it is written.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrSyntax is matched by every parse failure reported by Check.
var ErrSyntax = errors.New("syntax error")

// Error locates the first syntax error in a file.
type Error struct {
	Path   string
	Line   int
	Column int
	Node   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error near %s", e.Path, e.Line, e.Column, e.Node)
}

func (e *Error) Is(target error) bool {
	return target == ErrSyntax
}

// LanguageFor returns the grammar used for path, or nil when the extension
// is not checked.
func LanguageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	default:
		return nil
	}
}

// Check parses content with the grammar for path. Unsupported extensions
// are accepted without parsing.
func Check(ctx context.Context, path string, content []byte) error {
	lang := LanguageFor(path)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	point := bad.StartPoint()
	node := bad.Type()
	if bad.IsMissing() {
		node = "missing " + node
	}
	return &Error{
		Path:   path,
		Line:   int(point.Row) + 1,
		Column: int(point.Column) + 1,
		Node:   node,
	}
}

// firstError walks the tree depth first and returns the earliest ERROR or
// MISSING node.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}
