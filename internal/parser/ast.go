package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind identifies the markdown constructs a patch document is built from.
type BlockKind int

const (
	KindHeading BlockKind = iota
	KindParagraph
	KindCode
	KindList
)

// Block is a top-level markdown block in document order.
type Block struct {
	Kind BlockKind
	// Line is the 1-based line the block starts on.
	Line int
	// Level is the heading level.
	Level int
	// Text is the raw heading or paragraph text, backticks included.
	Text string
	// Lang is the first word of a fenced block's info string (e.g. "old").
	Lang string
	// Attrs holds key=value pairs following Lang in the info string.
	Attrs map[string]string
	// Content is the verbatim body of a fenced block.
	Content string
	// Items are the raw texts of list items.
	Items []string
}

// ExtractBlocks uses a markdown AST to list headings, paragraphs, fenced
// code blocks and lists in the order they appear.
func ExtractBlocks(source []byte) ([]Block, error) {
	var blocks []Block
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			blocks = append(blocks, Block{
				Kind:  KindHeading,
				Line:  lineOf(n, source),
				Level: n.Level,
				Text:  rawText(n, source),
			})
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			blocks = append(blocks, Block{
				Kind: KindParagraph,
				Line: lineOf(n, source),
				Text: rawText(n, source),
			})
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			block := Block{Kind: KindCode, Line: lineOf(n, source)}
			if n.Info != nil {
				block.Lang, block.Attrs = parseInfo(string(n.Info.Segment.Value(source)))
			}

			var content bytes.Buffer
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				content.Write(line.Value(source))
			}
			// The fence's own line break is not part of the block.
			block.Content = strings.TrimSuffix(content.String(), "\n")
			blocks = append(blocks, block)
			return ast.WalkSkipChildren, nil

		case *ast.List:
			block := Block{Kind: KindList, Line: lineOf(n, source)}
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				var parts []string
				for child := item.FirstChild(); child != nil; child = child.NextSibling() {
					if t := rawText(child, source); t != "" {
						parts = append(parts, t)
					}
				}
				block.Items = append(block.Items, strings.Join(parts, " "))
			}
			blocks = append(blocks, block)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	return blocks, nil
}

// rawText joins the source lines of a block node, collapsing whitespace.
func rawText(n ast.Node, source []byte) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func lineOf(n ast.Node, source []byte) int {
	lines := n.Lines()
	if lines.Len() == 0 {
		return 0
	}
	return bytes.Count(source[:lines.At(0).Start], []byte("\n")) + 1
}

// parseInfo splits a fence info string like "old count=1" into its
// language word and attributes.
func parseInfo(info string) (string, map[string]string) {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return "", nil
	}
	var attrs map[string]string
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[key] = value
	}
	return strings.ToLower(fields[0]), attrs
}
