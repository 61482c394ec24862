package document

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	// ErrInvalidEncoding is returned for content that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("document is not valid UTF-8")
	// ErrEmptyDocument is returned when a document has no text content.
	ErrEmptyDocument = errors.New("document has no text content")
)

// Segmenter turns markdown into a structural tree using goldmark's AST.
type Segmenter struct {
	md goldmark.Markdown
}

// NewSegmenter creates a segmenter with GFM table support.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Segment parses content and builds the document tree. Headings nest by
// level, each table becomes a single leaf, and text before the first
// heading belongs to the document root.
func (s *Segmenter) Segment(source, title string, content []byte) (*Document, error) {
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}
	content = bytes.TrimPrefix(content, []byte("\uFEFF"))
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	root := &StructuralNode{Kind: KindDocument, Text: title}
	section := root

	addLeaf := func(kind NodeKind, txt string) {
		if txt = strings.TrimSpace(txt); txt != "" {
			section.appendChild(&StructuralNode{Kind: kind, Level: section.Level, Text: txt})
		}
	}

	doc := s.md.Parser().Parse(text.NewReader(content))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := inlineText(node, content)
			if headingText == "" {
				return ast.WalkSkipChildren, nil
			}
			// Pop sections of equal or deeper level
			parent := section
			for parent.Kind == KindHeading && parent.Level >= node.Level {
				parent = parent.Parent
			}
			h := &StructuralNode{Kind: KindHeading, Level: node.Level, Text: headingText}
			parent.appendChild(h)
			section = h
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.TextBlock:
			addLeaf(KindParagraph, inlineText(node, content))
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			addLeaf(KindListItem, listItemText(node, content))
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			addLeaf(KindParagraph, linesText(node, content))
			return ast.WalkSkipChildren, nil

		case *east.Table:
			addLeaf(KindTable, tableText(node, content))
			return ast.WalkSkipChildren, nil

		case *ast.HTMLBlock:
			// Converter placeholders such as <!-- image -->
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	d := &Document{
		ID:     NewID(source),
		Title:  title,
		Source: source,
		Root:   root,
	}
	if len(d.Leaves()) == 0 {
		return nil, ErrEmptyDocument
	}
	return d, nil
}

// inlineText extracts the text of a node's inline children.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(content))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// listItemText flattens a list item, including nested lists, one block per line.
func listItemText(item ast.Node, content []byte) string {
	var parts []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.List:
			for li := v.FirstChild(); li != nil; li = li.NextSibling() {
				if t := listItemText(li, content); t != "" {
					parts = append(parts, t)
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if t := linesText(v, content); t != "" {
				parts = append(parts, t)
			}
		default:
			if t := inlineText(v, content); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func linesText(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	return strings.TrimSpace(b.String())
}

// tableText renders a table one row per line with pipe-separated cells.
func tableText(table *east.Table, content []byte) string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		switch row.(type) {
		case *east.TableHeader, *east.TableRow:
		default:
			continue
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if _, ok := cell.(*east.TableCell); ok {
				cells = append(cells, inlineText(cell, content))
			}
		}
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}
