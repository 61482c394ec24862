package document

import (
	"strings"

	"github.com/google/uuid"
)

// NodeKind identifies the structural role of a node.
type NodeKind string

const (
	KindDocument  NodeKind = "document"
	KindHeading   NodeKind = "heading"
	KindParagraph NodeKind = "paragraph"
	KindTable     NodeKind = "table"
	KindListItem  NodeKind = "list-item"
)

// BlockSeparator joins leaf texts in the document body.
const BlockSeparator = "\n\n"

// namespace seeds the deterministic document and chunk identifiers.
var namespace = uuid.MustParse("6f1c2b1e-3d4a-5b8c-9e7f-0a1b2c3d4e5f")

// Namespace returns the UUID namespace used for derived identifiers.
func Namespace() uuid.UUID {
	return namespace
}

// NewID returns the stable identifier of the document at the given
// corpus-relative source path.
func NewID(source string) string {
	return uuid.NewSHA1(namespace, []byte(source)).String()
}

// StructuralNode is one element of a document's heading tree.
// Headings own the nodes that follow them until a heading of the same or a
// higher level; paragraphs, tables and list items are leaves.
type StructuralNode struct {
	Kind     NodeKind
	Level    int // heading depth, 0 for the document root
	Text     string
	Parent   *StructuralNode
	Children []*StructuralNode
}

// IsLeaf reports whether the node carries body text.
func (n *StructuralNode) IsLeaf() bool {
	return n.Kind == KindParagraph || n.Kind == KindTable || n.Kind == KindListItem
}

// SectionPath returns the heading texts from the outermost section down to
// the one containing n. A heading's own text is the last element.
func (n *StructuralNode) SectionPath() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Kind == KindHeading {
			path = append(path, cur.Text)
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (n *StructuralNode) appendChild(child *StructuralNode) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Document is a parsed source document. It is immutable once segmented and
// replaced as a whole when the source is ingested again.
type Document struct {
	ID     string
	Title  string
	Source string // corpus-relative path
	Root   *StructuralNode
}

// Block is a leaf placed in the document body.
type Block struct {
	Node        *StructuralNode
	SectionPath []string
	Start       int // byte offset in the body
	End         int
}

// Leaves returns the leaf nodes in reading order.
func (d *Document) Leaves() []*StructuralNode {
	var leaves []*StructuralNode
	var walk func(n *StructuralNode)
	walk = func(n *StructuralNode) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if d.Root != nil {
		walk(d.Root)
	}
	return leaves
}

// Blocks lays the leaves out in the body and returns their offsets.
func (d *Document) Blocks() []Block {
	leaves := d.Leaves()
	blocks := make([]Block, 0, len(leaves))
	offset := 0
	for i, leaf := range leaves {
		if i > 0 {
			offset += len(BlockSeparator)
		}
		blocks = append(blocks, Block{
			Node:        leaf,
			SectionPath: leaf.SectionPath(),
			Start:       offset,
			End:         offset + len(leaf.Text),
		})
		offset += len(leaf.Text)
	}
	return blocks
}

// Body returns the document text that chunks are cut from.
func (d *Document) Body() string {
	leaves := d.Leaves()
	texts := make([]string, len(leaves))
	for i, leaf := range leaves {
		texts[i] = leaf.Text
	}
	return strings.Join(texts, BlockSeparator)
}
