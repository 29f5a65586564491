// Package content turns decrypted chapter text into a small node tree and
// renders it as XHTML.
package content

import "strings"

// Node is one of Text, Image or Group.
type Node interface {
	node()
}

type Text struct {
	Value string
}

type Image struct {
	Ref *ImageRef
}

// Group is a paragraph mixing text and images.
type Group struct {
	Children []Node
}

func (Text) node()  {}
func (Image) node() {}
func (Group) node() {}

// Document is a parsed chapter body.
type Document struct {
	Nodes []Node
}

// Images returns the image references of the document in order.
func (d *Document) Images() []*ImageRef {
	var refs []*ImageRef
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case Image:
				refs = append(refs, n.Ref)
			case Group:
				walk(n.Children)
			}
		}
	}
	walk(d.Nodes)
	return refs
}

// ImagePlaceholder stands in for an image without alt text in plain output.
const ImagePlaceholder = "[图]"

// PlainText renders the document as lines of text. Images become their alt
// text in brackets.
func (d *Document) PlainText() string {
	var b strings.Builder
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case Text:
				b.WriteString(n.Value)
			case Image:
				if n.Ref.Alt != "" {
					b.WriteString("[" + n.Ref.Alt + "]")
				} else {
					b.WriteString(ImagePlaceholder)
				}
			case Group:
				walk(n.Children)
			}
		}
	}
	for i, n := range d.Nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		walk([]Node{n})
	}
	return b.String()
}
