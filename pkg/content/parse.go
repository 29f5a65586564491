package content

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var ErrUnsupportedMarkup = errors.New("unsupported markup")

// MarkupError locates an unsupported construct in chapter text.
type MarkupError struct {
	Line  int
	Token string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("line %d: unsupported markup %q", e.Line, e.Token)
}

func (e *MarkupError) Is(target error) bool { return target == ErrUnsupportedMarkup }

// Parse reads decrypted chapter text. Each line is a paragraph of plain text
// and <img src alt> references. A paragraph holding only one image becomes
// that image node, any other non-empty paragraph becomes a Group.
func Parse(text string) (*Document, error) {
	doc := &Document{}
	for i, line := range strings.Split(text, "\n") {
		nodes, err := parseLine(strings.TrimRight(line, "\r"))
		if err != nil {
			var me *MarkupError
			if errors.As(err, &me) {
				me.Line = i + 1
			}
			return nil, err
		}

		switch {
		case len(nodes) == 0:
		case len(nodes) == 1 && isImage(nodes[0]):
			doc.Nodes = append(doc.Nodes, nodes[0])
		default:
			doc.Nodes = append(doc.Nodes, Group{Children: nodes})
		}
	}
	return doc, nil
}

func isImage(n Node) bool {
	_, ok := n.(Image)
	return ok
}

func parseLine(line string) ([]Node, error) {
	var (
		nodes []Node
		text  strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(text.String()) != "" {
			nodes = append(nodes, Text{Value: text.String()})
		}
		text.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(line))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				flush()
				return nodes, nil
			}
			return nil, z.Err()

		case html.TextToken:
			text.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "img":
				ref := &ImageRef{}
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					switch string(key) {
					case "src":
						ref.URI = string(val)
					case "alt":
						ref.Alt = string(val)
					}
				}
				flush()
				nodes = append(nodes, Image{Ref: ref})
			case "p", "book":
			default:
				return nil, &MarkupError{Token: "<" + string(name) + ">"}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "book", "img":
			default:
				return nil, &MarkupError{Token: "</" + string(name) + ">"}
			}

		default:
			return nil, &MarkupError{Token: string(z.Raw())}
		}
	}
}
