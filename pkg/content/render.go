package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/metrics"
)

type ImageMode int

const (
	ImageInline ImageMode = iota
	ImageFootnote
)

func (m ImageMode) String() string {
	switch m {
	case ImageInline:
		return "inline"
	case ImageFootnote:
		return "footnote"
	}
	return fmt.Sprintf("ImageMode(%d)", int(m))
}

func ParseImageMode(s string) (ImageMode, error) {
	switch strings.ToLower(s) {
	case "", "inline":
		return ImageInline, nil
	case "footnote":
		return ImageFootnote, nil
	}
	return 0, fmt.Errorf("unknown image mode %q", s)
}

// Renderer writes documents into XHTML elements.
type Renderer struct {
	Mode     ImageMode
	Resolver Resolver
	// ImageDir prefixes image references, e.g. "images/".
	ImageDir string
	Log      *zap.Logger
}

type renderState struct {
	index  int
	notes  []*etree.Element
	images []*ImageRef
}

// Render appends doc to parent and returns the images it references, in
// order. Images that cannot be resolved are left out.
func (r *Renderer) Render(ctx context.Context, parent *etree.Element, doc *Document) []*ImageRef {
	st := &renderState{}
	r.renderNodes(ctx, parent, doc.Nodes, st)
	for _, note := range st.notes {
		parent.AddChild(note)
	}
	return st.images
}

func (r *Renderer) renderNodes(ctx context.Context, parent *etree.Element, nodes []Node, st *renderState) {
	for _, n := range nodes {
		switch n := n.(type) {
		case Text:
			parent.CreateText(n.Value)
		case Image:
			r.renderImage(ctx, parent, n.Ref, st)
		case Group:
			p := parent.CreateElement("p")
			r.renderNodes(ctx, p, n.Children, st)
		}
	}
}

func (r *Renderer) renderImage(ctx context.Context, parent *etree.Element, ref *ImageRef, st *renderState) {
	if err := ref.Resolve(ctx, r.Resolver); err != nil {
		r.log().Warn("Dropping image", zap.String("uri", ref.URI), zap.Error(err))
		metrics.ImagesDropped.Inc()
		return
	}

	switch r.Mode {
	case ImageFootnote:
		id := fmt.Sprintf("img%d", st.index)
		a := parent.CreateElement("a")
		a.CreateAttr("href", "#"+id)
		a.CreateAttr("epub:type", "noteref")
		if ref.Alt != "" {
			a.SetText(ref.Alt)
		} else {
			a.SetText(ImagePlaceholder)
		}

		aside := etree.NewElement("aside")
		aside.CreateAttr("epub:type", "footnote")
		aside.CreateAttr("id", id)
		r.createImg(aside.CreateElement("p"), ref)
		st.notes = append(st.notes, aside)
	default:
		r.createImg(parent, ref)
	}

	st.index++
	st.images = append(st.images, ref)
}

func (r *Renderer) createImg(parent *etree.Element, ref *ImageRef) {
	img := parent.CreateElement("img")
	img.CreateAttr("src", r.ImageDir+ref.Filename())
	img.CreateAttr("alt", ref.Alt)
}

func (r *Renderer) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
