package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParagraphs(t *testing.T) {
	doc, err := Parse("第一段\n\n第二段 &amp; 更多\r\n   \n")
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, Group{Children: []Node{Text{Value: "第一段"}}}, doc.Nodes[0])
	assert.Equal(t, Group{Children: []Node{Text{Value: "第二段 & 更多"}}}, doc.Nodes[1])
}

func TestParseSingleImageCollapses(t *testing.T) {
	doc, err := Parse(`<img src="http://example.com/a.png" alt="插图">`)
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 1)
	img, ok := doc.Nodes[0].(Image)
	require.True(t, ok, "expected an image node, got %T", doc.Nodes[0])
	assert.Equal(t, "http://example.com/a.png", img.Ref.URI)
	assert.Equal(t, "插图", img.Ref.Alt)
}

func TestParseMixedParagraph(t *testing.T) {
	doc, err := Parse(`前文<img src="a.png"/>后文<img src="b.png" alt="b">`)
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 1)
	group, ok := doc.Nodes[0].(Group)
	require.True(t, ok)
	require.Len(t, group.Children, 4)
	assert.Equal(t, Text{Value: "前文"}, group.Children[0])
	assert.Equal(t, "a.png", group.Children[1].(Image).Ref.URI)
	assert.Equal(t, Text{Value: "后文"}, group.Children[2])
	assert.Equal(t, "b", group.Children[3].(Image).Ref.Alt)

	assert.Len(t, doc.Images(), 2)
}

func TestParseAcceptsParagraphTags(t *testing.T) {
	doc, err := Parse("<book><p>text</p></book>")
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, Group{Children: []Node{Text{Value: "text"}}}, doc.Nodes[0])
}

func TestParseRejectsUnsupportedMarkup(t *testing.T) {
	for _, input := range []string{
		"ok\n<b>bold</b>",
		"<div>x</div>",
		"text</span>",
		"<!-- comment -->",
	} {
		_, err := Parse(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrUnsupportedMarkup), input)
	}

	_, err := Parse("ok\n<b>bold</b>")
	var me *MarkupError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 2, me.Line)
	assert.Equal(t, "<b>", me.Token)
}

func TestParseLessThanInText(t *testing.T) {
	doc, err := Parse("1 < 2")
	require.NoError(t, err)
	assert.Equal(t, Group{Children: []Node{Text{Value: "1 < 2"}}}, doc.Nodes[0])
}

func TestPlainText(t *testing.T) {
	doc, err := Parse("第一段\n<img src=\"a.png\">\n前<img src=\"b.png\" alt=\"图二\">后\n")
	require.NoError(t, err)

	assert.Equal(t, "第一段\n[图]\n前[图二]后", doc.PlainText())
}
