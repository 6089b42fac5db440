package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// newMarkdown builds the goldmark engine. Raw HTML is not passed through.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(wikiWordTransformer{}, 999)),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(codeBlockRenderer{}, 200)),
		),
	)
}

// wikiWordTransformer turns wiki words in text nodes into links. Text inside
// links, code spans and raw HTML is left alone.
type wikiWordTransformer struct{}

func (wikiWordTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	var texts []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink, ast.KindImage, ast.KindCodeSpan, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		}
		if t, ok := n.(*ast.Text); ok {
			texts = append(texts, t)
		}
		return ast.WalkContinue, nil
	})

	for _, t := range texts {
		linkWikiWords(t, source)
	}
}

// linkWikiWords splits t around each wiki word. The original node keeps the
// trailing text so its line break flags survive.
func linkWikiWords(t *ast.Text, source []byte) {
	seg := t.Segment
	value := seg.Value(source)
	matches := wikiWordPattern.FindAllIndex(value, -1)
	if len(matches) == 0 {
		return
	}

	parent := t.Parent()
	pos := 0
	for _, m := range matches {
		// Inline parsing may split a word across text nodes, so the
		// boundaries are checked against the whole source.
		if !isBoundary(source, seg.Start+m[0], seg.Start+m[1]) {
			continue
		}
		if m[0] > pos {
			parent.InsertBefore(parent, t, ast.NewTextSegment(text.NewSegment(seg.Start+pos, seg.Start+m[0])))
		}
		link := ast.NewLink()
		link.Destination = []byte(ViewPath(string(value[m[0]:m[1]])))
		link.AppendChild(link, ast.NewTextSegment(text.NewSegment(seg.Start+m[0], seg.Start+m[1])))
		parent.InsertBefore(parent, t, link)
		pos = m[1]
	}
	t.Segment = text.NewSegment(seg.Start+pos, seg.Stop)
}

// codeBlockRenderer highlights fenced code blocks with chroma.
type codeBlockRenderer struct{}

func (r codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	var lang string
	if n.Info != nil {
		lang = string(n.Language(source))
	}
	_, _ = w.WriteString(highlight(code.String(), lang))
	return ast.WalkSkipChildren, nil
}
