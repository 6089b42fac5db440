package render

import (
	"errors"
	"html"
	"io"
	"log"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/niklasfasching/go-org/org"
)

var errIncludeDisabled = errors.New("file includes are disabled")

// orgPolicy strips anything the org writer lets through that a browser would
// execute, such as javascript: links. Classes stay for chroma and go-org.
var orgPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.RequireNoFollowOnLinks(false)
	return p
}()

// newOrgConfig returns a parser configuration that never touches the file
// system: #+INCLUDE and #+SETUPFILE resolve to nothing.
func newOrgConfig() *org.Configuration {
	conf := org.New()
	conf.ReadFile = func(string) ([]byte, error) { return nil, errIncludeDisabled }
	conf.Log = log.New(io.Discard, "", 0)
	return conf
}

// renderOrg converts org markup to sanitized HTML.
func renderOrg(markup string) (string, error) {
	out, err := newOrgConfig().Parse(strings.NewReader(markup), "").Write(newOrgWriter())
	if err != nil {
		return "", err
	}
	return orgPolicy.Sanitize(out), nil
}

// orgWriter is an org HTML writer that links wiki words and highlights
// source blocks with chroma. HTML export content is shown as text.
type orgWriter struct {
	*org.HTMLWriter
	inLink bool
}

func newOrgWriter() *orgWriter {
	w := &orgWriter{HTMLWriter: org.NewHTMLWriter()}
	w.ExtendingWriter = w
	w.HighlightCodeBlock = func(source, lang string, inline bool, params map[string]string) string {
		return highlight(source, lang)
	}
	return w
}

func (w *orgWriter) WriteText(t org.Text) {
	if t.IsRaw || w.inLink {
		w.HTMLWriter.WriteText(t)
		return
	}

	content := []byte(t.Content)
	pos := 0
	for _, m := range wikiWordIndexes(content) {
		if m[0] > pos {
			w.HTMLWriter.WriteText(org.Text{Content: t.Content[pos:m[0]]})
		}
		word := t.Content[m[0]:m[1]]
		w.WriteString(`<a href="` + ViewPath(word) + `">` + word + `</a>`)
		pos = m[1]
	}
	if pos < len(t.Content) {
		w.HTMLWriter.WriteText(org.Text{Content: t.Content[pos:]})
	}
}

func (w *orgWriter) WriteRegularLink(l org.RegularLink) {
	w.inLink = true
	defer func() { w.inLink = false }()
	w.HTMLWriter.WriteRegularLink(l)
}

func (w *orgWriter) WriteBlock(b org.Block) {
	if b.Name == "EXPORT" && isHTMLExport(b.Parameters) {
		w.writeExportText(org.String(b.Children...))
		return
	}
	w.HTMLWriter.WriteBlock(b)
}

func (w *orgWriter) WriteInlineBlock(b org.InlineBlock) {
	if b.Name == "export" && isHTMLExport(b.Parameters) {
		w.WriteString(`<code>` + html.EscapeString(org.String(b.Children...)) + `</code>`)
		return
	}
	w.HTMLWriter.WriteInlineBlock(b)
}

func (w *orgWriter) WriteKeyword(k org.Keyword) {
	if k.Key == "HTML" {
		w.writeExportText(k.Value)
		return
	}
	w.HTMLWriter.WriteKeyword(k)
}

func (w *orgWriter) writeExportText(s string) {
	w.WriteString(`<pre class="example">` + "\n" + html.EscapeString(strings.TrimSpace(s)) + "\n</pre>\n")
}

func isHTMLExport(params []string) bool {
	return len(params) >= 1 && strings.EqualFold(params[0], "html")
}
