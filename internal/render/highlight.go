package render

import (
	"bytes"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlight renders source as a chroma code block using CSS classes. Unknown
// languages fall back to plain text; errors fall back to an escaped <pre>.
func highlight(source, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return plainCodeBlock(source)
	}

	var b bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.Format(&b, styles.Get("friendly"), iterator); err != nil {
		return plainCodeBlock(source)
	}
	return b.String()
}

func plainCodeBlock(source string) string {
	return "<pre><code>" + html.EscapeString(source) + "</code></pre>\n"
}
