package parser

import (
	"errors"
	"strings"

	"docchat/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var errBlank = errors.New("empty or blank content")

func extractText(data []byte) ([]models.Segment, error) {
	content := decodeText(data)
	if isBlank(content) {
		return nil, errBlank
	}
	return []models.Segment{{Text: content}}, nil
}

// extractMarkdown keeps the content verbatim and only uses the parsed tree
// to label the segment with the document's first heading.
func extractMarkdown(data []byte) ([]models.Segment, error) {
	content := decodeText(data)
	if isBlank(content) {
		return nil, errBlank
	}
	return []models.Segment{{Text: content, Source: markdownTitle([]byte(content))}}, nil
}

func markdownTitle(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		_ = ast.Walk(h, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
			if t, ok := c.(*ast.Text); ok && entering {
				b.Write(t.Segment.Value(src))
				if t.SoftLineBreak() {
					b.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		})
		title = strings.TrimSpace(b.String())
		return ast.WalkStop, nil
	})
	return title
}
