package export

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdownInstance is initialized once and reused. The converter
// configuration never changes and goldmark.Markdown is safe to share.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
		)
	})
	return markdownInstance
}

// MarkdownToHTML converts a markdown note body to HTML
func MarkdownToHTML(body string) (string, error) {
	if body == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
