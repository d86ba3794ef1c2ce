// ABOUTME: Markdown-to-HTML rendering for the publish stage.
// ABOUTME: Generated article bodies are Markdown; the feed and broadcast carry rendered HTML too.

package pipeline

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// renderHTML converts the draft's Markdown article body to HTML. Rendering
// is best-effort: on failure the HTML field is simply left empty.
func renderHTML(markdown string) string {
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return buf.String()
}
