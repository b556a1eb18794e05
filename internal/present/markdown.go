package present

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
)

const markdownTabWidth = 4

// RenderMarkdown renders an answer for terminal output. Trailing whitespace
// is trimmed and tabs are expanded so the result lines up in any pager.
func RenderMarkdown(input string, wordWrap int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", fmt.Errorf("new markdown renderer: %w", err)
	}

	out, err := r.Render(input)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.ReplaceAll(out, "\t", strings.Repeat(" ", markdownTabWidth))
	return out + "\n", nil
}
