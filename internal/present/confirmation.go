package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var actionHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#6C50FF")).Bold(true).Padding(0, 1).MarginRight(1)

// PrintConfirmation writes a short action badge followed by content, as in
// "WROTE ~/.config/mcpagent/mcpagent.yml".
func PrintConfirmation(w io.Writer, action, content string) {
	badge := actionHeader.SetString(strings.ToUpper(action)).String()
	_, _ = fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Center, badge, content))
}
