package present

import "github.com/charmbracelet/lipgloss"

// Styles is the shared palette of the command line surface.
type Styles struct {
	AppName      lipgloss.Style
	CliArgs      lipgloss.Style
	Comment      lipgloss.Style
	ErrorHeader  lipgloss.Style
	ErrorDetails lipgloss.Style
	ErrPadding   lipgloss.Style
	Flag         lipgloss.Style
	FlagComma    lipgloss.Style
	FlagDesc     lipgloss.Style
	InlineCode   lipgloss.Style
	Link         lipgloss.Style
	Pipe         lipgloss.Style
	Quote        lipgloss.Style
	Server       lipgloss.Style
	Tool         lipgloss.Style
	ToolOK       lipgloss.Style
	ToolFailed   lipgloss.Style
}

// MakeStyles builds the palette for r.
func MakeStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		AppName:      r.NewStyle().Bold(true),
		CliArgs:      r.NewStyle().Foreground(lipgloss.Color("#585858")),
		Comment:      r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#757575"}),
		ErrorHeader:  r.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#FF5F87")).Bold(true).Padding(0, 1).SetString("ERROR"),
		ErrorDetails: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#757575"}),
		ErrPadding:   r.NewStyle().Padding(0, 2),
		Flag:         r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true),
		FlagComma:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}).SetString(","),
		FlagDesc:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#59556E", Dark: "#9997AD"}),
		InlineCode:   r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Background(lipgloss.Color("#3A3A3A")).Padding(0, 1),
		Link:         r.NewStyle().Foreground(lipgloss.Color("#00AF87")).Underline(true),
		Pipe:         r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"}),
		Quote:        r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF71D0", Dark: "#FF78D2"}),
		Server:       r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"}),
		Tool:         r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}),
		ToolOK:       r.NewStyle().Foreground(lipgloss.Color("#00AF87")).SetString("✓"),
		ToolFailed:   r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).SetString("✗"),
	}
}
