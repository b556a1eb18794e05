package present

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	gradientFrom = "#3EEFCF"
	gradientTo   = "#745CFF"
)

// gradientRamp blends n colors from gradientFrom to gradientTo.
func gradientRamp(n int) []lipgloss.Color {
	from, _ := colorful.Hex(gradientFrom)
	to, _ := colorful.Hex(gradientTo)
	ramp := make([]lipgloss.Color, n)
	for i := range ramp {
		ramp[i] = lipgloss.Color(from.BlendLuv(to, float64(i)/float64(n)).Hex())
	}
	return ramp
}

// GradientText colors s rune by rune. Strings shorter than three runes are
// returned unchanged.
func GradientText(base lipgloss.Style, s string) string {
	runes := []rune(s)
	if len(runes) < 3 {
		return s
	}
	var b strings.Builder
	for i, c := range gradientRamp(len(runes)) {
		b.WriteString(base.Foreground(c).Render(string(runes[i])))
	}
	return b.String()
}
