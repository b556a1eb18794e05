package present

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("AAPL is at\t**42.00**\n\n", 80)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.False(t, strings.HasSuffix(out, "\n\n"))
	require.NotContains(t, out, "\t")
	require.Contains(t, out, "42.00")
}
