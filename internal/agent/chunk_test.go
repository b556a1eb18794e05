package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	for name, tc := range map[string]struct {
		in       string
		size     int
		expected []string
	}{
		"empty":         {"", 10, nil},
		"shorter":       {"short", 10, []string{"short"}},
		"exact":         {"0123456789", 10, []string{"0123456789"}},
		"remainder":     {"0123456789abc", 10, []string{"0123456789", "abc"}},
		"runes":         {"héllo wörld ✓✓", 5, []string{"héllo", " wörl", "d ✓✓"}},
		"cjk":           {"你好世界你好", 4, []string{"你好世界", "你好"}},
		"size defaults": {strings.Repeat("a", 11), 0, []string{strings.Repeat("a", 10), "a"}},
	} {
		t.Run(name, func(t *testing.T) {
			got := Chunks(tc.in, tc.size)
			require.Equal(t, tc.expected, got)
			require.Equal(t, tc.in, strings.Join(got, ""))
		})
	}
}
