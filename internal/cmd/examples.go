package cmd

import (
	"maps"
	"math/rand/v2"
	"regexp"
	"slices"

	"github.com/dotcommander/mcpagent/internal/present"
)

var examples = map[string]string{
	"Ask a question the tools can answer": `mcpagent chat "what is AAPL trading at, and any news today?"`,
	"Feed a file into the prompt":         `cat portfolio.csv | mcpagent chat -q "which of these moved more than 5% this week?" | glow`,
	"Serve the websocket endpoint":        `mcpagent serve --listen :8000 --chunk-delay 20ms`,
	"See what the model can call":         `mcpagent tools --json | jq '.servers | keys'`,
}

func randomExample() string {
	keys := slices.Sorted(maps.Keys(examples))
	return keys[rand.IntN(len(keys))] //nolint:gosec
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	pipeRe   = regexp.MustCompile(`\|`)
)

func cheapHighlighting(s present.Styles, code string) string {
	code = quotedRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	return pipeRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Pipe.Render(x)
	})
}
