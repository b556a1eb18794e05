package agent

import (
	"fmt"
	"time"
)

const promptTemplate = `You are a helpful assistant that can call MCP tools to complete the user's tasks.

Current date:
Today is %s (%s).

Guidelines:
1. Analyse what the user needs before acting.
2. Pick the tools that fit the task.
3. Explain clearly what you did and what came out of it.
4. When something goes wrong, suggest a concrete way forward.

Stay focused on the user's request and use the available tools efficiently.`

// DefaultSystemPrompt returns the system prompt used when none is configured.
func DefaultSystemPrompt(now time.Time) string {
	return fmt.Sprintf(promptTemplate, now.Format("2006-01-02"), now.Weekday())
}
