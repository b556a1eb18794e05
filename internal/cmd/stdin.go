package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/dotcommander/mcpagent/internal/present"
)

// readPrompt joins the arguments with whatever is piped on in. An
// interactive stdin is not read.
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if f, ok := in.(*os.File); ok && f == os.Stdin && present.IsInputTTY() {
		return prompt, nil
	}

	piped, err := io.ReadAll(in)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	input := strings.TrimSpace(string(piped))
	switch {
	case input == "":
		return prompt, nil
	case prompt == "":
		return input, nil
	default:
		return prompt + "\n\n" + input, nil
	}
}
