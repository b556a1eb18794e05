package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/config"
	"github.com/dotcommander/mcpagent/internal/present"
)

var helpText = map[string]string{
	"config":          "Settings file to use instead of the default one",
	"quiet":           "Only print the answer, no progress",
	"log-level":       "Log level: debug, info, warn or error",
	"api":             "Model API to use (openai, anthropic, google, openrouter or an openai-compatible name)",
	"model":           "Model to use",
	"mcp-timeout":     "Deadline of one tool listing or call",
	"mcp-disable":     "Disable an MCP server, * disables all",
	"tool-collisions": "What to do when servers expose the same tool name: namespace, reject or shadow",
	"listen":          "Address to serve on",
	"max-iterations":  "Maximum model rounds per conversation",
	"chunk-delay":     "Pause between two streamed answer chunks",
	"raw":             "Print the answer as it streams, without markdown rendering",
	"word-wrap":       "Wrap rendered answers at this width",
	"json":            "Print JSON",
}

func flagUsage(name string) string {
	return present.StdoutStyles().FlagDesc.Render(helpText[name])
}

func initRootFlags(cmd *cobra.Command, o *overrides) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", flagUsage("config"))
	flags.BoolVarP(&o.quiet, "quiet", "q", false, flagUsage("quiet"))
	flags.StringVar(&o.logLevel, "log-level", "", flagUsage("log-level"))
	flags.StringVarP(&o.api, "api", "a", "", flagUsage("api"))
	flags.StringVarP(&o.model, "model", "m", "", flagUsage("model"))
	flags.Var(newDurationFlag(0, &o.mcpTimeout), "mcp-timeout", flagUsage("mcp-timeout"))
	flags.StringArrayVar(&o.mcpDisable, "mcp-disable", nil, flagUsage("mcp-disable"))
	flags.StringVar(&o.collisions, "tool-collisions", "", flagUsage("tool-collisions"))
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("tool-collisions", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{config.CollisionNamespace, config.CollisionReject, config.CollisionShadow}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// flagParseError is a flag error with a user-facing reason. ReasonFormat
// has one %s for the flag name.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

var (
	flagNameRe     = regexp.MustCompile(`-{1,2}[\w-]+$`)
	invalidValueRe = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
)

func newFlagParseError(err error) flagParseError {
	s := err.Error()
	var reason, flag string
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		reason = "Flag %s needs an argument."
		flag = flagNameRe.FindString(s)
	case strings.HasPrefix(s, "unknown flag:"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		reason = "Short flag %s is missing."
		flag = flagNameRe.FindString(s)
	case strings.HasPrefix(s, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		if m := invalidValueRe.FindStringSubmatch(s); len(m) > 1 {
			flag = m[1]
		}
	default:
		reason = "%s"
		flag = s
	}
	return flagParseError{err: err, reason: reason, flag: flag}
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}

// durationFlag accepts day units ("1d") on top of time.ParseDuration.
type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	if err != nil {
		return err //nolint:wrapcheck
	}
	*d = durationFlag(v)
	return nil
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
