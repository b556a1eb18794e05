package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/config"
	"github.com/dotcommander/mcpagent/internal/errs"
)

const twoServers = `
log:
  level: error
  pretty: false
mcp-servers:
  finance:
    url: http://localhost:8001/sse
  files:
    command: npx
    args: ["-y", "server-filesystem", "/tmp"]
`

// writeSettings writes a settings file. An empty body lets Load create it
// from the template.
func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpagent.yml")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(BuildInfo{Version: "test"}, config.Default(), nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestServersCommand(t *testing.T) {
	path := writeSettings(t, twoServers)

	out, err := run(t, "", "--config", path, "--mcp-disable", "files", "servers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "files")
	require.Contains(t, lines[0], "stdio")
	require.Contains(t, lines[0], "npx -y server-filesystem /tmp")
	require.Contains(t, lines[0], "(disabled)")
	require.Contains(t, lines[1], "finance")
	require.Contains(t, lines[1], "sse")
	require.Contains(t, lines[1], "http://localhost:8001/sse")
	require.NotContains(t, lines[1], "(disabled)")
}

func TestCommandsWithoutServers(t *testing.T) {
	path := writeSettings(t, "log:\n  level: error\n")

	t.Run("servers", func(t *testing.T) {
		out, err := run(t, "", "--config", path, "servers")
		require.NoError(t, err)
		require.Contains(t, out, "No MCP servers configured.")
	})

	t.Run("tools", func(t *testing.T) {
		_, err := run(t, "", "--config", path, "tools", "--json")
		require.ErrorIs(t, err, catalog.ErrNoServers)
	})

	t.Run("chat", func(t *testing.T) {
		_, err := run(t, "", "--config", path, "chat", "what is AAPL at?")
		require.ErrorIs(t, err, catalog.ErrNoServers)
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, "No MCP servers configured.", e.Reason)
	})
}

func TestChatRequiresPrompt(t *testing.T) {
	path := writeSettings(t, twoServers)

	_, err := run(t, "  \n", "--config", path, "chat")
	var e errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "You haven't provided any prompt input.", e.Reason)
}

func TestInvalidSettings(t *testing.T) {
	path := writeSettings(t, twoServers)

	_, err := run(t, "", "--config", path, "--tool-collisions", "merge", "servers")
	var e errs.Error
	require.ErrorAs(t, err, &e)
	require.Contains(t, e.Reason, `Unknown tool-collisions policy "merge"`)

	// settings can still be inspected
	out, err := run(t, "", "--config", path, "--tool-collisions", "merge", "config", "dirs", "settings")
	require.NoError(t, err)
	require.Equal(t, path+"\n", out)
}

func TestConfigDirs(t *testing.T) {
	path := writeSettings(t, "")

	out, err := run(t, "", "--config", path, "config", "dirs", "config")
	require.NoError(t, err)
	require.Equal(t, filepath.Dir(path)+"\n", out)

	out, err = run(t, "", "--config", path, "config", "dirs")
	require.NoError(t, err)
	require.Contains(t, out, "Configuration: "+filepath.Dir(path))
	require.Contains(t, out, "Settings: "+path)

	_, err = run(t, "", "--config", path, "config", "dirs", "cache")
	require.Error(t, err)
}

func TestManPage(t *testing.T) {
	out, err := run(t, "", "man")
	require.NoError(t, err)
	require.Contains(t, out, ".TH")
	require.Contains(t, strings.ToLower(out), "mcpagent")
	require.Contains(t, out, "MCPAGENT_")
}

func TestUsage(t *testing.T) {
	out, err := run(t, "")
	require.NoError(t, err)
	require.Contains(t, out, "Commands:")
	for _, name := range []string{"serve", "chat", "tools", "servers", "config"} {
		require.Contains(t, out, name)
	}
	require.NotContains(t, out, "  man ")
	require.Contains(t, out, "--tool-collisions")
}

func TestReadPrompt(t *testing.T) {
	for name, tc := range map[string]struct {
		stdin string
		args  []string
		want  string
	}{
		"args only":  {args: []string{"what", "is", "AAPL"}, want: "what is AAPL"},
		"stdin only": {stdin: "AAPL,42\n", want: "AAPL,42"},
		"both":       {stdin: "AAPL,42\n", args: []string{"summarize"}, want: "summarize\n\nAAPL,42"},
		"blank":      {stdin: " \n", args: []string{" "}, want: ""},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := readPrompt(strings.NewReader(tc.stdin), tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Run("reason and details", func(t *testing.T) {
		var buf bytes.Buffer
		handleError(&buf, errs.Error{Err: errors.New("dial tcp: refused"), Reason: "Could not reach the model."})
		require.Contains(t, buf.String(), "Could not reach the model.")
		require.Contains(t, buf.String(), "dial tcp: refused")
	})

	t.Run("flag error", func(t *testing.T) {
		var buf bytes.Buffer
		handleError(&buf, newFlagParseError(errors.New("unknown flag: --nope")))
		require.Contains(t, buf.String(), "mcpagent -h")
		require.Contains(t, buf.String(), "--nope")
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		handleError(&buf, errors.New("boom"))
		require.Contains(t, buf.String(), "boom")
	})
}

func TestVersionTemplate(t *testing.T) {
	require.True(t, strings.HasPrefix(versionTemplate(BuildInfo{CommitSHA: "0123456789abcdef"}), "{{.Name}} {{.Version}} (0123456)"))
	require.True(t, strings.HasPrefix(versionTemplate(BuildInfo{CommitSHA: "abc"}), "{{.Name}} {{.Version}} go"))
	require.Equal(t, "v1.2.3", normalizeBuildInfo(BuildInfo{Version: "v1.2.3"}).Version)
}
