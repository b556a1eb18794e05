package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/mcpagent/internal/config"
)

var flagParseErrorTests = []struct {
	in     string
	flag   string
	reason string
}{
	{
		"unknown flag: --nope",
		"--nope",
		"Flag %s is missing.",
	},
	{
		"unknown shorthand flag: 'x' in -x",
		"-x",
		"Short flag %s is missing.",
	},
	{
		"flag needs an argument: --mcp-timeout",
		"--mcp-timeout",
		"Flag %s needs an argument.",
	},
	{
		"flag needs an argument: 'l' in -l",
		"-l",
		"Flag %s needs an argument.",
	},
	{
		`invalid argument "20dd" for "--chunk-delay" flag: time: unknown unit "dd" in duration "20dd"`,
		"--chunk-delay",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "lots" for "--max-iterations" flag: strconv.ParseInt: parsing "lots": invalid syntax`,
		"--max-iterations",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "nope" for "-r, --raw" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
		"-r, --raw",
		"Flag %s have an invalid argument.",
	},
}

func TestFlagParseError(t *testing.T) {
	for _, tf := range flagParseErrorTests {
		t.Run(tf.in, func(t *testing.T) {
			err := newFlagParseError(errors.New(tf.in))
			require.Equal(t, tf.flag, err.Flag())
			require.Equal(t, tf.reason, err.ReasonFormat())
			require.Equal(t, tf.in, err.Error())
		})
	}
}

func TestDurationFlag(t *testing.T) {
	var d time.Duration
	f := newDurationFlag(time.Second, &d)
	require.Equal(t, time.Second, d)
	require.Equal(t, "duration", f.Type())

	require.NoError(t, f.Set("1d"))
	require.Equal(t, 24*time.Hour, d)
	require.Equal(t, "24h0m0s", f.String())

	require.NoError(t, f.Set("250ms"))
	require.Equal(t, 250*time.Millisecond, d)

	require.Error(t, f.Set("soon"))
	require.Equal(t, 250*time.Millisecond, d)
}

func TestFlagsReachSettings(t *testing.T) {
	path := writeSettings(t, "")
	rt := &runtime{cfg: config.Default()}
	root := rt.rootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{
		"--config", path,
		"--model", "gpt-4o-mini",
		"--mcp-timeout", "2s",
		"--tool-collisions", "shadow",
		"--listen", "127.0.0.1:0",
		"--chunk-delay", "0s",
		"--max-iterations", "3",
	}))

	require.NoError(t, rt.prepare(serve, nil))
	require.NoError(t, rt.cfgErr)
	require.Equal(t, path, rt.cfg.SettingsPath)
	require.Equal(t, "gpt-4o-mini", rt.cfg.Model.Name)
	require.Equal(t, "deepseek", rt.cfg.Model.API)
	require.Equal(t, 2*time.Second, rt.cfg.MCPTimeout)
	require.Equal(t, "shadow", rt.cfg.Agent.ToolCollisions)
	require.Equal(t, "127.0.0.1:0", rt.cfg.Server.Listen)
	require.Equal(t, 3, rt.cfg.Agent.MaxIterations)
	require.Zero(t, rt.cfg.Agent.ChunkDelay)
}
