package cmd

import (
	"time"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/config"
	"github.com/dotcommander/mcpagent/internal/logger"
)

// overrides holds flag values applied on top of the loaded settings.
type overrides struct {
	configPath string
	quiet      bool
	logLevel   string
	api        string
	model      string
	mcpTimeout time.Duration
	mcpDisable []string
	collisions string

	listen        string
	maxIterations int
	chunkDelay    time.Duration
	raw           bool
	wordWrap      int
	json          bool
}

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
	flags  overrides
}

// NewRootCmd constructs the Cobra root command. cfg and cfgErr are the
// settings loaded from the default location; --config replaces them.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}
	return rt.rootCmd()
}

func (rt *runtime) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "mcpagent",
		Short:             "Answer questions with tools from MCP servers.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Example:           randomExample(),
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.prepare,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.flags)

	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newChatCmd(rt))
	rootCmd.AddCommand(newToolsCmd(rt))
	rootCmd.AddCommand(newServersCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))

	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

// prepare reloads the settings when --config is given and applies the flag
// overrides.
func (rt *runtime) prepare(cmd *cobra.Command, _ []string) error {
	if rt.flags.configPath != "" {
		rt.cfg, rt.cfgErr = config.Load(rt.flags.configPath)
	}

	o := rt.flags
	rt.cfg.Quiet = o.quiet
	rt.cfg.JSON = o.json
	rt.cfg.Log.Level = ordered.First(o.logLevel, rt.cfg.Log.Level)
	rt.cfg.Model.API = ordered.First(o.api, rt.cfg.Model.API)
	rt.cfg.Model.Name = ordered.First(o.model, rt.cfg.Model.Name)
	rt.cfg.MCPTimeout = ordered.First(o.mcpTimeout, rt.cfg.MCPTimeout)
	rt.cfg.MCPDisable = append(rt.cfg.MCPDisable, o.mcpDisable...)
	rt.cfg.Agent.ToolCollisions = ordered.First(o.collisions, rt.cfg.Agent.ToolCollisions)
	rt.cfg.Server.Listen = ordered.First(o.listen, rt.cfg.Server.Listen)
	rt.cfg.Agent.MaxIterations = ordered.First(o.maxIterations, rt.cfg.Agent.MaxIterations)
	if f := cmd.Flags().Lookup("chunk-delay"); f != nil && f.Changed {
		rt.cfg.Agent.ChunkDelay = o.chunkDelay
	}

	// Commands that need working settings return cfgErr; config edit and
	// reset still run so a broken file can be fixed.
	if rt.cfgErr == nil {
		rt.cfgErr = rt.cfg.Validate()
	}
	return nil
}

func (rt *runtime) logger() zerolog.Logger {
	return logger.New(logger.Config{Level: rt.cfg.Log.Level, Pretty: rt.cfg.Log.Pretty})
}
