package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/config"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/present"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Allow opening settings even when config parsing failed.
			return editSettings(&rt.cfg)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return editSettings(&rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults, keeping a backup",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return resetSettings(&rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs [config|settings]",
		Short:     "Print the settings location",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "settings"},
		RunE: func(cmd *cobra.Command, args []string) error {
			printDirs(cmd.OutOrStdout(), &rt.cfg, args)
			return nil
		},
	})

	return configCmd
}

func editSettings(cfg *config.Config) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	c, err := editor.Cmd("mcpagent", cfg.SettingsPath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not edit your settings file."}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Error{Err: err, Reason: fmt.Sprintf(
			"Missing %s.",
			present.StderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}

	if !cfg.Quiet {
		present.PrintConfirmation(os.Stderr, "saved", cfg.SettingsPath)
	}
	return nil
}

func resetSettings(cfg *config.Config) error {
	backup := cfg.SettingsPath + ".bak"
	if err := copyFile(cfg.SettingsPath, backup); err != nil {
		return err
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't remove config file."}
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't write new config file."}
	}

	if !cfg.Quiet {
		present.PrintConfirmation(os.Stderr, "reset", cfg.SettingsPath)
		fmt.Fprintf(
			os.Stderr,
			"\n  %s %s\n\n",
			present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
			present.StderrStyles().Link.Render(backup),
		)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.Error{Err: err, Reason: "Couldn't open config file."}
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return errs.Error{Err: err, Reason: "Couldn't backup config file."}
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't write config backup."}
	}
	return nil
}

func printDirs(w io.Writer, cfg *config.Config, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			fmt.Fprintln(w, filepath.Dir(cfg.SettingsPath))
		case "settings":
			fmt.Fprintln(w, cfg.SettingsPath)
		}
		return
	}

	fmt.Fprintf(w, "Configuration: %s\n", filepath.Dir(cfg.SettingsPath))
	//nolint:mnd
	fmt.Fprintf(w, "%*sSettings: %s\n", 5, " ", cfg.SettingsPath)
}
