package cmd

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

func newManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Print the mcpagent manual page",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manPage, err := mcobra.NewManPage(1, root)
			if err != nil {
				return fmt.Errorf("build man page: %w", err)
			}
			manPage = manPage.WithSection("Configuration", "Settings are read from ~/.config/mcpagent/mcpagent.yml.\n"+
				"Every key can be overridden with an MCPAGENT_ environment variable.")
			_, err = fmt.Fprint(cmd.OutOrStdout(), manPage.Build(roff.NewDocument()))
			if err != nil {
				return fmt.Errorf("write man page: %w", err)
			}
			return nil
		},
	}
}
