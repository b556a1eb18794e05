package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/mcpagent/internal/present"
)

func useLine(cmd *cobra.Command) string {
	styles := present.StdoutStyles()
	name := cmd.CommandPath()
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		name = present.GradientText(styles.AppName, name)
	}

	args := "[OPTIONS]"
	if cmd.HasAvailableSubCommands() {
		args = "<COMMAND> [OPTIONS]"
	}
	if cmd.Use != cmd.Name() {
		args = strings.TrimSpace(cmd.Use[len(cmd.Name()):]) + " " + args
	}
	return fmt.Sprintf("%s %s", name, styles.CliArgs.Render(args))
}

func usageFunc(cmd *cobra.Command) error {
	styles := present.StdoutStyles()
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Usage:\n  %s\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\nCommands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(w, "  %-20s %s\n", styles.Flag.Render(sub.Name()), styles.FlagDesc.Render(sub.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintln(w, "\nOptions:")
		printFlags(w, styles, cmd.LocalFlags())
	}
	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintln(w, "\nGlobal options:")
		printFlags(w, styles, cmd.InheritedFlags())
	}

	if cmd.HasExample() {
		fmt.Fprintf(
			w,
			"\nExample:\n  %s\n  %s\n",
			styles.Comment.Render("# "+cmd.Example),
			cheapHighlighting(styles, examples[cmd.Example]),
		)
	}
	return nil
}

func printFlags(w io.Writer, styles present.Styles, flags *flag.FlagSet) {
	flags.VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Fprintf(
				w,
				"  %-44s %s\n",
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
			return
		}
		fmt.Fprintf(
			w,
			"  %s%s %-40s %s\n",
			styles.Flag.Render("-"+f.Shorthand),
			styles.FlagComma,
			styles.Flag.Render("--"+f.Name),
			styles.FlagDesc.Render(f.Usage),
		)
	})
}
