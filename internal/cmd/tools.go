package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/mcp"
	"github.com/dotcommander/mcpagent/internal/present"
)

func newToolsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover and list the tools of the enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			cat, err := rt.discover(cmd.Context(), rt.logger(), nil)
			if err != nil {
				return err
			}
			defer cat.Close() //nolint:errcheck

			if rt.cfg.JSON {
				return printReportJSON(cmd.OutOrStdout(), cat.Report())
			}
			printReport(cmd.OutOrStdout(), present.StdoutStyles(), cat.Report())
			return nil
		},
	}
	cmd.Flags().BoolVar(&rt.flags.json, "json", false, flagUsage("json"))
	return cmd
}

func newServersCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List the configured MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			printServers(cmd.OutOrStdout(), present.StdoutStyles(), rt)
			return nil
		},
	}
}

func printReportJSON(w io.Writer, report catalog.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func printReport(w io.Writer, s present.Styles, report catalog.Report) {
	for _, name := range slices.Sorted(maps.Keys(report.Servers)) {
		info := report.Servers[name]
		if info.Error != "" {
			fmt.Fprintf(w, "%s %s %s\n", s.Server.Render(name), s.ToolFailed.String(), s.Comment.Render(info.Error))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", s.Server.Render(name), s.Comment.Render(fmt.Sprintf("(%d tools)", info.ToolCount)))
		for _, tool := range info.Tools {
			fmt.Fprintf(w, "  %s %s\n", s.Tool.Render(tool.Name), s.Comment.Render(firstLine(tool.Description)))
			for _, param := range slices.Sorted(maps.Keys(tool.Parameters)) {
				label := param
				if slices.Contains(tool.Required, param) {
					label += "*"
				}
				fmt.Fprintf(w, "    %s\n", s.Flag.Render(label))
			}
		}
	}
	fmt.Fprintf(w, "\n%s\n", s.Comment.Render(fmt.Sprintf("%d tools from %d servers", report.TotalTools, report.ServerCount)))
}

func printServers(w io.Writer, s present.Styles, rt *runtime) {
	if len(rt.cfg.MCPServers) == 0 {
		fmt.Fprintln(w, s.Comment.Render("No MCP servers configured."))
		return
	}
	svc := mcp.New(&rt.cfg, rt.logger())
	defer svc.Close() //nolint:errcheck
	for _, name := range slices.Sorted(maps.Keys(rt.cfg.MCPServers)) {
		server := rt.cfg.MCPServers[name]
		target := server.URL
		if target == "" {
			target = strings.TrimSpace(server.Command + " " + strings.Join(server.Args, " "))
		}
		status := ""
		if !svc.IsEnabled(name) {
			status = " " + s.Comment.Render("(disabled)")
		}
		fmt.Fprintf(w, "%s %s %s%s\n", s.Server.Render(name), s.Flag.Render(mcp.TransportOf(server)), s.Comment.Render(target), status)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
