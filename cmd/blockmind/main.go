package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/blockmindJS/blockmind/internal/classifier"
	"github.com/blockmindJS/blockmind/internal/readme"
)

func init() {
	cobra.EnablePrefixMatching = true
	version = resolveVersion(version)
}

// resolveVersion uses debug.ReadBuildInfo to replace "dev" with the actual
// module version when installed via `go install`.
var resolveVersion = func(v string) string {
	if v != "dev" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return v
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var osExit = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "blockmind",
		Short:        "Chat command bot for Minecraft servers",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newOnboardCmd())
	root.AddCommand(newHostsCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newReadmeCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "blockmind %s\n", version)
			if commit != "none" {
				fmt.Fprintf(out, "  commit: %s\n", commit)
			}
			if date != "unknown" {
				fmt.Fprintf(out, "  built:  %s\n", date)
			}
		},
	}
}

func newHostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List servers with a known chat dialect",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, h := range classifier.Hosts() {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
		},
	}
}

func newReadmeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "readme",
		Aliases: []string{"r"},
		Short:   "Print the README documentation",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), readme.Content)
		},
	}
}
