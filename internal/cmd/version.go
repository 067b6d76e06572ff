package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"ely.by/mcauth/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the mcauth version information",
	Run: func(cmd *cobra.Command, args []string) {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "<unknown>"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Version:    %s\n", version.Version())
		fmt.Fprintf(out, "Commit:     %s\n", version.Commit())
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Hostname:   %s\n", hostname)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
