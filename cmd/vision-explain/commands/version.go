package commands

import (
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("vision-explain %s\n", g.build.Version)
			cmd.Printf("  Build time: %s\n", g.build.BuildTime)
			cmd.Printf("  Git commit: %s\n", g.build.GitCommit)
			cmd.Printf("  Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
