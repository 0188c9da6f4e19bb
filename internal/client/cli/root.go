package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sharecore",
		Short:         "Team password sharing client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		a.keysCmd(),
		a.shareCmd(),
		a.groupCmd(),
	)
	return root
}
