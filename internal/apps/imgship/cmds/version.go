package imgship

import (
	"fmt"

	"github.com/0xa1bed0/imgship/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of imgship",
		Long:  `Display the current version of imgship.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.Get())
		},
	}

	return cmd
}
