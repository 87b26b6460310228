package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the planstore release.
const Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/planstore"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the planstore version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "planstore v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
