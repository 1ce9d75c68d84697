package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-fidelity/internal/engine"
)

// Version is set at build time
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tool and rendering engine versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		id := engine.NewFitz().Identity()
		fmt.Fprintf(cmd.OutOrStdout(), "pdf-fidelity %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "engine %s %s (%s)\n", id.Name, id.Version, id.Checksum)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
