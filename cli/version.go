package cli

import (
	"fmt"

	"github.com/lguibr/kamaelia/utils"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "axon %s\n", utils.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
