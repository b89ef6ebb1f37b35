package cmd

import (
	"github.com/spf13/cobra"

	"kyri56xcaesar/taskhub/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the taskhub API server",
	Long: `Starts the taskhub API server. Usage:

	taskhub server --config .env
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.InitAndServe(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
