package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "kvlunge",
	Short:   "A load generator for key/value stores",
	Version: version,
	Long: `kvlunge drives configurable operation mixes against one or more
key/value stores (in-process maps, bounded LRU caches, Redis and etcd),
classifies every outcome and reports throughput, latency percentiles and
threshold verdicts.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.Main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(schemaCmd)
	RootCmd.AddCommand(inspectCmd)
}
