package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridian-dash/veridian/cmd/alerts"
	"github.com/veridian-dash/veridian/cmd/bench"
	"github.com/veridian-dash/veridian/cmd/chats"
	"github.com/veridian-dash/veridian/cmd/metrics"
	"github.com/veridian-dash/veridian/cmd/serve"
	"github.com/veridian-dash/veridian/cmd/users"
	"github.com/veridian-dash/veridian/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "veridian",
		Short: "cross-chain payment dashboard backend",
		Long: fmt.Sprintf(`veridian (v%s)

Backend of a cross-chain payment dashboard: users, chats and alert
configurations on a pluggable key-value store, plus generated metrics
for Solana, Ethereum and BSC.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of veridian",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("veridian v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(users.UserCommands)
	RootCmd.AddCommand(chats.ChatCommands)
	RootCmd.AddCommand(alerts.AlertCommands)
	RootCmd.AddCommand(metrics.MetricCommands)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	RootCmd.SilenceErrors = true
	if err := RootCmd.Execute(); err != nil {
		util.Failure("Error: %v", err)
		os.Exit(1)
	}
}
