package metrics

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/cmd/util"
	"github.com/veridian-dash/veridian/lib/dash"
)

var (
	apiClient *client.Client

	// MetricCommands represents the metrics command group
	MetricCommands = &cobra.Command{
		Use:               "metrics",
		Short:             "Read dashboard metrics",
		PersistentPreRunE: setupClient,
	}

	platformCmd = &cobra.Command{
		Use:   "platform [name]",
		Short: "Prints the metric cards of one platform (Solana, Ethereum, BSC)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := apiClient.Metrics(cmd.Context(), dash.Platform(args[0]))
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(res)
			}
			printCards(res.Platform, res.Metrics)
			return nil
		},
	}
	allCmd = &cobra.Command{
		Use:   "all",
		Short: "Prints the metric cards of every platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := apiClient.AllMetrics(cmd.Context())
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(all)
			}
			for _, p := range all {
				printCards(p.Platform, p.Metrics)
				fmt.Println()
			}
			return nil
		},
	}
	regionalCmd = &cobra.Command{
		Use:   "regional",
		Short: "Prints the regional breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := apiClient.Regional(cmd.Context())
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(rows)
			}
			fmt.Printf("%-4s %-16s %16s %10s %10s\n", "CC", "Country", "Volume (USD)", "Speed", "Gas (USD)")
			for _, r := range rows {
				fmt.Printf("%-4s %-16s %16.0f %10.1f %10.4f\n", r.CountryCode, r.CountryName, r.PaymentVolume, r.TransactionSpeed, r.GasFee)
			}
			return nil
		},
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Prints the server status and store info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := apiClient.Health(cmd.Context())
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(health)
			}
			util.Success("status %s", health.Status)
			util.Field("store", health.Store.DbType)
			util.Field("entries", health.Store.Entries)
			util.Field("size", fmt.Sprintf("%d bytes", health.Store.SizeBytes))
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(MetricCommands)

	MetricCommands.AddCommand(platformCmd)
	MetricCommands.AddCommand(allCmd)
	MetricCommands.AddCommand(regionalCmd)
	MetricCommands.AddCommand(healthCmd)
}

func setupClient(cmd *cobra.Command, _ []string) (err error) {
	apiClient, err = util.NewClient(cmd)
	return err
}

func printCards(p dash.Platform, m dash.PlatformMetrics) {
	fmt.Println(p)
	for _, card := range []dash.Metric{m.PaymentVolume, m.TransactionSpeed, m.GasFees, m.ETFPrice} {
		util.Field(card.Label, fmt.Sprintf("%-12s %s", card.Value, card.Change))
	}
}
