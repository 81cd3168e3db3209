package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/cmd/util"
	"github.com/veridian-dash/veridian/lib/dash"
)

var (
	apiClient *client.Client

	// AlertCommands represents the alerts command group
	AlertCommands = &cobra.Command{
		Use:               "alerts",
		Short:             "Read and replace alert configurations",
		PersistentPreRunE: setupClient,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Prints the saved alert configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := apiClient.Alerts(cmd.Context())
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(configs)
			}
			for _, c := range configs {
				state := "off"
				if c.IsEnabled {
					state = "on"
				}
				fmt.Printf("%-12s %-3s %-9s %-16s %-5s %-12g %s\n",
					c.ID, state, c.Platform, c.Metric, c.Condition, c.Threshold, joinChannels(c.Channels))
			}
			return nil
		},
	}
	saveCmd = &cobra.Command{
		Use:   "save [file]",
		Short: "Replaces all alert configurations with the JSON array in file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := readConfigs(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.SaveAlerts(cmd.Context(), configs); err != nil {
				return err
			}
			util.Success("saved %d alert configurations", len(configs))
			return nil
		},
	}
	triggeredCmd = &cobra.Command{
		Use:   "triggered",
		Short: "Prints recently triggered alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := apiClient.Triggered(cmd.Context())
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(alerts)
			}
			for _, a := range alerts {
				fmt.Printf("%s  %-9s %s\n", a.Timestamp, a.Platform, a.Message)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(AlertCommands)

	AlertCommands.AddCommand(listCmd)
	AlertCommands.AddCommand(saveCmd)
	AlertCommands.AddCommand(triggeredCmd)
}

func setupClient(cmd *cobra.Command, _ []string) (err error) {
	apiClient, err = util.NewClient(cmd)
	return err
}

// readConfigs reads the JSON array from path. Unknown fields are an error so that typos
// do not silently drop settings.
func readConfigs(path string) ([]dash.AlertConfiguration, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var configs []dash.AlertConfiguration
	if err := dec.Decode(&configs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return configs, nil
}

func joinChannels(channels []dash.AlertChannel) string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}
