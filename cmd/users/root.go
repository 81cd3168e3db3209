package users

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/cmd/util"
)

var (
	apiClient *client.Client

	// UserCommands represents the users command group
	UserCommands = &cobra.Command{
		Use:               "users",
		Short:             "Manage users",
		PersistentPreRunE: setupClient,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists one page of users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apiClient.Users(cmd.Context(), viper.GetString("cursor"), viper.GetInt("limit"))
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(page)
			}
			for _, u := range page.Items {
				fmt.Printf("%-38s %s\n", u.ID, u.Name)
			}
			util.Next(page.Next)
			return nil
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := apiClient.CreateUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(user)
			}
			util.Success("created user %s", user.ID)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]...",
		Short: "Deletes one or more users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				deleted, err := apiClient.DeleteUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				util.Field("deleted", deleted)
				return nil
			}
			n, err := apiClient.DeleteUsers(cmd.Context(), args)
			if err != nil {
				return err
			}
			util.Field("deleted", n)
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(UserCommands)

	listCmd.Flags().String("cursor", "", util.WrapString("Cursor of the page to list (printed by the previous page)"))
	listCmd.Flags().Int("limit", 0, util.WrapString("Page size (default: server page size)"))

	UserCommands.AddCommand(listCmd)
	UserCommands.AddCommand(createCmd)
	UserCommands.AddCommand(deleteCmd)
}

func setupClient(cmd *cobra.Command, _ []string) (err error) {
	apiClient, err = util.NewClient(cmd)
	return err
}
