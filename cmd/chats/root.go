package chats

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/cmd/util"
)

var (
	apiClient *client.Client

	// ChatCommands represents the chats command group
	ChatCommands = &cobra.Command{
		Use:               "chats",
		Short:             "Manage chats and their messages",
		PersistentPreRunE: setupClient,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists one page of chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apiClient.Chats(cmd.Context(), viper.GetString("cursor"), viper.GetInt("limit"))
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(page)
			}
			for _, c := range page.Items {
				fmt.Printf("%-38s %s\n", c.ID, c.Title)
			}
			util.Next(page.Next)
			return nil
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [title]",
		Short: "Creates a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chat, err := apiClient.CreateChat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(chat)
			}
			util.Success("created chat %s", chat.ID)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]...",
		Short: "Deletes one or more chats with all their messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				deleted, err := apiClient.DeleteChat(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				util.Field("deleted", deleted)
				return nil
			}
			n, err := apiClient.DeleteChats(cmd.Context(), args)
			if err != nil {
				return err
			}
			util.Field("deleted", n)
			return nil
		},
	}
	messagesCmd = &cobra.Command{
		Use:   "messages [chatId]",
		Short: "Prints the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := apiClient.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(msgs)
			}
			for _, m := range msgs {
				ts := time.UnixMilli(m.TS).Format(time.DateTime)
				fmt.Printf("[%s] %s: %s\n", ts, m.UserID, m.Text)
			}
			return nil
		},
	}
	sendCmd = &cobra.Command{
		Use:   "send [chatId] [userId] [text]",
		Short: "Appends a message to a chat",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := apiClient.SendMessage(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if util.JSONOutput() {
				return util.PrintJSON(msg)
			}
			util.Success("sent message %s", msg.ID)
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(ChatCommands)

	listCmd.Flags().String("cursor", "", util.WrapString("Cursor of the page to list (printed by the previous page)"))
	listCmd.Flags().Int("limit", 0, util.WrapString("Page size (default: server page size)"))

	ChatCommands.AddCommand(listCmd)
	ChatCommands.AddCommand(createCmd)
	ChatCommands.AddCommand(deleteCmd)
	ChatCommands.AddCommand(messagesCmd)
	ChatCommands.AddCommand(sendCmd)
}

func setupClient(cmd *cobra.Command, _ []string) (err error) {
	apiClient, err = util.NewClient(cmd)
	return err
}
