package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/api"
)

var sendCmd = &cobra.Command{
	Use:   "send <username> <message...>",
	Short: "Send a direct message from the command line",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, user, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		msg, err := client.SendMessage(ctx, api.SendRequest{
			Sender:   user.Username,
			Receiver: args[0],
			Content:  strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Sent message %d to %s\n", msg.ID, args[0])
		return nil
	},
}
