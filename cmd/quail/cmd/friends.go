package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/api"
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List and manage friends",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, _, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		friends, err := client.Friends(ctx)
		if err != nil {
			return err
		}
		if len(friends) == 0 {
			fmt.Println("No friends yet. Add one with: quail friends add <username>")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tNAME")
		for _, f := range friends {
			fmt.Fprintf(w, "%d\t%s\t%s\n", f.ID, f.Username, f.DisplayName())
		}
		return w.Flush()
	},
}

var friendsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a friend by username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, _, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		target, err := findUser(ctx, client, args[0])
		if err != nil {
			return err
		}
		if err := client.AddFriend(ctx, target.ID); err != nil {
			return err
		}
		fmt.Printf("Added %s to friends\n", target.Username)
		return nil
	},
}

var friendsRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove a friend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, user, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		target, err := findUser(ctx, client, args[0])
		if err != nil {
			return err
		}
		if err := client.RemoveFriend(ctx, target.ID, user.ID); err != nil {
			return err
		}
		fmt.Printf("Removed %s from friends\n", target.Username)
		return nil
	},
}

// findUser resolves a username against the backend user list.
func findUser(ctx context.Context, client *api.Client, name string) (api.User, error) {
	users, err := client.Users(ctx)
	if err != nil {
		return api.User{}, err
	}
	for _, u := range users {
		if u.Username == name {
			return u, nil
		}
	}
	return api.User{}, fmt.Errorf("no user named %q", name)
}

func init() {
	friendsCmd.AddCommand(friendsAddCmd)
	friendsCmd.AddCommand(friendsRemoveCmd)
}
