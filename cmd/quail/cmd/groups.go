package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List and manage group chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, user, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		groups, err := client.Groups(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
		for _, g := range groups {
			if !g.HasMember(user) {
				continue
			}
			names := make([]string, 0, len(g.Members))
			for _, m := range g.Members {
				names = append(names, m.Username)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", g.ID, g.Name, strings.Join(names, ", "))
		}
		return w.Flush()
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, user, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		members, err := cmd.Flags().GetStringSlice("member")
		if err != nil {
			return err
		}
		memberIDs := []int64{user.ID}
		for _, name := range members {
			u, err := findUser(ctx, client, name)
			if err != nil {
				return err
			}
			memberIDs = append(memberIDs, u.ID)
		}

		g, err := client.CreateGroup(ctx, args[0], memberIDs)
		if err != nil {
			return err
		}
		fmt.Printf("Created group %s (id %d)\n", g.Name, g.ID)
		return nil
	},
}

var groupsAddMemberCmd = &cobra.Command{
	Use:   "add-member <group-id> <username>",
	Short: "Add a member to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return modifyMember(cmd, args, true)
	},
}

var groupsRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <group-id> <username>",
	Short: "Remove a member from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return modifyMember(cmd, args, false)
	},
}

func modifyMember(cmd *cobra.Command, args []string, add bool) error {
	ctx := cmd.Context()
	groupID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q", args[0])
	}

	client, _, err := login(ctx)
	if err != nil {
		return err
	}
	defer client.Logout(ctx)

	if add {
		if err := client.AddGroupMember(ctx, groupID, args[1]); err != nil {
			return err
		}
		fmt.Printf("Added %s to group %d\n", args[1], groupID)
		return nil
	}
	if err := client.RemoveGroupMember(ctx, groupID, args[1]); err != nil {
		return err
	}
	fmt.Printf("Removed %s from group %d\n", args[1], groupID)
	return nil
}

func init() {
	groupsCreateCmd.Flags().StringSlice("member", nil, "initial member username (repeatable)")
	groupsCmd.AddCommand(groupsCreateCmd)
	groupsCmd.AddCommand(groupsAddMemberCmd)
	groupsCmd.AddCommand(groupsRemoveMemberCmd)
}
