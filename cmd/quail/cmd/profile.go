package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/api"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View or edit your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, user, err := login(ctx)
		if err != nil {
			return err
		}
		defer client.Logout(ctx)

		if user.Profile == nil {
			user.Profile = &api.Profile{}
		}

		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("First name").Value(&user.FirstName),
			huh.NewInput().Title("Last name").Value(&user.LastName),
			huh.NewInput().Title("Bio").Value(&user.Profile.Bio),
			huh.NewInput().Title("Email").Value(&user.Profile.Email),
			huh.NewInput().Title("Mobile").Value(&user.Profile.Mobile),
		))
		if err := form.Run(); err != nil {
			return err
		}

		updated, err := client.UpdateProfile(ctx, user)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		fmt.Printf("Saved profile for %s\n", updated.Username)
		return nil
	},
}
