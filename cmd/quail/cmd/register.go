package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// promptCredentials fills in the username and password flags interactively
// when they were not supplied.
func promptCredentials() error {
	var fields []huh.Field
	if username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&username))
	}
	if password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var confirm string
		var fields []huh.Field
		if username == "" {
			fields = append(fields, huh.NewInput().
				Title("Username").
				Value(&username))
		}
		if password == "" {
			fields = append(fields, huh.NewInput().
				Title("Password").
				Description("At least 8 characters").
				EchoMode(huh.EchoModePassword).
				Value(&password))
			fields = append(fields, huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm))
		}
		if len(fields) > 0 {
			if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
				return err
			}
		}
		if confirm != "" && confirm != password {
			return fmt.Errorf("passwords do not match")
		}

		user, err := client.Register(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}
