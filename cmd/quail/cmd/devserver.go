package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/devserver"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory chat backend for local development",
	Long: `Run an in-memory implementation of the chat backend.

All state lives in memory and is lost on exit. Useful for trying the
client without a real backend:

  quail devserver --seed alice:password1 --seed bob:password2
  quail --server http://localhost:8000/api/chat tui -u alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		seeds, err := cmd.Flags().GetStringSlice("seed")
		if err != nil {
			return err
		}

		srv := devserver.New(logger)
		for _, seed := range seeds {
			name, pass, ok := strings.Cut(seed, ":")
			if !ok {
				return fmt.Errorf("invalid --seed %q, want user:password", seed)
			}
			u := srv.Seed(name, pass)
			fmt.Printf("Seeded user %s (id %d)\n", u.Username, u.ID)
		}

		return srv.Serve(cmd.Context(), addr)
	},
}

func init() {
	devserverCmd.Flags().String("addr", ":8000", "listen address")
	devserverCmd.Flags().StringSlice("seed", nil, "seed account as user:password (repeatable)")
}
