package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/readstate"
	"github.com/quailchat/quail/internal/session"
	"github.com/quailchat/quail/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive chat UI",
	Long: `Open the interactive terminal chat UI.

Tabs:
  1 chats     Direct conversations with friends, with unread counters
  2 groups    Group conversations
  3 people    Users who messaged you but are not friends yet
  4 profile   Your profile

The UI polls the backend in the background: the open conversation every
couple of seconds, closed conversations for unread counting, and the
friend/group roster. Read positions persist across restarts, so unread
counters survive quitting the app.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, user, err := login(ctx)
		if err != nil {
			return err
		}

		states, err := readstate.Open(cfg.StatePath())
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer states.Close()

		sess := session.New(client, states, user, cfg.Intervals(), logger)
		if err := sess.Start(); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer func() {
			logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sess.Logout(logoutCtx)
		}()

		model := tui.New(sess, tui.Options{Version: version})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = p.Run()
		return err
	},
}
