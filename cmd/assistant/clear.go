package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/config"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Erase a session's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			ctx := context.Background()
			backend, err := session.NewBackend(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("create storage backend: %w", err)
			}
			store := session.NewStore(backend)
			defer func() { _ = store.Close() }()

			if err := store.Clear(ctx, args[0]); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Printf("cleared session %q\n", args[0])
			return nil
		},
	}
}
