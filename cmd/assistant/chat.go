package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/assistant"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/llm/provider"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/config"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "default", "Session identifier")
	return cmd
}

func runChat(sessionID string) error {
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

	prov, err := provider.New(cfg.Provider.Name, cfg.ProviderOptions())
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	a := assistant.New(store, prov, assistant.Config{
		Model:            cfg.Provider.Model,
		MaxTokens:        cfg.Provider.MaxTokens,
		Temperature:      cfg.Provider.Temperature,
		InferenceTimeout: cfg.InferenceTimeout,
	})

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("session %q (commands: /history, /clear, /quit)\n", sessionID)

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := a.Clear(ctx, sessionID); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("history cleared")
			continue
		case "/history":
			messages, err := a.History(ctx, sessionID, session.HistoryWindow)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			for _, m := range messages {
				fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.Role, m.Content)
			}
			continue
		}

		reply, err := a.HandleTurn(ctx, sessionID, input)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("assistant> %s\n", reply)
	}
}
