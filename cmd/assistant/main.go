package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var Version = "dev"

var configFile string

func main() {
	root := &cobra.Command{
		Use:     "assistant",
		Short:   "Personal assistant with per-session conversation memory",
		Version: Version,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newClearCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
