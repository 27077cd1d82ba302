package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamguard/streamguard-go/pkg/opsclient"
)

var (
	// Global flags
	serverURL string
	token     string
	timeout   time.Duration

	// Global client instance
	client *opsclient.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamguard-cli",
		Short: "StreamGuard ops API command line interface",
		Long: `streamguard-cli operates a running StreamGuard consumer over its ops API.
It provides commands for checking consumer health, listing and resetting
halted threads, and inspecting the persisted offset checkpoint.`,
		PersistentPreRunE: initializeClient,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8710", "StreamGuard ops API URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Operator JWT token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// Add subcommands
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newHaltedCommand())
	rootCmd.AddCommand(newCheckpointCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initializeClient sets up the ops API client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	config := opsclient.Config{
		ServerURL: serverURL,
		Token:     token,
		Timeout:   timeout,
	}

	var err error
	client, err = opsclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}
