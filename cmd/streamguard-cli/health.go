package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check consumer health",
		Long:  "Check the health status of a running StreamGuard consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			health, err := client.GetHealth(ctx)
			if err != nil {
				return fmt.Errorf("failed to check health: %w", err)
			}

			status := "✅ healthy"
			if !health.Healthy {
				status = "❌ unhealthy"
			}
			fmt.Printf("%s  topic=%s partition=%d\n", status, health.Topic, health.Partition)
			fmt.Printf("Halted Threads: %d\n", health.HaltedThreads)
			if health.HaltedThreads > 0 {
				fmt.Printf("💡 Use 'streamguard-cli halted' to list them\n")
			}
			return nil
		},
	}
}
