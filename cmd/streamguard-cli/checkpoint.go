package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Show the persisted offset checkpoint",
		Long:  "Show the consumer's persisted offset checkpoint, the position it resumes from after a restart.",
		RunE:  runCheckpoint,
	}

	return cmd
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cp, err := client.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to get checkpoint: %w", err)
	}

	fmt.Printf("Topic: %s\n", cp.Topic)
	fmt.Printf("Partition: %d\n", cp.Partition)
	fmt.Printf("Next Offset: %d\n", cp.Offset)

	return nil
}
