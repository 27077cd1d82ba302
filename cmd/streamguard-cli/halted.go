package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newHaltedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "halted",
		Short: "List halted threads",
		Long: `List the threads the consumer has halted after an unrecovered
sequence gap. Messages on a halted thread are rejected until the thread
is reset.`,
		RunE: runHaltedList,
	}

	cmd.AddCommand(newHaltedResetCommand())

	return cmd
}

func newHaltedResetCommand() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "reset <thread-id>",
		Short: "Unblock a halted thread",
		Long: `Unblock a halted thread so its messages flow again. By default the
thread keeps its expected sequence number; with --full its tracking state
is cleared and the next message re-baselines the thread.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHaltedReset(args[0], full)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Also clear the thread's tracking state")

	return cmd
}

func runHaltedList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	threads, err := client.GetHaltedThreads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list halted threads: %w", err)
	}

	if len(threads) == 0 {
		fmt.Printf("✅ No halted threads\n")
		return nil
	}

	fmt.Printf("Halted threads (%d):\n", len(threads))
	for _, id := range threads {
		fmt.Printf("  %s\n", id)
	}
	fmt.Printf("💡 Use 'streamguard-cli halted reset <thread-id>' to unblock one\n")

	return nil
}

func runHaltedReset(threadID string, full bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := client.ResetHalted(ctx, threadID, full)
	if err != nil {
		return fmt.Errorf("failed to reset halted thread: %w", err)
	}

	if result.Halted {
		fmt.Printf("❌ Thread %s is still halted\n", result.ThreadID)
		return nil
	}

	if full {
		fmt.Printf("✅ Thread %s unblocked and cleared; its next message re-baselines\n", result.ThreadID)
	} else {
		fmt.Printf("✅ Thread %s unblocked\n", result.ThreadID)
	}

	return nil
}
