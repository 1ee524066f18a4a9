package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/worker"
)

func newTickCommand() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one escalation pass and print its summary as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg, logger, seedPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			workerCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- worker.StartNotificationWorker(workerCtx, rt.notifications, rt.dispatcher) }()

			summary, tickErr := rt.scheduler.EvaluateTick(ctx)
			cancel()
			if err := <-done; err != nil {
				logger.Warn("notification worker stopped", zap.Error(err))
			}
			if tickErr != nil {
				return tickErr
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML seed file for the in-memory store")
	return cmd
}
