package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/timeline/internal/models"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a digest cycle",
	Long:  "Sends one digest per subscriber with recent activity and prints the cycle result as JSON. With --digest.interval it repeats until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rt, err := newRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				logger.Info("shutting down gracefully")
				cancel()
			case <-ctx.Done():
			}
		}()

		if cfg.Digest.Interval > 0 {
			err := rt.service.Run(ctx, cfg.Digest.Interval)
			if !rt.service.Shutdown(shutdownTimeout) {
				logger.Warn("some digests may not have been sent")
			}
			return err
		}

		result := rt.service.RunCycle(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		if result.Status == models.CycleStatusError {
			return fmt.Errorf("digest cycle failed: %s", result.Message)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Duration("digest.window", 24*time.Hour, "Look-back window for activity")
	runCmd.Flags().Int("digest.workers", 4, "Subscribers processed concurrently")
	runCmd.Flags().String("subscribers.source", "file", "Subscriber source: file, postgres or redis")
	runCmd.Flags().String("subscribers.file", "registered_emails.txt", "Subscriber file (email|github_username per line)")
	runCmd.Flags().String("mailer.type", "smtp", "Mailer: smtp or log (dry run)")

	for _, name := range []string{"digest.window", "digest.workers", "subscribers.source", "subscribers.file", "mailer.type"} {
		viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
}
