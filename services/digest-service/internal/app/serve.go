package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/timeline/services/digest-service/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status server and scheduled cycles",
	Long:  "Serves /health, /status, /metrics and POST /cycles, and runs a cycle every digest.interval when it is set",
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

		server := status.NewServer(cfg.Server.Addr, rt.service, rt.metrics.Handler(), logger, rt.statusOptions()...)

		errChan := make(chan error, 2)
		go func() {
			errChan <- server.ListenAndServe()
		}()
		if cfg.Digest.Interval > 0 {
			go func() {
				errChan <- rt.service.Run(ctx, cfg.Digest.Interval)
			}()
		} else {
			logger.Info("digest.interval is 0, cycles run only on POST /cycles")
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		// Wait for signal or error
		var runErr error
		select {
		case <-sigChan:
			logger.Info("shutting down gracefully")
		case runErr = <-errChan:
		}
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server did not stop cleanly", "error", err)
		}

		if !rt.service.Shutdown(shutdownTimeout) {
			logger.Warn("some digests may not have been sent")
		}
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("server.addr", ":8080", "Status server listen address")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("server.addr"))

	rootCmd.AddCommand(serveCmd)
}
