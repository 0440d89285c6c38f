package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/config"
	"github.com/stoik/timeline/services/digest-service/internal/db"
	"github.com/stoik/timeline/services/digest-service/internal/logger"
	"github.com/stoik/timeline/services/digest-service/internal/subscriber"
)

var importFile string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup database tables and import subscribers",
	Long:  "Creates the subscribers and digest_runs tables. With --import, copies a subscriber file into the database, skipping usernames that do not exist on GitHub.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Decode(viper.GetViper())
		log, err := logger.Setup(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		if cfg.Database.URL == "" {
			return &config.ConfigError{Missing: []string{"database.url"}}
		}
		if importFile != "" && cfg.GitHub.Token == "" {
			return &config.ConfigError{Missing: []string{"github.token"}}
		}

		// Initialize database
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		// Run migrations
		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations...")
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		if importFile == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Database setup complete")
			return nil
		}

		client, err := newGitHubClient(cfg, log)
		if err != nil {
			return err
		}
		imported, skipped, err := importSubscribers(ctx, log,
			subscriber.NewFileStore(importFile, log),
			client,
			subscriber.NewPostgresStore(pool, log),
		)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Database setup complete. Imported %d subscriber(s), skipped %d\n", imported, skipped)
		return nil
	},
}

type userChecker interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

type subscriberWriter interface {
	Upsert(ctx context.Context, sub models.Subscriber) error
}

// importSubscribers copies every subscriber whose GitHub account exists.
// Lookup failures other than 404 abort the import.
func importSubscribers(ctx context.Context, log *slog.Logger, src subscriber.Store, users userChecker, dst subscriberWriter) (imported, skipped int, err error) {
	subs, err := src.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, sub := range subs {
		exists, err := users.UserExists(ctx, sub.GitHubUsername)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check github user %s: %w", sub.GitHubUsername, err)
		}
		if !exists {
			log.Warn("skipping subscriber, github user does not exist", "email", sub.Email, "username", sub.GitHubUsername)
			skipped++
			continue
		}
		if err := dst.Upsert(ctx, sub); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

func init() {
	setupCmd.Flags().StringVar(&importFile, "import", "", "Subscriber file to import (email|github_username per line)")
	rootCmd.AddCommand(setupCmd)
}
