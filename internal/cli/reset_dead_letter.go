package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oversync/syncgate/internal/core/config"
	"github.com/oversync/syncgate/internal/infra/storage/postgres"
)

var resetDeadLetterCmd = &cobra.Command{
	Use:   "reset-dead-letter [id]",
	Short: "Reset a dead-lettered entry so it retries again",
	Args:  cobra.ExactArgs(1),
	Run:   runResetDeadLetter,
}

func init() {
	rootCmd.AddCommand(resetDeadLetterCmd)
}

func runResetDeadLetter(cmd *cobra.Command, args []string) {
	id := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewSyncLogRepo(db)
	ok, err := repo.ResetDeadLetter(ctx, id, time.Now(), "manually reset via CLI")
	if err != nil {
		slog.Error("Failed to reset dead letter", "error", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Printf("Entry %s not found or not a dead letter\n", id)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset %s; it will retry on the next batch\n", id)
}
