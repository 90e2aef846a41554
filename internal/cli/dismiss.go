package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oversync/syncgate/internal/core/config"
	"github.com/oversync/syncgate/internal/infra/storage/postgres"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss [id]",
	Short: "Dismiss a retrying or failed sync entry",
	Args:  cobra.ExactArgs(1),
	Run:   runDismiss,
}

func init() {
	rootCmd.AddCommand(dismissCmd)
}

func runDismiss(cmd *cobra.Command, args []string) {
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
	ok, err := repo.Dismiss(ctx, id, "dismissed via CLI")
	if err != nil {
		slog.Error("Failed to dismiss entry", "error", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Printf("Entry %s not found or not dismissable\n", id)
		os.Exit(1)
	}

	fmt.Printf("Successfully dismissed %s\n", id)
}
