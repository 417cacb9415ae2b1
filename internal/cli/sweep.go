package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/tessierh/psyche/internal/config"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/service"
	"github.com/tessierh/psyche/internal/store"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maturation pass over active beliefs and exit",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	tracker := service.NewTracker(store.NewBeliefStore(pool), domain.DefaultMaturityRules(), logger)
	res, err := tracker.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("examined %d beliefs, promoted %d\n", res.Examined, res.Promoted)
	return nil
}
