// Command prepctl runs operational tasks against the PrepGen database:
// migrations, staff accounts and development seed data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "prepctl",
	Short:         "PrepGen operations tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// env is shared by every subcommand. It is filled in PersistentPreRun.
var env struct {
	cfg *config.Config
	log zerolog.Logger
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		env.cfg = config.Load()
		env.log = logger.Setup(env.cfg.LogLevel, env.cfg.LogFormat)
	}

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(assignRoleCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// commandContext bounds a command's database work.
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	return database.NewPostgresPool(ctx, env.cfg, env.log)
}

func connectRedis(ctx context.Context) (*redis.Client, error) {
	return database.NewRedisClient(ctx, env.cfg, env.log)
}
