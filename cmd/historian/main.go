// cmd/historian/main.go is an asynchronous historian service that pops room
// lifecycle records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/pairline/internal/cache"
	"github.com/jason-s-yu/pairline/internal/config"
	"github.com/jason-s-yu/pairline/internal/database"
	"github.com/jason-s-yu/pairline/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagMigrate bool

var rootCmd = &cobra.Command{
	Use:   "pairline-historian",
	Short: "Persist room lifecycle records from redis to postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL or PG_HOST must be set")
		}
		redisAddr := cfg.RedisAddr
		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}

		logger := logrus.New()
		logger.SetLevel(cfg.Level())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		rooms := database.NewRooms(pool)
		if flagMigrate {
			if err := rooms.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		rdb, err := cache.Connect(ctx, redisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		svc := historian.New(rdb, rooms, historian.Config{
			Queue:      cfg.LifecycleQueue,
			BatchSize:  cfg.HistorianBatch,
			FlushDelay: cfg.HistorianFlush,
		}, logger)
		return svc.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagMigrate, "migrate", true, "create the room_sessions table if missing")
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
