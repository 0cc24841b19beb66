// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/pairline/internal/auth"
	"github.com/jason-s-yu/pairline/internal/cache"
	"github.com/jason-s-yu/pairline/internal/config"
	"github.com/jason-s-yu/pairline/internal/handlers"
	"github.com/jason-s-yu/pairline/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagPort      string
	flagLogLevel  string
	flagRedisAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pairline-server",
	Short: "Anonymous pairing and relay service",
	Long: `pairline-server matches anonymous websocket clients into private two-party rooms
and relays chat, game and WebRTC signaling events between them.

Configuration is read from the environment (and a .env file); flags override it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = flagPort
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if cmd.Flags().Changed("redis-addr") {
			cfg.RedisAddr = flagRedisAddr
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagPort, "port", "", "listen port (env PORT)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "logrus level (env LOG_LEVEL)")
	rootCmd.Flags().StringVar(&flagRedisAddr, "redis-addr", "", "redis address for room records, empty disables (env REDIS_ADDR)")
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	guests, err := newGuests(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink session.Sink
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		pub := cache.NewPublisher(rdb, cfg.LifecycleQueue, cache.DefaultBuffer, logger)
		defer pub.Close()
		sink = pub
		logger.WithField("queue", cfg.LifecycleQueue).Info("publishing room records to redis")
	} else {
		logger.Info("REDIS_ADDR not set, room records are not published")
	}

	hub := session.NewHub(cfg.Session(), sink, logger)
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.NewMux(logger, hub, handlers.WSOptions{
			OriginPatterns: cfg.AllowedOrigins,
			Guests:         guests,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.RoomIdleTimeout > 0 {
		g.Go(func() error {
			reapIdleRooms(ctx, hub, cfg.RoomIdleTimeout, logger)
			return nil
		})
	}
	return g.Wait()
}

func newGuests(cfg config.Config) (*auth.Guests, error) {
	if cfg.GuestKeyPath != "" {
		return auth.NewGuestsFromFile(cfg.GuestKeyPath, cfg.GuestTokenTTL, cfg.CookieSecure)
	}
	return auth.NewGuests(cfg.GuestTokenTTL, cfg.CookieSecure)
}

// reapIdleRooms closes rooms that saw no relayed traffic for maxIdle.
func reapIdleRooms(ctx context.Context, hub *session.Hub, maxIdle time.Duration, logger *logrus.Logger) {
	every := maxIdle / 4
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := hub.CloseIdleRooms(maxIdle); n > 0 {
				logger.WithField("rooms", n).Info("closed idle rooms")
			}
		}
	}
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
