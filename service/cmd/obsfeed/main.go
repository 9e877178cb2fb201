// Command obsfeed serves encoded observations to simulator workers over a
// WebSocket feed and records the rollouts to Redis and Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
	"github.com/CaptainGlac1er/rocket-learn/engine/agent"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/auth"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/config"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/episode"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/feed"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/logging"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/rollout"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/store"
)

const issuer = "obsfeed"

var (
	envFiles   []string
	listenAddr string
	worker     string
	tokenTTL   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "obsfeed",
	Short: "Observation encoder feed",
	Long: `obsfeed accepts game snapshots from simulator workers, encodes one
observation per player and streams them back, pushing every step to Redis.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket feed",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a feed token for a worker",
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address, overrides OBSFEED_LISTEN_ADDR")
	tokenCmd.Flags().StringVar(&worker, "worker", "", "worker name embedded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("worker")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	tok, err := auth.NewSigner(cfg.JWTSecret, issuer).Issue(worker, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	sink := rollout.NewRedisSink(rdb, cfg.RolloutPrefix, cfg.RolloutTTL)
	log.WithField("addr", cfg.RedisAddr).Info("Rollout sink connected")

	var ledger episode.Ledger
	if cfg.DatabaseURL != "" {
		pool, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		episodes := store.NewEpisodes(pool)
		if err := episodes.Migrate(ctx); err != nil {
			return err
		}
		ledger = episodes
		log.Info("Episode ledger enabled")
	}

	catalog := engine.DefaultBoostPadCatalog()
	newSession := func(worker string) (*episode.Session, error) {
		b, err := agent.NewObsBuilder(cfg.MaxPlayers, catalog)
		if err != nil {
			return nil, err
		}
		return episode.NewSession(worker, b, sink, ledger, log), nil
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           feed.NewServer(auth.NewSigner(cfg.JWTSecret, issuer), newSession, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked feed connections end with the signal context; Shutdown does not track them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":        cfg.ListenAddr,
			"max_players": cfg.MaxPlayers,
			"pads":        catalog.Len(),
		}).Info("Feed listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Feed stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
