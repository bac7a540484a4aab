package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"playlet/internal/pkg/cache"
	"playlet/internal/pkg/mongodb"
	"playlet/internal/server"
	"playlet/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the job worker",
	Long: `Start the Playlet job worker. The worker polls the job queue and
executes generation jobs (extraction, image, video, export). Multiple
worker instances can run against the same database.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	flags := workerCmd.Flags()

	flags.Int("concurrency", 2, "number of jobs executed concurrently")
	flags.Duration("poll-interval", 0, "pending job poll interval (e.g. 3s)")
	flags.Duration("job-timeout", 0, "max execution time per job (e.g. 15m)")

	_ = viper.BindPFlag("worker.concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("worker.poll_interval", flags.Lookup("poll-interval"))
	_ = viper.BindPFlag("worker.job_timeout", flags.Lookup("job-timeout"))
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := mongoClient.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close Redis connection")
				}
			}()
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := server.BuildServices(ctx, cfg, mongoClient, redisCache)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	w := worker.New(cfg.Worker, services.Job)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
