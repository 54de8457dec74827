package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	redisevents "github.com/aescanero/assetforge/pkg/adapters/events/redis"
	"github.com/aescanero/assetforge/pkg/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print pipeline events from Redis as JSON lines",
	Long: `Follow the pipeline and step event streams that runs with REDIS_ENABLED
publish, printing one JSON event per line until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchGroup string

func init() {
	watchCmd.Flags().StringVar(&watchGroup, "group", "assetforge-watch", "Redis consumer group")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled {
		return fmt.Errorf("watch requires REDIS_ENABLED=true")
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	bus, err := redisevents.NewStreamsEventBus(client, watchGroup, consumerName(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	var mu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	printEvent := func(ctx context.Context, event domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(event)
	}

	for _, topic := range []string{domain.TopicPipelineEvents, domain.TopicStepEvents} {
		if err := bus.Subscribe(ctx, topic, printEvent); err != nil {
			return err
		}
	}

	logger.Info("watching pipeline events", zap.String("group", watchGroup))
	<-ctx.Done()
	return nil
}
