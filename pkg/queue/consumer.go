// Package queue provides a Redis-backed intake for generation requests,
// so batch jobs can be submitted without going through the HTTP API.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/loomhq/loom/pkg/jobs"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

// DefaultQueue is the list key consumed when none is configured.
const DefaultQueue = "loom:generate"

// request is the wire shape of one queued generation submission.
type request struct {
	PipelineID string             `json:"pipeline_id"`
	Seeds      []models.SeedInput `json:"seeds"`
}

// Config holds the Redis connection settings for the consumer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Consumer pops generation requests off a Redis list and submits them
// to the job manager. Submissions rejected by the single-flight rule
// are logged and dropped, not retried: the producer is expected to poll
// job status before queueing more work.
type Consumer struct {
	config  Config
	manager *jobs.Manager
	store   persistence.Persistence
	client  redis.UniversalClient
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewConsumer creates a queue consumer. Zero-value config fields fall
// back to localhost defaults.
func NewConsumer(config Config, manager *jobs.Manager, store persistence.Persistence, logger *slog.Logger) *Consumer {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	return &Consumer{
		config:  config,
		manager: manager,
		store:   store,
		stopCh:  make(chan struct{}),
		logger: logger.With(
			"module", "queue_consumer",
			"queue", config.Queue,
		),
	}
}

// Start connects to Redis and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.client = redis.NewClient(&redis.Options{
		Addr:     c.config.Addr,
		Password: c.config.Password,
		DB:       c.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Connected to Redis", "addr", c.config.Addr, "db", c.config.DB)

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	c.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, 1*time.Second, c.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var req request

	err = json.Unmarshal([]byte(message), &req)
	if err != nil {
		return fmt.Errorf("failed to decode generation request: %w", err)
	}

	if req.PipelineID == "" {
		return errors.New("generation request is missing pipeline_id")
	}

	pl, err := c.store.Pipelines().GetByID(ctx, req.PipelineID)
	if err != nil {
		return fmt.Errorf("failed to load pipeline %s: %w", req.PipelineID, err)
	}

	job, err := c.manager.Submit(ctx, pl, req.Seeds)
	if err != nil {
		if jobs.IsConflict(err) {
			c.logger.WarnContext(ctx, "Dropping queued request, a job is already running",
				"pipeline_id", req.PipelineID,
			)

			return nil
		}

		return fmt.Errorf("failed to submit job for pipeline %s: %w", req.PipelineID, err)
	}

	c.logger.InfoContext(ctx, "Queued generation request accepted",
		"pipeline_id", req.PipelineID,
		"job_id", job.ID,
	)

	return nil
}

// Stop halts consumption and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping queue consumer")

	close(c.stopCh)
	c.wg.Wait()

	if c.client != nil {
		err := c.client.Close()
		if err != nil {
			c.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
