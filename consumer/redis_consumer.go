package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one catalog change read from the stream.
type Event struct {
	// MessageID is the Redis Stream message ID.
	MessageID string
	EventID   string
	// EventType is "<entity>.<action>", e.g. venue.upserted.
	EventType string
	// Source is the service that produced the event.
	Source    string
	CreatedAt time.Time
	Payload   json.RawMessage
	Metadata  map[string]string
}

// EventHandler processes events from the stream.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// Consumer reads a stream through a consumer group. Messages whose handler
// fails stay pending and are delivered again after a restart.
type Consumer struct {
	client       *redis.Client
	config       Config
	handler      EventHandler
	logger       *slog.Logger
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	stopOnce     sync.Once
}

// NewConsumer creates a new Redis Streams consumer.
func NewConsumer(config Config, handler EventHandler, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.Enabled {
		return &Consumer{config: config, logger: logger}, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, err
	}

	return NewConsumerWithClient(redis.NewClient(opts), config, handler, logger), nil
}

// NewConsumerWithClient builds an enabled consumer on an existing client.
func NewConsumerWithClient(client *redis.Client, config Config, handler EventHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	config.Enabled = true
	return &Consumer{
		client:       client,
		config:       config,
		handler:      handler,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start ensures the consumer group exists and begins consuming in the
// background.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.config.Enabled {
		c.logger.Info("consumer disabled, not starting")
		return nil
	}

	if err := c.ensureConsumerGroup(ctx); err != nil {
		return err
	}

	c.logger.Info("starting consumer",
		"stream", c.config.StreamKey,
		"group", c.config.GroupName,
		"consumer", c.config.ConsumerName,
	)

	c.wg.Add(1)
	go c.consumeLoop(ctx)
	return nil
}

// Stop ends the consume loop, waits for the message in flight and closes the
// client.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.shutdownChan != nil {
			close(c.shutdownChan)
		}
		c.wg.Wait()
		if c.client != nil {
			_ = c.client.Close()
		}
	})
}

func (c *Consumer) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Consumer) ensureConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.StreamKey, c.config.GroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer context cancelled, stopping")
			return
		case <-c.shutdownChan:
			c.logger.Info("consumer shutdown requested, stopping")
			return
		default:
		}

		if _, err := c.readAndProcess(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("error processing events", "error", err)
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
			case <-c.shutdownChan:
			}
		}
	}
}

// readAndProcess reads one batch of new messages, hands each to the handler
// and acknowledges the ones handled successfully. It returns the number
// acknowledged.
func (c *Consumer) readAndProcess(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.GroupName,
		Consumer: c.config.ConsumerName,
		Streams:  []string{c.config.StreamKey, ">"},
		Count:    c.config.BatchSize,
		Block:    c.config.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			event := parseEvent(message)

			if err := c.handler.HandleEvent(ctx, event); err != nil {
				c.logger.Error("failed to process event",
					"message_id", message.ID,
					"event_type", event.EventType,
					"error", err,
				)
				continue
			}

			if err := c.client.XAck(ctx, c.config.StreamKey, c.config.GroupName, message.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message",
					"message_id", message.ID,
					"error", err,
				)
				continue
			}
			acked++
		}
	}

	return acked, nil
}

func parseEvent(message redis.XMessage) Event {
	event := Event{
		MessageID: message.ID,
		Metadata:  make(map[string]string),
	}

	if v, ok := message.Values["event_id"].(string); ok {
		event.EventID = v
	}
	if v, ok := message.Values["event_type"].(string); ok {
		event.EventType = v
	}
	if v, ok := message.Values["source"].(string); ok {
		event.Source = v
	}
	if v, ok := message.Values["created_at"].(string); ok {
		event.CreatedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := message.Values["payload"].(string); ok {
		event.Payload = json.RawMessage(v)
	}
	if v, ok := message.Values["metadata"].(string); ok {
		_ = json.Unmarshal([]byte(v), &event.Metadata)
	}

	return event
}
