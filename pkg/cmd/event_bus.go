package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	gochannelpubsub "github.com/loomhq/loom/pkg/channels/gochannel"
	kafkachannel "github.com/loomhq/loom/pkg/channels/kafka"
	"github.com/loomhq/loom/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. The default
// is the in-memory channel, which needs no broker.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafkachannel.CreateChannel(wmLogger, "loom")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "gochannel":
		pub, sub, err := gochannelpubsub.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
