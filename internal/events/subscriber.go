package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/appetiteclub/fulfillment/internal/fulfillment"
	"github.com/appetiteclub/fulfillment/pkg/event"
)

// CatalogSubscriber listens for menu catalog changes and triggers an
// immediate classification rebuild, so routing converges faster than the
// timed refresh floor. The timed refresh stays the correctness mechanism;
// a missed event only delays convergence until the next tick.
type CatalogSubscriber struct {
	subscriber events.Subscriber
	index      *fulfillment.ClassificationIndex
	logger     apt.Logger
}

func NewCatalogSubscriber(
	subscriber events.Subscriber,
	index *fulfillment.ClassificationIndex,
	logger apt.Logger,
) *CatalogSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &CatalogSubscriber{
		subscriber: subscriber,
		index:      index,
		logger:     logger,
	}
}

func (s *CatalogSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting CatalogSubscriber for topic: " + event.MenuCatalogTopic)

	if err := s.subscriber.Subscribe(ctx, event.MenuCatalogTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.MenuCatalogTopic, err)
	}

	s.logger.Info("CatalogSubscriber started successfully")
	return nil
}

func (s *CatalogSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.CatalogChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal catalog event: %v", err)
		return nil
	}

	switch evt.EventType {
	case event.EventMenuCategoryChanged, event.EventMenuItemChanged:
		// The index only mutates by wholesale swap, so any change means a
		// full rebuild regardless of which record moved.
		if err := s.index.Rebuild(ctx); err != nil {
			s.logger.Errorf("Catalog rebuild after %s failed, keeping previous snapshot: %v", evt.EventType, err)
			return nil
		}
		s.logger.Infof("Classification rebuilt after %s", evt.EventType)
	default:
		s.logger.Infof("Unknown catalog event type: %s", evt.EventType)
	}

	return nil
}
