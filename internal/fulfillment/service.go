package fulfillment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
	"github.com/appetiteclub/fulfillment/pkg/event"
)

const DefaultAutoCompleteDelay = 500 * time.Millisecond

// TransitionResult is what a transition request resolves to. Changed means
// the authoritative status moved. Acknowledged means the request was valid
// station feedback that did not move the order (bar finishing drinks on a
// mixed order).
type TransitionResult struct {
	Order        *Order
	Changed      bool
	Acknowledged bool
}

// Service is the authoritative side of the fulfillment engine: it owns the
// fulfillment status field and is the only writer of status transitions.
type Service struct {
	repo      OrderRepo
	router    *StationRouter
	machine   *StatusMachine
	publisher events.Publisher
	logger    apt.Logger

	autoCompleteDelay time.Duration
}

type ServiceDeps struct {
	Repo      OrderRepo
	Router    *StationRouter
	Publisher events.Publisher

	// AutoCompleteDelay is the grace period between ready and the automatic
	// jump to completed; it exists so ready is observable before the order
	// leaves the boards. Zero selects the default.
	AutoCompleteDelay time.Duration
}

func NewService(deps ServiceDeps, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	delay := deps.AutoCompleteDelay
	if delay <= 0 {
		delay = DefaultAutoCompleteDelay
	}
	return &Service{
		repo:              deps.Repo,
		router:            deps.Router,
		machine:           NewStatusMachine(deps.Router),
		publisher:         deps.Publisher,
		logger:            logger,
		autoCompleteDelay: delay,
	}
}

// CreateOrder persists an order placed by the checkout collaborator. The
// order enters the lifecycle in queued; line items keep their name/price
// snapshots untouched from here on.
func (s *Service) CreateOrder(ctx context.Context, order *Order) error {
	order.BeforeCreate()

	if err := order.Validate(); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return err
	}

	s.publish(ctx, event.OrderCreatedEvent{
		OrderEventMetadata: s.metadata(event.EventOrderCreated, order),
		Status:             order.Status,
		ItemCount:          len(order.Items),
		Total:              order.Total,
	})

	return nil
}

// GetOrder returns a single order by id.
func (s *Service) GetOrder(ctx context.Context, id OrderID) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// ListActiveOrders returns non-terminal orders, optionally filtered to the
// station's queue. A zero-item order always shows up in the kitchen queue.
func (s *Service) ListActiveOrders(ctx context.Context, filter *station.Station) ([]*Order, error) {
	orders, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return orders, nil
	}

	result := make([]*Order, 0, len(orders))
	for _, order := range orders {
		if s.router.ServedBy(order, *filter) {
			result = append(result, order)
		}
	}
	return result, nil
}

// RequestTransition runs the status machine against the stored order and
// applies the decision with a conditional write. The requesting station is
// required for ready and ignored elsewhere.
func (s *Service) RequestTransition(ctx context.Context, id OrderID, to orderstatus.Status, from *station.Station) (TransitionResult, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}

	decision, err := s.machine.Decide(order, to, from)
	if err != nil {
		return TransitionResult{}, err
	}

	if decision.AckOnly {
		s.logger.Info("transition absorbed as station acknowledgment",
			"order_id", id, "status", order.Status, "requested", to.Code())
		return TransitionResult{Order: order, Acknowledged: true}, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, order.Status, decision.Next.Code())
	if err != nil {
		return TransitionResult{}, err
	}

	s.publishStatusChange(ctx, updated, order.Status, from)

	if decision.Next.Name == orderstatus.Statuses.Ready.Name {
		s.scheduleAutoComplete(updated.ID)
	}

	return TransitionResult{Order: updated, Changed: true}, nil
}

// scheduleAutoComplete arms the ready→completed grace timer. The conditional
// write keyed on ready makes the step idempotent: if anything else moved the
// order first the update is a conflict and nothing is touched.
func (s *Service) scheduleAutoComplete(id OrderID) {
	time.AfterFunc(s.autoCompleteDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ready := orderstatus.Statuses.Ready.Code()
		completed := orderstatus.Statuses.Completed.Code()

		updated, err := s.repo.UpdateStatus(ctx, id, ready, completed)
		if err != nil {
			// The order stays ready; completion becomes a manual retry.
			// Never leave it in an undefined state, never lose the failure.
			s.logger.Errorf("auto-completion failed for order %s, order remains ready: %v", id, err)
			s.publishAutoCompletionFailure(ctx, id, err)
			return
		}

		s.publishStatusChange(ctx, updated, ready, nil)
	})
}

func (s *Service) publishStatusChange(ctx context.Context, order *Order, previous string, from *station.Station) {
	evt := event.OrderStatusChangedEvent{
		OrderEventMetadata: s.metadata(event.EventOrderStatusChanged, order),
		NewStatus:          order.Status,
		PreviousStatus:     previous,
		PreparedAt:         order.PreparedAt,
		ReadyAt:            order.ReadyAt,
		CompletedAt:        order.CompletedAt,
		CancelledAt:        order.CancelledAt,
	}
	if from != nil {
		evt.Station = from.Code()
	}
	s.publish(ctx, evt)
}

func (s *Service) publishAutoCompletionFailure(ctx context.Context, id OrderID, cause error) {
	evt := event.OrderAutoCompletionFailedEvent{
		OrderEventMetadata: event.OrderEventMetadata{
			EventType:  event.EventOrderAutoCompletionFailed,
			OccurredAt: time.Now().UTC(),
			OrderID:    id.String(),
		},
		Reason: cause.Error(),
	}
	s.publish(ctx, evt)
}

func (s *Service) metadata(eventType string, order *Order) event.OrderEventMetadata {
	return event.OrderEventMetadata{
		EventType:    eventType,
		OccurredAt:   time.Now().UTC(),
		OrderID:      order.ID.String(),
		CustomerName: order.CustomerName,
		TableID:      order.TableID,
	}
}

func (s *Service) publish(ctx context.Context, payload interface{}) {
	if s.publisher == nil {
		return
	}
	msg, _ := json.Marshal(payload)
	if err := s.publisher.Publish(ctx, event.OrderFulfillmentTopic, msg); err != nil {
		s.logger.Errorf("failed to publish fulfillment event: %v", err)
	}
}
