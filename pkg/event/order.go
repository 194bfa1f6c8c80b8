package event

import "time"

const (
	OrderFulfillmentTopic          = "orders.fulfillment"
	EventOrderCreated              = "order.fulfillment.created"
	EventOrderStatusChanged        = "order.fulfillment.status_changed"
	EventOrderAutoCompletionFailed = "order.fulfillment.autocompletion_failed"
)

type OrderEventMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`

	// Denormalized data for display (station boards, cashier screen)
	CustomerName string `json:"customer_name,omitempty"`
	TableID      string `json:"table_id,omitempty"`
}

type OrderCreatedEvent struct {
	OrderEventMetadata
	Status    string  `json:"status"`
	ItemCount int     `json:"item_count"`
	Total     float64 `json:"total"`
}

type OrderStatusChangedEvent struct {
	OrderEventMetadata
	NewStatus      string     `json:"new_status"`
	PreviousStatus string     `json:"previous_status"`
	Station        string     `json:"station,omitempty"`
	PreparedAt     *time.Time `json:"prepared_at,omitempty"`
	ReadyAt        *time.Time `json:"ready_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}

// OrderAutoCompletionFailedEvent signals that the automatic ready→completed
// step was rejected by the store. The order remains in ready; completion has
// to be retried manually.
type OrderAutoCompletionFailedEvent struct {
	OrderEventMetadata
	Reason string `json:"reason"`
}
