package fulfillment

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
)

type OrderID = uuid.UUID
type MenuItemID = uuid.UUID
type CategoryID = uuid.UUID

const CurrentOrderSchemaVersion = 1

// OrderItem is a line item embedded in an order. Name and unit price are
// snapshots taken at order time; catalog price changes never retroactively
// alter a placed order.
type OrderItem struct {
	MenuItemID MenuItemID `bson:"menu_item_id" json:"menu_item_id"`
	Name       string     `bson:"name" json:"name"`
	UnitPrice  float64    `bson:"unit_price" json:"unit_price"`
	Quantity   int        `bson:"quantity" json:"quantity"`
	Notes      string     `bson:"notes,omitempty" json:"notes,omitempty"`
}

func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Order is the fulfillment engine's view of a placed order. Every field
// except Status and the transition timestamps is set at creation and
// read-only to this engine. Item order is insertion order and is preserved
// for ticket printing.
type Order struct {
	ID           OrderID     `bson:"_id" json:"id"`
	CustomerName string      `bson:"customer_name" json:"customer_name"`
	TableID      string      `bson:"table_id,omitempty" json:"table_id,omitempty"`
	Items        []OrderItem `bson:"items" json:"items"`
	Subtotal     float64     `bson:"subtotal" json:"subtotal"`
	Discount     float64     `bson:"discount" json:"discount"`
	Total        float64     `bson:"total" json:"total"`

	PaymentMethod string `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	// PaymentStatus is owned by the payment collaborator. A completed
	// fulfillment status does not imply paid.
	PaymentStatus string `bson:"payment_status,omitempty" json:"payment_status,omitempty"`

	Status string `bson:"status" json:"status"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	PreparedAt  *time.Time `bson:"prepared_at,omitempty" json:"prepared_at,omitempty"`
	ReadyAt     *time.Time `bson:"ready_at,omitempty" json:"ready_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`

	SchemaVersion int `bson:"schema_version" json:"schema_version"`
}

// NewOrder creates an order in the queued state with a fresh ID.
func NewOrder() *Order {
	return &Order{
		ID:     uuid.New(),
		Status: orderstatus.Statuses.Queued.Code(),
	}
}

func (o *Order) GetID() OrderID {
	return o.ID
}

func (o *Order) SetID(id OrderID) {
	o.ID = id
}

// ResourceType returns the resource type for URL generation
func (o *Order) ResourceType() string {
	return "order"
}

// EnsureID generates a new UUID if ID is nil
func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
}

// BeforeCreate sets up the order before creation
func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = orderstatus.Statuses.Queued.Code()
	}
	if o.SchemaVersion == 0 {
		o.SchemaVersion = CurrentOrderSchemaVersion
	}
}

// BeforeUpdate updates the timestamp
func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

func (o *Order) MarkAsPreparing() {
	o.Status = orderstatus.Statuses.Preparing.Code()
	now := time.Now()
	o.PreparedAt = &now
	o.BeforeUpdate()
}

func (o *Order) MarkAsReady() {
	o.Status = orderstatus.Statuses.Ready.Code()
	now := time.Now()
	o.ReadyAt = &now
	o.BeforeUpdate()
}

func (o *Order) MarkAsCompleted() {
	o.Status = orderstatus.Statuses.Completed.Code()
	now := time.Now()
	o.CompletedAt = &now
	o.BeforeUpdate()
}

func (o *Order) Cancel() {
	o.Status = orderstatus.Statuses.Cancelled.Code()
	now := time.Now()
	o.CancelledAt = &now
	o.BeforeUpdate()
}

// StatusValue resolves the status code to the enum, defaulting to queued for
// an empty status so an order never sits outside the lifecycle.
func (o *Order) StatusValue() orderstatus.Status {
	if s := orderstatus.ByName(o.Status); s != nil {
		return *s
	}
	return orderstatus.Statuses.Queued
}

const amountTolerance = 0.005

// Validate checks the creation invariants: positive quantities and
// total = sum of line totals - discount.
func (o *Order) Validate() error {
	var sum float64
	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidOrder, i)
		}
		if item.MenuItemID == uuid.Nil {
			return fmt.Errorf("%w: item %d missing menu item id", ErrInvalidOrder, i)
		}
		sum += item.LineTotal()
	}
	if math.Abs(sum-o.Subtotal) > amountTolerance {
		return fmt.Errorf("%w: subtotal %.2f does not match line totals %.2f", ErrInvalidOrder, o.Subtotal, sum)
	}
	if math.Abs((o.Subtotal-o.Discount)-o.Total) > amountTolerance {
		return fmt.Errorf("%w: total %.2f does not equal subtotal %.2f minus discount %.2f", ErrInvalidOrder, o.Total, o.Subtotal, o.Discount)
	}
	return nil
}

// Clone returns a deep copy. The synchronization layer relies on clones to
// capture rollback snapshots that later cache writes cannot alias.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]OrderItem, len(o.Items))
	copy(clone.Items, o.Items)
	clone.PreparedAt = cloneTime(o.PreparedAt)
	clone.ReadyAt = cloneTime(o.ReadyAt)
	clone.CompletedAt = cloneTime(o.CompletedAt)
	clone.CancelledAt = cloneTime(o.CancelledAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
