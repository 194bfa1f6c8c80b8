package fulfillment

import (
	"context"
)

// OrderRepo is the order store collaborator. Implementations must serialize
// concurrent writes to the same record at field level; they provide no
// application-level locking.
type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id OrderID) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	ListActive(ctx context.Context) ([]*Order, error)
	ListByStatus(ctx context.Context, status string) ([]*Order, error)

	// UpdateStatus moves an order from a previously observed status to a new
	// one in a single conditional write. It fails with ErrNotFound for an
	// unknown id and with ErrConflictOnWrite when the stored status no longer
	// matches from (another writer got there first). The returned order is
	// the stored record after the update.
	UpdateStatus(ctx context.Context, id OrderID, from, to string) (*Order, error)
}
