package fulfillment

import "errors"

var (
	// ErrInvalidTransition is returned when the requested status is not
	// reachable from the current one, or when a station requests a
	// transition it has no authority over.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownItem is returned by the classification index when an item is
	// missing from the current catalog snapshot. The router recovers it with
	// the kitchen default; it never reaches a user.
	ErrUnknownItem = errors.New("unknown menu item")

	// ErrNotFound is returned when an order id does not exist in the store,
	// or a collaborator lookup (menu item, category) misses.
	ErrNotFound = errors.New("not found")

	// ErrConflictOnWrite is returned when the store rejects an update because
	// another writer changed the record first.
	ErrConflictOnWrite = errors.New("conflicting write on order")

	// ErrTransportFailure is returned when a store call fails at the network
	// boundary, including timeouts.
	ErrTransportFailure = errors.New("store transport failure")

	// ErrMutationInFlight is returned when a second transition is requested
	// for an order whose previous optimistic mutation has not resolved yet.
	ErrMutationInFlight = errors.New("order mutation already in flight")

	// ErrInvalidOrder is returned when an order fails validation at creation.
	ErrInvalidOrder = errors.New("invalid order")
)
