package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMutationTimeout = 5 * time.Second
)

// Backend is what a display needs from the authoritative engine. In-process
// deployments wire the Service directly; remote displays wire an HTTP client
// with the same shape.
type Backend interface {
	ListActiveOrders(ctx context.Context, filter *station.Station) ([]*Order, error)
	GetOrder(ctx context.Context, id OrderID) (*Order, error)
	RequestTransition(ctx context.Context, id OrderID, to orderstatus.Status, from *station.Station) (TransitionResult, error)
}

type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationCommitted  MutationState = "committed"
	MutationRolledBack MutationState = "rolled-back"
)

// Mutation is one in-flight optimistic edit. It carries the captured
// pre-transition snapshot so rollback restores the cache exactly, not as a
// partial merge.
type Mutation struct {
	OrderID   OrderID
	To        orderstatus.Status
	Station   *station.Station
	State     MutationState
	StartedAt time.Time

	snapshot *Order
}

// OrderStateCache is a display's local view of the order collection. It is
// replaced wholesale on every poll and patched optimistically on user
// action; reads hand out clones so callers can never alias cache state.
type OrderStateCache struct {
	mu     sync.RWMutex
	orders map[OrderID]*Order
	// stations a display acknowledged ready for without the order moving
	// (drinks-ready feedback on mixed orders); keyed by order, then station
	acks map[OrderID]map[string]bool
}

func NewOrderStateCache() *OrderStateCache {
	return &OrderStateCache{
		orders: make(map[OrderID]*Order),
		acks:   make(map[OrderID]map[string]bool),
	}
}

// ReplaceAll swaps the cached collection for the polled one. Acknowledgments
// survive only for orders still in preparing; anything else has moved past
// the point where drinks-ready feedback means something.
func (c *OrderStateCache) ReplaceAll(orders []*Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[OrderID]*Order, len(orders))
	for _, order := range orders {
		next[order.ID] = order.Clone()
	}
	c.orders = next

	for id := range c.acks {
		order, ok := c.orders[id]
		if !ok || order.Status != orderstatus.Statuses.Preparing.Code() {
			delete(c.acks, id)
		}
	}
}

func (c *OrderStateCache) Set(order *Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.ID] = order.Clone()
}

// Snapshot returns a deep copy of the cached order, or nil if absent.
func (c *OrderStateCache) Snapshot(id OrderID) *Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orders[id].Clone()
}

func (c *OrderStateCache) All() []*Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Order, 0, len(c.orders))
	for _, order := range c.orders {
		result = append(result, order.Clone())
	}
	return result
}

func (c *OrderStateCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

func (c *OrderStateCache) Acknowledge(id OrderID, s station.Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acks[id] == nil {
		c.acks[id] = make(map[string]bool)
	}
	c.acks[id][s.Code()] = true
}

// Acknowledged reports whether the station already flagged its part of the
// order ready without the authoritative status moving.
func (c *OrderStateCache) Acknowledged(id OrderID, s station.Station) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acks[id][s.Code()]
}

// SyncClient is the per-display synchronization layer: it polls the backend
// on a fixed interval and applies user transitions optimistically against
// the local cache, rolling back on failure. Two displays may transiently
// disagree for up to one polling interval; the store is the single source of
// truth they both converge to.
type SyncClient struct {
	backend Backend
	cache   *OrderStateCache
	machine *StatusMachine
	logger  apt.Logger

	pollInterval    time.Duration
	mutationTimeout time.Duration

	mu       sync.Mutex
	inflight map[OrderID]*Mutation

	stop chan struct{}
	done chan struct{}
}

type SyncClientDeps struct {
	Backend Backend
	Router  *StationRouter

	PollInterval    time.Duration
	MutationTimeout time.Duration
}

func NewSyncClient(deps SyncClientDeps, logger apt.Logger) *SyncClient {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	pollInterval := deps.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	mutationTimeout := deps.MutationTimeout
	if mutationTimeout <= 0 {
		mutationTimeout = DefaultMutationTimeout
	}
	return &SyncClient{
		backend:         deps.Backend,
		cache:           NewOrderStateCache(),
		machine:         NewStatusMachine(deps.Router),
		logger:          logger,
		pollInterval:    pollInterval,
		mutationTimeout: mutationTimeout,
		inflight:        make(map[OrderID]*Mutation),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Cache exposes the local view for rendering.
func (sc *SyncClient) Cache() *OrderStateCache {
	return sc.cache
}

// Start performs the initial fetch and launches the polling loop.
func (sc *SyncClient) Start(ctx context.Context) error {
	if err := sc.Poll(ctx); err != nil {
		sc.logger.Errorf("initial order poll failed, starting with empty view: %v", err)
	}

	go sc.pollLoop()
	return nil
}

func (sc *SyncClient) Stop(ctx context.Context) error {
	close(sc.stop)
	select {
	case <-sc.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (sc *SyncClient) pollLoop() {
	defer close(sc.done)

	ticker := time.NewTicker(sc.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sc.pollInterval)
			if err := sc.Poll(ctx); err != nil {
				sc.logger.Errorf("order poll failed, keeping stale view: %v", err)
			}
			cancel()
		}
	}
}

// Poll refreshes the full local collection from the backend. This is the
// reconciliation path: transitions made by other displays, and any optimistic
// edit orphaned by a lost response, converge here within one interval.
func (sc *SyncClient) Poll(ctx context.Context) error {
	orders, err := sc.backend.ListActiveOrders(ctx, nil)
	if err != nil {
		return err
	}
	sc.cache.ReplaceAll(orders)
	return nil
}

// RequestTransition applies a user-triggered transition: optimistic local
// patch first so the UI moves with zero perceived latency, then the
// authoritative mutation, then reconcile or roll back. A second request for
// an order whose mutation has not resolved fails with ErrMutationInFlight.
func (sc *SyncClient) RequestTransition(ctx context.Context, id OrderID, to orderstatus.Status, from *station.Station) (TransitionResult, error) {
	mut, err := sc.begin(id, to, from)
	if err != nil {
		return TransitionResult{}, err
	}
	defer sc.finish(id)

	snapshot := mut.snapshot
	if snapshot == nil {
		return TransitionResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	decision, err := sc.machine.Decide(snapshot, to, from)
	if err != nil {
		// Nothing was applied locally; surface as-is.
		return TransitionResult{}, err
	}

	if decision.AckOnly {
		// Station-level feedback only. The authoritative status stays put,
		// so there is nothing to send to the store.
		if from != nil {
			sc.cache.Acknowledge(id, *from)
		}
		return TransitionResult{Order: snapshot, Acknowledged: true}, nil
	}

	optimistic := snapshot.Clone()
	applyStatus(optimistic, decision.Next)
	sc.cache.Set(optimistic)
	mut.State = MutationPending

	callCtx, cancel := context.WithTimeout(ctx, sc.mutationTimeout)
	defer cancel()

	result, err := sc.backend.RequestTransition(callCtx, id, to, from)
	if err != nil {
		mut.State = MutationRolledBack
		sc.cache.Set(snapshot)
		return TransitionResult{}, sc.mapFailure(err)
	}

	mut.State = MutationCommitted
	sc.reconcile(ctx, id, result)
	return result, nil
}

func (sc *SyncClient) begin(id OrderID, to orderstatus.Status, from *station.Station) (*Mutation, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, busy := sc.inflight[id]; busy {
		return nil, fmt.Errorf("%w: %s", ErrMutationInFlight, id)
	}

	mut := &Mutation{
		OrderID:   id,
		To:        to,
		Station:   from,
		StartedAt: time.Now(),
		snapshot:  sc.cache.Snapshot(id),
	}
	sc.inflight[id] = mut
	return mut, nil
}

func (sc *SyncClient) finish(id OrderID) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.inflight, id)
}

// reconcile refreshes the mutated order from the backend so concurrent
// writes from other displays are picked up immediately rather than on the
// next poll. A failed refresh keeps the committed server copy.
func (sc *SyncClient) reconcile(ctx context.Context, id OrderID, result TransitionResult) {
	if result.Order != nil {
		sc.cache.Set(result.Order)
	}

	fresh, err := sc.backend.GetOrder(ctx, id)
	if err != nil {
		sc.logger.Debug("post-commit refresh failed, waiting for next poll", "order_id", id, "error", err)
		return
	}
	sc.cache.Set(fresh)
}

// mapFailure folds transport-level failures into the engine taxonomy.
// Timeouts behave exactly like failures: the rollback already happened.
func (sc *SyncClient) mapFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return err
}

func applyStatus(order *Order, next orderstatus.Status) {
	switch next.Name {
	case orderstatus.Statuses.Preparing.Name:
		order.MarkAsPreparing()
	case orderstatus.Statuses.Ready.Name:
		order.MarkAsReady()
	case orderstatus.Statuses.Completed.Name:
		order.MarkAsCompleted()
	case orderstatus.Statuses.Cancelled.Name:
		order.Cancel()
	default:
		order.Status = next.Code()
		order.BeforeUpdate()
	}
}
