package fulfillment

import (
	"fmt"

	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

// Decision is the outcome of asking the status machine about a transition.
// Apply means the new status is authoritative and must be written to the
// store. AckOnly means the request is legitimate station-level feedback
// (drinks ready on a mixed order) but the order status does not move.
type Decision struct {
	Next    orderstatus.Status
	Apply   bool
	AckOnly bool
}

// StatusMachine decides status transitions for orders. It is pure logic:
// no store access, no side effects. The station argument matters only for
// the ready transition, where station authority is asymmetric.
type StatusMachine struct {
	router *StationRouter
}

func NewStatusMachine(router *StationRouter) *StatusMachine {
	return &StatusMachine{router: router}
}

// Decide validates a requested transition against the current order state.
// Out-of-table transitions, including anything requested from a terminal
// state, fail with ErrInvalidTransition. The machine never reads payment
// status; fulfillment and payment are independent axes.
func (m *StatusMachine) Decide(order *Order, to orderstatus.Status, from *station.Station) (Decision, error) {
	current := order.StatusValue()

	if current.Terminal() {
		return Decision{}, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.ID, current.Code())
	}

	switch to.Name {
	case orderstatus.Statuses.Preparing.Name:
		// Any station may start preparation; the distinction only matters
		// once the order can become ready.
		if current.Name != orderstatus.Statuses.Queued.Name {
			return Decision{}, m.invalid(current, to)
		}
		return Decision{Next: to, Apply: true}, nil

	case orderstatus.Statuses.Ready.Name:
		if current.Name != orderstatus.Statuses.Preparing.Name {
			return Decision{}, m.invalid(current, to)
		}
		if from == nil {
			return Decision{}, fmt.Errorf("%w: ready requires a requesting station", ErrInvalidTransition)
		}
		return m.decideReady(order, to, *from), nil

	case orderstatus.Statuses.Completed.Name:
		if current.Name != orderstatus.Statuses.Ready.Name {
			return Decision{}, m.invalid(current, to)
		}
		return Decision{Next: to, Apply: true}, nil

	case orderstatus.Statuses.Cancelled.Name:
		return Decision{Next: to, Apply: true}, nil

	default:
		return Decision{}, m.invalid(current, to)
	}
}

// decideReady applies the station authority rules. The owning station of a
// station-pure order advances it; the non-owning station's request is a
// no-op acknowledgment. On a mixed order only the kitchen advances: the bar
// finishing drinks must not mark the whole order ready while food is still
// cooking.
func (m *StatusMachine) decideReady(order *Order, to orderstatus.Status, from station.Station) Decision {
	routing := m.router.Route(order)

	owning := station.Stations.Kitchen
	if !routing.IsMixed() && routing.IsStationPure(station.Stations.Bar) {
		owning = station.Stations.Bar
	}

	if from.Name == owning.Name {
		return Decision{Next: to, Apply: true}
	}
	return Decision{AckOnly: true}
}

func (m *StatusMachine) invalid(current, to orderstatus.Status) error {
	return fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidTransition, current.Code(), to.Code())
}
