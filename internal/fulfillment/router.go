package fulfillment

import (
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

// Routing is the partition of an order's line items across stations.
type Routing struct {
	KitchenItems []OrderItem
	BarItems     []OrderItem
}

// IsStationPure reports whether every item in the order routes to s.
// A zero-item order is kitchen-pure so it still appears in a station view.
func (r Routing) IsStationPure(s station.Station) bool {
	if len(r.KitchenItems) == 0 && len(r.BarItems) == 0 {
		return s.Name == station.Stations.Kitchen.Name
	}
	switch s.Name {
	case station.Stations.Kitchen.Name:
		return len(r.BarItems) == 0
	case station.Stations.Bar.Name:
		return len(r.KitchenItems) == 0
	default:
		return false
	}
}

// IsMixed reports whether the order spans both stations.
func (r Routing) IsMixed() bool {
	return len(r.KitchenItems) > 0 && len(r.BarItems) > 0
}

// StationRouter partitions order items across stations using the
// classification index. It is a pure query shared by the rendering layer
// (which tickets to print, which queues to show) and the status machine
// (transition eligibility).
type StationRouter struct {
	index *ClassificationIndex
}

func NewStationRouter(index *ClassificationIndex) *StationRouter {
	return &StationRouter{index: index}
}

// Route partitions the order's items. Items the index does not know default
// to kitchen; the classification miss is recovered here and never escapes.
func (r *StationRouter) Route(order *Order) Routing {
	var routing Routing
	for _, item := range order.Items {
		s, err := r.index.StationOf(item.MenuItemID)
		if err != nil {
			s = station.Stations.Kitchen
		}
		if s.Name == station.Stations.Bar.Name {
			routing.BarItems = append(routing.BarItems, item)
		} else {
			routing.KitchenItems = append(routing.KitchenItems, item)
		}
	}
	return routing
}

// ServedBy reports whether the order has at least one item for s, or is a
// zero-item kitchen-default order. Station views use it to filter queues.
func (r *StationRouter) ServedBy(order *Order, s station.Station) bool {
	routing := r.Route(order)
	switch s.Name {
	case station.Stations.Kitchen.Name:
		return len(routing.KitchenItems) > 0 || len(order.Items) == 0
	case station.Stations.Bar.Name:
		return len(routing.BarItems) > 0
	default:
		return false
	}
}
