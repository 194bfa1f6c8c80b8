package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/fulfillment/pkg/enums/categorykind"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

// CatalogEntry is one menu item as seen by the classification index: the
// item, its owning category, and the category's kind.
type CatalogEntry struct {
	ItemID       MenuItemID
	CategoryID   CategoryID
	CategoryKind categorykind.Kind
}

// CatalogSource provides the catalog snapshot the index is rebuilt from.
// The menu service owns the data; the index only reads it.
type CatalogSource interface {
	Snapshot(ctx context.Context) ([]CatalogEntry, error)
}

const DefaultCatalogRefresh = 5 * time.Minute

// ClassificationIndex maps menu item ids to preparation stations. The
// mapping is rebuilt wholesale on a coarse interval and swapped in one
// write; it is never partially mutated. Callers must tolerate a slightly
// stale catalog between rebuilds.
type ClassificationIndex struct {
	mu       sync.RWMutex
	stations map[MenuItemID]station.Station

	source  CatalogSource
	refresh time.Duration
	logger  apt.Logger

	stop chan struct{}
	done chan struct{}
}

func NewClassificationIndex(source CatalogSource, refresh time.Duration, logger apt.Logger) *ClassificationIndex {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if refresh <= 0 {
		refresh = DefaultCatalogRefresh
	}
	return &ClassificationIndex{
		stations: make(map[MenuItemID]station.Station),
		source:   source,
		refresh:  refresh,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// StationFor derives the station from a category kind. Classification is a
// pure function of the kind set at category creation; display names play no
// part, so renaming a category cannot reroute its items.
func StationFor(kind categorykind.Kind) station.Station {
	if kind.Name == categorykind.Kinds.Beverage.Name {
		return station.Stations.Bar
	}
	return station.Stations.Kitchen
}

// StationOf returns the station for a menu item in the current snapshot.
// It fails with ErrUnknownItem for ids not in the snapshot; callers must
// treat unknown items as kitchen so an order is never dropped from every
// station queue.
func (x *ClassificationIndex) StationOf(id MenuItemID) (station.Station, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	s, ok := x.stations[id]
	if !ok {
		return station.Station{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return s, nil
}

// Rebuild replaces the snapshot from the catalog source.
func (x *ClassificationIndex) Rebuild(ctx context.Context) error {
	entries, err := x.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("cannot snapshot catalog: %w", err)
	}

	stations := make(map[MenuItemID]station.Station, len(entries))
	for _, e := range entries {
		stations[e.ItemID] = StationFor(e.CategoryKind)
	}

	x.mu.Lock()
	x.stations = stations
	x.mu.Unlock()

	x.logger.Debug("classification index rebuilt", "items", len(stations))
	return nil
}

// Start performs the initial rebuild and launches the refresh loop. A failed
// initial rebuild is not fatal: the index stays empty and every item routes
// to kitchen until the next successful refresh.
func (x *ClassificationIndex) Start(ctx context.Context) error {
	if err := x.Rebuild(ctx); err != nil {
		x.logger.Errorf("initial catalog rebuild failed, routing everything to kitchen: %v", err)
	}

	go x.refreshLoop()
	return nil
}

func (x *ClassificationIndex) Stop(ctx context.Context) error {
	close(x.stop)
	select {
	case <-x.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (x *ClassificationIndex) refreshLoop() {
	defer close(x.done)

	ticker := time.NewTicker(x.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-x.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := x.Rebuild(ctx); err != nil {
				x.logger.Errorf("catalog rebuild failed, keeping previous snapshot: %v", err)
			}
			cancel()
		}
	}
}

// Count returns the number of classified items in the current snapshot.
func (x *ClassificationIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.stations)
}
