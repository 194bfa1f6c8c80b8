package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/appetiteclub/fulfillment/pkg/enums/categorykind"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

func TestStationFor(t *testing.T) {
	tests := []struct {
		name string
		kind categorykind.Kind
		want station.Station
	}{
		{name: "beverageRoutesToBar", kind: categorykind.Kinds.Beverage, want: station.Stations.Bar},
		{name: "foodRoutesToKitchen", kind: categorykind.Kinds.Food, want: station.Stations.Kitchen},
		{name: "dessertRoutesToKitchen", kind: categorykind.Kinds.Dessert, want: station.Stations.Kitchen},
		{name: "zeroKindRoutesToKitchen", kind: categorykind.Kind{}, want: station.Stations.Kitchen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StationFor(tt.kind); got.Name != tt.want.Name {
				t.Errorf("StationFor(%q) = %q, want %q", tt.kind.Name, got.Name, tt.want.Name)
			}
		})
	}
}

func TestClassificationIndexStationOf(t *testing.T) {
	index := NewClassificationIndex(NewMockCatalogSource(testCatalogEntries()...), time.Hour, nil)
	if err := index.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	tests := []struct {
		name    string
		itemID  MenuItemID
		want    station.Station
		wantErr bool
	}{
		{name: "knownFoodItem", itemID: testBurgerID, want: station.Stations.Kitchen},
		{name: "knownDrinkItem", itemID: testLemonadeID, want: station.Stations.Bar},
		{name: "unknownItem", itemID: uuid.New(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := index.StationOf(tt.itemID)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownItem) {
					t.Errorf("StationOf() error = %v, want ErrUnknownItem", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("StationOf() unexpected error: %v", err)
			}
			if got.Name != tt.want.Name {
				t.Errorf("StationOf() = %q, want %q", got.Name, tt.want.Name)
			}
		})
	}
}

func TestClassificationIndexRebuildReplacesSnapshot(t *testing.T) {
	source := NewMockCatalogSource(testCatalogEntries()...)
	index := NewClassificationIndex(source, time.Hour, nil)
	if err := index.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	if index.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", index.Count())
	}

	// The beverage category is reclassified as food: the next rebuild must
	// reroute its items wholesale, nothing staged or partial.
	source.SetEntries([]CatalogEntry{
		{ItemID: testLemonadeID, CategoryID: testBeverageCategory, CategoryKind: categorykind.Kinds.Food},
	})
	if err := index.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	if index.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after rebuild", index.Count())
	}

	got, err := index.StationOf(testLemonadeID)
	if err != nil {
		t.Fatalf("StationOf() unexpected error: %v", err)
	}
	if got.Name != station.Stations.Kitchen.Name {
		t.Errorf("StationOf() after reclassification = %q, want kitchen", got.Name)
	}

	if _, err := index.StationOf(testBurgerID); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("StationOf() for dropped item = %v, want ErrUnknownItem", err)
	}
}

func TestClassificationIndexRebuildFailureKeepsSnapshot(t *testing.T) {
	source := NewMockCatalogSource(testCatalogEntries()...)
	index := NewClassificationIndex(source, time.Hour, nil)
	if err := index.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	source.SnapshotFunc = func(ctx context.Context) ([]CatalogEntry, error) {
		return nil, errors.New("menu service down")
	}

	if err := index.Rebuild(context.Background()); err == nil {
		t.Fatal("Rebuild() should fail when the source fails")
	}

	// Previous snapshot survives a failed rebuild.
	if index.Count() != 4 {
		t.Errorf("Count() = %d, want 4 after failed rebuild", index.Count())
	}
}

func TestClassificationIndexStartStop(t *testing.T) {
	index := NewClassificationIndex(NewMockCatalogSource(testCatalogEntries()...), time.Hour, nil)

	ctx := context.Background()
	if err := index.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if index.Count() != 4 {
		t.Errorf("Count() = %d after Start, want 4", index.Count())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := index.Stop(stopCtx); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
