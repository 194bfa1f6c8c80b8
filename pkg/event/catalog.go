package event

import "time"

const (
	MenuCatalogTopic         = "menu.catalog"
	EventMenuCategoryChanged = "menu.category.changed"
	EventMenuItemChanged     = "menu.item.changed"
)

// CatalogChangedEvent is published by the menu service whenever a category
// or item changes in a way that can affect station routing.
type CatalogChangedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	CategoryID string    `json:"category_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
}
