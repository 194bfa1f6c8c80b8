package menuclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/appetiteclub/fulfillment/internal/fulfillment"
	"github.com/appetiteclub/fulfillment/pkg/enums/categorykind"
)

// Category is the menu service's category as this engine reads it. The kind
// is set when the category is created; routing never looks at the name.
type Category struct {
	ID   uuid.UUID         `json:"id"`
	Name map[string]string `json:"name"`
	Kind string            `json:"kind"`
}

// Item is the subset of the menu item this engine cares about.
type Item struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	Active     bool      `json:"active"`
}

// Client reads menu catalog data from the menu collaborator.
type Client interface {
	GetCategory(ctx context.Context, itemID uuid.UUID) (*Category, error)
	fulfillment.CatalogSource
}

// HTTPClient implements the menu Client over HTTP
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP menu client
func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8083" // Default menu service URL
	}
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type itemResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Active     bool   `json:"active"`
}

type categoryResponse struct {
	ID   string            `json:"id"`
	Name map[string]string `json:"name"`
	Kind string            `json:"kind"`
}

// GetCategory resolves a menu item to its owning category.
func (c *HTTPClient) GetCategory(ctx context.Context, itemID uuid.UUID) (*Category, error) {
	var item itemResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/menu/items/%s", c.baseURL, itemID), &item); err != nil {
		return nil, err
	}

	categoryID, err := uuid.Parse(item.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("invalid category id %q for item %s", item.CategoryID, itemID)
	}

	var category categoryResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/menu/categories/%s", c.baseURL, categoryID), &category); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(category.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid category id %q", category.ID)
	}

	return &Category{ID: id, Name: category.Name, Kind: category.Kind}, nil
}

// Snapshot fetches the catalog for a classification index rebuild: all
// items joined with their categories' kinds. Items pointing at an unknown
// category are skipped; the index's kitchen fail-safe covers them.
func (c *HTTPClient) Snapshot(ctx context.Context) ([]fulfillment.CatalogEntry, error) {
	var categories []categoryResponse
	if err := c.getJSON(ctx, c.baseURL+"/menu/categories", &categories); err != nil {
		return nil, err
	}

	kinds := make(map[uuid.UUID]categorykind.Kind, len(categories))
	for _, cat := range categories {
		id, err := uuid.Parse(cat.ID)
		if err != nil {
			continue
		}
		if kind := categorykind.ByName(cat.Kind); kind != nil {
			kinds[id] = *kind
		}
	}

	var items []itemResponse
	if err := c.getJSON(ctx, c.baseURL+"/menu/items", &items); err != nil {
		return nil, err
	}

	entries := make([]fulfillment.CatalogEntry, 0, len(items))
	for _, item := range items {
		itemID, err := uuid.Parse(item.ID)
		if err != nil {
			continue
		}
		categoryID, err := uuid.Parse(item.CategoryID)
		if err != nil {
			continue
		}
		kind, ok := kinds[categoryID]
		if !ok {
			continue
		}
		entries = append(entries, fulfillment.CatalogEntry{
			ItemID:       itemID,
			CategoryID:   categoryID,
			CategoryKind: kind,
		})
	}

	return entries, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cannot build menu request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("menu service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fulfillment.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("menu service returned status %d for %s", resp.StatusCode, url)
	}

	// Menu service wraps payloads in a data envelope.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	body := json.NewDecoder(resp.Body)
	if err := body.Decode(&envelope); err != nil {
		return fmt.Errorf("cannot decode menu response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("cannot decode menu payload: %w", err)
	}
	return nil
}
