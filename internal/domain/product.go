package domain

import "time"

// Product is the local snapshot of one upstream catalog product, keyed by the
// supplier-assigned external id (PID).
type Product struct {
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	Price    string `json:"price"` // decimal string, e.g. "19.99"
	Currency string `json:"currency,omitempty"`

	SyncEnabled bool `json:"sync_enabled"`
	Active      bool `json:"active"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	RemovedAt     *time.Time `json:"removed_at,omitempty"`
	RemovedReason string     `json:"removed_reason,omitempty"`
}

// Variant is one SKU under a product.
type Variant struct {
	ExternalVariantID string `json:"external_variant_id"`
	ProductExternalID string `json:"product_external_id"`
	SKU               string `json:"sku,omitempty"`

	StockOnHand int    `json:"stock_on_hand"`
	Price       string `json:"price"`

	StockSyncedAt time.Time `json:"stock_synced_at"`
}
