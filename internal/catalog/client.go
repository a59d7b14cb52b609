package catalog

import (
	"context"
	"encoding/json"
)

// ListItem is one entry of a paginated listing: the PID plus the raw summary
// payload as returned upstream.
type ListItem struct {
	PID string
	Raw json.RawMessage
}

// Client is the upstream supplier catalog API. Implementations must surface
// failures as *Error so callers can branch on Kind: rate-limited responses,
// delisted products and transient faults all require different handling.
type Client interface {
	// ListPage fetches one page of the catalog listing and reports the total
	// page count.
	ListPage(ctx context.Context, page, pageSize int, filters map[string]string) ([]ListItem, int, error)

	// GetDetail fetches the full payload for one product.
	GetDetail(ctx context.Context, pid string) (json.RawMessage, error)

	// GetVariants fetches variant/stock data for one product. The payload
	// shape is not guaranteed; see ExtractVariants.
	GetVariants(ctx context.Context, pid string) (json.RawMessage, error)
}
