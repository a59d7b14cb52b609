package catalog

import (
	"encoding/json"
)

// ProductPayload is the subset of an upstream product payload the importer
// persists. Parsing tolerates missing fields; validation decides what is
// usable.
type ProductPayload struct {
	PID         string
	Title       string
	Description string
	ImageURL    string
	Price       string
	Currency    string
}

// VariantPayload is one variant entry from a variants response.
type VariantPayload struct {
	VariantID string
	SKU       string
	Stock     *int
	Price     string // empty when the payload carried no usable price field
}

// ParseProduct decodes an upstream product payload. Unknown keys are ignored;
// a missing PID makes the payload unusable and returns ok=false.
func ParseProduct(raw json.RawMessage) (ProductPayload, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ProductPayload{}, false
	}

	var p ProductPayload
	unmarshalIfPresent(obj, "pid", &p.PID)
	if p.PID == "" {
		unmarshalIfPresent(obj, "product_id", &p.PID)
	}
	unmarshalIfPresent(obj, "title", &p.Title)
	if p.Title == "" {
		unmarshalIfPresent(obj, "name", &p.Title)
	}
	unmarshalIfPresent(obj, "description", &p.Description)
	unmarshalIfPresent(obj, "image", &p.ImageURL)
	unmarshalIfPresent(obj, "sell_price", &p.Price)
	if p.Price == "" {
		unmarshalIfPresent(obj, "price", &p.Price)
	}
	unmarshalIfPresent(obj, "currency", &p.Currency)

	if p.PID == "" {
		return ProductPayload{}, false
	}
	return p, true
}

// ExtractVariants pulls the variant list out of a variants response. The
// upstream is not consistent about nesting: a bare array, {"variants":[...]}
// and {"list":[...]} all occur. An unrecognized shape returns ok=false and
// the caller treats it as "no data", not an error.
func ExtractVariants(raw json.RawMessage) ([]VariantPayload, bool) {
	items, ok := variantItems(raw)
	if !ok {
		return nil, false
	}

	out := make([]VariantPayload, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			continue // one malformed entry never discards the rest
		}

		var v VariantPayload
		unmarshalIfPresent(obj, "vid", &v.VariantID)
		if v.VariantID == "" {
			unmarshalIfPresent(obj, "variant_id", &v.VariantID)
		}
		unmarshalIfPresent(obj, "variant_sku", &v.SKU)
		if v.SKU == "" {
			unmarshalIfPresent(obj, "sku", &v.SKU)
		}

		var stock int
		if rawStock, found := obj["stock"]; found {
			if err := json.Unmarshal(rawStock, &stock); err == nil {
				v.Stock = &stock
			}
		}

		// Explicit variant price fields, most specific first.
		unmarshalIfPresent(obj, "variant_sell_price", &v.Price)
		if v.Price == "" {
			unmarshalIfPresent(obj, "sell_price", &v.Price)
		}

		if v.VariantID == "" {
			continue
		}
		out = append(out, v)
	}
	return out, true
}

func variantItems(raw json.RawMessage) ([]json.RawMessage, bool) {
	// Bare list
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	for _, key := range []string{"variants", "list"} {
		inner, found := obj[key]
		if !found {
			continue
		}
		if err := json.Unmarshal(inner, &items); err == nil {
			return items, true
		}
	}
	return nil, false
}

func unmarshalIfPresent[T any](obj map[string]json.RawMessage, key string, dst *T) {
	raw, ok := obj[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst) // callers validate required fields afterwards
}
