package importer

import (
	"encoding/json"
)

// Item is one product in a chunk. ClaimToken is the token acquired at
// dispatch time; an empty token means the item was requeued after its claims
// were released, and the processor must take a fresh claim before touching
// it.
type Item struct {
	PID        string          `json:"pid"`
	ClaimToken string          `json:"claim_token,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// ChunkJob is the payload of a chunk_import job: a batch of upstream payloads
// imported together in one bulk write, plus the tracking key its outcomes are
// reported under.
type ChunkJob struct {
	TrackingKey string `json:"tracking_key"`
	Items       []Item `json:"items"`

	// Requeues counts how many times this batch has been re-enqueued after a
	// failed bulk write.
	Requeues int `json:"requeues,omitempty"`
}

// EnrichJob is the fire-and-forget follow-up dispatched for imported
// products: translation, SEO and media generation run downstream.
type EnrichJob struct {
	PID   string   `json:"pid"`
	Tasks []string `json:"tasks"`
}

// VariantSyncJob is the payload of a variant_sync job. Attempt is the 429
// backoff counter and travels with the job across self-requeues.
type VariantSyncJob struct {
	PID     string `json:"pid"`
	Attempt int    `json:"attempt"`
}

var enrichTasks = []string{"translation", "seo", "media"}
