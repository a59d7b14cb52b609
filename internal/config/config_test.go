package config

import (
	"testing"
	"time"
)

func TestNormalize_ClampsBackoffCapToClaimTTL(t *testing.T) {
	c := Config{
		ClaimTTL:           5 * time.Minute,
		VariantBackoffBase: 30 * time.Second,
		VariantBackoffCap:  30 * time.Minute,
	}.Normalize()

	if c.VariantBackoffCap != 5*time.Minute {
		t.Fatalf("expected cap clamped to claim TTL (5m), got %s", c.VariantBackoffCap)
	}
}

func TestNormalize_ClampsBaseToCap(t *testing.T) {
	c := Config{
		ClaimTTL:           10 * time.Minute,
		VariantBackoffBase: 3 * time.Minute,
		VariantBackoffCap:  time.Minute,
	}.Normalize()

	if c.VariantBackoffBase != time.Minute {
		t.Fatalf("expected base clamped to cap (1m), got %s", c.VariantBackoffBase)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	c := Config{}.Normalize()

	if c.ClaimTTL != 20*time.Minute {
		t.Fatalf("expected default claim TTL 20m, got %s", c.ClaimTTL)
	}
	if c.VariantBackoffCap > c.ClaimTTL {
		t.Fatalf("backoff cap %s exceeds claim TTL %s", c.VariantBackoffCap, c.ClaimTTL)
	}
	if c.PageSize != 100 || c.ChunkSize != 25 {
		t.Fatalf("unexpected paging defaults: page=%d chunk=%d", c.PageSize, c.ChunkSize)
	}
}

func TestLoad_BackoffNeverExceedsClaimTTL(t *testing.T) {
	t.Setenv("CLAIM_TTL", "2m")
	t.Setenv("VARIANT_BACKOFF_CAP", "1h")

	c := Load()
	if c.VariantBackoffCap > c.ClaimTTL {
		t.Fatalf("backoff cap %s exceeds claim TTL %s", c.VariantBackoffCap, c.ClaimTTL)
	}
}
