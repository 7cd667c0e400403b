// Package cache remembers where fallback search found an artifact, keyed
// explicitly by (entry id, lane). It is a hint only: resolution re-verifies
// through the blob store, and the canonical registry record is never
// rewritten from here.
package cache

import (
	"context"

	"veridoc/internal/domain"
)

// HintCache is the resolution hint port.
type HintCache interface {
	Get(ctx context.Context, entryID string, lane domain.Lane) (domain.StorageLocation, bool, error)
	Set(ctx context.Context, entryID string, lane domain.Lane, loc domain.StorageLocation) error
}

func key(entryID string, lane domain.Lane) string {
	return "hint:" + entryID + ":" + string(lane)
}
