// Package registry persists one row per stored artifact. The store enforces
// two different uniqueness rules: a partial rule on (issuer, lane,
// natural_key) that only applies when the natural key is present, and a
// full rule on content_hash. The native upsert primitive cannot target the
// partial rule, so the natural-key path is an explicit
// lookup-update-or-insert protocol with each step's failure reported
// distinctly.
package registry

import (
	"context"

	"veridoc/internal/domain"
	"veridoc/pkg/dcerrors"
)

// ErrNotFound keeps registry 404s consistent across implementations.
var ErrNotFound = dcerrors.New(dcerrors.CodeNotFound, "registry record not found")

// UpsertOutcome names which branch of the protocol a record went through.
type UpsertOutcome string

const (
	// OutcomeInserted means a new row was created.
	OutcomeInserted UpsertOutcome = "inserted"
	// OutcomeUpdated means an existing natural-key row was updated in place.
	OutcomeUpdated UpsertOutcome = "updated"
	// OutcomeCollapsed means a hash-keyed write landed on an existing
	// content_hash row (byte-identical regeneration).
	OutcomeCollapsed UpsertOutcome = "collapsed"
)

// Store is the registry port. Upsert implements the protocol described in
// the package comment: natural key present means find by (issuer, lane,
// natural key) then update in place or insert; absent means upsert keyed by
// content hash.
type Store interface {
	Upsert(ctx context.Context, rec domain.RegistryRecord) (domain.RegistryRecord, UpsertOutcome, error)
	FindByNaturalKey(ctx context.Context, issuerID string, lane domain.Lane, naturalKey string) (domain.RegistryRecord, error)
	FindByContentHash(ctx context.Context, hash domain.ContentHash) (domain.RegistryRecord, error)
	// FindByEmbeddedHash matches the hash printed inside a document, which
	// trails ContentHash for documents that stabilized at the bound.
	FindByEmbeddedHash(ctx context.Context, hash domain.ContentHash) (domain.RegistryRecord, error)
}
