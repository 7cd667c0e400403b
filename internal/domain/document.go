// Package domain holds the core types of the certification pipeline. Types
// here are transport-agnostic; stores and services depend on them, never the
// other way around.
package domain

import "time"

// Lane is the boolean sandbox/production partition. Artifacts never cross
// lanes: bucket selection, registry scoping, and resolution all key on it.
type Lane string

const (
	LaneSandbox    Lane = "sandbox"
	LaneProduction Lane = "production"
)

// Valid reports whether the lane is one of the two known partitions.
func (l Lane) Valid() bool {
	return l == LaneSandbox || l == LaneProduction
}

// AuthorityTier orders artifact provenance. Resolution always prefers the
// highest tier present for the active lane.
type AuthorityTier int

const (
	TierUploaded AuthorityTier = iota
	TierCertified
	TierOfficial
)

func (t AuthorityTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierCertified:
		return "certified"
	default:
		return "uploaded"
	}
}

// LineItem is one billing row as supplied by the caller, in major currency
// units. Amount overrides quantity times unit price when AmountSet.
type LineItem struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	Amount      float64
	AmountSet   bool
}

// Totals is the canonical subtotal/tax/total triple in minor units.
type Totals struct {
	Currency string
	Items    []NormalizedItem
	Subtotal int64
	Tax      int64
	Total    int64
}

// NormalizedItem is a LineItem after defaulting and truncation.
type NormalizedItem struct {
	Description string
	Quantity    float64
	UnitPrice   int64
	Amount      int64
}

// ContentHash is the lowercase hex SHA-256 of a rendered document's bytes.
// It is the artifact's identity once stabilized.
type ContentHash string

// StorageLocation addresses one blob. Bucket is chosen solely by Lane.
type StorageLocation struct {
	Bucket string
	Path   string
}

// RegistryRecord is the persisted row for one stored artifact, scoped to
// (issuer, lane). NaturalKey is optional; when present it identifies the
// logical document across regenerations.
type RegistryRecord struct {
	ID          string
	IssuerID    string
	Lane        Lane
	Category    string
	NaturalKey  string // empty means content-hash identified
	ContentHash ContentHash
	// EmbeddedHash is the hash printed inside the document itself. Equal
	// to ContentHash except for documents whose stabilization loop hit its
	// bound; verification matches either.
	EmbeddedHash ContentHash
	Location     StorageLocation
	SizeBytes   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArtifactRef points at one stored artifact of a given tier on a logical
// entry. FileName is the original base name, used by fallback search.
type ArtifactRef struct {
	Tier     AuthorityTier
	Lane     Lane
	Location StorageLocation
	FileName string
}

// DocumentEntry is the logical record the resolver works from. The shell
// application owns entry CRUD; resolution only reads the artifact refs.
type DocumentEntry struct {
	ID        string
	Lane      Lane
	Official  *ArtifactRef
	Certified *ArtifactRef
	Uploaded  *ArtifactRef
}

// Candidates returns the entry's artifact refs in descending authority
// order, skipping absent tiers.
func (e DocumentEntry) Candidates() []*ArtifactRef {
	var out []*ArtifactRef
	for _, ref := range []*ArtifactRef{e.Official, e.Certified, e.Uploaded} {
		if ref != nil {
			out = append(out, ref)
		}
	}
	return out
}

// ResolvedLink is an ephemeral signed retrieval URL. Never persisted;
// regenerated per request.
type ResolvedLink struct {
	URL       string
	Location  StorageLocation
	ExpiresAt time.Time
}
