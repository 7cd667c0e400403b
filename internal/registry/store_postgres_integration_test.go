//go:build integration

package registry_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/registry"
	"veridoc/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *registry.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(registry.EnsureSchema(context.Background(), s.pg.DB))
	s.store = registry.NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec("TRUNCATE document_records")
	s.Require().NoError(err)
}

func hashOf(seed string) domain.ContentHash {
	sum := sha256.Sum256([]byte(seed))
	return domain.ContentHash(hex.EncodeToString(sum[:]))
}

func record(naturalKey, hashSeed string) domain.RegistryRecord {
	return domain.RegistryRecord{
		IssuerID:     "issuer-1",
		Lane:         domain.LaneSandbox,
		Category:     "billing",
		NaturalKey:   naturalKey,
		ContentHash:  hashOf(hashSeed),
		EmbeddedHash: hashOf(hashSeed),
		Location: domain.StorageLocation{
			Bucket: "docs-sandbox",
			Path:   "acme/billing/2024/03/" + hashSeed + ".pdf",
		},
		SizeBytes: 1024,
	}
}

func (s *PostgresStoreSuite) TestNaturalKeyUpsertIsIdempotent() {
	ctx := context.Background()

	first, outcome, err := s.store.Upsert(ctx, record("INV-2024-0042", "v1"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome)
	s.NotEmpty(first.ID)

	second, outcome, err := s.store.Upsert(ctx, record("INV-2024-0042", "v2"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeUpdated, outcome)
	s.Equal(first.ID, second.ID, "regeneration reuses the row")
	s.Equal(hashOf("v2"), second.ContentHash)

	var count int
	s.Require().NoError(s.pg.DB.QueryRow("SELECT count(*) FROM document_records").Scan(&count))
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestNaturalKeyScopedByLaneAndIssuer() {
	ctx := context.Background()

	_, outcome, err := s.store.Upsert(ctx, record("INV-1", "sandbox-doc"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome)

	prod := record("INV-1", "prod-doc")
	prod.Lane = domain.LaneProduction
	_, outcome, err = s.store.Upsert(ctx, prod)
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome, "same key in another lane is a distinct row")

	other := record("INV-1", "other-issuer-doc")
	other.IssuerID = "issuer-2"
	_, outcome, err = s.store.Upsert(ctx, other)
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome)
}

func (s *PostgresStoreSuite) TestHashUpsertCollapses() {
	ctx := context.Background()

	first, outcome, err := s.store.Upsert(ctx, record("", "same-bytes"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome)

	second, outcome, err := s.store.Upsert(ctx, record("", "same-bytes"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeCollapsed, outcome)
	s.Equal(first.ID, second.ID)

	_, outcome, err = s.store.Upsert(ctx, record("", "different-bytes"))
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, outcome)
}

func (s *PostgresStoreSuite) TestKeyLessRowsDoNotBindThePartialIndex() {
	ctx := context.Background()

	// Two key-less rows for the same issuer and lane must coexist; only the
	// content hash separates them.
	_, _, err := s.store.Upsert(ctx, record("", "doc-a"))
	s.Require().NoError(err)
	_, _, err = s.store.Upsert(ctx, record("", "doc-b"))
	s.Require().NoError(err)

	var count int
	s.Require().NoError(s.pg.DB.QueryRow("SELECT count(*) FROM document_records").Scan(&count))
	s.Equal(2, count)
}

func (s *PostgresStoreSuite) TestFindByNaturalKey() {
	ctx := context.Background()

	stored, _, err := s.store.Upsert(ctx, record("INV-7", "find-me"))
	s.Require().NoError(err)

	found, err := s.store.FindByNaturalKey(ctx, "issuer-1", domain.LaneSandbox, "INV-7")
	s.Require().NoError(err)
	s.Equal(stored.ID, found.ID)
	s.Equal(stored.Location, found.Location)

	_, err = s.store.FindByNaturalKey(ctx, "issuer-1", domain.LaneSandbox, "INV-404")
	s.ErrorIs(err, registry.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByContentHash() {
	ctx := context.Background()

	stored, _, err := s.store.Upsert(ctx, record("", "hashed"))
	s.Require().NoError(err)

	found, err := s.store.FindByContentHash(ctx, hashOf("hashed"))
	s.Require().NoError(err)
	s.Equal(stored.ID, found.ID)

	_, err = s.store.FindByContentHash(ctx, hashOf("unknown"))
	s.ErrorIs(err, registry.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByEmbeddedHash() {
	ctx := context.Background()

	// Registered under the digest, printed with the previous generation's
	// hash: both must stay findable.
	rec := record("", "accepted-at-bound")
	rec.EmbeddedHash = hashOf("printed-generation")
	stored, _, err := s.store.Upsert(ctx, rec)
	s.Require().NoError(err)

	found, err := s.store.FindByEmbeddedHash(ctx, hashOf("printed-generation"))
	s.Require().NoError(err)
	s.Equal(stored.ID, found.ID)
	s.Equal(hashOf("accepted-at-bound"), found.ContentHash)

	_, err = s.store.FindByEmbeddedHash(ctx, hashOf("unknown"))
	s.ErrorIs(err, registry.ErrNotFound)
}
