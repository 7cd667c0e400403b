package docgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/audit"
	"veridoc/internal/blobstore"
	"veridoc/internal/domain"
	"veridoc/internal/registry"
	"veridoc/internal/render"
	"veridoc/pkg/dcerrors"
)

// fakeStabilize produces deterministic bytes from the invoice number so the
// pipeline can be exercised without a real renderer. The returned hash is
// the genuine digest of the returned bytes.
func fakeStabilize(in render.Input) (*render.StabilizedDocument, error) {
	body := []byte("rendered: " + in.InvoiceNumber + "/" + in.IssuerSlug + "/" + in.Currency)
	sum := sha256.Sum256(body)
	hash := domain.ContentHash(hex.EncodeToString(sum[:]))
	return &render.StabilizedDocument{
		Bytes:        body,
		Hash:         hash,
		EmbeddedHash: hash,
		Iterations:   2,
		Converged:    true,
	}, nil
}

type GenerateSuite struct {
	suite.Suite
	blobs   *blobstore.InMemoryStore
	records *registry.InMemoryStore
	audits  *audit.InMemoryStore
	service *Service
}

func TestGenerateSuite(t *testing.T) {
	suite.Run(t, new(GenerateSuite))
}

func (s *GenerateSuite) SetupTest() {
	s.blobs = blobstore.NewInMemoryStore(blobstore.NewLinkSigner("test-key"))
	s.records = registry.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()

	var err error
	s.service, err = New(fakeStabilize, s.blobs, blobstore.Buckets{
		Sandbox:    "docs-sandbox",
		Production: "docs-production",
	}, s.records, audit.NewPublisher(s.audits),
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.Require().NoError(err)
}

func (s *GenerateSuite) request() Request {
	return Request{
		IssuerID:      "issuer-1",
		IssuerName:    "Acme GmbH",
		IssuerSlug:    "acme",
		Lane:          domain.LaneSandbox,
		Category:      "billing",
		InvoiceNumber: "INV-2024-0042",
		Currency:      "EUR",
		IssuedAt:      time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC),
		RecipientName: "Widget Corp",
		Items: []domain.LineItem{
			{Description: "Consulting", Quantity: 2, UnitPrice: 100},
		},
	}
}

func (s *GenerateSuite) TestHappyPath() {
	res, err := s.service.Generate(context.Background(), s.request())
	s.Require().NoError(err)

	s.NotEmpty(res.DocumentID)
	s.Equal(registry.OutcomeInserted, res.Outcome)
	s.Equal("docs-sandbox", res.Storage.Bucket)
	s.Equal("acme/billing/2024/03/inv-2024-0042.pdf", res.Storage.Path)
	s.True(res.Converged)

	s.Run("stored bytes match the reported hash", func() {
		data, err := s.blobs.Get(context.Background(), res.Storage)
		s.Require().NoError(err)
		sum := sha256.Sum256(data)
		s.Equal(domain.ContentHash(hex.EncodeToString(sum[:])), res.ContentHash)
		s.Equal(int64(len(data)), res.SizeBytes)
	})

	s.Run("registry record points at the blob", func() {
		rec, err := s.records.FindByNaturalKey(context.Background(), "issuer-1", domain.LaneSandbox, "INV-2024-0042")
		s.Require().NoError(err)
		s.Equal(res.Storage, rec.Location)
		s.Equal(res.ContentHash, rec.ContentHash)
		s.Equal(res.ContentHash, rec.EmbeddedHash, "converged documents print the registered hash")
	})

	s.Run("generation is audited", func() {
		events := s.audits.All()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionDocumentGenerated, events[0].Action)
		s.Equal(res.ContentHash, events[0].ContentHash)
	})
}

func (s *GenerateSuite) TestRegenerationIsIdempotent() {
	first, err := s.service.Generate(context.Background(), s.request())
	s.Require().NoError(err)

	second, err := s.service.Generate(context.Background(), s.request())
	s.Require().NoError(err)

	s.Equal(first.DocumentID, second.DocumentID)
	s.Equal(registry.OutcomeUpdated, second.Outcome)
	s.Equal(1, s.records.Len())
}

func (s *GenerateSuite) TestNoNaturalKeyCollapsesOnHash() {
	req := s.request()
	req.InvoiceNumber = ""

	first, err := s.service.Generate(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(registry.OutcomeInserted, first.Outcome)
	// Key-less documents are stored under a hash-derived stem.
	s.Equal("acme/billing/2024/03/doc-"+string(first.ContentHash[:16])+".pdf", first.Storage.Path)

	second, err := s.service.Generate(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(registry.OutcomeCollapsed, second.Outcome)
	s.Equal(first.DocumentID, second.DocumentID)
	s.Equal(1, s.records.Len())
}

func (s *GenerateSuite) TestValidation() {
	s.Run("missing lane rejects before any side effect", func() {
		req := s.request()
		req.Lane = ""
		_, err := s.service.Generate(context.Background(), req)
		s.True(dcerrors.Is(err, dcerrors.CodeLaneRequired))
		s.Equal(0, s.records.Len())
		s.Empty(s.audits.All())
	})

	s.Run("missing fields are reported together", func() {
		req := s.request()
		req.IssuerID = ""
		req.Currency = ""
		_, err := s.service.Generate(context.Background(), req)
		s.Require().Error(err)
		s.True(dcerrors.Is(err, dcerrors.CodeMissingRequiredFields))
		s.Contains(err.Error(), "issuer_id")
		s.Contains(err.Error(), "currency")
	})
}

func (s *GenerateSuite) TestUploadFailure() {
	svc, err := New(fakeStabilize, failingBlobs{}, blobstore.Buckets{Sandbox: "docs-sandbox"},
		s.records, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.Require().NoError(err)

	_, err = svc.Generate(context.Background(), s.request())
	s.True(dcerrors.Is(err, dcerrors.CodeUploadFailed))
	s.Equal(0, s.records.Len(), "no registry row without a committed blob")
}

func (s *GenerateSuite) TestUpsertFailureAfterBlobWrite() {
	svc, err := New(fakeStabilize, s.blobs, blobstore.Buckets{Sandbox: "docs-sandbox"},
		failingRegistry{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.Require().NoError(err)

	_, err = svc.Generate(context.Background(), s.request())
	s.True(dcerrors.Is(err, dcerrors.CodeDocumentUpsertFailed))

	// The blob write committed before the registry failed; the orphan is
	// reconciled out of band, never silently deleted.
	_, err = s.blobs.Get(context.Background(), domain.StorageLocation{
		Bucket: "docs-sandbox",
		Path:   "acme/billing/2024/03/inv-2024-0042.pdf",
	})
	s.NoError(err)
}

func (s *GenerateSuite) TestNonConvergenceIsAcceptedAndAudited() {
	stabilize := func(in render.Input) (*render.StabilizedDocument, error) {
		body := []byte("oscillating render")
		sum := sha256.Sum256(body)
		prev := sha256.Sum256([]byte("previous pass"))
		return &render.StabilizedDocument{
			Bytes:        body,
			Hash:         domain.ContentHash(hex.EncodeToString(sum[:])),
			EmbeddedHash: domain.ContentHash(hex.EncodeToString(prev[:])),
			Iterations:   render.MaxStabilizeIterations,
			Converged:    false,
		}, nil
	}
	svc, err := New(stabilize, s.blobs, blobstore.Buckets{Sandbox: "docs-sandbox"},
		s.records, audit.NewPublisher(s.audits),
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.Require().NoError(err)

	res, err := svc.Generate(context.Background(), s.request())
	s.Require().NoError(err, "exhausted bound still produces a document")
	s.False(res.Converged)
	s.Equal(render.MaxStabilizeIterations, res.Iterations)

	s.Run("trailing printed hash stays findable", func() {
		s.NotEqual(res.ContentHash, res.EmbeddedHash)
		rec, err := s.records.FindByEmbeddedHash(context.Background(), res.EmbeddedHash)
		s.Require().NoError(err)
		s.Equal(res.ContentHash, rec.ContentHash)
	})

	var actions []audit.Action
	for _, ev := range s.audits.All() {
		actions = append(actions, ev.Action)
	}
	s.Contains(actions, audit.ActionStabilizationOverflow)
	s.Contains(actions, audit.ActionDocumentGenerated)
}

func (s *GenerateSuite) TestRenderFailure() {
	stabilize := func(render.Input) (*render.StabilizedDocument, error) {
		return nil, fmt.Errorf("font missing")
	}
	svc, err := New(stabilize, s.blobs, blobstore.Buckets{Sandbox: "docs-sandbox"},
		s.records, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.Require().NoError(err)

	_, err = svc.Generate(context.Background(), s.request())
	s.True(dcerrors.Is(err, dcerrors.CodeInternal))
}

type failingBlobs struct{}

func (failingBlobs) Upload(context.Context, domain.StorageLocation, []byte, string) error {
	return fmt.Errorf("bucket unreachable")
}

func (failingBlobs) SignedURL(context.Context, domain.StorageLocation, time.Duration) (domain.ResolvedLink, error) {
	return domain.ResolvedLink{}, fmt.Errorf("bucket unreachable")
}

func (failingBlobs) List(context.Context, string, string) ([]blobstore.ObjectInfo, error) {
	return nil, fmt.Errorf("bucket unreachable")
}

type failingRegistry struct{}

func (failingRegistry) Upsert(context.Context, domain.RegistryRecord) (domain.RegistryRecord, registry.UpsertOutcome, error) {
	return domain.RegistryRecord{}, "", fmt.Errorf("connection refused")
}

func (failingRegistry) FindByNaturalKey(context.Context, string, domain.Lane, string) (domain.RegistryRecord, error) {
	return domain.RegistryRecord{}, registry.ErrNotFound
}

func (failingRegistry) FindByContentHash(context.Context, domain.ContentHash) (domain.RegistryRecord, error) {
	return domain.RegistryRecord{}, registry.ErrNotFound
}

func (failingRegistry) FindByEmbeddedHash(context.Context, domain.ContentHash) (domain.RegistryRecord, error) {
	return domain.RegistryRecord{}, registry.ErrNotFound
}
