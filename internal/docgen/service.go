// Package docgen runs the certification pipeline: normalize totals, render
// and hash-stabilize the document, write the blob, register the record.
// One synchronous sequence per call; the only internal coordination is a
// singleflight collapse of concurrent calls for the same natural key.
package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"veridoc/internal/audit"
	"veridoc/internal/billing"
	"veridoc/internal/blobstore"
	"veridoc/internal/domain"
	"veridoc/internal/platform/metrics"
	"veridoc/internal/registry"
	"veridoc/internal/render"
	"veridoc/pkg/dcerrors"
)

// Request is one generation call.
type Request struct {
	IssuerID       string
	IssuerName     string
	IssuerSlug     string
	IssuerLines    []string
	Lane           domain.Lane
	Category       string
	InvoiceNumber  string // natural key, optional
	Currency       string
	IssuedAt       time.Time
	DueAt          time.Time
	RecipientName  string
	RecipientLines []string
	Items          []domain.LineItem
	Notes          string
	Reason         string // free-text audit reason
}

// Result reports what was generated and where it landed. EmbeddedHash is
// the hash printed inside the document; callers hand it to recipients, so
// verification accepts it alongside ContentHash.
type Result struct {
	DocumentID   string
	ContentHash  domain.ContentHash
	EmbeddedHash domain.ContentHash
	Storage      domain.StorageLocation
	SizeBytes    int64
	Iterations   int
	Converged    bool
	Outcome      registry.UpsertOutcome
}

// StabilizeFunc renders input to a self-consistent (bytes, hash) pair. In
// production this is render.Stabilize bound to a Renderer; tests substitute
// cheap deterministic bytes.
type StabilizeFunc func(in render.Input) (*render.StabilizedDocument, error)

// Stabilizer binds a renderer into a StabilizeFunc.
func Stabilizer(r *render.Renderer) StabilizeFunc {
	return func(in render.Input) (*render.StabilizedDocument, error) {
		return render.Stabilize(r, in)
	}
}

// Service owns the pipeline.
type Service struct {
	stabilize StabilizeFunc
	blobs     blobstore.Store
	buckets   blobstore.Buckets
	records   registry.Store
	auditor   *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
	group     singleflight.Group
	tracer    trace.Tracer
}

func New(
	stabilize StabilizeFunc,
	blobs blobstore.Store,
	buckets blobstore.Buckets,
	records registry.Store,
	auditor *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	if stabilize == nil {
		return nil, fmt.Errorf("docgen: stabilizer is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("docgen: blob store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("docgen: registry store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("docgen: logger is required")
	}
	return &Service{
		stabilize: stabilize,
		blobs:     blobs,
		buckets:   buckets,
		records:   records,
		auditor:   auditor,
		logger:    logger,
		metrics:   m,
		clock:     time.Now,
		tracer:    otel.Tracer("veridoc/docgen"),
	}, nil
}

// Generate runs the full pipeline. Validation rejects before any rendering
// or storage work; after the blob write commits, a registry failure leaves
// an orphaned blob at worst, never a registry row pointing at nothing.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	if req.InvoiceNumber == "" {
		return s.run(ctx, req)
	}
	// Concurrent regeneration of one logical document races at the
	// registry's lookup-then-act step; collapsing the calls removes the
	// in-process race entirely.
	key := req.IssuerID + "|" + string(req.Lane) + "|" + req.InvoiceNumber
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.run(ctx, req)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "docgen.generate", trace.WithAttributes(
		attribute.String("lane", string(req.Lane)),
		attribute.String("issuer", req.IssuerID),
		attribute.String("category", req.Category),
	))
	defer span.End()

	totals := billing.Normalize(req.Items, req.Currency)

	_, renderSpan := s.tracer.Start(ctx, "docgen.stabilize")
	doc, err := s.stabilize(renderInputFrom(req, totals))
	renderSpan.End()
	if err != nil {
		return Result{}, dcerrors.Wrap(dcerrors.CodeInternal, "document rendering failed", err)
	}
	s.metrics.ObserveStabilizeIterations(doc.Iterations)
	if !doc.Converged {
		// Fail-safe: accept the last state, flag it for audit instead of
		// blocking the operator.
		s.metrics.RecordStabilizeOverflow()
		s.logger.WarnContext(ctx, "hash stabilization bound exhausted",
			"issuer_id", req.IssuerID,
			"content_hash", doc.Hash,
		)
		s.emitAudit(ctx, req, audit.ActionStabilizationOverflow, doc.Hash,
			fmt.Sprintf("accepted after %d iterations without convergence", doc.Iterations))
	}

	at := req.IssuedAt
	if at.IsZero() {
		at = s.clock()
	}
	loc := domain.StorageLocation{
		Bucket: s.buckets.ForLane(req.Lane),
		Path: blobstore.ObjectPath(req.IssuerSlug, req.Category, at,
			blobstore.Stem(req.InvoiceNumber, doc.Hash)),
	}

	_, uploadSpan := s.tracer.Start(ctx, "docgen.upload")
	err = s.blobs.Upload(ctx, loc, doc.Bytes, "application/pdf")
	uploadSpan.End()
	if err != nil {
		s.metrics.RecordUpload("error")
		return Result{}, dcerrors.Wrap(dcerrors.CodeUploadFailed, "blob upload failed", err)
	}
	s.metrics.RecordUpload("ok")

	_, registerSpan := s.tracer.Start(ctx, "docgen.register")
	record, outcome, err := s.records.Upsert(ctx, domain.RegistryRecord{
		IssuerID:     req.IssuerID,
		Lane:         req.Lane,
		Category:     req.Category,
		NaturalKey:   req.InvoiceNumber,
		ContentHash:  doc.Hash,
		EmbeddedHash: doc.EmbeddedHash,
		Location:     loc,
		SizeBytes:    int64(len(doc.Bytes)),
	})
	registerSpan.End()
	if err != nil {
		// The blob is committed; the caller needs to know the registry
		// step failed so the orphan can be reconciled.
		s.logger.ErrorContext(ctx, "registry upsert failed after blob write",
			"bucket", loc.Bucket,
			"path", loc.Path,
			"error", err.Error(),
		)
		return Result{}, dcerrors.Wrap(dcerrors.CodeDocumentUpsertFailed, "document registration failed", err)
	}
	s.metrics.RecordUpsert(string(outcome))
	s.metrics.RecordGenerated(string(req.Lane))

	s.emitAudit(ctx, req, audit.ActionDocumentGenerated, doc.Hash, string(outcome))
	s.logger.InfoContext(ctx, "document generated",
		"issuer_id", req.IssuerID,
		"lane", req.Lane,
		"content_hash", doc.Hash,
		"path", loc.Path,
		"outcome", outcome,
	)

	return Result{
		DocumentID:   record.ID,
		ContentHash:  doc.Hash,
		EmbeddedHash: doc.EmbeddedHash,
		Storage:      loc,
		SizeBytes:    int64(len(doc.Bytes)),
		Iterations:   doc.Iterations,
		Converged:    doc.Converged,
		Outcome:      outcome,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, req Request, action audit.Action, hash domain.ContentHash, detail string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		IssuerID:    req.IssuerID,
		Lane:        req.Lane,
		Action:      action,
		ContentHash: hash,
		NaturalKey:  req.InvoiceNumber,
		Reason:      req.Reason,
		Detail:      detail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err.Error())
	}
}

func renderInputFrom(req Request, totals domain.Totals) render.Input {
	return render.Input{
		IssuerName:     req.IssuerName,
		IssuerSlug:     req.IssuerSlug,
		IssuerLines:    req.IssuerLines,
		RecipientName:  req.RecipientName,
		RecipientLines: req.RecipientLines,
		Category:       req.Category,
		InvoiceNumber:  req.InvoiceNumber,
		Currency:       req.Currency,
		IssuedAt:       req.IssuedAt,
		DueAt:          req.DueAt,
		Totals:         totals,
		Notes:          req.Notes,
	}
}

func validate(req Request) error {
	if !req.Lane.Valid() {
		return dcerrors.New(dcerrors.CodeLaneRequired, "lane must be sandbox or production")
	}
	var missing []string
	if req.IssuerID == "" {
		missing = append(missing, "issuer_id")
	}
	if req.IssuerSlug == "" {
		missing = append(missing, "issuer_slug")
	}
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if req.Currency == "" {
		missing = append(missing, "currency")
	}
	if len(missing) > 0 {
		return dcerrors.New(dcerrors.CodeMissingRequiredFields,
			fmt.Sprintf("missing required fields: %v", missing))
	}
	return nil
}
