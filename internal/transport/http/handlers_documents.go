package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/docgen"
	"veridoc/internal/domain"
	"veridoc/internal/platform/middleware"
	"veridoc/internal/registry"
	"veridoc/internal/resolve"
	"veridoc/pkg/dcerrors"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Handler is the thin HTTP layer over the pipeline services. It decodes,
// delegates, and translates errors; business logic stays in the services.
type Handler struct {
	logger    *slog.Logger
	generator *docgen.Service
	resolver  *resolve.Service
	records   registry.Store
}

func NewHandler(logger *slog.Logger, generator *docgen.Service, resolver *resolve.Service, records registry.Store) *Handler {
	return &Handler{
		logger:    logger,
		generator: generator,
		resolver:  resolver,
		records:   records,
	}
}

// Register mounts the document routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/generate", h.handleGenerate)
	r.Post("/documents/resolve", h.handleResolve)
	r.Get("/documents/{contentHash}", h.handleGetRecord)
	r.Get("/verify", h.handleVerify)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid generate request",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, dcerrors.New(dcerrors.CodeBadRequest, "invalid request body"))
		return
	}

	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, item.toDomain())
	}
	svcReq := docgen.Request{
		IssuerID:       req.IssuerID,
		IssuerName:     req.IssuerName,
		IssuerSlug:     req.IssuerSlug,
		IssuerLines:    req.IssuerLines,
		Lane:           domain.Lane(req.Lane),
		Category:       req.Category,
		InvoiceNumber:  req.InvoiceNumber,
		Currency:       req.Currency,
		RecipientName:  req.Recipient.Name,
		RecipientLines: req.Recipient.Lines,
		Items:          items,
		Notes:          req.Notes,
		Reason:         req.Reason,
	}
	if req.IssuedAt != nil {
		svcReq.IssuedAt = *req.IssuedAt
	}
	if req.DueAt != nil {
		svcReq.DueAt = *req.DueAt
	}

	result, err := h.generator.Generate(ctx, svcReq)
	if err != nil {
		if dcerrors.Is(err, dcerrors.CodeLaneRequired) || dcerrors.Is(err, dcerrors.CodeMissingRequiredFields) {
			h.logger.WarnContext(ctx, "generate rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			writeError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "generate failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		OK:           true,
		DocumentID:   result.DocumentID,
		ContentHash:  string(result.ContentHash),
		EmbeddedHash: string(result.EmbeddedHash),
		Storage: wireStorage{
			Bucket: result.Storage.Bucket,
			Path:   result.Storage.Path,
			Size:   result.SizeBytes,
		},
	})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dcerrors.New(dcerrors.CodeBadRequest, "invalid request body"))
		return
	}

	lane := domain.Lane(req.Lane)
	link, tier, err := h.resolver.Resolve(ctx, req.Entry.toDomain(lane), lane)
	if err != nil {
		h.logger.WarnContext(ctx, "resolve failed",
			"request_id", middleware.GetRequestID(ctx),
			"entry_id", req.Entry.ID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		OK:        true,
		URL:       link.URL,
		Bucket:    link.Location.Bucket,
		Path:      link.Location.Path,
		Tier:      tier.String(),
		ExpiresAt: link.ExpiresAt,
	})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "contentHash")
	if !hexHash.MatchString(hash) {
		writeError(w, dcerrors.New(dcerrors.CodeBadRequest, "content hash must be 64 lowercase hex characters"))
		return
	}
	record, err := h.records.FindByContentHash(r.Context(), domain.ContentHash(hash))
	if err != nil {
		if !dcerrors.Is(err, dcerrors.CodeNotFound) {
			err = dcerrors.Wrap(dcerrors.CodeRegistryLookupFailed, "registry lookup failed", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"document_id":  record.ID,
		"issuer_id":    record.IssuerID,
		"lane":         record.Lane,
		"category":     record.Category,
		"natural_key":  record.NaturalKey,
		"content_hash": record.ContentHash,
		"storage": wireStorage{
			Bucket: record.Location.Bucket,
			Path:   record.Location.Path,
			Size:   record.SizeBytes,
		},
		"created_at": record.CreatedAt,
		"updated_at": record.UpdatedAt,
	})
}

// handleVerify backs the verification link embedded in every document. The
// hash a recipient reads off the page is the embedded one, which trails the
// registered content hash for documents that stabilized at the bound, so the
// lookup tries both.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if !hexHash.MatchString(hash) {
		writeError(w, dcerrors.New(dcerrors.CodeBadRequest, "hash must be 64 lowercase hex characters"))
		return
	}
	ctx := r.Context()
	record, err := h.records.FindByContentHash(ctx, domain.ContentHash(hash))
	if dcerrors.Is(err, dcerrors.CodeNotFound) {
		record, err = h.records.FindByEmbeddedHash(ctx, domain.ContentHash(hash))
	}
	if err != nil {
		if dcerrors.Is(err, dcerrors.CodeNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":         true,
				"registered": false,
			})
			return
		}
		writeError(w, dcerrors.Wrap(dcerrors.CodeRegistryLookupFailed, "registry lookup failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"registered": true,
		"issuer_id":  record.IssuerID,
		"category":   record.Category,
		"created_at": record.CreatedAt,
	})
}
