package httptransport

import (
	"time"

	"veridoc/internal/domain"
)

// generateRequest is the wire shape of one generation call. Optional fields
// stay optional here; the service decides what is required.
type generateRequest struct {
	IssuerID      string         `json:"issuer_id"`
	IssuerName    string         `json:"issuer_name"`
	IssuerSlug    string         `json:"issuer_slug"`
	IssuerLines   []string       `json:"issuer_lines"`
	Lane          string         `json:"lane"`
	Category      string         `json:"category"`
	InvoiceNumber string         `json:"invoice_number"`
	Currency      string         `json:"currency"`
	IssuedAt      *time.Time     `json:"issued_at"`
	DueAt         *time.Time     `json:"due_at"`
	Recipient     wireParty      `json:"recipient"`
	LineItems     []wireLineItem `json:"line_items"`
	Notes         string         `json:"notes"`
	Reason        string         `json:"reason"`
}

type wireParty struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

type wireLineItem struct {
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

func (i wireLineItem) toDomain() domain.LineItem {
	item := domain.LineItem{
		Description: i.Description,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
	}
	if i.Amount != nil {
		item.Amount = *i.Amount
		item.AmountSet = true
	}
	return item
}

type generateResponse struct {
	OK           bool        `json:"ok"`
	DocumentID   string      `json:"document_id"`
	ContentHash  string      `json:"content_hash"`
	EmbeddedHash string      `json:"embedded_hash"`
	Storage      wireStorage `json:"storage"`
}

type wireStorage struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

// resolveRequest carries the logical entry descriptor the shell already
// holds, plus the active lane.
type resolveRequest struct {
	Lane  string    `json:"lane"`
	Entry wireEntry `json:"entry"`
}

type wireEntry struct {
	ID        string        `json:"id"`
	Official  *wireArtifact `json:"official"`
	Certified *wireArtifact `json:"certified"`
	Uploaded  *wireArtifact `json:"uploaded"`
}

type wireArtifact struct {
	Lane     string `json:"lane"`
	Bucket   string `json:"bucket"`
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

func (a *wireArtifact) toDomain(tier domain.AuthorityTier) *domain.ArtifactRef {
	if a == nil {
		return nil
	}
	return &domain.ArtifactRef{
		Tier:     tier,
		Lane:     domain.Lane(a.Lane),
		Location: domain.StorageLocation{Bucket: a.Bucket, Path: a.Path},
		FileName: a.FileName,
	}
}

func (e wireEntry) toDomain(lane domain.Lane) domain.DocumentEntry {
	return domain.DocumentEntry{
		ID:        e.ID,
		Lane:      lane,
		Official:  e.Official.toDomain(domain.TierOfficial),
		Certified: e.Certified.toDomain(domain.TierCertified),
		Uploaded:  e.Uploaded.toDomain(domain.TierUploaded),
	}
}

type resolveResponse struct {
	OK        bool      `json:"ok"`
	URL       string    `json:"url"`
	Bucket    string    `json:"bucket"`
	Path      string    `json:"path"`
	Tier      string    `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
}
