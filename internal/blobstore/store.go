// Package blobstore is the single capability interface for artifact
// storage: lane-isolated buckets, idempotent uploads, time-boxed signed
// links, and directory listing for fallback search. Implementations are
// interface-driven so the pipeline can run against memory in tests and an
// S3-compatible backend in production.
package blobstore

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"veridoc/internal/domain"
	"veridoc/pkg/dcerrors"
)

// ErrObjectNotFound keeps storage 404s consistent across implementations.
// Resolution treats it as "run the fallback search"; every other error
// propagates.
var ErrObjectNotFound = dcerrors.New(dcerrors.CodeNotFound, "object not found")

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// Store is the blob capability. Upload has overwrite semantics: writing an
// existing path succeeds, because regenerating the same natural key is a
// normal operation.
type Store interface {
	Upload(ctx context.Context, loc domain.StorageLocation, data []byte, contentType string) error
	SignedURL(ctx context.Context, loc domain.StorageLocation, ttl time.Duration) (domain.ResolvedLink, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// Buckets maps lanes to bucket names. Bucket choice is a pure function of
// Lane and nothing else.
type Buckets struct {
	Sandbox    string
	Production string
}

func (b Buckets) ForLane(lane domain.Lane) string {
	if lane == domain.LaneProduction {
		return b.Production
	}
	return b.Sandbox
}

// ObjectPath builds the deterministic storage path
// {issuer-slug}/{category}/{yyyy}/{mm}/{stem}.pdf.
func ObjectPath(issuerSlug, category string, at time.Time, stem string) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%s.pdf",
		Slugify(issuerSlug), Slugify(category), at.Year(), int(at.Month()), stem)
}

// Stem prefers a slugified natural key, so regenerating the same invoice
// overwrites the same path, and falls back to a hash-derived stem.
func Stem(naturalKey string, hash domain.ContentHash) string {
	if s := Slugify(naturalKey); s != "" {
		return s
	}
	return "doc-" + string(hash)[:16]
}

// translit folds common accented latin letters to their base letter so
// "Café" and "Cafe" land on the same storage path. Anything not covered
// collapses into a hyphen like every other non-alphanumeric rune.
var translit = map[rune]string{
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'á': "a", 'à': "a", 'â': "a", 'ä': "a", 'ã': "a", 'å': "a",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o", 'õ': "o", 'ø': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u",
	'ý': "y", 'ÿ': "y",
	'ç': "c", 'ñ': "n", 'ß': "ss", 'æ': "ae", 'œ': "oe",
}

// Slugify lowercases and reduces s to [a-z0-9-], transliterating accented
// latin letters and collapsing runs of other characters into single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if t, ok := translit[r]; ok {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteString(t)
			continue
		}
		if unicode.IsLetter(r) && r <= unicode.MaxASCII || unicode.IsDigit(r) && r <= unicode.MaxASCII {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}
	return b.String()
}
