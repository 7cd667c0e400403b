// Package resolve locates "the right artifact" for a logical document entry
// and turns it into a time-boxed signed link. Candidates are ordered by
// authority tier and filtered to the active lane; a not-found on the
// recorded path triggers a directory-listing fallback search that tolerates
// storage layout drift without ever rewriting the canonical record.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"veridoc/internal/audit"
	"veridoc/internal/blobstore"
	"veridoc/internal/domain"
	"veridoc/internal/platform/metrics"
	"veridoc/internal/resolve/cache"
	"veridoc/pkg/dcerrors"
)

// identifierPrefix recognizes fixed-format identifiers like "INV-2024-0042"
// at the start of a file name; when present, fallback candidates must share
// the prefix rather than merely resembling the name.
var identifierPrefix = regexp.MustCompile(`^[A-Za-z]{2,6}-[0-9][0-9-]*`)

// Service resolves entries into signed links.
type Service struct {
	blobs   blobstore.Store
	hints   cache.HintCache
	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	linkTTL time.Duration
}

func New(
	blobs blobstore.Store,
	hints cache.HintCache,
	auditor *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	linkTTL time.Duration,
) (*Service, error) {
	if blobs == nil {
		return nil, fmt.Errorf("resolve: blob store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("resolve: logger is required")
	}
	if linkTTL <= 0 {
		return nil, fmt.Errorf("resolve: link TTL must be positive")
	}
	return &Service{
		blobs:   blobs,
		hints:   hints,
		auditor: auditor,
		logger:  logger,
		metrics: m,
		linkTTL: linkTTL,
	}, nil
}

// Resolve picks the highest-authority artifact matching the active lane and
// returns a signed link for it. Signed-link not-found triggers the fallback
// search; any other error propagates unchanged.
func (s *Service) Resolve(ctx context.Context, entry domain.DocumentEntry, lane domain.Lane) (domain.ResolvedLink, domain.AuthorityTier, error) {
	if !lane.Valid() {
		return domain.ResolvedLink{}, 0, dcerrors.New(dcerrors.CodeLaneRequired, "lane must be sandbox or production")
	}

	var chosen *domain.ArtifactRef
	for _, ref := range entry.Candidates() {
		if ref.Lane == lane {
			chosen = ref
			break
		}
	}
	if chosen == nil {
		return domain.ResolvedLink{}, 0, dcerrors.New(dcerrors.CodeArtifactNotFound,
			fmt.Sprintf("no artifact recorded for entry %q in lane %q", entry.ID, lane))
	}

	link, err := s.blobs.SignedURL(ctx, chosen.Location, s.linkTTL)
	if err == nil {
		s.metrics.RecordResolution(chosen.Tier.String())
		return link, chosen.Tier, nil
	}
	if !errors.Is(err, blobstore.ErrObjectNotFound) {
		return domain.ResolvedLink{}, 0, err
	}

	// Recorded path is gone. Try the last known-good hint before listing.
	if hinted, ok := s.tryHint(ctx, entry.ID, lane); ok {
		s.metrics.RecordResolution(chosen.Tier.String())
		return hinted, chosen.Tier, nil
	}

	link, err = s.fallbackSearch(ctx, entry, lane, chosen)
	if err != nil {
		return domain.ResolvedLink{}, 0, err
	}
	s.metrics.RecordResolution(chosen.Tier.String())
	return link, chosen.Tier, nil
}

func (s *Service) tryHint(ctx context.Context, entryID string, lane domain.Lane) (domain.ResolvedLink, bool) {
	if s.hints == nil {
		return domain.ResolvedLink{}, false
	}
	loc, ok, err := s.hints.Get(ctx, entryID, lane)
	if err != nil {
		s.logger.WarnContext(ctx, "hint cache read failed", "entry_id", entryID, "error", err.Error())
		return domain.ResolvedLink{}, false
	}
	if !ok {
		s.metrics.RecordHintCacheMiss()
		return domain.ResolvedLink{}, false
	}
	link, err := s.blobs.SignedURL(ctx, loc, s.linkTTL)
	if err != nil {
		s.metrics.RecordHintCacheMiss()
		return domain.ResolvedLink{}, false
	}
	s.metrics.RecordHintCacheHit()
	return link, true
}

// fallbackSearch lists the containing directory plus known layout variants,
// filters to the expected extension and identifier, prefers a finalized
// "-signed" variant, and re-issues the signed-link request.
func (s *Service) fallbackSearch(ctx context.Context, entry domain.DocumentEntry, lane domain.Lane, chosen *domain.ArtifactRef) (domain.ResolvedLink, error) {
	s.metrics.RecordFallbackSearch()

	recorded := chosen.Location
	base := path.Base(recorded.Path)
	if chosen.FileName != "" {
		base = chosen.FileName
	}
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		ext = ".pdf"
	}

	var listed []blobstore.ObjectInfo
	seen := map[string]bool{}
	for _, dir := range candidateDirs(path.Dir(recorded.Path)) {
		prefix := dir
		if prefix != "" {
			prefix += "/"
		}
		objects, err := s.blobs.List(ctx, recorded.Bucket, prefix)
		if err != nil {
			return domain.ResolvedLink{}, fmt.Errorf("resolve: fallback listing %s/%s: %w", recorded.Bucket, prefix, err)
		}
		for _, obj := range objects {
			if !seen[obj.Key] {
				seen[obj.Key] = true
				listed = append(listed, obj)
			}
		}
	}

	match := pickCandidate(listed, base, ext)
	if match == nil {
		return domain.ResolvedLink{}, dcerrors.New(dcerrors.CodeArtifactNotFound,
			fmt.Sprintf("artifact not found in bucket %q at %q", recorded.Bucket, recorded.Path))
	}

	resolved := domain.StorageLocation{Bucket: recorded.Bucket, Path: match.Key}
	link, err := s.blobs.SignedURL(ctx, resolved, s.linkTTL)
	if err != nil {
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return domain.ResolvedLink{}, dcerrors.New(dcerrors.CodeArtifactNotFound,
				fmt.Sprintf("artifact not found in bucket %q at %q", recorded.Bucket, match.Key))
		}
		return domain.ResolvedLink{}, err
	}

	if s.hints != nil {
		if err := s.hints.Set(ctx, entry.ID, lane, resolved); err != nil {
			s.logger.WarnContext(ctx, "hint cache write failed", "entry_id", entry.ID, "error", err.Error())
		}
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			IssuerID: entry.ID,
			Lane:     lane,
			Action:   audit.ActionResolutionFallback,
			Detail:   fmt.Sprintf("recorded %q resolved to %q", recorded.Path, match.Key),
		})
	}
	s.logger.InfoContext(ctx, "fallback search resolved drifted artifact",
		"entry_id", entry.ID,
		"recorded_path", recorded.Path,
		"resolved_path", match.Key,
	)
	return link, nil
}

// candidateDirs returns the recorded directory plus case/pluralization
// variants of its category segment, the layout drifts seen in practice.
func candidateDirs(dir string) []string {
	dirs := []string{dir}
	segments := strings.Split(dir, "/")
	if len(segments) >= 2 {
		category := segments[1]
		for _, variant := range []string{pluralToggle(category), strings.ToLower(category), capitalize(category)} {
			if variant == category {
				continue
			}
			alt := append([]string(nil), segments...)
			alt[1] = variant
			dirs = append(dirs, strings.Join(alt, "/"))
		}
	}
	return dirs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pluralToggle(s string) string {
	if strings.HasSuffix(s, "s") {
		return strings.TrimSuffix(s, "s")
	}
	return s + "s"
}

// pickCandidate filters listed objects and chooses the best match.
func pickCandidate(listed []blobstore.ObjectInfo, originalBase, ext string) *blobstore.ObjectInfo {
	stem := strings.TrimSuffix(originalBase, path.Ext(originalBase))
	prefix := identifierPrefix.FindString(stem)

	var candidates []blobstore.ObjectInfo
	for _, obj := range listed {
		name := path.Base(obj.Key)
		if strings.ToLower(path.Ext(name)) != ext {
			continue
		}
		if prefix != "" {
			if strings.HasPrefix(name, prefix) {
				candidates = append(candidates, obj)
			}
			continue
		}
		candidateStem := strings.TrimSuffix(name, path.Ext(name))
		if fuzzyContains(candidateStem, stem) {
			candidates = append(candidates, obj)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Newest first, then prefer an explicitly finalized variant.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastModified.After(candidates[j].LastModified)
	})
	for i := range candidates {
		name := strings.TrimSuffix(path.Base(candidates[i].Key), path.Ext(candidates[i].Key))
		if strings.HasSuffix(strings.ToLower(name), "-signed") {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

func fuzzyContains(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}
