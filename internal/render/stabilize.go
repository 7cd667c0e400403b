package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"veridoc/internal/domain"
)

// PlaceholderHash seeds the stabilization loop. Same length as a real
// digest, so the first render already has its final layout width.
var PlaceholderHash = strings.Repeat("0", 64)

// MaxStabilizeIterations bounds the fixed-point loop. Convergence is
// expected within one or two passes because a fixed-length hex guess never
// changes text-wrap width; that is a property of the chosen encoding, not a
// mathematical guarantee, hence the bound and the fail-safe below.
const MaxStabilizeIterations = 4

// StabilizedDocument is the loop's result: bytes whose digest equals the
// hash rendered inside them, up to the iteration bound.
type StabilizedDocument struct {
	Bytes []byte
	Hash  domain.ContentHash
	// EmbeddedHash is the hash actually printed inside Bytes. It equals
	// Hash on convergence and trails it by one generation otherwise, so
	// verification must accept both.
	EmbeddedHash domain.ContentHash
	Iterations   int
	// Converged is false when the bound was exhausted. The document is
	// still usable (fail-safe): Hash is the digest of Bytes.
	Converged bool
}

// documentRenderer is what the loop needs from a renderer.
type documentRenderer interface {
	Render(in Input, embeddedHash string) ([]byte, error)
}

// Stabilize resolves the circular dependency between a document's content
// and the content hash embedded in it. Each pass renders with the current
// guess, digests the result, and feeds the digest back in as the next guess
// until the two agree.
func Stabilize(r documentRenderer, in Input) (*StabilizedDocument, error) {
	guess := PlaceholderHash
	var raw []byte
	var digest, embedded string
	for i := 1; i <= MaxStabilizeIterations; i++ {
		var err error
		raw, err = r.Render(in, guess)
		if err != nil {
			return nil, fmt.Errorf("stabilize: iteration %d: %w", i, err)
		}
		digest = hexDigest(raw)
		if digest == guess {
			return &StabilizedDocument{
				Bytes:        raw,
				Hash:         domain.ContentHash(digest),
				EmbeddedHash: domain.ContentHash(guess),
				Iterations:   i,
				Converged:    true,
			}, nil
		}
		embedded = guess
		guess = digest
	}
	// Bound exhausted: accept the last rendered bytes and their digest
	// rather than blocking the operator. Callers flag this for audit.
	return &StabilizedDocument{
		Bytes:        raw,
		Hash:         domain.ContentHash(digest),
		EmbeddedHash: domain.ContentHash(embedded),
		Iterations:   MaxStabilizeIterations,
		Converged:    false,
	}, nil
}

func hexDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
