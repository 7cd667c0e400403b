package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StabilizeSuite struct {
	suite.Suite
}

func TestStabilizeSuite(t *testing.T) {
	suite.Run(t, new(StabilizeSuite))
}

func (s *StabilizeSuite) TestRealRendererYieldsSelfConsistentHash() {
	renderer, err := NewRenderer("https://verify.example.com/v")
	s.Require().NoError(err)

	doc, err := Stabilize(renderer, testInput())
	s.Require().NoError(err)

	// Whether or not the loop hit a true fixed point, the accepted result
	// must be self-consistent: the returned hash is the digest of the
	// returned bytes, within the iteration bound.
	s.LessOrEqual(doc.Iterations, MaxStabilizeIterations)
	s.NotEmpty(doc.Bytes)
	sum := sha256.Sum256(doc.Bytes)
	s.Equal(hex.EncodeToString(sum[:]), string(doc.Hash))
}

func (s *StabilizeSuite) TestStableFixedPointRendererConvergesImmediately() {
	// A renderer that ignores the guess reaches the fixed point on the
	// second pass: first render produces the digest, second confirms it.
	doc, err := Stabilize(constantRenderer{}, Input{})
	s.Require().NoError(err)
	s.True(doc.Converged)
	s.Equal(2, doc.Iterations)
	s.Equal(doc.Hash, doc.EmbeddedHash, "at a fixed point the printed hash is the digest")
}

func (s *StabilizeSuite) TestNonConvergenceIsFailSafe() {
	doc, err := Stabilize(&divergingRenderer{}, Input{})
	s.Require().NoError(err)

	s.False(doc.Converged)
	s.Equal(MaxStabilizeIterations, doc.Iterations)

	// Fail-safe contract: even unconverged, the hash matches the bytes.
	sum := sha256.Sum256(doc.Bytes)
	s.Equal(hex.EncodeToString(sum[:]), string(doc.Hash))

	// The printed hash trails the digest by one generation, and it is the
	// one literally inside the bytes the recipient holds.
	s.NotEqual(doc.Hash, doc.EmbeddedHash)
	s.Contains(string(doc.Bytes), string(doc.EmbeddedHash))
}

func (s *StabilizeSuite) TestRenderErrorPropagates() {
	_, err := Stabilize(failingRenderer{}, Input{})
	s.Error(err)
}

// constantRenderer produces output independent of the embedded guess.
type constantRenderer struct{}

func (constantRenderer) Render(_ Input, _ string) ([]byte, error) {
	return []byte("constant document body"), nil
}

// divergingRenderer embeds the guess plus a counter, so the digest can
// never equal the guess it was rendered with.
type divergingRenderer struct {
	calls int
}

func (r *divergingRenderer) Render(_ Input, embeddedHash string) ([]byte, error) {
	r.calls++
	return []byte(fmt.Sprintf("doc %s iteration %d", embeddedHash, r.calls)), nil
}

type failingRenderer struct{}

func (failingRenderer) Render(_ Input, _ string) ([]byte, error) {
	return nil, fmt.Errorf("font missing")
}
