package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"veridoc/internal/billing"
	"veridoc/internal/domain"
)

func testInput() Input {
	totals := billing.Normalize([]domain.LineItem{
		{Description: "Service A", Amount: 100.00, AmountSet: true},
		{Description: "Service B", Amount: 50.00, AmountSet: true},
	}, "USD")
	return Input{
		IssuerName:     "Acme Corp",
		IssuerSlug:     "acme-corp",
		IssuerLines:    []string{"1 Main Street", "Springfield"},
		RecipientName:  "Globex LLC",
		RecipientLines: []string{"5 Elm Road", "Shelbyville"},
		Category:       "billing",
		InvoiceNumber:  "INV-2024-0042",
		Currency:       "USD",
		IssuedAt:       time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		DueAt:          time.Date(2024, time.April, 4, 0, 0, 0, 0, time.UTC),
		Totals:         totals,
		Notes:          "Payment due within 30 days.",
	}
}

type RendererSuite struct {
	suite.Suite
	renderer *Renderer
}

func TestRendererSuite(t *testing.T) {
	suite.Run(t, new(RendererSuite))
}

func (s *RendererSuite) SetupTest() {
	var err error
	s.renderer, err = NewRenderer("https://verify.example.com/v")
	s.Require().NoError(err)
}

func (s *RendererSuite) TestNewRenderer() {
	s.Run("empty verify base URL is rejected", func() {
		_, err := NewRenderer("")
		s.Error(err)
	})
}

func (s *RendererSuite) TestDeterminism() {
	s.Run("identical input and guess renders byte-identical output", func() {
		first, err := s.renderer.Render(testInput(), PlaceholderHash)
		s.Require().NoError(err)
		second, err := s.renderer.Render(testInput(), PlaceholderHash)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("different guess of equal length changes bytes but still renders", func() {
		other := strings.Repeat("a", 64)
		first, err := s.renderer.Render(testInput(), PlaceholderHash)
		s.Require().NoError(err)
		second, err := s.renderer.Render(testInput(), other)
		s.Require().NoError(err)
		s.NotEqual(first, second)
	})
}

func (s *RendererSuite) TestRenderValidation() {
	s.Run("wrong guess length is rejected", func() {
		_, err := s.renderer.Render(testInput(), "abc")
		s.Error(err)
	})
}

func (s *RendererSuite) TestManyItemsDoNotCollideWithFooter() {
	in := testInput()
	items := make([]domain.LineItem, 60)
	for i := range items {
		items[i] = domain.LineItem{Description: "Recurring line item with a fairly long description to force wrapping", Amount: 10, AmountSet: true}
	}
	in.Totals = billing.Normalize(items, "USD")

	raw, err := s.renderer.Render(in, PlaceholderHash)
	s.Require().NoError(err)
	s.NotEmpty(raw)
}

func TestVerifyURL(t *testing.T) {
	r, err := NewRenderer("https://verify.example.com/v")
	require.NoError(t, err)
	require.Equal(t,
		"https://verify.example.com/v?hash="+PlaceholderHash,
		r.VerifyURL(PlaceholderHash))
}
