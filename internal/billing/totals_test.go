package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"veridoc/internal/domain"
)

func TestNormalize(t *testing.T) {
	t.Run("explicit amounts sum without tax", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Service A", Amount: 100.00, AmountSet: true},
			{Description: "Service B", Amount: 50.00, AmountSet: true},
		}, "USD")

		assert.Equal(t, int64(15000), totals.Subtotal)
		assert.Equal(t, int64(0), totals.Tax)
		assert.Equal(t, int64(15000), totals.Total)
		assert.Equal(t, "USD", totals.Currency)
	})

	t.Run("amount computed from quantity and unit price", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Hours", Quantity: 3, UnitPrice: 12.50},
		}, "EUR")

		assert.Equal(t, int64(3750), totals.Items[0].Amount)
		assert.Equal(t, int64(1250), totals.Items[0].UnitPrice)
	})

	t.Run("missing quantity defaults to one", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Flat fee", UnitPrice: 99.99},
		}, "USD")

		assert.Equal(t, float64(1), totals.Items[0].Quantity)
		assert.Equal(t, int64(9999), totals.Items[0].Amount)
	})

	t.Run("missing unit price defaults to zero", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Placeholder", Quantity: 5},
		}, "USD")

		assert.Equal(t, int64(0), totals.Items[0].Amount)
		assert.Equal(t, int64(0), totals.Total)
	})

	t.Run("explicit override wins over computation", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Discounted", Quantity: 2, UnitPrice: 100, Amount: 150, AmountSet: true},
		}, "USD")

		assert.Equal(t, int64(15000), totals.Items[0].Amount)
	})

	t.Run("rounds half to nearest minor unit", func(t *testing.T) {
		totals := Normalize([]domain.LineItem{
			{Description: "Fractional", UnitPrice: 0.005},
		}, "USD")

		// Half a cent rounds up to one cent.
		assert.Equal(t, int64(1), totals.Items[0].Amount)
	})

	t.Run("long descriptions are truncated", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		totals := Normalize([]domain.LineItem{
			{Description: long, Amount: 1, AmountSet: true},
		}, "USD")

		assert.Len(t, totals.Items[0].Description, MaxDescriptionLen)
	})

	t.Run("empty input yields zero totals, never an error", func(t *testing.T) {
		totals := Normalize(nil, "USD")

		assert.Empty(t, totals.Items)
		assert.Equal(t, int64(0), totals.Total)
	})
}
