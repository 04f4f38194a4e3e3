package cart

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstick-goods/storefront/internal/commerce"
)

func item(price, qty int64) commerce.LineItem {
	return commerce.LineItem{
		UID:       "li",
		Quantity:  qty,
		BasePrice: commerce.Money{Amount: price, Currency: "USD"},
		ItemType:  commerce.ItemTypeCatalog,
	}
}

func TestTotalsAdditivity(t *testing.T) {
	rate := decimal.RequireFromString("0.0975")

	for _, subtotal := range []int64{0, 199, 10000} {
		for _, shippingCost := range []int64{0, 599, 1999} {
			t.Run(fmt.Sprintf("s%d_c%d", subtotal, shippingCost), func(t *testing.T) {
				var items []commerce.LineItem
				if subtotal > 0 {
					items = []commerce.LineItem{item(subtotal, 1)}
				}

				totals, err := ComputeTotals(items, shippingCost, rate)
				require.NoError(t, err)

				wantTax := rate.Mul(decimal.NewFromInt(subtotal + shippingCost)).Round(0).IntPart()
				assert.Equal(t, subtotal, totals.Subtotal)
				assert.Equal(t, wantTax, totals.Tax)
				assert.Equal(t, totals.Subtotal+totals.ShippingCost+totals.Tax, totals.GrandTotal,
					"grand total must equal the sum of its components exactly")
			})
		}
	}
}

// Tax is rounded once on the whole taxable amount. Rounding per line
// and summing drifts: two 6-cent items would each round 0.585 up to 1
// (sum 2), while the correct single rounding of 1.17 gives 1.
func TestTaxRoundedOnceNotPerLine(t *testing.T) {
	rate := decimal.RequireFromString("0.0975")
	items := []commerce.LineItem{
		{UID: "a", Quantity: 1, BasePrice: commerce.Money{Amount: 6, Currency: "USD"}, ItemType: commerce.ItemTypeCatalog},
		{UID: "b", Quantity: 1, BasePrice: commerce.Money{Amount: 6, Currency: "USD"}, ItemType: commerce.ItemTypeCatalog},
	}

	totals, err := ComputeTotals(items, 0, rate)
	require.NoError(t, err)
	assert.Equal(t, int64(12), totals.Subtotal)
	assert.Equal(t, int64(1), totals.Tax)
}

func TestTaxRoundsHalfUp(t *testing.T) {
	// 0.10 * 45 = 4.5 exactly; half-up rounds to 5.
	totals, err := ComputeTotals([]commerce.LineItem{item(45, 1)}, 0, decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), totals.Tax)
}

func TestEmptyItemsWithShippingTaxesShippingAlone(t *testing.T) {
	rate := decimal.RequireFromString("0.0975")

	totals, err := ComputeTotals(nil, 0, rate)
	require.NoError(t, err)
	assert.Equal(t, DerivedTotals{}, totals)

	totals, err = ComputeTotals(nil, 1000, rate)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(98), totals.Tax) // round(97.5) half-up
	assert.Equal(t, int64(1098), totals.GrandTotal)
}

func TestNegativeInputsRejected(t *testing.T) {
	rate := decimal.RequireFromString("0.0975")

	_, err := ComputeTotals([]commerce.LineItem{item(-100, 1)}, 0, rate)
	assert.ErrorIs(t, err, commerce.ErrInvalidLineItem)

	_, err = ComputeTotals([]commerce.LineItem{item(100, -1)}, 0, rate)
	assert.ErrorIs(t, err, commerce.ErrInvalidLineItem)

	_, err = ComputeTotals(nil, -1, rate)
	assert.ErrorIs(t, err, commerce.ErrInvalidLineItem)
}

func TestCustomAmountLinesExcludedFromSubtotal(t *testing.T) {
	rate := decimal.RequireFromString("0.0975")
	items := []commerce.LineItem{
		item(2000, 1),
		{UID: "ship", Quantity: 1, BasePrice: commerce.Money{Amount: 599, Currency: "USD"}, ItemType: commerce.ItemTypeCustom},
	}

	totals, err := ComputeTotals(items, 0, rate)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), totals.Subtotal)
}
