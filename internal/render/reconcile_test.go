package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-service/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestReconcileMergesBySKU(t *testing.T) {
	items := []models.LineItem{
		{SKU: "ABC", Description: "Widget", UnitPrice: fptr(12.50)},
	}
	carts := []models.CartItem{
		{SKU: "abc ", Name: "Widget (cart)", Quantity: fptr(3), UnitPrice: fptr(9.99), Options: []string{"Red"}},
	}

	rows := Reconcile(items, carts)
	require.Len(t, rows, 1)

	row := rows[0]
	// invoice fields win where set; cart fills the gaps
	assert.Equal(t, "Widget", row.Description)
	assert.Equal(t, 12.50, row.UnitPrice)
	assert.Equal(t, 3.0, row.Quantity)
	assert.Equal(t, 37.50, row.LineTotal)
	assert.Equal(t, []string{"Red"}, row.OptionDetails)
}

func TestReconcileMergesByName(t *testing.T) {
	items := []models.LineItem{
		{Description: "Widget"},
	}
	carts := []models.CartItem{
		{Name: "Widget", SKU: "W-100", Quantity: fptr(2), UnitPrice: fptr(5)},
	}

	rows := Reconcile(items, carts)
	require.Len(t, rows, 1)
	assert.Equal(t, "W-100", rows[0].SKU)
	assert.Equal(t, 10.0, rows[0].LineTotal)
}

func TestReconcileUnmatchedCartItemsAppend(t *testing.T) {
	items := []models.LineItem{
		{SKU: "A", Description: "First", Quantity: fptr(1), UnitPrice: fptr(1)},
	}
	carts := []models.CartItem{
		{SKU: "A", Name: "First"},
		{SKU: "B", Name: "Second", Quantity: fptr(2), UnitPrice: fptr(3)},
		{SKU: "C", Name: "Third", Quantity: fptr(1), UnitPrice: fptr(7)},
	}

	rows := Reconcile(items, carts)
	require.Len(t, rows, 3)
	// invoice order first, then unclaimed cart items in cart order
	assert.Equal(t, "First", rows[0].Description)
	assert.Equal(t, "Second", rows[1].Description)
	assert.Equal(t, "Third", rows[2].Description)
	assert.Equal(t, 6.0, rows[1].LineTotal)
}

func TestReconcilePoolDeduplicates(t *testing.T) {
	carts := []models.CartItem{
		{Key: "k1", SKU: "A", Name: "Thing", Quantity: fptr(1), UnitPrice: fptr(10)},
	}
	duplicate := []models.CartItem{
		{Key: "K1 ", SKU: "a", Name: "thing", Quantity: fptr(99), UnitPrice: fptr(99)},
	}

	rows := Reconcile(nil, carts, duplicate)
	require.Len(t, rows, 1)
	// first occurrence wins
	assert.Equal(t, 10.0, rows[0].UnitPrice)
}

func TestReconcileIsIdempotent(t *testing.T) {
	items := []models.LineItem{
		{SKU: "A", Description: "Widget", Metadata: models.Metadata{"qty": 2.0, "price": "4.50", "giftWrap": true}},
	}
	carts := []models.CartItem{
		{SKU: "B", Name: "Gadget", Quantity: fptr(1), UnitPrice: fptr(3)},
	}

	first := Reconcile(items, carts)
	second := Reconcile(items, carts)
	assert.Equal(t, first, second)
}

func TestMetadataAliasCoalescing(t *testing.T) {
	tests := []struct {
		name     string
		item     models.LineItem
		quantity float64
		price    float64
		total    float64
	}{
		{
			name:     "qty alias",
			item:     models.LineItem{Metadata: models.Metadata{"qty": 4.0, "price": 2.5}},
			quantity: 4, price: 2.5, total: 10,
		},
		{
			name:     "amount alias before price",
			item:     models.LineItem{Quantity: fptr(2), Metadata: models.Metadata{"amount": 7.0, "price": 99.0}},
			quantity: 2, price: 7, total: 14,
		},
		{
			name:     "explicit field beats alias",
			item:     models.LineItem{Quantity: fptr(5), Metadata: models.Metadata{"quantity": 1.0}},
			quantity: 5, price: 0, total: 0,
		},
		{
			name:     "string numeric parses",
			item:     models.LineItem{Metadata: models.Metadata{"quantity": "3", "unitPrice": "1.25"}},
			quantity: 3, price: 1.25, total: 3.75,
		},
		{
			name:     "explicit total is authoritative",
			item:     models.LineItem{Quantity: fptr(2), UnitPrice: fptr(10), LineTotal: fptr(15)},
			quantity: 2, price: 10, total: 15,
		},
		{
			name:     "garbage numerics degrade to defaults",
			item:     models.LineItem{Metadata: models.Metadata{"quantity": "lots", "price": "free"}},
			quantity: 1, price: 0, total: 0,
		},
		{
			name:     "non-positive quantity becomes one",
			item:     models.LineItem{Quantity: fptr(-3), UnitPrice: fptr(2)},
			quantity: 1, price: 2, total: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Reconcile([]models.LineItem{tt.item})
			require.Len(t, rows, 1)
			assert.Equal(t, tt.quantity, rows[0].Quantity)
			assert.Equal(t, tt.price, rows[0].UnitPrice)
			assert.Equal(t, tt.total, rows[0].LineTotal)
		})
	}
}

func TestNonFiniteValuesAreIgnored(t *testing.T) {
	rows := Reconcile([]models.LineItem{
		{Quantity: fptr(math.NaN()), UnitPrice: fptr(math.Inf(1)), Metadata: models.Metadata{"price": 5.0}},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Quantity)
	assert.Equal(t, 5.0, rows[0].UnitPrice)
	assert.Equal(t, 5.0, rows[0].LineTotal)
}

func TestDescriptionFallbackChain(t *testing.T) {
	rows := Reconcile([]models.LineItem{{SKU: "SKU-9"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "SKU-9", rows[0].Description)

	rows = Reconcile([]models.LineItem{{}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Item", rows[0].Description)
}

func TestOptionAndUpgradeUnion(t *testing.T) {
	items := []models.LineItem{
		{SKU: "A", Options: []string{"Red", "XL"}, Upgrades: []string{"Rush"}},
	}
	carts := []models.CartItem{
		{SKU: "A", Options: []string{"Red", "Gift Wrap"}, Upgrades: []string{"Rush", "Insured"}},
	}

	rows := Reconcile(items, carts)
	require.Len(t, rows, 1)
	// cart entries first, invoice additions after, exact duplicates dropped
	assert.Equal(t, []string{"Red", "Gift Wrap", "XL"}, rows[0].OptionDetails)
	assert.Equal(t, []string{"Rush", "Insured"}, rows[0].Upgrades)
}

func TestOptionSummaryPrefersExplicit(t *testing.T) {
	items := []models.LineItem{
		{SKU: "A", Options: []string{"Red", "XL"}, Metadata: models.Metadata{"optionSummary": "Red / XL"}},
	}
	rows := Reconcile(items)
	require.Len(t, rows, 1)
	assert.Equal(t, "Red / XL", rows[0].OptionSummary)

	rows = Reconcile([]models.LineItem{{SKU: "A", Options: []string{"Red", "XL"}}})
	assert.Equal(t, "Red, XL", rows[0].OptionSummary)
}

func TestMetadataExtras(t *testing.T) {
	rows := Reconcile([]models.LineItem{
		{
			SKU: "A",
			Metadata: models.Metadata{
				"qty":       2.0, // consumed, never an extra
				"giftWrap":  true,
				"engraving": "Happy Birthday",
				"weight":    1.5,
				"blob":      map[string]interface{}{"x": 1}, // unrenderable, skipped
			},
		},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"engraving: Happy Birthday", "giftWrap: true", "weight: 1.5"}, rows[0].Extras)
}
