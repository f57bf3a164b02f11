package render

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-service/internal/models"
)

func colWidthSum(cols []column) float64 {
	sum := 0.0
	for _, c := range cols {
		sum += c.width
	}
	return sum
}

func findCol(cols []column, key string) *column {
	for i := range cols {
		if cols[i].key == key {
			return &cols[i]
		}
	}
	return nil
}

func TestAllocateColumnsHappyPath(t *testing.T) {
	cols := allocateColumns([]column{
		{key: "desc", width: 180, flex: true},
		{key: "sku", width: 70},
		{key: "qty", width: 45},
		{key: "price", width: 70},
	}, 504, 60, 90)

	require.NotNil(t, findCol(cols, "total"))
	assert.InDelta(t, 504.0, colWidthSum(cols), 1e-9)
	assert.InDelta(t, 139.0, findCol(cols, "total").width, 1e-9)
	assert.InDelta(t, 180.0, findCol(cols, "desc").width, 1e-9)
}

func TestAllocateColumnsShrinksDescription(t *testing.T) {
	// fixed columns leave only 29 for the total column; the description
	// gives up the 31-point deficit
	cols := allocateColumns([]column{
		{key: "desc", width: 180, flex: true},
		{key: "sku", width: 70},
		{key: "options", width: 110},
		{key: "qty", width: 45},
		{key: "price", width: 70},
	}, 504, 60, 90)

	assert.InDelta(t, 149.0, findCol(cols, "desc").width, 1e-9)
	assert.InDelta(t, 60.0, findCol(cols, "total").width, 1e-9)
	assert.InDelta(t, 504.0, colWidthSum(cols), 1e-9)
}

func TestAllocateColumnsDescriptionFloor(t *testing.T) {
	// the deficit is larger than the description can absorb; it stops at the
	// floor and the total column takes what remains
	cols := allocateColumns([]column{
		{key: "desc", width: 180, flex: true},
		{key: "fixed", width: 260},
	}, 400, 60, 90)

	assert.InDelta(t, 90.0, findCol(cols, "desc").width, 1e-9)
	assert.InDelta(t, 50.0, findCol(cols, "total").width, 1e-9)
	// the invariant that always holds is the exact table-width sum
	assert.InDelta(t, 400.0, colWidthSum(cols), 1e-9)
}

func makeInvoice(n int) *models.Invoice {
	inv := &models.Invoice{
		InvoiceNumber: "INV-1700000000",
		IssueDate:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TaxRate:       8,
		BillTo: models.Address{
			Name:   "Ada Lovelace",
			Street: "12 Analytical Way",
			City:   "London",
		},
	}
	for i := 0; i < n; i++ {
		inv.LineItems = append(inv.LineItems, models.LineItem{
			SKU:         fmt.Sprintf("SKU-%03d", i),
			Description: fmt.Sprintf("Line item number %d", i),
			Quantity:    fptr(float64(i%3 + 1)),
			UnitPrice:   fptr(9.99),
		})
	}
	return inv
}

func defaultTestSettings() *models.PrintSettings {
	return &models.PrintSettings{
		BusinessName:    "Acme Supply Co.",
		BusinessAddress: "1 Factory Road\nSpringfield",
		BusinessEmail:   "billing@acme.test",
		PrimaryColor:    "#1a73e8",
		TextColor:       "#202124",
		PageSize:        models.PageSizeLetter,
		ShowShipTo:      true,
		ShowSKUColumn:   true,
		ShowOptions:     true,
		ShowNotes:       true,
		ShowTerms:       true,
	}
}

func TestRenderProducesDocument(t *testing.T) {
	engine := NewEngine(DefaultConfig(), defaultTestSettings())

	data, err := engine.Render(makeInvoice(3), nil, Options{
		GeneratedAt: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Greater(t, len(data), 500)
}

func TestRenderCapsRowsOnSinglePage(t *testing.T) {
	engine := NewEngine(DefaultConfig(), defaultTestSettings())

	small, err := engine.Render(makeInvoice(3), nil, Options{})
	require.NoError(t, err)
	large, err := engine.Render(makeInvoice(120), nil, Options{})
	require.NoError(t, err)

	// 120 items collapse to the visible cap plus one remainder line, so the
	// document stays a single page and in the same size neighborhood
	assert.Less(t, len(large), len(small)*4)
	assert.Contains(t, string(large), "/Count 1")
}

func TestRenderPageSizes(t *testing.T) {
	letter := NewEngine(DefaultConfig(), defaultTestSettings())
	a4Settings := defaultTestSettings()
	a4Settings.PageSize = models.PageSizeA4
	a4 := NewEngine(DefaultConfig(), a4Settings)

	letterDoc, err := letter.Render(makeInvoice(2), nil, Options{})
	require.NoError(t, err)
	a4Doc, err := a4.Render(makeInvoice(2), nil, Options{})
	require.NoError(t, err)

	// Letter is 612x792pt, A4 is 595.28x841.89pt
	assert.Contains(t, string(letterDoc), "612")
	assert.Contains(t, string(a4Doc), "841.89")

	unknown := defaultTestSettings()
	unknown.PageSize = "tabloid"
	assert.Equal(t, "Letter", NewEngine(DefaultConfig(), unknown).pageSizeName())
}

func TestRenderSurvivesNilSettingsAndOrder(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	data, err := engine.Render(makeInvoice(1), nil, Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderIgnoresBrokenLogo(t *testing.T) {
	engine := NewEngine(DefaultConfig(), defaultTestSettings())
	data, err := engine.Render(makeInvoice(1), nil, Options{
		Logo: &Logo{Data: []byte("definitely not an image"), Format: "PNG"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderWithOrderCartItems(t *testing.T) {
	engine := NewEngine(DefaultConfig(), defaultTestSettings())
	inv := makeInvoice(1)
	order := &models.Order{
		OrderNumber: "ORD-42",
		CartItems: []models.CartItem{
			{SKU: "EXTRA-1", Name: "Cart-only item", Quantity: fptr(2), UnitPrice: fptr(4)},
		},
	}

	data, err := engine.Render(inv, order, Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestCellText(t *testing.T) {
	row := Row{
		SKU:           "A-1",
		Description:   "Widget",
		Quantity:      2,
		UnitPrice:     4.5,
		LineTotal:     9,
		OptionSummary: "Red, XL",
		Upgrades:      []string{"Rush"},
		Extras:        []string{"giftWrap: true"},
	}

	assert.Equal(t, "Widget", cellText(row, "desc"))
	assert.Equal(t, "A-1", cellText(row, "sku"))
	assert.Equal(t, "2", cellText(row, "qty"))
	assert.Equal(t, "$4.50", cellText(row, "price"))
	assert.Equal(t, "$9.00", cellText(row, "total"))
	assert.Equal(t, "Red, XL; Rush; giftWrap: true", cellText(row, "options"))

	row.Quantity = 2.5
	assert.Equal(t, "2.5", cellText(row, "qty"))
}

func TestTableColumnsRespectToggles(t *testing.T) {
	rows := []Row{{OptionSummary: "Red"}}

	settings := defaultTestSettings()
	engine := NewEngine(DefaultConfig(), settings)
	cols := engine.tableColumns(rows)
	assert.NotNil(t, findCol(cols, "sku"))
	assert.NotNil(t, findCol(cols, "options"))

	settings.ShowSKUColumn = false
	settings.ShowOptions = false
	engine = NewEngine(DefaultConfig(), settings)
	cols = engine.tableColumns(rows)
	assert.Nil(t, findCol(cols, "sku"))
	assert.Nil(t, findCol(cols, "options"))

	// the options column also disappears when no row carries options
	settings.ShowOptions = true
	engine = NewEngine(DefaultConfig(), settings)
	cols = engine.tableColumns([]Row{{Description: "plain"}})
	assert.Nil(t, findCol(cols, "options"))
}
