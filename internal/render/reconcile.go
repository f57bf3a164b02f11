package render

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"invoice-service/internal/models"
)

// Row is a reconciled, rendering-ready line item
type Row struct {
	SKU           string
	Description   string
	Quantity      float64
	UnitPrice     float64
	LineTotal     float64
	OptionSummary string
	OptionDetails []string
	Upgrades      []string
	Extras        []string
}

// Ordered alias lists for the numeric coalesce. The typed field is consulted
// first, then metadata entries under these keys, first finite value wins.
var (
	quantityAliases  = []string{"quantity", "qty"}
	unitPriceAliases = []string{"unitPrice", "amount", "price"}
	lineTotalAliases = []string{"lineTotal", "total"}
)

// consumedMetaKeys are metadata entries already surfaced through dedicated
// fields; everything else becomes a display extra
var consumedMetaKeys = map[string]bool{
	"quantity": true, "qty": true,
	"unitPrice": true, "amount": true, "price": true,
	"lineTotal": true, "total": true,
	"sku": true, "name": true, "description": true,
	"options": true, "optionSummary": true, "upgrades": true,
	"_key": true, "key": true,
}

// Reconcile merges invoice-authored line items with the originating order's
// cart items into one authoritative ordered list: invoice items first (in
// invoice order, matched or not), then any cart items no invoice item
// claimed (in cart order). Inputs are never mutated, so re-invocation with
// the same lists yields the same result.
func Reconcile(items []models.LineItem, cartSources ...[]models.CartItem) []Row {
	pool := poolCartItems(cartSources)
	used := make([]bool, len(pool))

	rows := make([]Row, 0, len(items)+len(pool))
	for i := range items {
		item := &items[i]
		match := -1
		if sku := normalizeKey(item.SKU); sku != "" {
			for j := range pool {
				if !used[j] && normalizeKey(pool[j].SKU) == sku {
					match = j
					break
				}
			}
		}
		if match < 0 && item.Description != "" {
			for j := range pool {
				if !used[j] && pool[j].Name == item.Description {
					match = j
					break
				}
			}
		}

		var cart *models.CartItem
		if match >= 0 {
			used[match] = true
			cart = &pool[match]
		}
		rows = append(rows, mergeRow(item, cart))
	}

	for j := range pool {
		if !used[j] {
			rows = append(rows, cartOnlyRow(&pool[j]))
		}
	}

	return rows
}

// poolCartItems flattens all cart sources into one pool, de-duplicated by
// the (key, sku, name) signature; first occurrence wins
func poolCartItems(sources [][]models.CartItem) []models.CartItem {
	var pool []models.CartItem
	seen := map[string]bool{}
	for _, source := range sources {
		for _, ci := range source {
			sig := normalizeKey(ci.Key) + "|" + normalizeKey(ci.SKU) + "|" + normalizeKey(ci.Name)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			pool = append(pool, ci)
		}
	}
	return pool
}

// mergeRow builds a row from a matched pair. Cart values apply first, then
// invoice values override them: the invoice is authoritative for anything
// it explicitly sets.
func mergeRow(item *models.LineItem, cart *models.CartItem) Row {
	var (
		cartQty, cartPrice, cartTotal         float64
		cartHasQty, cartHasPrice, cartTotalOK bool
		cartName, cartSKU                     string
		cartOptions, cartUpgrades             []string
		cartMeta                              models.Metadata
	)
	if cart != nil {
		cartQty, cartHasQty = coalesceNumeric(cart.Quantity, cart.Metadata, quantityAliases)
		cartPrice, cartHasPrice = coalesceNumeric(cart.UnitPrice, cart.Metadata, unitPriceAliases)
		cartTotal, cartTotalOK = coalesceNumeric(cart.LineTotal, cart.Metadata, lineTotalAliases)
		cartName = cart.Name
		cartSKU = cart.SKU
		cartOptions = cart.Options
		cartUpgrades = cart.Upgrades
		cartMeta = cart.Metadata
	}

	qty, hasQty := coalesceNumeric(item.Quantity, item.Metadata, quantityAliases)
	if !hasQty {
		qty, hasQty = cartQty, cartHasQty
	}
	if !hasQty || qty <= 0 {
		qty = 1
	}

	price, hasPrice := coalesceNumeric(item.UnitPrice, item.Metadata, unitPriceAliases)
	if !hasPrice {
		price, hasPrice = cartPrice, cartHasPrice
	}
	if !hasPrice {
		price = 0
	}

	total, hasTotal := coalesceNumeric(item.LineTotal, item.Metadata, lineTotalAliases)
	if !hasTotal {
		total, hasTotal = cartTotal, cartTotalOK
	}
	if !hasTotal {
		total = qty * price
	}

	description := item.Description
	if description == "" {
		description = cartName
	}
	sku := item.SKU
	if sku == "" {
		sku = cartSKU
	}
	if description == "" {
		description = sku
	}
	if description == "" {
		description = "Item"
	}

	options := unionStrings(cartOptions, item.Options)
	upgrades := unionStrings(cartUpgrades, item.Upgrades)
	extras := unionStrings(metadataExtras(cartMeta), metadataExtras(item.Metadata))

	return Row{
		SKU:           sku,
		Description:   description,
		Quantity:      qty,
		UnitPrice:     price,
		LineTotal:     total,
		OptionSummary: optionSummary(item.Metadata, cartMeta, options),
		OptionDetails: options,
		Upgrades:      upgrades,
		Extras:        extras,
	}
}

// cartOnlyRow covers items present in the order but never copied into the
// invoice
func cartOnlyRow(cart *models.CartItem) Row {
	qty, ok := coalesceNumeric(cart.Quantity, cart.Metadata, quantityAliases)
	if !ok || qty <= 0 {
		qty = 1
	}
	price, _ := coalesceNumeric(cart.UnitPrice, cart.Metadata, unitPriceAliases)
	total, ok := coalesceNumeric(cart.LineTotal, cart.Metadata, lineTotalAliases)
	if !ok {
		total = qty * price
	}

	description := cart.Name
	if description == "" {
		description = cart.SKU
	}
	if description == "" {
		description = "Item"
	}

	options := unionStrings(cart.Options, nil)
	return Row{
		SKU:           cart.SKU,
		Description:   description,
		Quantity:      qty,
		UnitPrice:     price,
		LineTotal:     total,
		OptionSummary: optionSummary(nil, cart.Metadata, options),
		OptionDetails: options,
		Upgrades:      unionStrings(cart.Upgrades, nil),
		Extras:        metadataExtras(cart.Metadata),
	}
}

// coalesceNumeric returns the first defined finite numeric value: the typed
// field, then the metadata aliases in order
func coalesceNumeric(explicit *float64, meta models.Metadata, aliases []string) (float64, bool) {
	if explicit != nil && isFinite(*explicit) {
		return *explicit, true
	}
	for _, key := range aliases {
		if raw, ok := meta[key]; ok {
			if v, ok := toFloat(raw); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// toFloat extracts a finite float from a loosely-typed metadata value.
// Absent, non-numeric and non-finite values all report false.
func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, isFinite(v)
	case float32:
		return float64(v), isFinite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// unionStrings appends b's entries after a's, suppressing exact duplicates
// while preserving first-seen order
func unionStrings(a, b []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// optionSummary prefers an explicit summary from either source (invoice
// first), falling back to the joined detail list
func optionSummary(invoiceMeta, cartMeta models.Metadata, details []string) string {
	for _, meta := range []models.Metadata{invoiceMeta, cartMeta} {
		if raw, ok := meta["optionSummary"]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return strings.Join(details, ", ")
}

// metadataExtras renders metadata entries not captured elsewhere as
// "Key: value" display lines, keys sorted for determinism. Entries that
// cannot be rendered are skipped individually.
func metadataExtras(meta models.Metadata) []string {
	if len(meta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if consumedMetaKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var extras []string
	for _, k := range keys {
		value, ok := formatMetaValue(meta[k])
		if !ok {
			continue
		}
		extras = append(extras, fmt.Sprintf("%s: %s", k, value))
	}
	return extras
}

func formatMetaValue(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		if !isFinite(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
