package render

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	// decoders for logo aspect-ratio probing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jung-kurt/gofpdf"

	"invoice-service/internal/models"
)

// Config holds the fixed layout geometry, in points
type Config struct {
	Margin           float64
	RowHeight        float64
	HeaderRowHeight  float64
	MaxVisibleRows   int
	MinTotalColWidth float64
	MinDescColWidth  float64
	LogoHeight       float64
	FooterReserve    float64
}

// DefaultConfig returns the standard document geometry. The 14-row cap plus
// a remainder line keeps every document to a single bounded page.
func DefaultConfig() Config {
	return Config{
		Margin:           54,
		RowHeight:        24,
		HeaderRowHeight:  20,
		MaxVisibleRows:   14,
		MinTotalColWidth: 60,
		MinDescColWidth:  90,
		LogoHeight:       40,
		FooterReserve:    200,
	}
}

// Logo is a fetched logo image ready for embedding
type Logo struct {
	Data   []byte
	Format string // "PNG", "JPG" or "GIF"
}

// Options are per-render inputs beyond the invoice record itself
type Options struct {
	InvoiceNumber string
	IssueDate     *time.Time
	DueDate       *time.Time
	Logo          *Logo
	GeneratedAt   time.Time
}

// Engine lays out one fixed-page invoice document. An Engine is built fresh
// per render; it holds no state shared across invocations.
type Engine struct {
	cfg      Config
	theme    Theme
	settings *models.PrintSettings
}

// NewEngine creates a layout engine with the theme resolved from settings
func NewEngine(cfg Config, settings *models.PrintSettings) *Engine {
	return &Engine{cfg: cfg, theme: ResolveTheme(settings), settings: settings}
}

// Theme exposes the resolved theme, mainly for tests
func (e *Engine) Theme() Theme {
	return e.theme
}

// column describes one item-table column. The trailing total column carries
// no target width; it receives whatever the fixed columns leave over.
type column struct {
	key   string
	title string
	width float64
	align string // "L", "C" or "R"
	flex  bool   // may be shrunk when the total column would starve
}

// allocateColumns appends the trailing total column and defensively reflows
// the fixed targets: if less than minTotal is left for the total column, the
// flexible (description) column shrinks by the deficit, floored at minDesc.
// The widths always sum exactly to tableWidth.
func allocateColumns(cols []column, tableWidth, minTotal, minDesc float64) []column {
	fixed := 0.0
	for _, c := range cols {
		fixed += c.width
	}
	if remaining := tableWidth - fixed; remaining < minTotal {
		deficit := minTotal - remaining
		for i := range cols {
			if cols[i].flex {
				shrunk := cols[i].width - deficit
				if shrunk < minDesc {
					shrunk = minDesc
				}
				cols[i].width = shrunk
				break
			}
		}
	}

	fixed = 0
	for _, c := range cols {
		fixed += c.width
	}
	return append(cols, column{
		key:   "total",
		title: "Total",
		width: tableWidth - fixed,
		align: "R",
	})
}

// Render produces the document bytes for one invoice. The only fatal error
// path is a failure inside the PDF library itself; every data-level problem
// degrades per field instead.
func (e *Engine) Render(inv *models.Invoice, order *models.Order, opts Options) ([]byte, error) {
	var carts []models.CartItem
	if order != nil {
		carts = order.CartItems
	}
	rows := Reconcile(inv.LineItems, carts)
	totals := ComputeTotals(rows, inv, order)

	pdf := gofpdf.New("P", "pt", e.pageSizeName(), "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(e.cfg.Margin, e.cfg.Margin, e.cfg.Margin)
	pdf.SetCellMargin(4)
	pdf.AddPage()

	y := e.drawHeader(pdf, inv, opts)
	y = e.drawAddressesAndMeta(pdf, inv, order, opts, y)
	y = e.drawItemsTable(pdf, rows, y)
	y = e.drawTotals(pdf, inv, totals, y)
	e.drawFooter(pdf, inv, opts, y)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate document: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Engine) pageSizeName() string {
	size := models.PageSizeLetter
	if e.settings != nil && e.settings.PageSize != "" {
		size = e.settings.PageSize
	}
	switch models.PageSize(strings.ToLower(string(size))) {
	case models.PageSizeA4:
		return "A4"
	default:
		return "Letter" // 612x792
	}
}

// drawHeader draws the business-identity block on the left (with the logo,
// when one loaded) and the document title on the right. The returned cursor
// clears both blocks so nothing overlaps them.
func (e *Engine) drawHeader(pdf *gofpdf.Fpdf, inv *models.Invoice, opts Options) float64 {
	pageW, _ := pdf.GetPageSize()
	top := e.cfg.Margin
	textX := e.cfg.Margin
	logoBottom := top

	if opts.Logo != nil {
		if w, ok := e.placeLogo(pdf, opts.Logo, e.cfg.Margin, top); ok {
			textX += w + 12
			logoBottom = top + e.cfg.LogoHeight
		}
	}

	textY := top
	if e.settings != nil && e.settings.BusinessName != "" {
		e.setFont(pdf, e.theme.Font.Bold, 14)
		e.setText(pdf, e.theme.Accent)
		pdf.Text(textX, textY+12, e.settings.BusinessName)
		textY += 18

		e.setFont(pdf, e.theme.Font.Regular, 9)
		e.setText(pdf, e.theme.Muted)
		for _, line := range e.businessLines() {
			pdf.Text(textX, textY+9, line)
			textY += 12
		}
	}

	title := "INVOICE"
	if e.settings != nil && e.settings.HeaderText != "" {
		title = e.settings.HeaderText
	}
	e.setFont(pdf, e.theme.Font.Bold, 22)
	e.setText(pdf, e.theme.Accent)
	pdf.Text(pageW-e.cfg.Margin-pdf.GetStringWidth(title), top+18, title)

	number := invoiceNumber(inv, opts)
	e.setFont(pdf, e.theme.Font.Regular, 10)
	e.setText(pdf, e.theme.Muted)
	pdf.Text(pageW-e.cfg.Margin-pdf.GetStringWidth("# "+number), top+34, "# "+number)
	titleBottom := top + 38

	y := textY
	if logoBottom > y {
		y = logoBottom
	}
	if titleBottom > y {
		y = titleBottom
	}
	y += 12

	e.setDraw(pdf, e.theme.HeaderLine)
	pdf.SetLineWidth(1.5)
	pdf.Line(e.cfg.Margin, y, pageW-e.cfg.Margin, y)

	return y + 18
}

// placeLogo embeds the logo scaled to the configured display height while
// preserving aspect ratio. A logo that fails to decode is skipped silently;
// the render proceeds without it.
func (e *Engine) placeLogo(pdf *gofpdf.Fpdf, logo *Logo, x, y float64) (float64, bool) {
	cfgImg, _, err := image.DecodeConfig(bytes.NewReader(logo.Data))
	if err != nil || cfgImg.Width <= 0 || cfgImg.Height <= 0 {
		return 0, false
	}
	displayW := e.cfg.LogoHeight * float64(cfgImg.Width) / float64(cfgImg.Height)

	opts := gofpdf.ImageOptions{ImageType: logo.Format, ReadDpi: false}
	info := pdf.RegisterImageOptionsReader("business-logo", opts, bytes.NewReader(logo.Data))
	if info == nil || pdf.Err() {
		// clear the sticky error so one bad image cannot poison the document
		pdf.ClearError()
		return 0, false
	}
	pdf.ImageOptions("business-logo", x, y, displayW, e.cfg.LogoHeight, false, opts, 0, "")
	return displayW, true
}

func (e *Engine) businessLines() []string {
	var lines []string
	if e.settings == nil {
		return lines
	}
	for _, block := range strings.Split(e.settings.BusinessAddress, "\n") {
		if block = strings.TrimSpace(block); block != "" {
			lines = append(lines, block)
		}
	}
	for _, s := range []string{e.settings.BusinessPhone, e.settings.BusinessEmail, e.settings.BusinessWebsite} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

func invoiceNumber(inv *models.Invoice, opts Options) string {
	if opts.InvoiceNumber != "" {
		return opts.InvoiceNumber
	}
	return inv.InvoiceNumber
}

// drawAddressesAndMeta draws the bill-to and ship-to blocks with the
// document metadata block on the right
func (e *Engine) drawAddressesAndMeta(pdf *gofpdf.Fpdf, inv *models.Invoice, order *models.Order, opts Options, y float64) float64 {
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*e.cfg.Margin
	colW := contentW / 3

	bottom := y

	blockBottom := e.drawAddressBlock(pdf, "BILL TO", inv.BillTo, e.cfg.Margin, y, colW)
	if blockBottom > bottom {
		bottom = blockBottom
	}

	showShipTo := e.settings == nil || e.settings.ShowShipTo
	if showShipTo && !inv.ShipTo.IsEmpty() {
		blockBottom = e.drawAddressBlock(pdf, "SHIP TO", inv.ShipTo, e.cfg.Margin+colW, y, colW)
		if blockBottom > bottom {
			bottom = blockBottom
		}
	}

	blockBottom = e.drawMetaBlock(pdf, inv, order, opts, pageW-e.cfg.Margin, y)
	if blockBottom > bottom {
		bottom = blockBottom
	}

	return bottom + 20
}

func (e *Engine) drawAddressBlock(pdf *gofpdf.Fpdf, label string, addr models.Address, x, y, w float64) float64 {
	e.setFont(pdf, e.theme.Font.Bold, 9)
	e.setText(pdf, e.theme.Muted)
	pdf.Text(x, y+9, label)
	y += 14

	e.setFont(pdf, e.theme.Font.Regular, 9)
	e.setText(pdf, e.theme.Text)
	budget := w - 12
	for _, line := range addr.Lines() {
		pdf.Text(x, y+9, Clip(line, budget, pdf.GetStringWidth))
		y += 12
	}
	return y
}

// drawMetaBlock draws right-aligned label/value pairs for the document
// metadata: number, dates, and the originating order reference
func (e *Engine) drawMetaBlock(pdf *gofpdf.Fpdf, inv *models.Invoice, order *models.Order, opts Options, rightX, y float64) float64 {
	type metaRow struct{ label, value string }

	issue := inv.IssueDate
	if opts.IssueDate != nil {
		issue = *opts.IssueDate
	}
	due := inv.DueDate
	if opts.DueDate != nil {
		due = opts.DueDate
	}

	rows := []metaRow{{"Invoice #", invoiceNumber(inv, opts)}}
	if !issue.IsZero() {
		rows = append(rows, metaRow{"Issue Date", issue.Format("Jan 02, 2006")})
	}
	if due != nil && !due.IsZero() {
		rows = append(rows, metaRow{"Due Date", due.Format("Jan 02, 2006")})
	}
	if order != nil && order.OrderNumber != "" {
		rows = append(rows, metaRow{"Order #", order.OrderNumber})
	}
	if inv.ShippingCarrier != "" {
		rows = append(rows, metaRow{"Carrier", inv.ShippingCarrier})
	}
	if inv.TrackingNumber != "" {
		rows = append(rows, metaRow{"Tracking", inv.TrackingNumber})
	}

	for _, r := range rows {
		e.setFont(pdf, e.theme.Font.Bold, 9)
		e.setText(pdf, e.theme.Muted)
		valueX := rightX - 110
		pdf.Text(valueX-pdf.GetStringWidth(r.label)-6, y+9, r.label)

		e.setFont(pdf, e.theme.Font.Regular, 9)
		e.setText(pdf, e.theme.Text)
		value := Clip(r.value, 110, pdf.GetStringWidth)
		pdf.Text(rightX-pdf.GetStringWidth(value), y+9, value)
		y += 13
	}
	return y
}

// tableColumns builds the fixed-target column set for the current settings
// and row data; the trailing total column is appended by allocateColumns
func (e *Engine) tableColumns(rows []Row) []column {
	cols := []column{{key: "desc", title: "Description", width: 180, align: "L", flex: true}}

	if e.settings == nil || e.settings.ShowSKUColumn {
		cols = append(cols, column{key: "sku", title: "SKU", width: 70, align: "L"})
	}
	if e.settings == nil || e.settings.ShowOptions {
		hasOptions := false
		for _, r := range rows {
			if r.OptionSummary != "" || len(r.Upgrades) > 0 || len(r.Extras) > 0 {
				hasOptions = true
				break
			}
		}
		if hasOptions {
			cols = append(cols, column{key: "options", title: "Options", width: 110, align: "L"})
		}
	}

	cols = append(cols,
		column{key: "qty", title: "Qty", width: 45, align: "R"},
		column{key: "price", title: "Unit Price", width: 70, align: "R"},
	)
	return cols
}

func cellText(row Row, key string) string {
	switch key {
	case "desc":
		return row.Description
	case "sku":
		return row.SKU
	case "options":
		parts := make([]string, 0, 3)
		if row.OptionSummary != "" {
			parts = append(parts, row.OptionSummary)
		}
		if len(row.Upgrades) > 0 {
			parts = append(parts, strings.Join(row.Upgrades, ", "))
		}
		if len(row.Extras) > 0 {
			parts = append(parts, strings.Join(row.Extras, ", "))
		}
		return strings.Join(parts, "; ")
	case "qty":
		return strconv.FormatFloat(row.Quantity, 'f', -1, 64)
	case "price":
		return FormatAmount(row.UnitPrice)
	case "total":
		return FormatAmount(row.LineTotal)
	default:
		return ""
	}
}

// drawItemsTable draws the dynamically-columned item table with row striping.
// Rows are capped: once the visible-row limit is hit or the next row would
// cross into the reserved footer area, the loop ends early and a single
// "+N additional items not shown" line stands in for the remainder.
func (e *Engine) drawItemsTable(pdf *gofpdf.Fpdf, rows []Row, y float64) float64 {
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*e.cfg.Margin
	cols := allocateColumns(e.tableColumns(rows), contentW, e.cfg.MinTotalColWidth, e.cfg.MinDescColWidth)

	// header row
	pdf.SetXY(e.cfg.Margin, y)
	e.setFill(pdf, e.theme.TableHeaderBG)
	e.setText(pdf, e.theme.Text)
	e.setFont(pdf, e.theme.Font.Bold, 9)
	for _, c := range cols {
		pdf.CellFormat(c.width, e.cfg.HeaderRowHeight, c.title, "", 0, c.align+"M", true, 0, "")
	}
	y += e.cfg.HeaderRowHeight

	maxY := pageH - e.cfg.FooterReserve
	e.setFont(pdf, e.theme.Font.Regular, 9)
	cellPad := 8.0

	shown := 0
	for i := range rows {
		if shown >= e.cfg.MaxVisibleRows || y+e.cfg.RowHeight > maxY {
			remaining := len(rows) - i
			e.setFont(pdf, e.theme.Font.Italic, 9)
			e.setText(pdf, e.theme.Muted)
			pdf.SetXY(e.cfg.Margin, y)
			pdf.CellFormat(contentW, e.cfg.RowHeight,
				fmt.Sprintf("+%d additional items not shown", remaining), "", 0, "LM", false, 0, "")
			y += e.cfg.RowHeight
			break
		}

		fill := i%2 == 1
		if fill {
			e.setFill(pdf, e.theme.TableAltBG)
		}
		e.setText(pdf, e.theme.Text)
		pdf.SetXY(e.cfg.Margin, y)
		for _, c := range cols {
			text := Clip(cellText(rows[i], c.key), c.width-cellPad, pdf.GetStringWidth)
			pdf.CellFormat(c.width, e.cfg.RowHeight, text, "", 0, c.align+"M", fill, 0, "")
		}
		y += e.cfg.RowHeight
		shown++
	}

	e.setDraw(pdf, e.theme.Border)
	pdf.SetLineWidth(0.75)
	pdf.Line(e.cfg.Margin, y, pageW-e.cfg.Margin, y)

	return y + 14
}

// drawTotals draws the totals block: subtotal always, discount/tax/shipping
// only when meaningful, and the highlighted total due last
func (e *Engine) drawTotals(pdf *gofpdf.Fpdf, inv *models.Invoice, totals Totals, y float64) float64 {
	pageW, _ := pdf.GetPageSize()
	const labelW, valueW = 110.0, 90.0
	blockW := labelW + valueW
	x := pageW - e.cfg.Margin - blockW

	type totalsRow struct {
		label     string
		value     float64
		highlight bool
	}

	lines := []totalsRow{{label: "Subtotal", value: totals.Subtotal}}
	if totals.DiscountAmount != 0 {
		lines = append(lines, totalsRow{label: "Discount", value: -totals.DiscountAmount})
	}
	if totals.TaxAmount != 0 || (inv != nil && inv.TaxRate != 0) {
		label := "Tax"
		if inv != nil && inv.TaxRate != 0 {
			label = fmt.Sprintf("Tax (%s%%)", strconv.FormatFloat(inv.TaxRate, 'f', -1, 64))
		}
		lines = append(lines, totalsRow{label: label, value: totals.TaxAmount})
	}
	if totals.Shipping != 0 {
		lines = append(lines, totalsRow{label: "Shipping", value: totals.Shipping})
	}
	lines = append(lines, totalsRow{label: "Total Due", value: totals.Total, highlight: true})

	rowHeight := 18.0
	for _, line := range lines {
		pdf.SetXY(x, y)
		if line.highlight {
			e.setFill(pdf, e.theme.TotalsHighlight)
			pdf.Rect(x, y, blockW, rowHeight, "F")
			e.setFont(pdf, e.theme.Font.Bold, 11)
		} else {
			e.setFont(pdf, e.theme.Font.Regular, 10)
		}
		e.setText(pdf, e.theme.Text)
		pdf.CellFormat(labelW, rowHeight, line.label, "", 0, "RM", false, 0, "")
		pdf.CellFormat(valueW, rowHeight, FormatAmount(line.value), "", 0, "RM", false, 0, "")
		y += rowHeight
	}
	return y + 16
}

// drawFooter draws notes, terms, the configured footer line and the
// generation timestamp
func (e *Engine) drawFooter(pdf *gofpdf.Fpdf, inv *models.Invoice, opts Options, y float64) {
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*e.cfg.Margin

	showNotes := e.settings == nil || e.settings.ShowNotes
	if showNotes && inv.Notes != "" {
		e.setFont(pdf, e.theme.Font.Bold, 9)
		e.setText(pdf, e.theme.Muted)
		pdf.Text(e.cfg.Margin, y+9, "Notes")
		y += 13

		e.setFont(pdf, e.theme.Font.Regular, 8)
		e.setText(pdf, e.theme.Text)
		pdf.SetXY(e.cfg.Margin, y)
		pdf.MultiCell(contentW, 11, inv.Notes, "", "L", false)
		y = pdf.GetY() + 8
	}

	terms := inv.Terms
	if terms == "" && e.settings != nil {
		terms = e.settings.TermsText
	}
	showTerms := e.settings == nil || e.settings.ShowTerms
	if showTerms && terms != "" {
		e.setFont(pdf, e.theme.Font.Bold, 8)
		e.setText(pdf, e.theme.Muted)
		pdf.Text(e.cfg.Margin, y+8, "Terms & Conditions")
		y += 12

		e.setFont(pdf, e.theme.Font.Regular, 7)
		pdf.SetXY(e.cfg.Margin, y)
		pdf.MultiCell(contentW, 9, terms, "", "L", false)
	}

	footY := pageH - e.cfg.Margin + 10
	if e.settings != nil && e.settings.FooterText != "" {
		e.setFont(pdf, e.theme.Font.Regular, 9)
		e.setText(pdf, e.theme.Muted)
		pdf.Text(e.cfg.Margin+(contentW-pdf.GetStringWidth(e.settings.FooterText))/2, footY-14, e.settings.FooterText)
	}

	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	stamp := "Generated on " + generatedAt.Format("Jan 02, 2006 15:04 MST")
	e.setFont(pdf, e.theme.Font.Regular, 7)
	e.setText(pdf, e.theme.Muted)
	pdf.Text(e.cfg.Margin+(contentW-pdf.GetStringWidth(stamp))/2, footY, stamp)
}

func (e *Engine) setFont(pdf *gofpdf.Fpdf, style string, size float64) {
	pdf.SetFont(e.theme.Font.Name, style, size)
}

func (e *Engine) setText(pdf *gofpdf.Fpdf, c RGB) {
	r, g, b := c.Bytes()
	pdf.SetTextColor(r, g, b)
}

func (e *Engine) setFill(pdf *gofpdf.Fpdf, c RGB) {
	r, g, b := c.Bytes()
	pdf.SetFillColor(r, g, b)
}

func (e *Engine) setDraw(pdf *gofpdf.Fpdf, c RGB) {
	r, g, b := c.Bytes()
	pdf.SetDrawColor(r, g, b)
}
