// Package render produces the certified billing document. Layout is fixed
// page geometry: every element position is computed from constants and
// content lengths, so identical input yields byte-identical output. That
// determinism is what the hash stabilization loop depends on.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"veridoc/internal/domain"
	"veridoc/internal/render/qrraster"
)

// Input is everything the renderer needs for one document, minus the
// embedded hash guess which varies per stabilization iteration.
type Input struct {
	IssuerName     string
	IssuerSlug     string
	IssuerLines    []string
	RecipientName  string
	RecipientLines []string
	Category       string
	InvoiceNumber  string
	Currency       string
	IssuedAt       time.Time
	DueAt          time.Time
	Totals         domain.Totals
	Notes          string
}

// Page geometry in millimeters (A4 portrait).
const (
	pageWidth  = 210.0
	pageHeight = 297.0
	marginX    = 15.0
	marginTop  = 18.0

	contentWidth = pageWidth - 2*marginX

	colDescX   = marginX
	colDescW   = 95.0
	colQtyW    = 20.0
	colUnitW   = 32.0
	colAmountW = contentWidth - colDescW - colQtyW - colUnitW

	rowLineHeight = 6.0
	tableTopY     = 86.0
	// Rows stop here so the footer band is never collided with.
	rowCutoffY = 198.0

	footerGap    = 8.0
	footerMinY   = 120.0
	footerHeight = 74.0
	footerMaxY   = pageHeight - marginX - footerHeight

	qrEdgeMM = 28.0
)

// creationDate pins the PDF metadata clock. A wall-clock date here would
// break byte-identical rendering.
var creationDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Renderer builds RenderedDocument bytes for one input and hash guess.
type Renderer struct {
	verifyBaseURL string
}

func NewRenderer(verifyBaseURL string) (*Renderer, error) {
	if verifyBaseURL == "" {
		return nil, fmt.Errorf("render: verify base URL is required")
	}
	return &Renderer{verifyBaseURL: verifyBaseURL}, nil
}

// VerifyURL is the canonical verification link embedded in the document.
func (r *Renderer) VerifyURL(hash string) string {
	return fmt.Sprintf("%s?hash=%s", r.verifyBaseURL, hash)
}

// Render produces the document bytes with the given embedded hash guess.
// The guess must be a fixed-length hex string; its width never changes, so
// re-rendering with a different guess cannot move any layout element.
func (r *Renderer) Render(in Input, embeddedHash string) ([]byte, error) {
	if len(embeddedHash) != 64 {
		return nil, fmt.Errorf("render: embedded hash must be 64 hex chars, got %d", len(embeddedHash))
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	// Both of these are needed for byte-identical output: resource
	// dictionaries are emitted in randomized map order unless the catalog
	// is sorted, and ModDate defaults to wall-clock time.
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(creationDate)
	pdf.SetModificationDate(creationDate)
	pdf.SetTitle(safeText(in.IssuerName)+" "+safeText(in.Category), false)
	pdf.SetAuthor(safeText(in.IssuerName), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.AddPage()

	r.drawHeader(pdf, in)
	r.drawParties(pdf, in)
	contentEnd := r.drawTable(pdf, in)

	footerTop := contentEnd + footerGap
	if footerTop < footerMinY {
		footerTop = footerMinY
	}
	if footerTop > footerMaxY {
		footerTop = footerMaxY
	}
	r.drawFooter(pdf, in, footerTop, embeddedHash)

	if pdf.Err() {
		return nil, fmt.Errorf("render: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: output: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawHeader(pdf *fpdf.Fpdf, in Input) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetXY(marginX, marginTop)
	pdf.CellFormat(110, 8, safeText(in.IssuerName), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetXY(pageWidth-marginX-65, marginTop)
	pdf.CellFormat(65, 8, strings.ToUpper(safeText(in.Category)), "", 0, "R", false, 0, "")

	// Issuer address block under the name.
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(70, 70, 70)
	y := marginTop + 10
	width := func(s string) float64 { return pdf.GetStringWidth(s) }
	for _, line := range in.IssuerLines {
		for _, wrapped := range wrapText(safeText(line), 100, 1, width) {
			pdf.SetXY(marginX, y)
			pdf.CellFormat(100, 4.5, wrapped, "", 0, "L", false, 0, "")
			y += 4.5
		}
	}

	// Document metadata on the right.
	metaY := marginTop + 12.0
	r.metaRow(pdf, metaY, "Number", metaValue(in.InvoiceNumber))
	r.metaRow(pdf, metaY+5, "Issued", formatDate(in.IssuedAt))
	r.metaRow(pdf, metaY+10, "Due", formatDate(in.DueAt))
}

func (r *Renderer) metaRow(pdf *fpdf.Fpdf, y float64, label, value string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetXY(pageWidth-marginX-65, y)
	pdf.CellFormat(22, 5, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetXY(pageWidth-marginX-43, y)
	pdf.CellFormat(43, 5, safeText(value), "", 0, "R", false, 0, "")
}

func (r *Renderer) drawParties(pdf *fpdf.Fpdf, in Input) {
	const partiesY = 58.0
	width := func(s string) float64 { return pdf.GetStringWidth(s) }

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(130, 130, 130)
	pdf.SetXY(marginX, partiesY)
	pdf.CellFormat(90, 4, "BILLED TO", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetXY(marginX, partiesY+5)
	pdf.CellFormat(90, 5, ellipsize(safeText(in.RecipientName), 90, width), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(70, 70, 70)
	y := partiesY + 11
	lines := 0
	for _, line := range in.RecipientLines {
		if lines == 3 {
			break
		}
		for _, wrapped := range wrapText(safeText(line), 90, 1, width) {
			pdf.SetXY(marginX, y)
			pdf.CellFormat(90, 4.5, wrapped, "", 0, "L", false, 0, "")
			y += 4.5
			lines++
		}
	}
}

// drawTable renders the line-item table and returns the y coordinate of the
// last drawn row edge.
func (r *Renderer) drawTable(pdf *fpdf.Fpdf, in Input) float64 {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.SetTextColor(40, 40, 40)
	pdf.SetXY(marginX, tableTopY)
	pdf.CellFormat(colDescW, 7, "Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(colQtyW, 7, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(colUnitW, 7, "Unit price", "", 0, "R", true, 0, "")
	pdf.CellFormat(colAmountW, 7, "Amount", "", 0, "R", true, 0, "")

	width := func(s string) float64 { return pdf.GetStringWidth(s) }
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetDrawColor(220, 220, 220)
	pdf.SetLineWidth(0.2)

	y := tableTopY + 7
	for idx, item := range in.Totals.Items {
		descLines := wrapText(safeText(item.Description), colDescW-2, 2, width)
		if len(descLines) == 0 {
			descLines = []string{""}
		}
		rowH := rowLineHeight * float64(len(descLines))
		if y+rowH > rowCutoffY {
			remaining := len(in.Totals.Items) - idx
			pdf.SetFont("Helvetica", "I", 8)
			pdf.SetTextColor(130, 130, 130)
			pdf.SetXY(marginX, y)
			pdf.CellFormat(colDescW, rowLineHeight, fmt.Sprintf("+ %d more items", remaining), "", 0, "L", false, 0, "")
			y += rowLineHeight
			break
		}
		for i, line := range descLines {
			pdf.SetXY(colDescX, y+float64(i)*rowLineHeight)
			pdf.CellFormat(colDescW-2, rowLineHeight, line, "", 0, "L", false, 0, "")
		}
		pdf.SetXY(colDescX+colDescW, y)
		pdf.CellFormat(colQtyW, rowLineHeight, formatQuantity(item.Quantity), "", 0, "R", false, 0, "")
		pdf.SetXY(colDescX+colDescW+colQtyW, y)
		pdf.CellFormat(colUnitW, rowLineHeight, formatMinor(item.UnitPrice), "", 0, "R", false, 0, "")
		pdf.SetXY(colDescX+colDescW+colQtyW+colUnitW, y)
		pdf.CellFormat(colAmountW, rowLineHeight, formatMinor(item.Amount), "", 0, "R", false, 0, "")
		y += rowH
		pdf.Line(marginX, y, pageWidth-marginX, y)
	}
	return y
}

func (r *Renderer) drawFooter(pdf *fpdf.Fpdf, in Input, top float64, embeddedHash string) {
	width := func(s string) float64 { return pdf.GetStringWidth(s) }

	// Summary totals, right aligned.
	sumX := pageWidth - marginX - 65
	r.summaryRow(pdf, sumX, top, "Subtotal", formatMinor(in.Totals.Subtotal), false)
	r.summaryRow(pdf, sumX, top+6, "Tax", formatMinor(in.Totals.Tax), false)
	pdf.SetDrawColor(40, 40, 40)
	pdf.SetLineWidth(0.3)
	pdf.Line(sumX, top+13, pageWidth-marginX, top+13)
	r.summaryRow(pdf, sumX, top+14, "Total "+safeText(in.Currency), formatMinor(in.Totals.Total), true)

	// Notes, left column.
	if in.Notes != "" {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetTextColor(130, 130, 130)
		pdf.SetXY(marginX, top)
		pdf.CellFormat(100, 4, "NOTES", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(70, 70, 70)
		y := top + 5
		for _, line := range wrapText(safeText(in.Notes), 100, 3, width) {
			pdf.SetXY(marginX, y)
			pdf.CellFormat(100, 4, line, "", 0, "L", false, 0, "")
			y += 4
		}
	}

	r.drawVerification(pdf, top+26, embeddedHash)
}

func (r *Renderer) summaryRow(pdf *fpdf.Fpdf, x, y float64, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 9)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetXY(x, y)
	pdf.CellFormat(35, 5, label, "", 0, "L", false, 0, "")
	pdf.SetXY(x+35, y)
	pdf.CellFormat(30, 5, value, "", 0, "R", false, 0, "")
}

// drawVerification renders the panel that makes the document self-checking:
// a QR of the verification URL plus the embedded hash in text form.
func (r *Renderer) drawVerification(pdf *fpdf.Fpdf, top float64, embeddedHash string) {
	verifyURL := r.VerifyURL(embeddedHash)
	raster, err := qrraster.Encode(verifyURL, qrraster.Options{
		SizePx:        512,
		MarginModules: 2,
		Level:         qrraster.LevelMedium,
	})
	if err != nil {
		pdf.SetError(err)
		return
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)
	pdf.Rect(marginX, top, contentWidth, qrEdgeMM+8, "D")

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("verify-qr", opts, bytes.NewReader(raster))
	pdf.ImageOptions("verify-qr", marginX+4, top+4, qrEdgeMM, qrEdgeMM, false, opts, 0, "")

	textX := marginX + qrEdgeMM + 10
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetXY(textX, top+5)
	pdf.CellFormat(120, 5, "Document verification", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7.5)
	pdf.SetTextColor(70, 70, 70)
	pdf.SetXY(textX, top+11)
	pdf.CellFormat(130, 4, "Scan the code or visit the address below to check this document's integrity.", "", 0, "L", false, 0, "")
	pdf.SetXY(textX, top+15.5)
	width := func(s string) float64 { return pdf.GetStringWidth(s) }
	pdf.CellFormat(130, 4, ellipsize(verifyURL, 130, width), "", 0, "L", false, 0, "")

	// The hash is fixed length, so the two 32-char halves always fit.
	pdf.SetFont("Courier", "", 7)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(textX, top+21)
	pdf.CellFormat(130, 3.5, "SHA-256 "+embeddedHash[:32], "", 0, "L", false, 0, "")
	pdf.SetXY(textX, top+24.5)
	pdf.CellFormat(130, 3.5, "        "+embeddedHash[32:], "", 0, "L", false, 0, "")
}

func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006")
}

func metaValue(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
