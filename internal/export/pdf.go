// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/logging"
)

// DefaultBanner prefixes the per-document banner text.
const DefaultBanner = "NORSU Alumni System"

// File-log PDF limits.
const (
	MaxPDFEntries     = 500
	PDFEntriesPerPage = 50
	MaxPDFEntryLength = 500
)

// Audit table limits.
const maxPDFMessageLength = 50

// Page geometry in points.
const (
	marginSide   = 30.0
	marginTop    = 80.0
	marginBottom = 30.0
	fontFamily   = "Helvetica"
)

// PageHeader draws the repeating banner at the top of every page.
type PageHeader interface {
	Draw(pdf *fpdf.Fpdf, banner string)
}

// LogoHeader draws an optional logo image followed by the banner text.
type LogoHeader struct {
	// LogoPath is a PNG or JPEG file. Empty or unreadable means no logo.
	LogoPath string
}

// Draw implements PageHeader.
func (h *LogoHeader) Draw(pdf *fpdf.Fpdf, banner string) {
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	textX := left

	if h.LogoPath != "" {
		if _, err := os.Stat(h.LogoPath); err == nil {
			pdf.ImageOptions(h.LogoPath, left, 20, 0, 40, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
			if pdf.Ok() {
				textX = left + 50
			} else {
				logging.Warn().Err(pdf.Error()).Str("logo", h.LogoPath).Msg("Skipping unreadable PDF logo")
				pdf.ClearError()
			}
		}
	}

	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(45, 55, 72)
	pdf.SetXY(textX, 32)
	pdf.CellFormat(pageW-right-textX, 16, banner, "", 0, "L", false, 0, "")
	pdf.SetDrawColor(203, 213, 224)
	pdf.Line(left, 66, pageW-right, 66)
}

// PDFOptions controls PDF rendering.
type PDFOptions struct {
	Header PageHeader
	// Banner defaults to DefaultBanner; the document kind is appended.
	Banner string
	Now    time.Time

	uncompressed bool
}

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(opts PDFOptions, kind string) *document {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginSide, marginTop, marginSide)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCompression(!opts.uncompressed)
	pdf.SetCreator("logkeeper", true)
	pdf.SetCreationDate(opts.Now)

	header := opts.Header
	if header == nil {
		header = &LogoHeader{}
	}
	banner := opts.Banner
	if banner == "" {
		banner = DefaultBanner
	}
	banner += " - " + kind

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetHeaderFuncMode(func() { header.Draw(pdf, d.tr(banner)) }, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-22)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(113, 128, 150)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) title(text string) {
	d.pdf.SetFont(fontFamily, "B", 16)
	d.pdf.SetTextColor(26, 32, 44)
	d.pdf.CellFormat(0, 24, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(4)
}

func (d *document) summary(lines ...[2]string) {
	for _, l := range lines {
		d.pdf.SetFont(fontFamily, "B", 10)
		d.pdf.CellFormat(90, 14, d.tr(l[0]), "", 0, "L", false, 0, "")
		d.pdf.SetFont(fontFamily, "", 10)
		d.pdf.CellFormat(0, 14, d.tr(l[1]), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(10)
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

var (
	auditColumns = []string{"Timestamp", "Action", "Model", "User", "Message"}
	// Fractions of the printable width.
	auditColumnShares = []float64{0.16, 0.11, 0.21, 0.16, 0.36}
)

const (
	tableLineHeight = 11.0
	tablePadding    = 3.0
)

// WriteAuditPDF renders records as a paginated table.
func WriteAuditPDF(w io.Writer, records []audit.Record, opts PDFOptions) error {
	d := newDocument(opts, "Audit Logs")
	d.title("Audit Logs Archive")
	d.summary(
		[2]string{"Export Date:", opts.Now.Format(timeLayout)},
		[2]string{"Total Records:", fmt.Sprintf("%d", len(records))},
	)

	pdf := d.pdf
	pageW, pageH := pdf.GetPageSize()
	widths := make([]float64, len(auditColumnShares))
	for i, share := range auditColumnShares {
		widths[i] = (pageW - 2*marginSide) * share
	}

	headerRow := func() {
		pdf.SetFont(fontFamily, "B", 9)
		pdf.SetFillColor(0x4a, 0x55, 0x68)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetDrawColor(160, 160, 160)
		for i, col := range auditColumns {
			pdf.CellFormat(widths[i], 20, col, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	headerRow()

	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(26, 32, 44)
	for i := range records {
		r := &records[i]
		cells := []string{
			r.Timestamp.Format("2006-01-02") + "\n" + r.Timestamp.Format("15:04:05"),
			string(r.Action),
			r.AppLabel + ".\n" + r.ModelName,
			r.ActorDisplay(),
			truncateText(r.Message, maxPDFMessageLength),
		}
		for j := range cells {
			cells[j] = d.tr(cells[j])
		}

		lines := 1
		for j, c := range cells {
			if n := len(pdf.SplitLines([]byte(c), widths[j]-2*tablePadding)); n > lines {
				lines = n
			}
		}
		rowH := float64(lines)*tableLineHeight + 2*tablePadding

		if pdf.GetY()+rowH > pageH-marginBottom {
			pdf.AddPage()
			headerRow()
			pdf.SetFont(fontFamily, "", 8)
			pdf.SetTextColor(26, 32, 44)
		}

		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(0xf7, 0xfa, 0xfc)
		}
		x, y := pdf.GetXY()
		for j, c := range cells {
			pdf.Rect(x, y, widths[j], rowH, "FD")
			pdf.SetXY(x+tablePadding, y+tablePadding)
			pdf.MultiCell(widths[j]-2*tablePadding, tableLineHeight, c, "", "L", false)
			x += widths[j]
			pdf.SetXY(x, y)
		}
		pdf.SetXY(marginSide, y+rowH)
	}
	return d.output(w)
}

// WriteFileLogPDF renders up to MaxPDFEntries entries of one log file as
// literal text paragraphs.
func WriteFileLogPDF(w io.Writer, source string, entries []string, opts PDFOptions) error {
	d := newDocument(opts, "File Logs")
	d.title("File Logs Archive: " + source)
	d.summary(
		[2]string{"Export Date:", opts.Now.Format(timeLayout)},
		[2]string{"Source File:", source},
		[2]string{"Total Entries:", fmt.Sprintf("%d", len(entries))},
	)

	pdf := d.pdf
	shown := entries
	if len(shown) > MaxPDFEntries {
		shown = shown[:MaxPDFEntries]
	}
	pdf.SetTextColor(26, 32, 44)
	for i, entry := range shown {
		if i > 0 && i%PDFEntriesPerPage == 0 {
			pdf.AddPage()
		}
		pdf.SetFont("Courier", "", 8)
		pdf.MultiCell(0, 10, d.tr(truncateText(entry, MaxPDFEntryLength)), "", "L", false)
		pdf.Ln(4)
	}

	if len(entries) > MaxPDFEntries {
		pdf.Ln(6)
		pdf.SetFont(fontFamily, "I", 9)
		pdf.SetTextColor(155, 44, 44)
		pdf.MultiCell(0, 12, truncationNotice(len(entries)), "", "L", false)
	}
	return d.output(w)
}

func truncationNotice(total int) string {
	return fmt.Sprintf("Note: Only first %d of %d entries shown. See CSV export for complete data.", MaxPDFEntries, total)
}

// truncateText cuts s to n runes and marks the cut with "...".
func truncateText(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return audit.Truncate(s, n) + "..."
}
