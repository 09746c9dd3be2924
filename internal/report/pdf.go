package report

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"example.com/segyfix/internal/validate"
)

// WritePDFReport renders the validation results into a PDF document. When a
// non-empty source hash is supplied a QR code encoding it is placed on the
// title page so a printed report stays tied to the exact input bytes.
func WritePDFReport(reports []FileReport, sourceHash, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("SEG-Y Validation Report", false)
	pdf.SetAuthor("segyctl", false)
	pdf.SetCreator("segyctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "SEG-Y Validation Report")
	if err := addProvenanceQR(pdf, sourceHash); err != nil {
		return err
	}
	addSummarySection(pdf, reports)
	for _, r := range reports {
		addFileSection(pdf, r)
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

// addProvenanceQR places a QR code of the input file's SHA-256 on the title
// page. Anything that is not a plausible hex digest is silently dropped; the
// report is still valid without the code.
func addProvenanceQR(pdf *gofpdf.Fpdf, hash string) error {
	digest := strings.ToLower(strings.TrimSpace(hash))
	if len(digest) < 32 || len(digest)%2 != 0 {
		return nil
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return nil
	}
	png, err := qrcode.Encode(digest, qrcode.Medium, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("source-hash", opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	pdf.ImageOptions("source-hash", pageW-45, 12, 30, 30, false, opts, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.Text(pageW-45, 45, "SHA-256 "+digest[:16]+"…")
	pdf.Ln(2)
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, reports []FileReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	var errs, warns, total int
	for _, r := range reports {
		for _, f := range r.Findings {
			total++
			switch f.Severity {
			case validate.SeverityError:
				errs++
			case validate.SeverityWarning:
				warns++
			}
		}
	}

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Files", value: strconv.Itoa(len(reports))},
		{label: "Total Findings", value: strconv.Itoa(total)},
		{label: "Errors", value: strconv.Itoa(errs)},
		{label: "Warnings", value: strconv.Itoa(warns)},
		{label: "Overall", value: passLabel(errs == 0)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFileSection(pdf *gofpdf.Fpdf, r FileReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, r.File+" — "+r.Status)
	pdf.Ln(9)

	if len(r.Findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		pdf.Ln(2)
		return
	}

	for i, f := range r.Findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. [%s] %s (trace %s)", i+1, strings.ToUpper(string(f.Severity)), f.Kind, f.Scope())
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(f.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}
		if ctx := strings.TrimSpace(f.Context); ctx != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, ctx, "", "L", false)
		}
		pdf.Ln(2)
	}
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
