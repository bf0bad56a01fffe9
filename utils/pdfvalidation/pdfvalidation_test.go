package pdfvalidation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func singlePagePDF(t *testing.T, pages int) []byte {
	t.Helper()

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Cell(0, 20, "certificate")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateExportAcceptsSinglePage(t *testing.T) {
	if err := ValidateExport(singlePagePDF(t, 1)); err != nil {
		t.Errorf("ValidateExport() rejected a valid single-page PDF: %v", err)
	}
}

func TestValidateExportRejectsMultiplePages(t *testing.T) {
	err := ValidateExport(singlePagePDF(t, 3))
	if err == nil {
		t.Fatal("ValidateExport() accepted a multi-page PDF")
	}
	if !strings.Contains(err.Error(), "pages") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateExportRejectsEmpty(t *testing.T) {
	if err := ValidateExport(nil); err == nil {
		t.Error("ValidateExport() accepted empty data")
	}
}

func TestValidateExportRejectsNonPDF(t *testing.T) {
	if err := ValidateExport([]byte("<html>not a pdf</html>")); err == nil {
		t.Error("ValidateExport() accepted non-PDF data")
	}
}

func TestValidateExportRejectsTruncatedPDF(t *testing.T) {
	data := singlePagePDF(t, 1)
	if err := ValidateExport(data[:len(data)/2]); err == nil {
		t.Error("ValidateExport() accepted a truncated PDF")
	}
}
