package pdfvalidation

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Exported certificate documents are always a single page wrapping one
// raster image; anything else means the export pipeline misbehaved.
const maxExportPages = 1

// ValidateExport checks that exported PDF bytes are a structurally valid
// single-page document before they are archived or served.
func ValidateExport(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("exported PDF is empty")
	}

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return fmt.Errorf("exported data is not a PDF document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("exported PDF is not readable: %w", err)
	}

	pages := reader.NumPage()
	if pages < 1 {
		return fmt.Errorf("exported PDF has no pages")
	}
	if pages > maxExportPages {
		return fmt.Errorf("exported PDF has %d pages, expected %d", pages, maxExportPages)
	}

	return nil
}
