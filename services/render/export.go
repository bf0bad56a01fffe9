package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fogleman/gg"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/net/html"
)

// Format selects the export encoding
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat validates a raw format string
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(s)) {
	case FormatPNG:
		return FormatPNG, true
	case FormatPDF:
		return FormatPDF, true
	}
	return "", false
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

const (
	// A4 landscape at 96dpi, matching the on-screen certificate layout
	baseWidth  = 1123
	baseHeight = 794

	// upscale factor applied to the raster for resolution
	exportScale = 2
)

// documentContent is the text content pulled out of a rendered document,
// keyed by the layout classes the template emits.
type documentContent struct {
	Heading     string
	Subheading  string
	PresentedTo string
	StudentName string
	Description string
	Title       string
	SessionName string
	DateIssued  string
	Seal        string
}

// parseDocument walks the rendered HTML and collects the text of each
// layout element by class. Export depends only on the rendered document, so
// re-rendering and re-exporting a stored certificate yields the same bytes.
func parseDocument(doc RenderedDocument) (documentContent, error) {
	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return documentContent{}, fmt.Errorf("failed to parse rendered document: %w", err)
	}

	var content documentContent
	targets := map[string]*string{
		"certificate-heading":     &content.Heading,
		"certificate-subheading":  &content.Subheading,
		"presented-to":            &content.PresentedTo,
		"student-name":            &content.StudentName,
		"certificate-description": &content.Description,
		"certificate-title":       &content.Title,
		"session-name":            &content.SessionName,
		"date-issued":             &content.DateIssued,
		"seal":                    &content.Seal,
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if target, ok := targets[attr.Val]; ok {
						*target = strings.TrimSpace(nodeText(n))
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	if content.StudentName == "" || content.Heading == "" {
		return documentContent{}, fmt.Errorf("rendered document is missing certificate content")
	}

	return content, nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		buf.WriteString(nodeText(child))
	}
	return buf.String()
}

func loadFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// rasterize draws the certificate content onto an upscaled canvas
func rasterize(content documentContent) (*gg.Context, error) {
	width := baseWidth * exportScale
	height := baseHeight * exportScale

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Double border
	dc.SetRGB255(191, 219, 254)
	dc.SetLineWidth(4 * exportScale)
	dc.DrawRectangle(8*exportScale, 8*exportScale, float64(width-16*exportScale), float64(height-16*exportScale))
	dc.Stroke()
	dc.SetRGB255(96, 165, 250)
	dc.SetLineWidth(2 * exportScale)
	dc.DrawRectangle(24*exportScale, 24*exportScale, float64(width-48*exportScale), float64(height-48*exportScale))
	dc.Stroke()

	cx := float64(width) / 2

	headingFace, err := loadFace(gobold.TTF, 52*exportScale)
	if err != nil {
		return nil, err
	}
	textFace, err := loadFace(goregular.TTF, 18*exportScale)
	if err != nil {
		return nil, err
	}
	nameFace, err := loadFace(goitalic.TTF, 48*exportScale)
	if err != nil {
		return nil, err
	}
	titleFace, err := loadFace(gobold.TTF, 22*exportScale)
	if err != nil {
		return nil, err
	}

	dc.SetRGB255(30, 64, 175)
	dc.SetFontFace(headingFace)
	dc.DrawStringAnchored(content.Heading, cx, 140*exportScale, 0.5, 0.5)

	dc.SetRGB255(55, 65, 81)
	dc.SetFontFace(textFace)
	dc.DrawStringAnchored(content.Subheading, cx, 185*exportScale, 0.5, 0.5)
	dc.DrawStringAnchored(content.PresentedTo, cx, 240*exportScale, 0.5, 0.5)

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(nameFace)
	dc.DrawStringAnchored(content.StudentName, cx, 310*exportScale, 0.5, 0.5)

	dc.SetRGB255(55, 65, 81)
	dc.SetFontFace(textFace)
	dc.DrawStringWrapped(content.Description, cx, 380*exportScale, 0.5, 0, 640*exportScale, 1.5, gg.AlignCenter)

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(titleFace)
	dc.DrawStringAnchored(content.Title, cx, 480*exportScale, 0.5, 0.5)

	dc.SetFontFace(textFace)
	if content.SessionName != "" {
		dc.SetRGB255(55, 65, 81)
		dc.DrawStringAnchored(content.SessionName, cx, 520*exportScale, 0.5, 0.5)
	}

	// Date block, bottom left
	dc.SetRGB255(156, 163, 175)
	dc.SetLineWidth(2 * exportScale)
	dc.DrawLine(160*exportScale, 660*exportScale, 320*exportScale, 660*exportScale)
	dc.Stroke()
	dc.SetRGB255(75, 85, 99)
	dc.DrawStringAnchored("Date", 240*exportScale, 680*exportScale, 0.5, 0.5)
	dc.DrawStringAnchored(content.DateIssued, 240*exportScale, 705*exportScale, 0.5, 0.5)

	// Seal, bottom center
	dc.SetRGB255(37, 99, 235)
	dc.SetLineWidth(4 * exportScale)
	dc.DrawCircle(cx, 670*exportScale, 40*exportScale)
	dc.Stroke()
	dc.SetLineWidth(2 * exportScale)
	dc.DrawCircle(cx, 670*exportScale, 24*exportScale)
	dc.Stroke()
	dc.DrawStringAnchored(content.Seal, cx, 725*exportScale, 0.5, 0.5)

	// Signature block, bottom right
	dc.SetRGB255(156, 163, 175)
	dc.DrawLine(float64(width)-320*exportScale, 660*exportScale, float64(width)-160*exportScale, 660*exportScale)
	dc.Stroke()
	dc.SetRGB255(75, 85, 99)
	dc.DrawStringAnchored("Signature", float64(width)-240*exportScale, 680*exportScale, 0.5, 0.5)

	return dc, nil
}

// Export rasterizes a rendered document at a fixed upscale factor and
// encodes it as a PNG, or wraps the raster in a single-page PDF sized to
// the raster's pixel dimensions.
func Export(doc RenderedDocument, format Format) ([]byte, error) {
	content, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}

	dc, err := rasterize(content)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize certificate: %w", err)
	}

	var png bytes.Buffer
	if err := dc.EncodePNG(&png); err != nil {
		return nil, fmt.Errorf("failed to encode certificate PNG: %w", err)
	}

	if format == FormatPNG {
		return png.Bytes(), nil
	}

	// Single-page PDF sized exactly to the raster, embedding the raster as
	// the only content. Text selectability is not preserved.
	width := float64(baseWidth * exportScale)
	height := float64(baseHeight * exportScale)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(png.Bytes()))
	pdf.ImageOptions("certificate", 0, 0, width, height, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to build certificate PDF: %w", err)
	}

	return out.Bytes(), nil
}
