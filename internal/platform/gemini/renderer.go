package gemini

import (
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const utf8FontFamily = "deck"

// DeckRenderer turns a DeckOutline into a landscape A4 PDF, one slide per page.
type DeckRenderer struct {
	// FontPath points to a TrueType font with the glyphs the output language
	// needs. Without it the core Helvetica font is used, which only covers
	// Latin-1.
	FontPath string
}

// Render writes outline to dest.
func (r *DeckRenderer) Render(outline *DeckOutline, dest string) error {
	if outline == nil || len(outline.Slides) == 0 {
		return errors.New("deck outline has no slides")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	family := "Helvetica"
	text := func(s string) string { return s }
	if r.FontPath != "" {
		pdf.AddUTF8Font(utf8FontFamily, "", r.FontPath)
		family = utf8FontFamily
	} else {
		text = pdf.UnicodeTranslatorFromDescriptor("")
	}

	pdf.SetTitle(outline.Title, true)
	pdf.SetCreator("deckgen-api", true)

	pdf.AddPage()
	pdf.SetFont(family, "", 34)
	pdf.SetY(80)
	pdf.MultiCell(0, 16, text(outline.Title), "", "C", false)

	for i, slide := range outline.Slides {
		pdf.AddPage()

		pdf.SetFont(family, "", 26)
		pdf.MultiCell(0, 13, text(slide.Title), "", "L", false)
		pdf.Ln(6)

		pdf.SetFont(family, "", 16)
		for _, bullet := range slide.Bullets {
			pdf.MultiCell(0, 9, text("- "+bullet), "", "L", false)
			pdf.Ln(1)
		}

		pdf.SetFont(family, "", 10)
		pdf.SetY(-15)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / %d", i+1, len(outline.Slides)), "", 0, "R", false, 0, "")
	}

	if pdf.Err() {
		return fmt.Errorf("failed to render deck: %w", pdf.Error())
	}

	return pdf.OutputFileAndClose(dest)
}
