package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/jainabhishek/AbhiScript/internal/domain"
)

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// GeneratePDF renders a transcript with time stamps and resolved speaker
// names to outPath.
func (s *PDFService) GeneratePDF(recording domain.Recording, view *TranscriptionView, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure pdf directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Transcript %s", recording.ID), false)
	pdf.SetAuthor("AbhiScript", false)
	pdf.AddPage()

	title := recording.OriginalFilename
	if strings.TrimSpace(title) == "" {
		title = "Transcript"
	}

	createdAt := time.Unix(recording.CreatedAt, 0).Local()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Recorded: %s", createdAt.Format("02/01/2006 15:04")))
	pdf.Ln(6)

	meta := fmt.Sprintf("Speakers: %d", view.SpeakerCount)
	if view.Language != "" {
		meta += fmt.Sprintf("  Language: %s", view.Language)
	}
	pdf.Cell(0, 6, meta)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Transcript")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	for _, seg := range view.Segments {
		var line string
		if seg.Speaker != "" {
			line = fmt.Sprintf("[%s] %s: %s", formatTimestamp(seg.Start), seg.Speaker, seg.Text)
		} else {
			line = fmt.Sprintf("[%s] %s", formatTimestamp(seg.Start), seg.Text)
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
		pdf.Ln(2)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}
