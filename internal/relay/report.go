package relay

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/assessly-ai/assessly/pkg/types"
)

// Report colours (RGB). The header band uses the AWS orange.
var (
	headerFill = [3]int{249, 115, 22}
	mutedText  = [3]int{100, 100, 100}
)

// buildReport renders the one-page PDF assessment and returns its bytes.
func buildReport(profile types.CandidateProfile, result *types.SessionResult, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Header band.
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.Rect(0, 0, 210, 40, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.Text(20, 25, "AWS ARCHITECTURE ASSESSMENT")

	// Candidate dossier.
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(20, 50, "Candidate Dossier")
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(20, 60, fmt.Sprintf("Name: %s", profile.Name))
	pdf.Text(20, 67, fmt.Sprintf("Email: %s", profile.Email))
	pdf.Text(20, 74, fmt.Sprintf("Mobile: %s", profile.Phone))
	pdf.Text(20, 81, fmt.Sprintf("Date: %s", now.Format("2006-01-02 15:04:05")))

	// Score.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(20, 95, "Performance Metrics")
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.Text(20, 110, fmt.Sprintf("%d%%", result.Score))
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(mutedText[0], mutedText[1], mutedText[2])
	pdf.Text(20, 115, "Total Evaluation Score")

	// Feedback.
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(20, 130, "Executive Summary")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(20, 134)
	pdf.MultiCell(170, 5, result.Feedback, "", "L", false)

	y := pdf.GetY() + 10

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(20, y, "Technical Proficiencies")
	y += 7
	pdf.SetFont("Helvetica", "", 10)
	for _, s := range result.Strengths {
		pdf.Text(25, y, fmt.Sprintf("- %s", s))
		y += 5
	}

	y += 5
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(20, y, "Area of Improvements")
	y += 7
	pdf.SetFont("Helvetica", "", 10)
	for _, w := range result.Weaknesses {
		pdf.Text(25, y, fmt.Sprintf("- %s", w))
		y += 5
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
