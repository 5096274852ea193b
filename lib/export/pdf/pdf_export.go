package pdfexport

import (
	"bytes"
	"fmt"
	scoresapimodels "video-assessment-backend/models/api/scores"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

// GenerateSubmissionReport отчет по оценке попытки.
// fontDir - каталог с Arial.ttf/Arial Bold.ttf для кириллицы, пусто - встроенный Helvetica
func GenerateSubmissionReport(view scoresapimodels.SubmissionView, fontDir string) (pdfFile []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("GenerateSubmissionReport panic recover: %v", r)
		}
	}()
	pdf := fpdf.New("P", "mm", "A4", fontDir)
	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if fontDir != "" {
		family = "Arial"
		pdf.AddUTF8Font(family, "", "Arial.ttf")
		pdf.AddUTF8Font(family, "B", "Arial Bold.ttf")
		tr = func(s string) string { return s }
	}
	pdf.AddPage()
	pdf.SetFont(family, "B", 16)
	if pdf.Error() != nil {
		return nil, pdf.Error()
	}
	_, lineHt := pdf.GetFontSize()
	lineHt += 2

	pdf.CellFormat(0, lineHt, tr("Candidate assessment report"), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 11)
	_, lineHt = pdf.GetFontSize()
	lineHt += 2
	line := func(label string, value interface{}) {
		pdf.SetFont(family, "B", 11)
		pdf.CellFormat(55, lineHt, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 11)
		pdf.CellFormat(0, lineHt, tr(fmt.Sprintf("%v", value)), "", 1, "L", false, 0, "")
	}

	line("Submission", view.SubmissionID)
	line("Candidate", view.CandidateID)
	if !view.SubmittedAt.IsZero() {
		line("Submitted at", view.SubmittedAt.Format("02.01.2006 15:04"))
	}
	line("Scoring status", view.ScoringStatus)
	pdf.Ln(4)

	if view.Scores == nil {
		line("Scores", "not available yet")
	} else {
		line("Assessed answers", fmt.Sprintf("%v of %v", view.Scores.AssessedAnswers, view.Scores.TotalAnswers))
		line("Average score", view.Scores.AvgOverallScore)
		line("BERT / Gemini", fmt.Sprintf("%v / %v", view.Scores.AvgBertScore, view.Scores.AvgGeminiScore))
		line("Recommendation", view.Scores.FinalRecommendation)
		line("Result", view.Scores.PassFailStatus)
		if len(view.Scores.AvgTraitScores) != 0 {
			pdf.Ln(4)
			traitsTable(pdf, family, tr, lineHt, view.Scores)
		}
	}

	if view.Personality != nil {
		pdf.Ln(4)
		line("Videos analyzed", view.Personality.TotalVideosAnalyzed)
		line("Openness", traitText(view.Personality.Openness))
		line("Conscientiousness", traitText(view.Personality.Conscientiousness))
		line("Extraversion", traitText(view.Personality.Extraversion))
		line("Agreeableness", traitText(view.Personality.Agreeableness))
		line("Neuroticism", traitText(view.Personality.Neuroticism))
	}

	buf := new(bytes.Buffer)
	if err = pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func traitsTable(pdf *fpdf.Fpdf, family string, tr func(string) string, lineHt float64, scores *scoresapimodels.ScoresView) {
	widths := []float64{80, 30, 30, 30}
	pdf.SetFont(family, "B", 11)
	for idx, header := range []string{"Trait", "Priority", "Score", "Confidence"} {
		pdf.CellFormat(widths[idx], lineHt, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(family, "", 11)
	for _, trait := range scores.AvgTraitScores {
		pdf.CellFormat(widths[0], lineHt, tr(trait.Trait), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHt, fmt.Sprintf("%v", trait.Priority), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], lineHt, fmt.Sprintf("%.2f", trait.EnsembleScore), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], lineHt, fmt.Sprintf("%.3f", trait.Confidence), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

func traitText(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *value)
}
