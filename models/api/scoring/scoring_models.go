package scoringapimodels

import dbmodels "video-assessment-backend/models/db"

type AssessRequest struct {
	Text              string `json:"text"`
	IncludeConfidence bool   `json:"include_confidence"`
	UseEnsemble       bool   `json:"use_ensemble"`
}

type AssessResponse struct {
	OverallScore   *float64              `json:"overall_score"`
	BertOverall    *float64              `json:"bert_overall"`
	GeminiOverall  *float64              `json:"gemini_overall"`
	TraitScores    []dbmodels.TraitScore `json:"trait_scores"`
	Recommendation string                `json:"recommendation"`
	MethodUsed     string                `json:"method_used"`
	TextLength     int                   `json:"text_length"`
}

// AssessResult ответ сервиса и его исходное тело
type AssessResult struct {
	AssessResponse
	Raw []byte
}
