package scoresapimodels

import (
	"time"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"
)

// SubmissionView состояние оценки попытки, частичный результат допустим
type SubmissionView struct {
	SubmissionID  string               `json:"submission_id"`
	TestID        string               `json:"test_id"`
	CandidateID   string               `json:"candidate_id"`
	SubmittedAt   time.Time            `json:"submitted_at"`
	ScoringStatus models.ScoringStatus `json:"scoring_status"`
	Scores        *ScoresView          `json:"scores"`
	Personality   *PersonalityView     `json:"personality"`
	Answers       []AnswerView         `json:"answers"`
}

type ScoresView struct {
	AvgOverallScore     float64                `json:"avg_overall_score"`
	AvgBertScore        float64                `json:"avg_bert_score"`
	AvgGeminiScore      float64                `json:"avg_gemini_score"`
	AvgTraitScores      dbmodels.TraitAverages `json:"avg_trait_scores"`
	TotalAnswers        int                    `json:"total_answers"`
	AssessedAnswers     int                    `json:"assessed_answers"`
	TotalTextLength     int                    `json:"total_text_length"`
	FinalRecommendation string                 `json:"final_recommendation"`
	PassFailStatus      models.PassFailStatus  `json:"pass_fail_status"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

type PersonalityView struct {
	dbmodels.PersonalityTraits
	TotalVideosAnalyzed int       `json:"total_videos_analyzed"`
	AnalyzedAt          time.Time `json:"analyzed_at"`
	AnalysisVersion     string    `json:"analysis_version"`
}

type AnswerView struct {
	AnswerID                  string             `json:"answer_id"`
	QuestionID                string             `json:"question_id"`
	TranscriptStatus          models.StageStatus `json:"transcript_status"`
	PersonalityAnalysisStatus models.StageStatus `json:"personality_analysis_status"`
	OverallScore              *float64           `json:"overall_score"`
	Recommendation            string             `json:"recommendation,omitempty"`
	LastError                 string             `json:"last_error,omitempty"`
}

func NewScoresView(rec *dbmodels.SubmissionScores) *ScoresView {
	if rec == nil {
		return nil
	}
	return &ScoresView{
		AvgOverallScore:     rec.AvgOverallScore,
		AvgBertScore:        rec.AvgBertScore,
		AvgGeminiScore:      rec.AvgGeminiScore,
		AvgTraitScores:      rec.AvgTraitScores,
		TotalAnswers:        rec.TotalAnswers,
		AssessedAnswers:     rec.AssessedAnswers,
		TotalTextLength:     rec.TotalTextLength,
		FinalRecommendation: rec.FinalRecommendation,
		PassFailStatus:      rec.PassFailStatus,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func NewPersonalityView(rec *dbmodels.PersonalityScores) *PersonalityView {
	if rec == nil {
		return nil
	}
	return &PersonalityView{
		PersonalityTraits: dbmodels.PersonalityTraits{
			Openness:          rec.Openness,
			Conscientiousness: rec.Conscientiousness,
			Extraversion:      rec.Extraversion,
			Agreeableness:     rec.Agreeableness,
			Neuroticism:       rec.Neuroticism,
		},
		TotalVideosAnalyzed: rec.TotalVideosAnalyzed,
		AnalyzedAt:          rec.AnalyzedAt,
		AnalysisVersion:     rec.AnalysisVersion,
	}
}

func NewAnswerView(rec dbmodels.Answer) AnswerView {
	return AnswerView{
		AnswerID:                  rec.ID,
		QuestionID:                rec.QuestionID,
		TranscriptStatus:          rec.TranscriptStatus,
		PersonalityAnalysisStatus: rec.PersonalityAnalysisStatus,
		OverallScore:              rec.OverallScore,
		Recommendation:            rec.Recommendation,
		LastError:                 rec.LastError,
	}
}

type RetryRequest struct {
	Stage models.StageKind `json:"stage"`
}

func (r RetryRequest) Validate() error {
	if r.Stage != models.StageKindTranscription && r.Stage != models.StageKindPersonality {
		return models.ErrUnknownStage
	}
	return nil
}

type PendingRequest struct {
	Limit int `json:"limit"`
}

func (r PendingRequest) GetLimit(defaultLimit int) int {
	if r.Limit <= 0 {
		return defaultLimit
	}
	if r.Limit > 100 {
		return 100
	}
	return r.Limit
}
