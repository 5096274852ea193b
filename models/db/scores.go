package dbmodels

import (
	"database/sql/driver"
	"encoding/json"
	"time"
	"video-assessment-backend/models"
)

// SubmissionScores сводные оценки по попытке, пересчитываются целиком после каждой оценки ответа
type SubmissionScores struct {
	BaseModel
	SubmissionID        string `gorm:"type:varchar(36);uniqueIndex;not null"`
	AvgOverallScore     float64
	AvgBertScore        float64
	AvgGeminiScore      float64
	AvgTraitScores      TraitAverages `gorm:"type:jsonb"`
	TotalAnswers        int
	AssessedAnswers     int
	TotalTextLength     int
	FinalRecommendation string
	PassFailStatus      models.PassFailStatus `gorm:"type:varchar(20)"`
}

// TraitAverage средняя оценка по критерию среди всех оцененных ответов
type TraitAverage struct {
	Trait         string  `json:"trait"`
	EnsembleScore float64 `json:"ensemble_score"`
	Confidence    float64 `json:"confidence"`
	Priority      int     `json:"priority"`
	Occurrences   int     `json:"occurrences"`
}

type TraitAverages []TraitAverage

func (j TraitAverages) Value() (driver.Value, error) {
	if j == nil {
		j = TraitAverages{}
	}
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *TraitAverages) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// PersonalityScores средние личностные черты по попытке, записывается один раз
type PersonalityScores struct {
	BaseModel
	SubmissionID        string `gorm:"type:varchar(36);uniqueIndex;not null"`
	Openness            *float64
	Conscientiousness   *float64
	Extraversion        *float64
	Agreeableness       *float64
	Neuroticism         *float64
	TotalVideosAnalyzed int
	AnalyzedAt          time.Time
	AnalysisVersion     string
}
