package dbmodels

import (
	"database/sql/driver"
	"encoding/json"
	"time"
	"video-assessment-backend/models"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
)

// Answer видео ответ кандидата на один вопрос теста
type Answer struct {
	BaseModel
	SubmissionID string `gorm:"type:varchar(36);index;not null"`
	QuestionID   string `gorm:"type:varchar(36);index"`
	VideoURL     string `gorm:"not null"`

	// транскрибация
	Transcript          *string            `gorm:"type:text"`
	TranscriptStatus    models.StageStatus `gorm:"type:varchar(20);index;default:pending"`
	TranscriptAttempts  int
	TranscriptStartedAt *time.Time

	// анализ личностных черт по видео
	PersonalityAnalysisStatus models.StageStatus `gorm:"type:varchar(20);index;default:pending"`
	PersonalityAttempts       int
	PersonalityStartedAt      *time.Time
	Openness                  *float64
	Conscientiousness         *float64
	Extraversion              *float64
	Agreeableness             *float64
	Neuroticism               *float64
	PersonalityAnalyzedAt     *time.Time
	PersonalityRaw            datatypes.JSON `gorm:"type:jsonb"`

	// оценка текста ответа
	OverallScore   *float64
	BertOverall    *float64
	GeminiOverall  *float64
	TraitScores    TraitScores `gorm:"type:jsonb"`
	Recommendation string
	MethodUsed     string
	TextLength     int
	AssessedAt     *time.Time `gorm:"index"`
	ScoringRaw     datatypes.JSON `gorm:"type:jsonb"`

	LastError string
}

func (a Answer) IsAssessed() bool {
	return a.AssessedAt != nil
}

func (a Answer) HasTranscript() bool {
	return a.Transcript != nil
}

func (a Answer) Traits() PersonalityTraits {
	return PersonalityTraits{
		Openness:          a.Openness,
		Conscientiousness: a.Conscientiousness,
		Extraversion:      a.Extraversion,
		Agreeableness:     a.Agreeableness,
		Neuroticism:       a.Neuroticism,
	}
}

type PersonalityTraits struct {
	Openness          *float64 `json:"openness"`
	Conscientiousness *float64 `json:"conscientiousness"`
	Extraversion      *float64 `json:"extraversion"`
	Agreeableness     *float64 `json:"agreeableness"`
	Neuroticism       *float64 `json:"neuroticism"`
}

// TraitScore оценка ответа по одному критерию
type TraitScore struct {
	Trait         string   `json:"trait"`
	BertScore     *float64 `json:"bert_score"`
	GeminiScore   *float64 `json:"gemini_score"`
	EnsembleScore float64  `json:"ensemble_score"`
	Priority      int      `json:"priority"`
	Confidence    float64  `json:"confidence"`
}

type TraitScores []TraitScore

func (j TraitScores) Value() (driver.Value, error) {
	if j == nil {
		j = TraitScores{}
	}
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *TraitScores) Scan(value interface{}) error {
	return scanJSON(value, j)
}

func scanJSON(value interface{}, out interface{}) error {
	switch data := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, out)
	case string:
		return json.Unmarshal([]byte(data), out)
	default:
		return errors.Errorf("неподдерживаемый тип json поля: %T", value)
	}
}
