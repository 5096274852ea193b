package dbmodels

import (
	"time"
	"video-assessment-backend/models"
)

// Submission попытка кандидата пройти тест, владеет ответами
type Submission struct {
	BaseModel
	TestID        string `gorm:"type:varchar(36);index;not null"`
	CandidateID   string `gorm:"type:varchar(36);index"`
	SubmittedAt   time.Time
	ScoringStatus models.ScoringStatus `gorm:"type:varchar(20);default:pending"`
	Answers       []Answer             `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

// Test тест (набор вопросов) с порогом прохождения
type Test struct {
	BaseModel
	Title     string
	PassScore *float64
}

// GetPassScore порог прохождения, если не задан - значение по умолчанию
func (t Test) GetPassScore(defaultScore float64) float64 {
	if t.PassScore == nil || *t.PassScore <= 0 {
		return defaultScore
	}
	return *t.PassScore
}

type Question struct {
	BaseModel
	TestID   string `gorm:"type:varchar(36);index"`
	Text     string `gorm:"type:text"`
	Position int
}
