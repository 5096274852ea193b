package submissionscoresstore

import (
	"time"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Provider interface {
	Upsert(rec dbmodels.SubmissionScores) error
	GetBySubmission(submissionID string) (*dbmodels.SubmissionScores, error)
	ListBySubmissions(submissionIDs []string) ([]dbmodels.SubmissionScores, error)
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

// Upsert запись перезаписывается целиком, submission_id уникален
func (i impl) Upsert(rec dbmodels.SubmissionScores) error {
	rec.ID = ""
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	err := i.db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"avg_overall_score",
				"avg_bert_score",
				"avg_gemini_score",
				"avg_trait_scores",
				"total_answers",
				"assessed_answers",
				"total_text_length",
				"final_recommendation",
				"pass_fail_status",
				"updated_at",
			}),
		}).
		Create(&rec).
		Error
	if err != nil {
		return err
	}
	return nil
}

func (i impl) GetBySubmission(submissionID string) (*dbmodels.SubmissionScores, error) {
	rec := dbmodels.SubmissionScores{}
	err := i.db.
		Where("submission_id = ?", submissionID).
		First(&rec).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (i impl) ListBySubmissions(submissionIDs []string) ([]dbmodels.SubmissionScores, error) {
	list := []dbmodels.SubmissionScores{}
	if len(submissionIDs) == 0 {
		return list, nil
	}
	err := i.db.
		Model(dbmodels.SubmissionScores{}).
		Where("submission_id in (?)", submissionIDs).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
