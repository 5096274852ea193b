package personalityscoresstore

import (
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Provider interface {
	// InsertOnce inserted = false, если запись по попытке уже существует
	InsertOnce(rec dbmodels.PersonalityScores) (inserted bool, err error)
	GetBySubmission(submissionID string) (*dbmodels.PersonalityScores, error)
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

func (i impl) InsertOnce(rec dbmodels.PersonalityScores) (inserted bool, err error) {
	rec.ID = ""
	tx := i.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoNothing: true,
		}).
		Create(&rec)
	if err := tx.Error; err != nil {
		return false, err
	}
	return tx.RowsAffected > 0, nil
}

func (i impl) GetBySubmission(submissionID string) (*dbmodels.PersonalityScores, error) {
	rec := dbmodels.PersonalityScores{}
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
