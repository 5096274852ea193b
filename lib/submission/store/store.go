package submissionstore

import (
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Provider interface {
	GetByID(id string) (*dbmodels.Submission, error)
	GetTest(testID string) (*dbmodels.Test, error)
	ListByTest(testID string) ([]dbmodels.Submission, error)
	SetScoringStatus(id string, status models.ScoringStatus) error
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

func (i impl) GetByID(id string) (*dbmodels.Submission, error) {
	rec := dbmodels.Submission{}
	err := i.db.
		Where("id = ?", id).
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

func (i impl) GetTest(testID string) (*dbmodels.Test, error) {
	rec := dbmodels.Test{}
	err := i.db.
		Where("id = ?", testID).
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

func (i impl) ListByTest(testID string) ([]dbmodels.Submission, error) {
	list := []dbmodels.Submission{}
	err := i.db.
		Model(dbmodels.Submission{}).
		Where("test_id = ?", testID).
		Order("submitted_at").
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) SetScoringStatus(id string, status models.ScoringStatus) error {
	tx := i.db.
		Model(&dbmodels.Submission{}).
		Where("id = ?", id).
		Update("scoring_status", status)
	if err := tx.Error; err != nil {
		return err
	}
	if tx.RowsAffected == 0 {
		return errors.New("попытка прохождения теста не найдена")
	}
	return nil
}
