package answerstore

import (
	"time"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Provider interface {
	Create(rec dbmodels.Answer) (id string, err error)
	GetByID(id string) (*dbmodels.Answer, error)
	Update(id string, updMap map[string]interface{}) error
	ListBySubmission(submissionID string) ([]dbmodels.Answer, error)
	ListAssessed(submissionID string) ([]dbmodels.Answer, error)
	ListPersonalityCompleted(submissionID string) ([]dbmodels.Answer, error)
	CountBySubmission(submissionID string) (int64, error)
	CountPersonalityCompleted(submissionID string) (int64, error)
	ListForTranscription(limit int) ([]dbmodels.Answer, error)
	ListForPersonality(limit int) ([]dbmodels.Answer, error)
	ListStaleTranscription(startedBefore time.Time) ([]dbmodels.Answer, error)
	ListStalePersonality(startedBefore time.Time) ([]dbmodels.Answer, error)
	// ClaimStage переводит этап в processing, только если он в pending/failed; claimed = false, если этап уже взят
	ClaimStage(id string, kind models.StageKind, startedAt time.Time) (claimed bool, err error)
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

var retryableStatuses = []models.StageStatus{
	models.StageStatusPending,
	models.StageStatusFailed,
}

func (i impl) Create(rec dbmodels.Answer) (id string, err error) {
	if rec.TranscriptStatus == "" {
		rec.TranscriptStatus = models.StageStatusPending
	}
	if rec.PersonalityAnalysisStatus == "" {
		rec.PersonalityAnalysisStatus = models.StageStatusPending
	}
	err = i.db.
		Create(&rec).
		Error
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (i impl) GetByID(id string) (*dbmodels.Answer, error) {
	rec := dbmodels.Answer{}
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

func (i impl) Update(id string, updMap map[string]interface{}) error {
	if len(updMap) == 0 {
		return nil
	}
	tx := i.db.
		Model(&dbmodels.Answer{}).
		Where("id = ?", id).
		Updates(updMap)
	if err := tx.Error; err != nil {
		return err
	}
	if tx.RowsAffected == 0 {
		return errors.New("ответ не найден")
	}
	return nil
}

func (i impl) ListBySubmission(submissionID string) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("submission_id = ?", submissionID).
		Order("created_at").
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ListAssessed(submissionID string) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("submission_id = ?", submissionID).
		Where("assessed_at is not null").
		Order("created_at, id").
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ListPersonalityCompleted(submissionID string) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("submission_id = ?", submissionID).
		Where("personality_analysis_status = ?", models.StageStatusCompleted).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) CountBySubmission(submissionID string) (int64, error) {
	var rowCount int64
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("submission_id = ?", submissionID).
		Count(&rowCount).
		Error
	if err != nil {
		return 0, err
	}
	return rowCount, nil
}

func (i impl) CountPersonalityCompleted(submissionID string) (int64, error) {
	var rowCount int64
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("submission_id = ?", submissionID).
		Where("personality_analysis_status = ?", models.StageStatusCompleted).
		Count(&rowCount).
		Error
	if err != nil {
		return 0, err
	}
	return rowCount, nil
}

func (i impl) ListForTranscription(limit int) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("transcript_status in (?)", retryableStatuses).
		Order("created_at").
		Limit(limit).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ListForPersonality(limit int) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("personality_analysis_status in (?)", retryableStatuses).
		Order("created_at").
		Limit(limit).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ListStaleTranscription(startedBefore time.Time) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("transcript_status = ?", models.StageStatusProcessing).
		Where("(transcript_started_at is null or transcript_started_at < ?)", startedBefore).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ListStalePersonality(startedBefore time.Time) ([]dbmodels.Answer, error) {
	list := []dbmodels.Answer{}
	err := i.db.
		Model(dbmodels.Answer{}).
		Where("personality_analysis_status = ?", models.StageStatusProcessing).
		Where("(personality_started_at is null or personality_started_at < ?)", startedBefore).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (i impl) ClaimStage(id string, kind models.StageKind, startedAt time.Time) (claimed bool, err error) {
	cols, err := stageColumnsOf(kind)
	if err != nil {
		return false, err
	}
	updMap := map[string]interface{}{
		cols.status:    models.StageStatusProcessing,
		cols.startedAt: startedAt,
		cols.attempts:  gorm.Expr(cols.attempts + " + 1"),
	}
	if kind == models.StageKindTranscription {
		updMap["last_error"] = ""
	}
	tx := i.db.
		Model(&dbmodels.Answer{}).
		Where("id = ?", id).
		Where(cols.status+" in (?)", retryableStatuses).
		Updates(updMap)
	if err = tx.Error; err != nil {
		return false, err
	}
	return tx.RowsAffected > 0, nil
}

type stageColumns struct {
	status    string
	startedAt string
	attempts  string
}

func stageColumnsOf(kind models.StageKind) (stageColumns, error) {
	switch kind {
	case models.StageKindTranscription:
		return stageColumns{status: "transcript_status", startedAt: "transcript_started_at", attempts: "transcript_attempts"}, nil
	case models.StageKindPersonality:
		return stageColumns{status: "personality_analysis_status", startedAt: "personality_started_at", attempts: "personality_attempts"}, nil
	}
	return stageColumns{}, models.ErrUnknownStage
}
