package db

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	dbmodels "video-assessment-backend/models/db"
)

func AutoMigrateDB() error {
	DB.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";")
	log.Info("Запуск миграций")
	if err := DB.AutoMigrate(&dbmodels.Test{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Test")
	}
	if err := DB.AutoMigrate(&dbmodels.Question{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Question")
	}
	if err := DB.AutoMigrate(&dbmodels.Submission{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Submission")
	}
	if err := DB.AutoMigrate(&dbmodels.Answer{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Answer")
	}
	// уникальность submission_id - единственный механизм защиты от двойной записи сводных оценок
	if err := DB.AutoMigrate(&dbmodels.SubmissionScores{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры SubmissionScores")
	}
	if err := DB.AutoMigrate(&dbmodels.PersonalityScores{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры PersonalityScores")
	}
	log.Info("Миграция прошла успешно")
	return nil
}
