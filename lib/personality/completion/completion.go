package completion

import (
	"context"
	"time"
	answerstore "video-assessment-backend/lib/answer/store"
	personalityscoresstore "video-assessment-backend/lib/personality-scores/store"
	submissionstore "video-assessment-backend/lib/submission/store"
	"video-assessment-backend/lib/utils/helpers"
	"video-assessment-backend/lib/utils/lock"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Provider итоговые личностные черты по попытке после анализа всех ответов
type Provider interface {
	// CheckSubmission written = true, если итог записан этим вызовом
	CheckSubmission(ctx context.Context, submissionID string) (written bool, err error)
}

// TxFunc выполняет запись итога и статуса попытки в одной транзакции
type TxFunc func(fc func(scoresStore personalityscoresstore.Provider, submissionStore submissionstore.Provider) error) error

func GormTx(DB *gorm.DB) TxFunc {
	return func(fc func(scoresStore personalityscoresstore.Provider, submissionStore submissionstore.Provider) error) error {
		return DB.Transaction(func(tx *gorm.DB) error {
			return fc(personalityscoresstore.NewInstance(tx), submissionstore.NewInstance(tx))
		})
	}
}

type Config struct {
	AnalysisVersion string
	LockWait        time.Duration
}

func NewInstance(cfg Config, answerStore answerstore.Provider, withTx TxFunc) Provider {
	if cfg.AnalysisVersion == "" {
		cfg.AnalysisVersion = models.DefaultAnalysisVersion
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = time.Minute
	}
	return &impl{
		cfg:         cfg,
		answerStore: answerStore,
		withTx:      withTx,
	}
}

type impl struct {
	cfg         Config
	answerStore answerstore.Provider
	withTx      TxFunc
}

func (i impl) CheckSubmission(ctx context.Context, submissionID string) (written bool, err error) {
	ok, err := lock.WithDelay(ctx, lock.Key("personality", submissionID), i.cfg.LockWait, func() error {
		written, err = i.check(submissionID)
		return err
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.New("не удалось получить блокировку итога анализа личности")
	}
	return written, nil
}

func (i impl) check(submissionID string) (bool, error) {
	total, err := i.answerStore.CountBySubmission(submissionID)
	if err != nil {
		return false, errors.Wrap(err, "ошибка подсчета ответов")
	}
	completed, err := i.answerStore.ListPersonalityCompleted(submissionID)
	if err != nil {
		return false, errors.Wrap(err, "ошибка получения проанализированных ответов")
	}
	if total == 0 || int64(len(completed)) < total {
		return false, nil
	}

	rec := Average(completed)
	rec.SubmissionID = submissionID
	rec.AnalyzedAt = time.Now()
	rec.AnalysisVersion = i.cfg.AnalysisVersion

	inserted := false
	err = i.withTx(func(scoresStore personalityscoresstore.Provider, submissionStore submissionstore.Provider) error {
		inserted, err = scoresStore.InsertOnce(rec)
		if err != nil {
			return errors.Wrap(err, "ошибка сохранения итога анализа личности")
		}
		if !inserted {
			return nil
		}
		return submissionStore.SetScoringStatus(submissionID, models.ScoringStatusCompleted)
	})
	if err != nil {
		return false, err
	}
	if inserted {
		log.WithField("submission_id", submissionID).
			WithField("total_videos_analyzed", rec.TotalVideosAnalyzed).
			Info("анализ личности по попытке завершен")
	}
	return inserted, nil
}

// Average средние значения черт, пустые значения не участвуют в расчете
func Average(answers []dbmodels.Answer) dbmodels.PersonalityScores {
	var openness, conscientiousness, extraversion, agreeableness, neuroticism traitMean
	for _, answer := range answers {
		openness.add(answer.Openness)
		conscientiousness.add(answer.Conscientiousness)
		extraversion.add(answer.Extraversion)
		agreeableness.add(answer.Agreeableness)
		neuroticism.add(answer.Neuroticism)
	}
	return dbmodels.PersonalityScores{
		Openness:            openness.value(),
		Conscientiousness:   conscientiousness.value(),
		Extraversion:        extraversion.value(),
		Agreeableness:       agreeableness.value(),
		Neuroticism:         neuroticism.value(),
		TotalVideosAnalyzed: len(answers),
	}
}

type traitMean struct {
	sum   float64
	count int
}

func (m *traitMean) add(value *float64) {
	if value == nil {
		return
	}
	m.sum += *value
	m.count++
}

func (m traitMean) value() *float64 {
	if m.count == 0 {
		return nil
	}
	return helpers.FloatPtr(m.sum / float64(m.count))
}
