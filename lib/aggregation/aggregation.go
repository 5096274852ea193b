package aggregation

import (
	"context"
	"time"
	answerstore "video-assessment-backend/lib/answer/store"
	submissionstore "video-assessment-backend/lib/submission/store"
	submissionscoresstore "video-assessment-backend/lib/submission-scores/store"
	"video-assessment-backend/lib/utils/lock"
	"video-assessment-backend/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Provider interface {
	// RecalculateSubmissionScores полный пересчет сводных оценок попытки, повторный вызов дает ту же запись
	RecalculateSubmissionScores(ctx context.Context, submissionID string) error
}

type Config struct {
	DefaultPassScore float64
	Policy           models.MethodAveragePolicy
	LockWait         time.Duration
}

func NewInstance(cfg Config, answerStore answerstore.Provider, submissionStore submissionstore.Provider, scoresStore submissionscoresstore.Provider) Provider {
	if cfg.DefaultPassScore <= 0 {
		cfg.DefaultPassScore = models.DefaultPassScore
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = time.Minute
	}
	return &impl{
		cfg:             cfg,
		answerStore:     answerStore,
		submissionStore: submissionStore,
		scoresStore:     scoresStore,
	}
}

type impl struct {
	cfg             Config
	answerStore     answerstore.Provider
	submissionStore submissionstore.Provider
	scoresStore     submissionscoresstore.Provider
}

func (i impl) RecalculateSubmissionScores(ctx context.Context, submissionID string) error {
	logger := log.WithField("submission_id", submissionID)
	ok, err := lock.WithDelay(ctx, lock.Key("aggregation", submissionID), i.cfg.LockWait, func() error {
		return i.recalculate(submissionID, logger)
	})
	if err != nil {
		return models.NewStageError(models.ErrAggregation, err, submissionID)
	}
	if !ok {
		return models.NewStageError(models.ErrAggregation, ctx.Err(), "не удалось получить блокировку пересчета")
	}
	return nil
}

func (i impl) recalculate(submissionID string, logger *log.Entry) error {
	assessed, err := i.answerStore.ListAssessed(submissionID)
	if err != nil {
		return errors.Wrap(err, "ошибка получения оцененных ответов")
	}
	if len(assessed) == 0 {
		logger.Debug("нет оцененных ответов, пересчет не требуется")
		return nil
	}
	totalAnswers, err := i.answerStore.CountBySubmission(submissionID)
	if err != nil {
		return errors.Wrap(err, "ошибка подсчета ответов")
	}
	passScore, err := i.getPassScore(submissionID)
	if err != nil {
		return err
	}

	rec := Calculate(submissionID, assessed, int(totalAnswers), passScore, i.cfg.Policy)
	rec.UpdatedAt = time.Now()
	if err = i.scoresStore.Upsert(rec); err != nil {
		return errors.Wrap(err, "ошибка сохранения сводных оценок")
	}
	logger.
		WithField("assessed_answers", rec.AssessedAnswers).
		WithField("total_answers", rec.TotalAnswers).
		WithField("avg_overall_score", rec.AvgOverallScore).
		Info("сводные оценки пересчитаны")
	return nil
}

func (i impl) getPassScore(submissionID string) (float64, error) {
	submission, err := i.submissionStore.GetByID(submissionID)
	if err != nil {
		return 0, errors.Wrap(err, "ошибка получения попытки")
	}
	if submission == nil {
		return 0, errors.New("попытка не найдена")
	}
	test, err := i.submissionStore.GetTest(submission.TestID)
	if err != nil {
		return 0, errors.Wrap(err, "ошибка получения теста")
	}
	if test == nil {
		return i.cfg.DefaultPassScore, nil
	}
	return test.GetPassScore(i.cfg.DefaultPassScore), nil
}
