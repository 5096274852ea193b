package personality

import (
	"context"
	"time"
	answerstore "video-assessment-backend/lib/answer/store"
	"video-assessment-backend/lib/personality/completion"
	personalityclient "video-assessment-backend/lib/personality/personality-client"
	botnotify "video-assessment-backend/lib/utils/bot-notify"
	videofetch "video-assessment-backend/lib/video-fetch"
	"video-assessment-backend/models"
	personalityapimodels "video-assessment-backend/models/api/personality"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Provider этап анализа личностных черт по видео ответу
type Provider interface {
	// ProcessPersonality ошибки этапа фиксируются в статусе ответа, completed = true при успешном анализе
	ProcessPersonality(ctx context.Context, answerID, videoURL string) (completed bool)
}

type Config struct {
	MaxAttempts int
	NotifyAddr  string
}

func NewInstance(cfg Config, answerStore answerstore.Provider, fetcher videofetch.Provider, analyzer personalityclient.Provider, detector completion.Provider) Provider {
	return &impl{
		cfg:         cfg,
		answerStore: answerStore,
		fetcher:     fetcher,
		analyzer:    analyzer,
		detector:    detector,
	}
}

type impl struct {
	cfg         Config
	answerStore answerstore.Provider
	fetcher     videofetch.Provider
	analyzer    personalityclient.Provider
	detector    completion.Provider
}

func (i impl) ProcessPersonality(ctx context.Context, answerID, videoURL string) (completed bool) {
	logger := log.
		WithField("answer_id", answerID).
		WithField("stage", models.StageKindPersonality)
	rec, err := i.answerStore.GetByID(answerID)
	if err != nil || rec == nil {
		logger.WithError(err).Error("ответ для анализа личности не найден")
		return false
	}
	if videoURL == "" {
		videoURL = rec.VideoURL
	}
	logger = logger.WithField("submission_id", rec.SubmissionID)

	claimed, err := i.answerStore.ClaimStage(rec.ID, models.StageKindPersonality, time.Now())
	if err != nil {
		logger.WithError(err).Error("ошибка обновления статуса анализа личности")
		return false
	}
	if !claimed {
		logger.WithField("status", rec.PersonalityAnalysisStatus).Info("анализ личности уже выполняется или завершен, задача пропущена")
		return false
	}
	attempts := rec.PersonalityAttempts + 1
	if claimedRec, err := i.answerStore.GetByID(rec.ID); err == nil && claimedRec != nil {
		attempts = claimedRec.PersonalityAttempts
	}

	result, err := i.analyze(ctx, videoURL)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		i.release(rec.ID, attempts-1, logger)
		return false
	}
	if err == nil {
		err = i.save(rec.ID, result)
	}
	if err != nil {
		i.fail(*rec, attempts, err, logger)
		return false
	}
	logger.Info("анализ личности завершен")

	if _, err = i.detector.CheckSubmission(ctx, rec.SubmissionID); err != nil {
		logger.WithError(err).Error("ошибка проверки завершения анализа личности по попытке")
	}
	return true
}

func (i impl) analyze(ctx context.Context, videoURL string) (personalityapimodels.AnalyzeResult, error) {
	filePath, cleanup, err := i.fetcher.Fetch(ctx, videoURL)
	if err != nil {
		return personalityapimodels.AnalyzeResult{}, err
	}
	defer cleanup()
	return i.analyzer.Analyze(ctx, filePath)
}

func (i impl) save(answerID string, result personalityapimodels.AnalyzeResult) error {
	err := i.answerStore.Update(answerID, map[string]interface{}{
		"openness":                    result.Traits.Openness,
		"conscientiousness":           result.Traits.Conscientiousness,
		"extraversion":                result.Traits.Extraversion,
		"agreeableness":               result.Traits.Agreeableness,
		"neuroticism":                 result.Traits.Neuroticism,
		"personality_raw":             datatypes.JSON(result.Raw),
		"personality_analyzed_at":     time.Now(),
		"personality_analysis_status": models.StageStatusCompleted,
		"personality_started_at":      nil,
	})
	if err != nil {
		return errors.Wrap(err, "ошибка сохранения результата анализа личности")
	}
	return nil
}

// release возвращает прерванный этап в pending, попытка не засчитывается
func (i impl) release(answerID string, attempts int, logger *log.Entry) {
	err := i.answerStore.Update(answerID, map[string]interface{}{
		"personality_analysis_status": models.StageStatusPending,
		"personality_started_at":      nil,
		"personality_attempts":        attempts,
	})
	if err != nil {
		logger.WithError(err).Error("ошибка возврата анализа личности в очередь")
		return
	}
	logger.Warn("анализ личности прерван, ответ возвращен в pending")
}

func (i impl) fail(rec dbmodels.Answer, attempts int, cause error, logger *log.Entry) {
	status := models.FailureStatus(attempts, i.cfg.MaxAttempts)
	err := i.answerStore.Update(rec.ID, map[string]interface{}{
		"personality_analysis_status": status,
		"personality_started_at":      nil,
		"last_error":                  cause.Error(),
	})
	if err != nil {
		logger.WithError(err).Error("ошибка сохранения статуса анализа личности")
	}
	logger = logger.
		WithError(cause).
		WithField("attempts", attempts).
		WithField("status", status)
	if status == models.StageStatusDeadLetter {
		logger.Error("анализ личности не выполнен, попытки исчерпаны")
		botnotify.SendDeadLetter(i.cfg.NotifyAddr, string(models.StageKindPersonality), rec.ID, rec.SubmissionID, attempts, cause.Error(), logger)
		return
	}
	logger.Warn("анализ личности не выполнен")
}
