package transcription

import (
	"context"
	"time"
	answerstore "video-assessment-backend/lib/answer/store"
	"video-assessment-backend/lib/assessment"
	whisperclient "video-assessment-backend/lib/transcription/whisper-client"
	botnotify "video-assessment-backend/lib/utils/bot-notify"
	videofetch "video-assessment-backend/lib/video-fetch"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provider этап транскрибации видео ответа
type Provider interface {
	// ProcessTranscription ошибка означает, что транскрипция не получена; сбой оценки текста не является ошибкой этапа
	ProcessTranscription(ctx context.Context, answerID, videoURL string) error
}

type Config struct {
	MaxAttempts int
	NotifyAddr  string
}

func NewInstance(cfg Config, answerStore answerstore.Provider, fetcher videofetch.Provider, transcriber whisperclient.Provider, assessor assessment.Provider) Provider {
	return &impl{
		cfg:         cfg,
		answerStore: answerStore,
		fetcher:     fetcher,
		transcriber: transcriber,
		assessor:    assessor,
	}
}

type impl struct {
	cfg         Config
	answerStore answerstore.Provider
	fetcher     videofetch.Provider
	transcriber whisperclient.Provider
	assessor    assessment.Provider
}

func (i impl) ProcessTranscription(ctx context.Context, answerID, videoURL string) error {
	rec, err := i.answerStore.GetByID(answerID)
	if err != nil {
		return errors.Wrap(err, "ошибка получения ответа")
	}
	if rec == nil {
		return errors.Errorf("ответ не найден: %v", answerID)
	}
	if videoURL == "" {
		videoURL = rec.VideoURL
	}
	logger := log.
		WithField("answer_id", rec.ID).
		WithField("submission_id", rec.SubmissionID).
		WithField("stage", models.StageKindTranscription)

	claimed, err := i.answerStore.ClaimStage(rec.ID, models.StageKindTranscription, time.Now())
	if err != nil {
		return errors.Wrap(err, "ошибка обновления статуса транскрибации")
	}
	if !claimed {
		logger.WithField("status", rec.TranscriptStatus).Info("транскрибация уже выполняется или завершена, задача пропущена")
		return models.ErrStageClaimed
	}
	attempts := rec.TranscriptAttempts + 1
	if claimedRec, err := i.answerStore.GetByID(rec.ID); err == nil && claimedRec != nil {
		attempts = claimedRec.TranscriptAttempts
	}

	transcript, err := i.transcribe(ctx, videoURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			i.release(rec.ID, attempts-1, logger)
			return err
		}
		i.fail(*rec, attempts, err, logger)
		return err
	}

	err = i.answerStore.Update(rec.ID, map[string]interface{}{
		"transcript":            transcript,
		"transcript_status":     models.StageStatusCompleted,
		"transcript_started_at": nil,
	})
	if err != nil {
		i.fail(*rec, attempts, err, logger)
		return errors.Wrap(err, "ошибка сохранения транскрипции")
	}
	logger.WithField("text_length", len(transcript)).Info("транскрибация завершена")

	// транскрипция сохранена, сбой оценки не возвращает ответ в обработку
	if err = i.assessor.AssessAnswer(ctx, rec.ID); err != nil {
		logger.WithError(err).Error("ошибка оценки текста ответа")
	}
	return nil
}

func (i impl) transcribe(ctx context.Context, videoURL string) (string, error) {
	filePath, cleanup, err := i.fetcher.Fetch(ctx, videoURL)
	if err != nil {
		return "", err
	}
	defer cleanup()
	return i.transcriber.Transcribe(ctx, filePath)
}

// release возвращает прерванный этап в pending, попытка не засчитывается
func (i impl) release(answerID string, attempts int, logger *log.Entry) {
	err := i.answerStore.Update(answerID, map[string]interface{}{
		"transcript_status":     models.StageStatusPending,
		"transcript_started_at": nil,
		"transcript_attempts":   attempts,
	})
	if err != nil {
		logger.WithError(err).Error("ошибка возврата транскрибации в очередь")
		return
	}
	logger.Warn("транскрибация прервана, ответ возвращен в pending")
}

func (i impl) fail(rec dbmodels.Answer, attempts int, cause error, logger *log.Entry) {
	status := models.FailureStatus(attempts, i.cfg.MaxAttempts)
	err := i.answerStore.Update(rec.ID, map[string]interface{}{
		"transcript_status":     status,
		"transcript_started_at": nil,
		"last_error":            cause.Error(),
	})
	if err != nil {
		logger.WithError(err).Error("ошибка сохранения статуса транскрибации")
	}
	logger = logger.
		WithError(cause).
		WithField("attempts", attempts).
		WithField("status", status)
	if status == models.StageStatusDeadLetter {
		logger.Error("транскрибация не выполнена, попытки исчерпаны")
		botnotify.SendDeadLetter(i.cfg.NotifyAddr, string(models.StageKindTranscription), rec.ID, rec.SubmissionID, attempts, cause.Error(), logger)
		return
	}
	logger.Warn("транскрибация не выполнена")
}
