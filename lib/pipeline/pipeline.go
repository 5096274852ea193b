package pipeline

import (
	"context"
	"fmt"
	"time"
	answerstore "video-assessment-backend/lib/answer/store"
	"video-assessment-backend/lib/personality"
	"video-assessment-backend/lib/pipeline/dispatcher"
	"video-assessment-backend/lib/transcription"
	"video-assessment-backend/lib/utils/helpers"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var Instance Provider

type Provider interface {
	// ProcessSubmission ставит задачи обоих этапов для каждого ответа и не ждет их выполнения
	ProcessSubmission(ctx context.Context, submissionID string) (SubmitSummary, error)
	// ProcessPendingAnswers последовательная транскрибация ответов в статусах pending/failed с паузой между ними
	ProcessPendingAnswers(ctx context.Context, limit int) (PendingSummary, error)
	ProcessPendingPersonality(ctx context.Context, limit int) (PendingSummary, error)
	// RetryAnswer ручной перезапуск этапа, в том числе для ответов с исчерпанными попытками
	RetryAnswer(ctx context.Context, answerID string, kind models.StageKind) (hMsg string, err error)
	// RecoverStale ответы, зависшие в processing дольше ttl, переводятся в failed/dead_letter
	RecoverStale(ctx context.Context, ttl time.Duration) (int, error)
	HandleTask(ctx context.Context, task dispatcher.Task) error
}

type SubmitSummary struct {
	Answers  int `json:"answers"`
	Queued   int `json:"queued"`
	Rejected int `json:"rejected"`
}

type PendingSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Skipped ответы, которые уже взяты в обработку задачей из очереди
	Skipped   int `json:"skipped"`
}

type Config struct {
	PendingCooldown time.Duration
	MaxAttempts     int
}

func NewInstance(cfg Config, answerStore answerstore.Provider, tasks dispatcher.Provider, transcriptionStage transcription.Provider, personalityStage personality.Provider) Provider {
	return &impl{
		cfg:                cfg,
		answerStore:        answerStore,
		tasks:              tasks,
		transcriptionStage: transcriptionStage,
		personalityStage:   personalityStage,
	}
}

type impl struct {
	cfg                Config
	answerStore        answerstore.Provider
	tasks              dispatcher.Provider
	transcriptionStage transcription.Provider
	personalityStage   personality.Provider
}

func (i impl) getLogger() *log.Entry {
	return log.WithField("component", "pipeline")
}

func (i impl) HandleTask(ctx context.Context, task dispatcher.Task) error {
	switch task.Kind {
	case models.StageKindTranscription:
		return i.transcriptionStage.ProcessTranscription(ctx, task.AnswerID, task.VideoURL)
	case models.StageKindPersonality:
		if !i.personalityStage.ProcessPersonality(ctx, task.AnswerID, task.VideoURL) {
			if i.claimedElsewhere(task.AnswerID) {
				return models.ErrStageClaimed
			}
			return errors.Errorf("анализ личности не выполнен: %v", task.AnswerID)
		}
		return nil
	}
	return errors.Errorf("неизвестный этап: %v", task.Kind)
}

// claimedElsewhere анализ личности не выполнялся этой задачей, так как этап уже взят другой
func (i impl) claimedElsewhere(answerID string) bool {
	rec, err := i.answerStore.GetByID(answerID)
	if err != nil || rec == nil {
		return false
	}
	return rec.PersonalityAnalysisStatus == models.StageStatusProcessing ||
		rec.PersonalityAnalysisStatus == models.StageStatusCompleted
}

func (i impl) ProcessSubmission(ctx context.Context, submissionID string) (summary SubmitSummary, err error) {
	answers, err := i.answerStore.ListBySubmission(submissionID)
	if err != nil {
		return summary, errors.Wrap(err, "ошибка получения ответов попытки")
	}
	summary.Answers = len(answers)
	logger := i.getLogger().WithField("submission_id", submissionID)
	for _, answer := range answers {
		for _, task := range stageTasks(answer) {
			if err := i.tasks.Submit(ctx, task); err != nil {
				summary.Rejected++
				logger.WithError(err).
					WithField("task", task.String()).
					Warn("задача не поставлена в очередь, будет обработана повторно")
				continue
			}
			summary.Queued++
		}
	}
	logger.
		WithField("queued", summary.Queued).
		WithField("rejected", summary.Rejected).
		Info("задачи обработки попытки поставлены")
	return summary, nil
}

// stageTasks задачи только для этапов, которые еще не завершены
func stageTasks(answer dbmodels.Answer) []dispatcher.Task {
	tasks := []dispatcher.Task{}
	if answer.TranscriptStatus.IsRetryable() {
		tasks = append(tasks, dispatcher.Task{Kind: models.StageKindTranscription, AnswerID: answer.ID, VideoURL: answer.VideoURL})
	}
	if answer.PersonalityAnalysisStatus.IsRetryable() {
		tasks = append(tasks, dispatcher.Task{Kind: models.StageKindPersonality, AnswerID: answer.ID, VideoURL: answer.VideoURL})
	}
	return tasks
}

func (i impl) ProcessPendingAnswers(ctx context.Context, limit int) (PendingSummary, error) {
	answers, err := i.answerStore.ListForTranscription(limit)
	if err != nil {
		return PendingSummary{}, errors.Wrap(err, "ошибка получения необработанных ответов")
	}
	return i.processSequential(ctx, answers, models.StageKindTranscription), nil
}

func (i impl) ProcessPendingPersonality(ctx context.Context, limit int) (PendingSummary, error) {
	answers, err := i.answerStore.ListForPersonality(limit)
	if err != nil {
		return PendingSummary{}, errors.Wrap(err, "ошибка получения ответов без анализа личности")
	}
	return i.processSequential(ctx, answers, models.StageKindPersonality), nil
}

func (i impl) processSequential(ctx context.Context, answers []dbmodels.Answer, kind models.StageKind) (summary PendingSummary) {
	logger := i.getLogger().WithField("stage", kind)
	for n, answer := range answers {
		if n > 0 && !helpers.Sleep(ctx, i.cfg.PendingCooldown) {
			break
		}
		if helpers.IsContextDone(ctx) {
			break
		}
		summary.Processed++
		err := i.HandleTask(ctx, dispatcher.Task{Kind: kind, AnswerID: answer.ID, VideoURL: answer.VideoURL})
		if errors.Is(err, models.ErrStageClaimed) {
			summary.Skipped++
			continue
		}
		if err != nil {
			summary.Failed++
			logger.WithError(err).WithField("answer_id", answer.ID).Warn("повторная обработка ответа не выполнена")
			continue
		}
		summary.Succeeded++
	}
	if summary.Processed > 0 {
		logger.
			WithField("processed", summary.Processed).
			WithField("succeeded", summary.Succeeded).
			WithField("failed", summary.Failed).
			WithField("skipped", summary.Skipped).
			Info("повторная обработка ответов завершена")
	}
	return summary
}

func (i impl) RetryAnswer(ctx context.Context, answerID string, kind models.StageKind) (hMsg string, err error) {
	rec, err := i.answerStore.GetByID(answerID)
	if err != nil {
		return "", errors.Wrap(err, "ошибка получения ответа")
	}
	if rec == nil {
		return "ответ не найден", nil
	}
	var status models.StageStatus
	var updMap map[string]interface{}
	switch kind {
	case models.StageKindTranscription:
		status = rec.TranscriptStatus
		updMap = map[string]interface{}{
			"transcript_status":   models.StageStatusPending,
			"transcript_attempts": 0,
		}
	case models.StageKindPersonality:
		status = rec.PersonalityAnalysisStatus
		updMap = map[string]interface{}{
			"personality_analysis_status": models.StageStatusPending,
			"personality_attempts":        0,
		}
	default:
		return models.ErrUnknownStage.Error(), nil
	}
	if status == models.StageStatusCompleted || status == models.StageStatusProcessing {
		return fmt.Sprintf("этап в статусе %v, перезапуск невозможен", status), nil
	}
	if err = i.answerStore.Update(rec.ID, updMap); err != nil {
		return "", errors.Wrap(err, "ошибка сброса статуса")
	}
	err = i.tasks.Submit(ctx, dispatcher.Task{Kind: kind, AnswerID: rec.ID, VideoURL: rec.VideoURL})
	if errors.Is(err, dispatcher.ErrQueueFull) {
		// статус уже сброшен в pending, ответ подберет фоновая обработка
		return "очередь обработки заполнена, ответ будет обработан позже", nil
	}
	return "", err
}

func (i impl) RecoverStale(ctx context.Context, ttl time.Duration) (int, error) {
	startedBefore := time.Now().Add(-ttl)
	recovered := 0
	stale, err := i.answerStore.ListStaleTranscription(startedBefore)
	if err != nil {
		return 0, errors.Wrap(err, "ошибка получения зависших транскрибаций")
	}
	for _, answer := range stale {
		if helpers.IsContextDone(ctx) {
			return recovered, nil
		}
		status := models.FailureStatus(answer.TranscriptAttempts, i.cfg.MaxAttempts)
		err = i.answerStore.Update(answer.ID, map[string]interface{}{
			"transcript_status":     status,
			"transcript_started_at": nil,
			"last_error":            models.ErrTimeout.Error(),
		})
		if err != nil {
			return recovered, errors.Wrap(err, "ошибка обновления статуса транскрибации")
		}
		recovered++
	}

	stale, err = i.answerStore.ListStalePersonality(startedBefore)
	if err != nil {
		return recovered, errors.Wrap(err, "ошибка получения зависших анализов личности")
	}
	for _, answer := range stale {
		if helpers.IsContextDone(ctx) {
			return recovered, nil
		}
		status := models.FailureStatus(answer.PersonalityAttempts, i.cfg.MaxAttempts)
		err = i.answerStore.Update(answer.ID, map[string]interface{}{
			"personality_analysis_status": status,
			"personality_started_at":      nil,
			"last_error":                  models.ErrTimeout.Error(),
		})
		if err != nil {
			return recovered, errors.Wrap(err, "ошибка обновления статуса анализа личности")
		}
		recovered++
	}
	return recovered, nil
}
