package assessment

import (
	"context"
	"fmt"
	"time"
	"video-assessment-backend/lib/aggregation"
	answerstore "video-assessment-backend/lib/answer/store"
	scoringclient "video-assessment-backend/lib/assessment/scoring-client"
	questionstore "video-assessment-backend/lib/question/store"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Provider оценка текста ответа по критериям
type Provider interface {
	AssessAnswer(ctx context.Context, answerID string) error
}

func NewInstance(answerStore answerstore.Provider, questionStore questionstore.Provider, scoring scoringclient.Provider, aggregator aggregation.Provider) Provider {
	return &impl{
		answerStore:   answerStore,
		questionStore: questionStore,
		scoring:       scoring,
		aggregator:    aggregator,
	}
}

type impl struct {
	answerStore   answerstore.Provider
	questionStore questionstore.Provider
	scoring       scoringclient.Provider
	aggregator    aggregation.Provider
}

func BuildPrompt(question, transcript string) string {
	return fmt.Sprintf("Question: %s\n\nResponse: %s", question, transcript)
}

func (i impl) AssessAnswer(ctx context.Context, answerID string) error {
	rec, err := i.answerStore.GetByID(answerID)
	if err != nil {
		return errors.Wrap(err, "ошибка получения ответа")
	}
	if rec == nil {
		return errors.Errorf("ответ не найден: %v", answerID)
	}
	logger := log.
		WithField("answer_id", rec.ID).
		WithField("submission_id", rec.SubmissionID)
	if rec.Transcript == nil {
		return models.NewStageError(models.ErrMissingTranscript, nil, answerID)
	}

	questionText, err := i.getQuestionText(rec.QuestionID)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := i.scoring.Assess(ctx, BuildPrompt(questionText, *rec.Transcript))
	if err != nil {
		logger.WithError(err).Warn("ошибка оценки ответа")
		return err
	}
	logger.
		WithField("overall_score", *result.OverallScore).
		WithField("method_used", result.MethodUsed).
		WithField("answer_duration_sec", time.Since(now).Seconds()).
		Info("ответ оценен")

	updMap := map[string]interface{}{
		"overall_score":  result.OverallScore,
		"bert_overall":   result.BertOverall,
		"gemini_overall": result.GeminiOverall,
		"trait_scores":   dbmodels.TraitScores(result.TraitScores),
		"recommendation": result.Recommendation,
		"method_used":    result.MethodUsed,
		"text_length":    result.TextLength,
		"assessed_at":    time.Now(),
		"scoring_raw":    datatypes.JSON(result.Raw),
	}
	if err = i.answerStore.Update(rec.ID, updMap); err != nil {
		return errors.Wrap(err, "ошибка сохранения оценки ответа")
	}

	// сбой пересчета не отменяет оценку, пересчет повторится на следующем ответе
	if err = i.aggregator.RecalculateSubmissionScores(ctx, rec.SubmissionID); err != nil {
		logger.WithError(err).Error("ошибка пересчета сводных оценок")
	}
	return nil
}

func (i impl) getQuestionText(questionID string) (string, error) {
	if questionID == "" {
		return "", nil
	}
	question, err := i.questionStore.GetByID(questionID)
	if err != nil {
		return "", errors.Wrap(err, "ошибка получения вопроса")
	}
	if question == nil {
		return "", nil
	}
	return question.Text, nil
}
