package pendingworker

import (
	"context"
	"time"
	"video-assessment-backend/lib/pipeline"
	baseworker "video-assessment-backend/lib/utils/base-worker"
	"video-assessment-backend/lib/utils/helpers"
)

// Повторная обработка ответов, не прошедших транскрибацию или анализ личности
func StartWorker(ctx context.Context, pipelineProvider pipeline.Provider, batchSize int, interval time.Duration) {
	i := &impl{
		BaseImpl:  *baseworker.NewInstance("PendingAnswersWorker", time.Minute, interval),
		pipeline:  pipelineProvider,
		batchSize: batchSize,
	}
	go i.Run(ctx, i.handle)
}

type impl struct {
	baseworker.BaseImpl
	pipeline  pipeline.Provider
	batchSize int
}

func (i impl) handle(ctx context.Context) {
	logger := i.GetLogger()
	summary, err := i.pipeline.ProcessPendingAnswers(ctx, i.batchSize)
	if err != nil {
		logger.WithError(err).Error("ошибка повторной транскрибации ответов")
	} else if summary.Processed > 0 {
		logger.WithField("summary", summary).Info("повторная транскрибация ответов")
	}
	if helpers.IsContextDone(ctx) {
		return
	}
	summary, err = i.pipeline.ProcessPendingPersonality(ctx, i.batchSize)
	if err != nil {
		logger.WithError(err).Error("ошибка повторного анализа личности")
	} else if summary.Processed > 0 {
		logger.WithField("summary", summary).Info("повторный анализ личности")
	}
}
