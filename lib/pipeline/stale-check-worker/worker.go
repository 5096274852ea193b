package stalecheckworker

import (
	"context"
	"time"
	"video-assessment-backend/lib/pipeline"
	baseworker "video-assessment-backend/lib/utils/base-worker"
)

// Ответы, зависшие в обработке (например, после падения процесса), возвращаются в failed/dead_letter
func StartWorker(ctx context.Context, pipelineProvider pipeline.Provider, ttl, interval time.Duration) {
	i := &impl{
		BaseImpl: *baseworker.NewInstance("StaleCheckWorker", 30*time.Second, interval),
		pipeline: pipelineProvider,
		ttl:      ttl,
	}
	go i.Run(ctx, i.handle)
}

type impl struct {
	baseworker.BaseImpl
	pipeline pipeline.Provider
	ttl      time.Duration
}

func (i impl) handle(ctx context.Context) {
	count, err := i.pipeline.RecoverStale(ctx, i.ttl)
	if err != nil {
		i.GetLogger().WithError(err).Error("ошибка проверки зависших ответов")
		return
	}
	if count > 0 {
		i.GetLogger().WithField("recovered", count).Warn("зависшие ответы возвращены в обработку")
	}
}
