package initializers

import (
	"context"
	"time"
	"video-assessment-backend/config"
	"video-assessment-backend/db"
	"video-assessment-backend/fiberlog"
	"video-assessment-backend/lib/aggregation"
	answerstore "video-assessment-backend/lib/answer/store"
	"video-assessment-backend/lib/assessment"
	scoringclient "video-assessment-backend/lib/assessment/scoring-client"
	xlsexport "video-assessment-backend/lib/export/xls"
	"video-assessment-backend/lib/personality"
	personalityscoresstore "video-assessment-backend/lib/personality-scores/store"
	"video-assessment-backend/lib/personality/completion"
	personalityclient "video-assessment-backend/lib/personality/personality-client"
	"video-assessment-backend/lib/pipeline"
	"video-assessment-backend/lib/pipeline/dispatcher"
	pendingworker "video-assessment-backend/lib/pipeline/pending-worker"
	stalecheckworker "video-assessment-backend/lib/pipeline/stale-check-worker"
	questionstore "video-assessment-backend/lib/question/store"
	scoreshandler "video-assessment-backend/lib/scores"
	submissionscoresstore "video-assessment-backend/lib/submission-scores/store"
	submissionstore "video-assessment-backend/lib/submission/store"
	"video-assessment-backend/lib/transcription"
	whisperclient "video-assessment-backend/lib/transcription/whisper-client"
	"video-assessment-backend/lib/utils/lock"
	videofetch "video-assessment-backend/lib/video-fetch"
	"video-assessment-backend/models"
	s3client "video-assessment-backend/s3"

	log "github.com/sirupsen/logrus"
)

var LoggerConfig *fiberlog.Config

// Tasks диспетчер задач этапов, main ждет его исполнителей при остановке
var Tasks dispatcher.Provider

func InitAllServices(ctx context.Context) {
	config.InitConfig()
	LoggerConfig = InitLogger()
	InitDBConnection()
	InitS3(ctx)

	answerStore := answerstore.NewInstance(db.DB)
	submissionStore := submissionstore.NewInstance(db.DB)
	scoresStore := submissionscoresstore.NewInstance(db.DB)
	personalityStore := personalityscoresstore.NewInstance(db.DB)

	fetcher := videofetch.NewInstance(videofetch.Config{
		Timeout: config.Seconds(config.Conf.Video.DownloadTimeoutSec),
		TmpDir:  config.Conf.Video.TmpDir,
	}, s3client.Instance)

	aggregator := aggregation.NewInstance(aggregation.Config{
		DefaultPassScore: config.Conf.Scoring.DefaultPassScore,
		Policy:           models.MethodAveragePolicy(config.Conf.Scoring.MethodAveragePolicy),
	}, answerStore, submissionStore, scoresStore)
	assessor := assessment.NewInstance(answerStore, questionstore.NewInstance(db.DB),
		scoringclient.NewInstance(scoringclient.Config{
			URL:     config.Conf.Scoring.URL,
			Timeout: config.Seconds(config.Conf.Scoring.TimeoutSec),
		}), aggregator)

	transcriber := whisperclient.NewInstance(whisperclient.Config{
		Binary:   config.Conf.Transcription.Binary,
		Model:    config.Conf.Transcription.Model,
		Language: config.Conf.Transcription.Language,
		Timeout:  config.Seconds(config.Conf.Transcription.TimeoutSec),
	}, lock.NewResourceLock(ctx, config.Conf.Transcription.MaxParallel))
	transcriptionStage := transcription.NewInstance(transcription.Config{
		MaxAttempts: config.Conf.Pipeline.MaxAttempts,
		NotifyAddr:  config.Conf.NotifyBot.AddrPipeline,
	}, answerStore, fetcher, transcriber, assessor)

	detector := completion.NewInstance(completion.Config{
		AnalysisVersion: config.Conf.Personality.AnalysisVersion,
	}, answerStore, completion.GormTx(db.DB))
	personalityStage := personality.NewInstance(personality.Config{
		MaxAttempts: config.Conf.Pipeline.MaxAttempts,
		NotifyAddr:  config.Conf.NotifyBot.AddrPipeline,
	}, answerStore, fetcher, personalityclient.NewInstance(personalityclient.Config{
		URL:     config.Conf.Personality.URL,
		Timeout: config.Seconds(config.Conf.Personality.TimeoutSec),
	}), detector)

	Tasks = initDispatcher()
	pipeline.Instance = pipeline.NewInstance(pipeline.Config{
		PendingCooldown: config.Seconds(config.Conf.Pipeline.PendingCooldownSec),
		MaxAttempts:     config.Conf.Pipeline.MaxAttempts,
	}, answerStore, Tasks, transcriptionStage, personalityStage)
	if err := Tasks.Start(ctx, pipeline.Instance.HandleTask); err != nil {
		panic(err.Error())
	}

	scoreshandler.NewHandler(scoreshandler.ArchiveConfig{Storage: s3client.Instance, Bucket: config.Conf.S3.BucketName},
		answerStore, submissionStore, scoresStore, personalityStore)
	xlsexport.NewHandler()
	go initWorkers(ctx)
}

func initDispatcher() dispatcher.Provider {
	cfg := config.Conf.Pipeline
	if cfg.Dispatcher == "amqp" {
		tasks, err := dispatcher.NewAmqp(cfg.AmqpURL, cfg.AmqpQueue, cfg.Workers)
		if err == nil {
			log.Infof("Задачи обработки ответов передаются через очередь %v", cfg.AmqpQueue)
			return tasks
		}
		log.WithError(err).Error("Очередь задач недоступна, используется пул исполнителей в памяти")
	}
	return dispatcher.NewPool(cfg.Workers, cfg.QueueSize)
}

// запускаем с промежутком в 10 сек чтоб размыть нагрузку
func initWorkers(ctx context.Context) {
	// Задача повторной обработки ответов в статусах pending/failed
	pendingworker.StartWorker(ctx, pipeline.Instance, config.Conf.Pipeline.PendingBatchSize,
		config.Minutes(config.Conf.Pipeline.PendingIntervalMin))

	if makeTimeGap(ctx) {
		// Задача перевода зависших в processing этапов в failed
		stalecheckworker.StartWorker(ctx, pipeline.Instance,
			config.Minutes(config.Conf.Pipeline.StaleProcessingTTLMin),
			config.Minutes(config.Conf.Pipeline.StaleCheckIntervalMin))
	}
}

func makeTimeGap(ctx context.Context) (canRun bool) {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Second * 10):
		return true
	}
}
