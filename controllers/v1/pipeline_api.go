package apiv1

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"video-assessment-backend/config"
	"video-assessment-backend/controllers"
	"video-assessment-backend/db"
	pdfexport "video-assessment-backend/lib/export/pdf"
	xlsexport "video-assessment-backend/lib/export/xls"
	"video-assessment-backend/lib/pipeline"
	scoreshandler "video-assessment-backend/lib/scores"
	apimodels "video-assessment-backend/models/api"
	scoresapimodels "video-assessment-backend/models/api/scores"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type pipelineApiController struct {
	controllers.BaseAPIController
	// ctx корневой контекст сервиса, отменяется при остановке
	ctx            context.Context
	pendingRunning *atomic.Bool
}

func InitPipelineApiRouters(ctx context.Context, app *fiber.App) {
	controller := pipelineApiController{
		ctx:            ctx,
		pendingRunning: &atomic.Bool{},
	}
	app.Route("submission/:id", func(router fiber.Router) {
		router.Post("process", controller.processSubmission)
		router.Get("scores", controller.getScores)
		router.Get("report", controller.getReport)
	})
	app.Route("answer/:id", func(router fiber.Router) {
		router.Post("retry", controller.retryAnswer)
	})
	app.Post("pending/process", controller.processPending)
	app.Get("test/:id/scores_export", controller.exportTestScores)
	app.Get("health", controller.health)
}

type pendingAccepted struct {
	Limit int `json:"limit"`
}

// @Summary Запуск обработки попытки
// @Tags Оценка
// @Description Ставит задачи транскрибации и анализа личности для всех ответов попытки, не ждет завершения
// @Param   id          		path    string  				    	true         "submission ID"
// @Success 200 {object} apimodels.Response{data=pipeline.SubmitSummary}
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/submission/{id}/process [post]
func (c *pipelineApiController) processSubmission(ctx *fiber.Ctx) error {
	id, err := c.GetID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	summary, err := pipeline.Instance.ProcessSubmission(ctx.UserContext(), id)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка запуска обработки попытки")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(summary))
}

// @Summary Оценки попытки
// @Tags Оценка
// @Description Текущее состояние оценки попытки, до завершения обработки возвращается частичный результат
// @Param   id          		path    string  				    	true         "submission ID"
// @Success 200 {object} apimodels.Response{data=scoresapimodels.SubmissionView}
// @Failure 400 {object} apimodels.Response
// @Failure 404 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/submission/{id}/scores [get]
func (c *pipelineApiController) getScores(ctx *fiber.Ctx) error {
	id, err := c.GetID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	view, err := scoreshandler.Instance.GetSubmissionView(id)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка получения оценок попытки")
	}
	if view == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(apimodels.NewError("попытка не найдена"))
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(view))
}

// @Summary Отчет по попытке в PDF
// @Tags Оценка
// @Description Отчет по попытке в PDF
// @Param   id          		path    string  				    	true         "submission ID"
// @Success 200
// @Failure 400 {object} apimodels.Response
// @Failure 404 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/submission/{id}/report [get]
func (c *pipelineApiController) getReport(ctx *fiber.Ctx) error {
	id, err := c.GetID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	view, err := scoreshandler.Instance.GetSubmissionView(id)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка получения оценок попытки")
	}
	if view == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(apimodels.NewError("попытка не найдена"))
	}
	body, err := pdfexport.GenerateSubmissionReport(*view, config.Conf.Report.FontDir)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка формирования отчета")
	}
	if _, err = scoreshandler.Instance.ArchiveReport(ctx.UserContext(), id, body); err != nil {
		// отчет отдается и без архивной копии
		c.GetLogger(ctx).WithError(err).Warn("отчет не сохранен в хранилище")
	}
	fileName := fmt.Sprintf("submission-%v.pdf", id)
	ctx.Set(fiber.HeaderContentType, "application/pdf")
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	return ctx.SendStream(bytes.NewReader(body))
}

// @Summary Повторная обработка ответа
// @Tags Оценка
// @Description Сбрасывает этап ответа в pending вместе со счетчиком попыток и ставит задачу
// @Param   id          		path    string  				    	true         "answer ID"
// @Param	body body	 scoresapimodels.RetryRequest	true	"request body"
// @Success 200 {object} apimodels.Response
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/answer/{id}/retry [post]
func (c *pipelineApiController) retryAnswer(ctx *fiber.Ctx) error {
	id, err := c.GetID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	var payload scoresapimodels.RetryRequest
	if err = c.BodyParser(ctx, &payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	if err = payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	hMsg, err := pipeline.Instance.RetryAnswer(ctx.UserContext(), id, payload.Stage)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка перезапуска обработки ответа")
	}
	if hMsg != "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(hMsg))
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(nil))
}

// @Summary Обработка отложенных ответов
// @Tags Оценка
// @Description Запускает в фоне последовательную обработку ответов в статусах pending/failed, сначала транскрибация, затем анализ личности
// @Param	body body	 scoresapimodels.PendingRequest	true	"request body"
// @Success 202 {object} apimodels.Response{data=pendingAccepted}
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/pending/process [post]
func (c *pipelineApiController) processPending(ctx *fiber.Ctx) error {
	var payload scoresapimodels.PendingRequest
	if len(ctx.Body()) != 0 {
		if err := c.BodyParser(ctx, &payload); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
		}
	}
	limit := payload.GetLimit(config.Conf.Pipeline.PendingBatchSize)
	if !c.pendingRunning.CompareAndSwap(false, true) {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError("обработка отложенных ответов уже выполняется"))
	}
	go func() {
		defer c.pendingRunning.Store(false)
		c.runPending(limit)
	}()
	return ctx.Status(fiber.StatusAccepted).JSON(apimodels.NewResponse(pendingAccepted{Limit: limit}))
}

func (c *pipelineApiController) runPending(limit int) {
	logger := log.
		WithField("component", "pending-run").
		WithField("limit", limit)
	transcription, err := pipeline.Instance.ProcessPendingAnswers(c.ctx, limit)
	if err != nil {
		logger.WithError(err).Error("ошибка обработки отложенных транскрибаций")
		return
	}
	personality, err := pipeline.Instance.ProcessPendingPersonality(c.ctx, limit)
	if err != nil {
		logger.WithError(err).Error("ошибка обработки отложенных анализов личности")
		return
	}
	logger.
		WithField("transcription", transcription).
		WithField("personality", personality).
		Info("обработка отложенных ответов по запросу завершена")
}

// @Summary Выгрузка оценок по тесту в Excel
// @Tags Оценка
// @Description Выгрузка оценок по тесту в Excel
// @Param   id          		path    string  				    	true         "test ID"
// @Success 200
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/test/{id}/scores_export [get]
func (c *pipelineApiController) exportTestScores(ctx *fiber.Ctx) error {
	id, err := c.GetID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	list, err := scoreshandler.Instance.ListTestViews(id)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка получения оценок по тесту")
	}
	data, err := xlsexport.Instance.ExportTestScores(list)
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка получения оценок по тесту для выгрузки в Excel")
	}
	fileName := fmt.Sprintf("scores-%v.xlsx", time.Now().Format("20060102-150405"))
	ctx.Set("Content-Type", "application/vnd.ms-excel")
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	return ctx.SendStream(data)
}

// @Summary Проверка доступности
// @Tags Сервис
// @Success 200 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/health [get]
func (c *pipelineApiController) health(ctx *fiber.Ctx) error {
	if err := db.PingDB(); err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "БД недоступна")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(nil))
}
