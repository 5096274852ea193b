package apiv1

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"video-assessment-backend/config"
	"video-assessment-backend/internal/testutil/memstore"
	xlsexport "video-assessment-backend/lib/export/xls"
	"video-assessment-backend/lib/pipeline"
	"video-assessment-backend/lib/pipeline/dispatcher"
	scoreshandler "video-assessment-backend/lib/scores"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu           sync.Mutex
	retryMsg     string
	pendingLimit int
	pendingBlock chan struct{}
}

func (f *fakePipeline) lastPendingLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingLimit
}

func (f *fakePipeline) blockPending(block chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingBlock = block
}

func (f *fakePipeline) ProcessSubmission(_ context.Context, _ string) (pipeline.SubmitSummary, error) {
	return pipeline.SubmitSummary{Answers: 2, Queued: 4}, nil
}

func (f *fakePipeline) ProcessPendingAnswers(_ context.Context, limit int) (pipeline.PendingSummary, error) {
	f.mu.Lock()
	f.pendingLimit = limit
	block := f.pendingBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return pipeline.PendingSummary{Processed: 1, Succeeded: 1}, nil
}

func (f *fakePipeline) ProcessPendingPersonality(_ context.Context, _ int) (pipeline.PendingSummary, error) {
	return pipeline.PendingSummary{}, nil
}

func (f *fakePipeline) RetryAnswer(_ context.Context, _ string, _ models.StageKind) (string, error) {
	return f.retryMsg, nil
}

func (f *fakePipeline) RecoverStale(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

func (f *fakePipeline) HandleTask(_ context.Context, _ dispatcher.Task) error {
	return nil
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, response) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result response
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(data, &result))
	}
	return resp.StatusCode, result
}

func TestPipelineApi(t *testing.T) {
	config.Conf = &config.Configuration{}
	config.Conf.Pipeline.PendingBatchSize = 10

	store := memstore.New()
	testID := store.AddTest(dbmodels.Test{Title: "Backend developer"})
	submissionID := store.AddSubmission(dbmodels.Submission{TestID: testID, CandidateID: "c1"})
	fake := &fakePipeline{}
	pipeline.Instance = fake
	scoreshandler.NewHandler(scoreshandler.ArchiveConfig{}, store.Answers(), store.Submissions(), store.SubmissionScores(), store.PersonalityScores())
	xlsexport.NewHandler()

	app := fiber.New()
	InitPipelineApiRouters(context.Background(), app)

	t.Run(`process submission check`, func(t *testing.T) {
		status, resp := doRequest(t, app, http.MethodPost, "/submission/"+submissionID+"/process", "")
		require.Equal(t, fiber.StatusOK, status)
		var summary pipeline.SubmitSummary
		require.NoError(t, json.Unmarshal(resp.Data, &summary))
		require.Equal(t, 4, summary.Queued)

		status, resp = doRequest(t, app, http.MethodPost, "/submission/not-uuid/process", "")
		require.Equal(t, fiber.StatusBadRequest, status)
		require.Equal(t, "fail", resp.Status)
	})

	t.Run(`scores check`, func(t *testing.T) {
		status, resp := doRequest(t, app, http.MethodGet, "/submission/"+submissionID+"/scores", "")
		require.Equal(t, fiber.StatusOK, status)
		require.Contains(t, string(resp.Data), `"candidate_id":"c1"`)

		status, _ = doRequest(t, app, http.MethodGet, "/submission/"+uuid.New().String()+"/scores", "")
		require.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run(`retry check`, func(t *testing.T) {
		answerID := uuid.New().String()
		status, resp := doRequest(t, app, http.MethodPost, "/answer/"+answerID+"/retry", `{"stage":"unknown"}`)
		require.Equal(t, fiber.StatusBadRequest, status)
		require.Equal(t, models.ErrUnknownStage.Error(), resp.Message)

		status, _ = doRequest(t, app, http.MethodPost, "/answer/"+answerID+"/retry", `{"stage":"transcription"}`)
		require.Equal(t, fiber.StatusOK, status)

		fake.retryMsg = "ответ не найден"
		status, resp = doRequest(t, app, http.MethodPost, "/answer/"+answerID+"/retry", `{"stage":"personality"}`)
		require.Equal(t, fiber.StatusBadRequest, status)
		require.Equal(t, "ответ не найден", resp.Message)
	})

	// запрос принимается, когда предыдущий фоновый запуск завершен
	acceptPending := func(t *testing.T, body string) response {
		var resp response
		require.Eventually(t, func() bool {
			var status int
			status, resp = doRequest(t, app, http.MethodPost, "/pending/process", body)
			return status == fiber.StatusAccepted
		}, 2*time.Second, 10*time.Millisecond)
		return resp
	}

	t.Run(`pending check`, func(t *testing.T) {
		resp := acceptPending(t, "")
		require.JSONEq(t, `{"limit":10}`, string(resp.Data))
		require.Eventually(t, func() bool { return fake.lastPendingLimit() == 10 }, 2*time.Second, 10*time.Millisecond)

		resp = acceptPending(t, `{"limit":500}`)
		require.JSONEq(t, `{"limit":100}`, string(resp.Data))
		require.Eventually(t, func() bool { return fake.lastPendingLimit() == 100 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run(`pending already running check`, func(t *testing.T) {
		block := make(chan struct{})
		fake.blockPending(block)
		acceptPending(t, `{"limit":5}`)
		require.Eventually(t, func() bool { return fake.lastPendingLimit() == 5 }, 2*time.Second, 10*time.Millisecond)

		status, resp := doRequest(t, app, http.MethodPost, "/pending/process", `{"limit":7}`)
		require.Equal(t, fiber.StatusBadRequest, status)
		require.NotEmpty(t, resp.Message)
		require.Equal(t, 5, fake.lastPendingLimit())

		fake.blockPending(nil)
		close(block)
		acceptPending(t, `{"limit":7}`)
		require.Eventually(t, func() bool { return fake.lastPendingLimit() == 7 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run(`exports check`, func(t *testing.T) {
		status, _ := doRequest(t, app, http.MethodGet, "/test/"+testID+"/scores_export", "")
		require.Equal(t, fiber.StatusOK, status)

		status, _ = doRequest(t, app, http.MethodGet, "/submission/"+submissionID+"/report", "")
		require.Equal(t, fiber.StatusOK, status)
	})
}
