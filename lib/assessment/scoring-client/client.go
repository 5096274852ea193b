package scoringclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"video-assessment-backend/models"
	scoringapimodels "video-assessment-backend/models/api/scoring"

	log "github.com/sirupsen/logrus"
)

// Provider клиент сервиса оценки текста ответа по критериям
type Provider interface {
	Assess(ctx context.Context, text string) (scoringapimodels.AssessResult, error)
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewInstance(cfg Config) Provider {
	log.Infof("Инициализация сервиса оценки ответов: %v", cfg.URL)
	return &impl{
		baseUrl: strings.TrimSuffix(cfg.URL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

type impl struct {
	baseUrl string
	timeout time.Duration
	client  *http.Client
}

func (i impl) Assess(ctx context.Context, text string) (result scoringapimodels.AssessResult, err error) {
	payload, err := json.Marshal(scoringapimodels.AssessRequest{
		Text:              text,
		IncludeConfidence: true,
		UseEnsemble:       true,
	})
	if err != nil {
		return result, models.NewStageError(models.ErrScoringService, err, "ошибка формирования запроса")
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%v/assess", i.baseUrl), bytes.NewReader(payload))
	if err != nil {
		return result, models.NewStageError(models.ErrScoringService, err, "ошибка формирования запроса")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return result, models.NewStageError(models.ErrScoringService, err, "ошибка отправки запроса")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, models.NewStageError(models.ErrScoringService, err, "ошибка чтения ответа")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, models.NewStageErrorf(models.ErrScoringService, nil, "неуспешный статус ответа %v: %s", resp.StatusCode, truncate(body, 500))
	}
	if err := json.Unmarshal(body, &result.AssessResponse); err != nil {
		return result, models.NewStageError(models.ErrScoringService, err, "ошибка сериализации ответа")
	}
	if result.OverallScore == nil {
		return result, models.NewStageError(models.ErrScoringService, nil, "в ответе нет итоговой оценки")
	}
	result.Raw = body
	return result, nil
}

func truncate(body []byte, size int) string {
	if len(body) <= size {
		return string(body)
	}
	return string(body[:size])
}
