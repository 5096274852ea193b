package personalityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"video-assessment-backend/models"
	personalityapimodels "video-assessment-backend/models/api/personality"

	log "github.com/sirupsen/logrus"
)

// Provider клиент сервиса определения личностных черт по видео
type Provider interface {
	Analyze(ctx context.Context, filePath string) (personalityapimodels.AnalyzeResult, error)
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewInstance(cfg Config) Provider {
	log.Infof("Инициализация сервиса анализа личности: %v", cfg.URL)
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

func (i impl) Analyze(ctx context.Context, filePath string) (result personalityapimodels.AnalyzeResult, err error) {
	body, contentType, err := buildForm(filePath)
	if err != nil {
		return result, models.NewStageError(models.ErrPersonalityInference, err, "ошибка формирования запроса")
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%v/predict", i.baseUrl), body)
	if err != nil {
		return result, models.NewStageError(models.ErrPersonalityInference, err, "ошибка формирования запроса")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := i.client.Do(req)
	if err != nil {
		return result, models.NewStageError(models.ErrPersonalityInference, err, "ошибка отправки видео на анализ")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, models.NewStageError(models.ErrPersonalityInference, err, "ошибка чтения ответа")
	}
	if resp.StatusCode != http.StatusOK {
		return result, models.NewStageErrorf(models.ErrPersonalityInference, nil, "неуспешный статус ответа %v", resp.StatusCode)
	}
	var response personalityapimodels.AnalyzeResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return result, models.NewStageError(models.ErrPersonalityInference, err, "ошибка сериализации ответа")
	}
	if response.Status != personalityapimodels.StatusSuccess {
		return result, models.NewStageErrorf(models.ErrPersonalityInference, nil, "статус анализа %q: %s", response.Status, response.Message)
	}
	if !response.IsComplete() {
		return result, models.NewStageError(models.ErrPersonalityInference, nil, "в ответе нет оценок по всем чертам")
	}
	result.Traits = *response.PersonalityScores
	result.Raw = raw
	return result, nil
}

func buildForm(filePath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("video", filepath.Base(filePath))
	if err != nil {
		return nil, "", err
	}
	if _, err = io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err = writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
