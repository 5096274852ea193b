package botnotify

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var client = &http.Client{Timeout: 10 * time.Second}

type deadLetterPayload struct {
	Stage        string `json:"stage"`
	AnswerID     string `json:"answer_id"`
	SubmissionID string `json:"submission_id"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error"`
}

type apiErrorPayload struct {
	Code   int    `json:"code"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Error  string `json:"error"`
}

// SendDeadLetter уведомление оператора: ответ исчерпал попытки обработки
func SendDeadLetter(addr, stage, answerID, submissionID string, attempts int, errs string, logger *logrus.Entry) {
	send(addr, deadLetterPayload{
		Stage:        stage,
		AnswerID:     answerID,
		SubmissionID: submissionID,
		Attempts:     attempts,
		Error:        errs,
	}, logger.WithField("notify", "dead_letter"))
}

// SendApiError уведомление об ошибке 5xx в api
func SendApiError(addr string, code int, method, path, errs string, logger *logrus.Entry) {
	send(addr, apiErrorPayload{
		Code:   code,
		Method: method,
		Path:   path,
		Error:  errs,
	}, logger.WithField("notify", "api_error"))
}

func send(addr string, data interface{}, logger *logrus.Entry) {
	if addr == "" {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.WithError(err).Error("ошибка формирования уведомления")
		return
	}
	resp, err := client.Post(addr, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		logger.WithError(err).Error("ошибка отправки уведомления")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.
			WithField("status_code", resp.StatusCode).
			Error("ошибка отправки уведомления")
	}
}
