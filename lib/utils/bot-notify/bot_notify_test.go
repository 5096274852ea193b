package botnotify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSendDeadLetter(t *testing.T) {
	t.Run(`payload check`, func(t *testing.T) {
		received := make(chan deadLetterPayload, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload deadLetterPayload
			_ = json.NewDecoder(r.Body).Decode(&payload)
			received <- payload
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		SendDeadLetter(srv.URL, "transcription", "a1", "s1", 3, "timeout", logrus.NewEntry(logrus.New()))
		payload := <-received
		require.Equal(t, "transcription", payload.Stage)
		require.Equal(t, "a1", payload.AnswerID)
		require.Equal(t, "s1", payload.SubmissionID)
		require.Equal(t, 3, payload.Attempts)
		require.Equal(t, "timeout", payload.Error)
	})

	t.Run(`empty addr check`, func(t *testing.T) {
		SendDeadLetter("", "personality", "a1", "s1", 3, "", logrus.NewEntry(logrus.New()))
	})
}

func TestSendApiError(t *testing.T) {
	received := make(chan apiErrorPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload apiErrorPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	SendApiError(srv.URL, 500, "POST", "/api/v1/submission/:id/process", "Ошибка запуска обработки попытки",
		logrus.NewEntry(logrus.New()))
	payload := <-received
	require.Equal(t, 500, payload.Code)
	require.Equal(t, "POST", payload.Method)
	require.Equal(t, "/api/v1/submission/:id/process", payload.Path)
}
