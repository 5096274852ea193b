package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"video-assessment-backend/fiberlog"
	botnotify "video-assessment-backend/lib/utils/bot-notify"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// ErrNotify отправляет в бот уведомление об ответах api с кодом 5xx
func ErrNotify(addr string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		statusCode := c.Response().StatusCode()
		if addr == "" || statusCode < http.StatusInternalServerError {
			return err
		}

		var data struct {
			Message string `json:"message"`
		}
		body := c.Response().Body()
		if unmErr := json.Unmarshal(body, &data); unmErr != nil || data.Message == "" {
			data.Message = string(body)
		}
		method := strings.Clone(c.Method())
		path := strings.Clone(c.OriginalURL())
		if r := c.Route(); r != nil {
			path = r.Path
		}
		logger := log.WithField("request_id", strings.Clone(fiberlog.GetRequestID(c)))
		// fiber переиспользует контекст после возврата, поэтому значения скопированы выше
		go botnotify.SendApiError(addr, statusCode, method, path, data.Message, logger)
		return err
	}
}
