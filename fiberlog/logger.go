package fiberlog

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// getLogrusFields calls FuncTag functions on matching keys
func getLogrusFields(ftm map[string]FuncTag, c *fiber.Ctx, d *data) log.Fields {
	f := make(log.Fields, len(ftm))
	for k, ft := range ftm {
		value := ft(c, d)
		if strValue, ok := value.(string); ok {
			if strValue != "" {
				f[k] = strValue
			}
			continue
		}
		f[k] = value
	}
	return f
}

// New creates a new middleware handler
func New(config ...Config) fiber.Handler {
	cfg := ConfigDefault
	if len(config) != 0 {
		cfg = config[0]
	}
	pid := os.Getpid()
	ftm := getFuncTagMap(cfg)
	return func(c *fiber.Ctx) error {
		if cfg.Skip != nil && cfg.Skip(c) {
			return c.Next()
		}
		// на каждый запрос свои отметки времени, обработчики выполняются параллельно
		d := &data{pid: pid, start: time.Now()}
		err := c.Next()
		d.end = time.Now()
		if c.Method() == fiber.MethodOptions {
			return err
		}

		fields := getLogrusFields(ftm, c, d)
		var entity *log.Entry
		if cfg.Logger == nil {
			entity = log.WithFields(fields)
		} else {
			entity = cfg.Logger.WithFields(fields)
		}
		switch status := c.Response().StatusCode(); {
		case status >= fiber.StatusInternalServerError:
			entity.Error(getMessage(status))
		case status >= fiber.StatusMultipleChoices:
			entity.Warn(getMessage(status))
		default:
			entity.Info(getMessage(status))
		}
		return err
	}
}

func getMessage(status int) string {
	if status >= fiber.StatusBadRequest {
		return "запрос api завершен с ошибкой"
	}
	return "запрос api"
}
