package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"video-assessment-backend/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("очередь задач переполнена")
	ErrStopped   = errors.New("диспетчер задач остановлен")
)

// Task задача этапа обработки одного ответа
type Task struct {
	Kind     models.StageKind `json:"kind"`
	AnswerID string           `json:"answer_id"`
	VideoURL string           `json:"video_url"`
}

func (t Task) String() string {
	return fmt.Sprintf("%v:%v", t.Kind, t.AnswerID)
}

type Handler func(ctx context.Context, task Task) error

// Provider распределяет задачи этапов между исполнителями.
// Submit не блокируется, отклоненная задача остается в статусе pending и будет подобрана повторной обработкой.
type Provider interface {
	Start(ctx context.Context, handler Handler) error
	Submit(ctx context.Context, task Task) error
	Wait()
}

// runTask паника в задаче не останавливает исполнителя
func runTask(ctx context.Context, handler Handler, task Task, logger *log.Entry) {
	defer func() {
		if r := recover(); r != nil {
			logger.
				WithField("task", task.String()).
				WithField("panic_stack", string(debug.Stack())).
				Errorf("паника при выполнении задачи: %v", r)
		}
	}()
	err := handler(ctx, task)
	if errors.Is(err, models.ErrStageClaimed) {
		logger.WithField("task", task.String()).Debug("этап уже в обработке, задача пропущена")
		return
	}
	if err != nil {
		logger.
			WithError(err).
			WithField("task", task.String()).
			Warn("задача завершилась с ошибкой")
	}
}
