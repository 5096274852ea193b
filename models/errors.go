package models

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDownload             = errors.New("ошибка загрузки видео")
	ErrTranscription        = errors.New("ошибка транскрибации")
	ErrPersonalityInference = errors.New("ошибка анализа личностных черт")
	ErrScoringService       = errors.New("ошибка сервиса оценки ответа")
	ErrMissingTranscript    = errors.New("отсутствует транскрипция ответа")
	ErrAggregation          = errors.New("ошибка пересчета оценок")
	ErrTimeout              = errors.New("превышено время ожидания внешнего сервиса")
	ErrUnknownStage         = errors.New("неизвестный этап обработки")
	// ErrStageClaimed этап уже взят в обработку другой задачей
	ErrStageClaimed         = errors.New("этап уже в обработке")
)

// StageError ошибка этапа, errors.Is срабатывает и на вид ошибки, и на исходную причину
type StageError struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *StageError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StageError) Is(target error) bool {
	if target == ErrTimeout && e.Cause != nil && errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	return target == e.Kind
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func NewStageError(kind error, cause error, msg string) error {
	return &StageError{Kind: kind, Msg: msg, Cause: cause}
}

func NewStageErrorf(kind error, cause error, format string, args ...interface{}) error {
	return &StageError{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}
