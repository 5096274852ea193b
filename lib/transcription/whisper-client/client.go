package whisperclient

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"video-assessment-backend/lib/utils/lock"
	"video-assessment-backend/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provider распознавание речи из локального видео файла
type Provider interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

type Config struct {
	Binary   string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewInstance resource ограничивает число одновременно запущенных процессов, nil - без ограничения
func NewInstance(cfg Config, resource *lock.ResourceLock) Provider {
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	return &impl{
		cfg:      cfg,
		resource: resource,
	}
}

type impl struct {
	cfg      Config
	resource *lock.ResourceLock
}

func (i impl) Transcribe(ctx context.Context, filePath string) (string, error) {
	if i.resource != nil {
		if !i.resource.Acquire(ctx, "Transcribe") {
			return "", models.NewStageError(models.ErrTranscription, ctx.Err(), "ошибка доступа к ресурсам - контекст завершен")
		}
		defer i.resource.Release("Transcribe")
	}

	outDir, err := os.MkdirTemp(filepath.Dir(filePath), "transcript-*")
	if err != nil {
		return "", models.NewStageError(models.ErrTranscription, err, "ошибка создания временной директории")
	}
	defer os.RemoveAll(outDir)

	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}

	args := []string{filePath, "--output_format", "txt", "--output_dir", outDir}
	if i.cfg.Model != "" {
		args = append(args, "--model", i.cfg.Model)
	}
	if i.cfg.Language != "" {
		args = append(args, "--language", i.cfg.Language)
	}
	cmd := exec.CommandContext(ctx, i.cfg.Binary, args...)
	// дочерние процессы могут удерживать вывод после остановки
	cmd.WaitDelay = time.Second

	now := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewStageError(models.ErrTranscription, ctx.Err(), "процесс распознавания прерван")
		}
		log.WithError(err).
			WithField("file_path", filePath).
			WithField("whisper_output", string(output)).
			Error("ошибка выполнения распознавания речи")
		return "", models.NewStageError(models.ErrTranscription, err, "процесс распознавания завершился с ошибкой")
	}

	baseName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	data, err := os.ReadFile(filepath.Join(outDir, baseName+".txt"))
	if err != nil {
		return "", models.NewStageError(models.ErrTranscription, errors.Wrap(err, "файл результата не найден"), filePath)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", models.NewStageError(models.ErrTranscription, nil, "пустой результат распознавания")
	}
	log.WithField("file_path", filePath).
		WithField("duration_sec", time.Since(now).Seconds()).
		WithField("text_length", len(text)).
		Debug("распознавание речи завершено")
	return text, nil
}
