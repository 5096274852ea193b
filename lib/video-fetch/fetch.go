package videofetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"video-assessment-backend/models"
	s3client "video-assessment-backend/s3"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Provider скачивает видео ответа во временную директорию.
// cleanup удаляет временные файлы и безопасен для повторного вызова.
type Provider interface {
	Fetch(ctx context.Context, videoURL string) (filePath string, cleanup func(), err error)
}

type Config struct {
	Timeout time.Duration
	TmpDir  string
}

func NewInstance(cfg Config, storage s3client.Provider) Provider {
	return &impl{
		cfg:     cfg,
		storage: storage,
		client:  &http.Client{},
	}
}

type impl struct {
	cfg     Config
	storage s3client.Provider
	client  *http.Client
}

func (i impl) Fetch(ctx context.Context, videoURL string) (filePath string, cleanup func(), err error) {
	u, err := url.Parse(videoURL)
	if err != nil || u.Scheme == "" {
		return "", nil, models.NewStageErrorf(models.ErrDownload, err, "некорректный адрес видео %q", videoURL)
	}

	tmpDir, err := os.MkdirTemp(i.cfg.TmpDir, "answer-video-*")
	if err != nil {
		return "", nil, models.NewStageError(models.ErrDownload, err, "ошибка создания временной директории")
	}
	cleanup = func() { _ = os.RemoveAll(tmpDir) }
	filePath = filepath.Join(tmpDir, uuid.New().String()+videoExt(u.Path))

	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}

	switch u.Scheme {
	case "http", "https":
		err = i.fetchHTTP(ctx, videoURL, filePath)
	case "s3":
		err = i.fetchS3(ctx, u, filePath)
	default:
		err = errors.Errorf("неподдерживаемая схема %q", u.Scheme)
	}
	if err != nil {
		cleanup()
		return "", nil, models.NewStageError(models.ErrDownload, err, videoURL)
	}
	return filePath, cleanup, nil
}

func (i impl) fetchHTTP(ctx context.Context, videoURL, filePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("неуспешный статус ответа %v", resp.StatusCode)
	}
	return writeFile(filePath, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}

func (i impl) fetchS3(ctx context.Context, u *url.URL, filePath string) error {
	if i.storage == nil {
		return errors.New("хранилище S3 не настроено")
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return errors.Errorf("в адресе не указан бакет или объект: %s", u.String())
	}
	return writeFile(filePath, func(w io.Writer) error {
		return i.storage.Download(ctx, bucket, key, w)
	})
}

func writeFile(filePath string, fill func(w io.Writer) error) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrap(err, "ошибка создания временного файла")
	}
	defer file.Close()
	if err = fill(file); err != nil {
		return err
	}
	stat, err := file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return errors.New("получен пустой файл")
	}
	return nil
}

func videoExt(urlPath string) string {
	ext := path.Ext(urlPath)
	if ext == "" || len(ext) > 6 {
		return ".webm"
	}
	return strings.ToLower(ext)
}
