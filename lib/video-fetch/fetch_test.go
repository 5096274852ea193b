package videofetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"video-assessment-backend/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	bucket, key string
	content     string
}

func (f *fakeStorage) MakeBucket(ctx context.Context, bucketName string) error {
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, bucketName, objectName string, w io.Writer) error {
	f.bucket = bucketName
	f.key = objectName
	if f.content == "" {
		return errors.New("not found")
	}
	_, err := io.Copy(w, strings.NewReader(f.content))
	return err
}

func (f *fakeStorage) Upload(ctx context.Context, bucketName, objectName string, r io.Reader, size int64, contentType string) error {
	return nil
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp4":
			_, _ = w.Write([]byte("video-bytes"))
		case "/slow.mp4":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("video-bytes"))
		case "/empty.mp4":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	storage := &fakeStorage{content: "s3-bytes"}
	fetcher := NewInstance(Config{Timeout: 2 * time.Second, TmpDir: tmpDir}, storage)

	t.Run(`http download check`, func(t *testing.T) {
		filePath, cleanup, err := fetcher.Fetch(context.Background(), srv.URL+"/ok.mp4")
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(filePath, ".mp4"))
		data, err := os.ReadFile(filePath)
		require.NoError(t, err)
		require.Equal(t, "video-bytes", string(data))

		cleanup()
		_, err = os.Stat(filePath)
		require.True(t, os.IsNotExist(err))
		cleanup()
	})

	t.Run(`s3 download check`, func(t *testing.T) {
		filePath, cleanup, err := fetcher.Fetch(context.Background(), "s3://videos/answers/a1.webm")
		require.NoError(t, err)
		defer cleanup()
		require.Equal(t, "videos", storage.bucket)
		require.Equal(t, "answers/a1.webm", storage.key)
		data, err := os.ReadFile(filePath)
		require.NoError(t, err)
		require.Equal(t, "s3-bytes", string(data))
	})

	t.Run(`not found check`, func(t *testing.T) {
		_, cleanup, err := fetcher.Fetch(context.Background(), srv.URL+"/missing.mp4")
		require.Error(t, err)
		require.Nil(t, cleanup)
		require.True(t, errors.Is(err, models.ErrDownload))
	})

	t.Run(`empty body check`, func(t *testing.T) {
		_, _, err := fetcher.Fetch(context.Background(), srv.URL+"/empty.mp4")
		require.True(t, errors.Is(err, models.ErrDownload))
	})

	t.Run(`unsupported scheme check`, func(t *testing.T) {
		_, _, err := fetcher.Fetch(context.Background(), "ftp://host/video.mp4")
		require.True(t, errors.Is(err, models.ErrDownload))
		_, _, err = fetcher.Fetch(context.Background(), "not a url")
		require.True(t, errors.Is(err, models.ErrDownload))
	})

	t.Run(`timeout check`, func(t *testing.T) {
		slow := NewInstance(Config{Timeout: 50 * time.Millisecond, TmpDir: tmpDir}, storage)
		_, _, err := slow.Fetch(context.Background(), srv.URL+"/slow.mp4")
		require.True(t, errors.Is(err, models.ErrDownload))
		require.True(t, errors.Is(err, models.ErrTimeout))
	})

	t.Run(`temp dir removed on failure check`, func(t *testing.T) {
		_, _, err := fetcher.Fetch(context.Background(), srv.URL+"/missing.mp4")
		require.Error(t, err)
		entries, err := os.ReadDir(tmpDir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}
