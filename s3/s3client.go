package s3client

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

type Provider interface {
	MakeBucket(ctx context.Context, bucketName string) error
	Download(ctx context.Context, bucketName, objectName string, w io.Writer) error
	Upload(ctx context.Context, bucketName, objectName string, r io.Reader, size int64, contentType string) error
}

var Instance Provider

type s3client struct {
	minioClient *minio.Client
}

func NewInstance(minioClient *minio.Client) Provider {
	return &s3client{minioClient: minioClient}
}

func (s s3client) MakeBucket(ctx context.Context, bucketName string) error {
	location := "us-east-1"
	exists, err := s.minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
}

func (s s3client) Download(ctx context.Context, bucketName, objectName string, w io.Writer) error {
	object, err := s.minioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return errors.Wrap(err, "ошибка получения объекта")
	}
	defer object.Close()
	_, err = io.Copy(w, object)
	if err != nil {
		return errors.Wrap(err, "ошибка чтения объекта")
	}
	return nil
}

func (s s3client) Upload(ctx context.Context, bucketName, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := s.minioClient.PutObject(ctx, bucketName, objectName, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, "ошибка загрузки объекта")
	}
	return nil
}
