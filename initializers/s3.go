package initializers

import (
	"context"
	"video-assessment-backend/config"
	s3client "video-assessment-backend/s3"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

func InitS3(ctx context.Context) {
	minioClient, err := minio.New(config.Conf.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Conf.S3.AccessKeyID, config.Conf.S3.SecretAccessKey, ""),
		Secure: *config.Conf.S3.UseSSL,
	})
	if err != nil {
		log.WithError(err).Error("Ошибка инициализации клиента S3")
		return
	}

	s3client.Instance = s3client.NewInstance(minioClient)

	// в бакете хранятся видео ответов (s3://bucket/key) и архив отчетов
	err = s3client.Instance.MakeBucket(ctx, config.Conf.S3.BucketName)
	if err != nil {
		log.WithError(err).Error("S3 соединение не удалось, бакет недоступен")
		return
	}
	log.Info("S3 клиент успешно инициализирован")
}
