package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type CloudStore struct {
	client *minio.Client
	bucket string
}

func NewCloudStore(cfg config.MinIOConfig) (*CloudStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &CloudStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *CloudStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("blob_upload_failed", err, map[string]interface{}{
			"key":          key,
			"size":         size,
			"content_type": contentType,
			"bucket":       s.bucket,
		})
		return err
	}
	logger.Info("blob_uploaded", map[string]interface{}{
		"key":    key,
		"size":   size,
		"bucket": s.bucket,
	})
	return nil
}

func (s *CloudStore) Download(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("blob_download_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, 0, "", err
	}

	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		logger.Error("blob_stat_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, 0, "", err
	}

	return obj, stat.Size, stat.ContentType, nil
}

func (s *CloudStore) PresignedGetURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	query := make(url.Values)
	if filename != "" {
		query.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}

	urlValue, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, query)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

func (s *CloudStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("blob_delete_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return err
	}
	logger.Info("blob_deleted", map[string]interface{}{
		"key":    key,
		"bucket": s.bucket,
	})
	return nil
}

// BatchDelete removes objects in chunks of at most batchSize keys per call.
// It stops at the first chunk that reports an error.
func (s *CloudStore) BatchDelete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		objectsCh := make(chan minio.ObjectInfo, end-start)
		for _, key := range keys[start:end] {
			objectsCh <- minio.ObjectInfo{Key: key}
		}
		close(objectsCh)

		for removeErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
			if removeErr.Err != nil {
				logger.Error("blob_batch_delete_failed", removeErr.Err, map[string]interface{}{
					"key":    removeErr.ObjectName,
					"bucket": s.bucket,
				})
				return removeErr.Err
			}
		}
	}

	logger.Info("blob_batch_deleted", map[string]interface{}{
		"count":  len(keys),
		"bucket": s.bucket,
	})
	return nil
}

func (s *CloudStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}
