package database

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient definition minio client
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	for i := 1; i <= d.RetryCount; i++ {
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		if err == nil {
			log.Printf("minIO[%s] 連線成功 (嘗試 %d 次)", d.Endpoint, i)
			return mc, nil
		}

		log.Printf("minIO[%s] 連線失敗 (嘗試 %d/%d): %v", d.Endpoint, i, d.RetryCount, err)
		time.Sleep(d.RetryInterval)
	}

	return mc, err
}

// NewMinioClient create a new minio
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 失敗: %v", err)
	}

	ctx := context.Background()
	// 檢查 bucket 是否存在
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("檢查 bucket [%s] 失敗: %v", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("建立 bucket [%s] 失敗: %v", bucketName, err)
		}
		log.Printf("Bucket [%s] 建立成功", bucketName)
	}

	return &MinIOClient{
		Client:     minioClient,
		BucketName: bucketName,
	}, nil
}

// PutObject upload size bytes from r under objectName
func (m *MinIOClient) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// RemoveObject delete objectName from the bucket
func (m *MinIOClient) RemoveObject(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}

// PresignGetURL 生成一個 Presigned URL 用來獲取指定的 object
func (m *MinIOClient) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	presignedURL, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成 Presigned URL 失敗: %w", err)
	}
	return presignedURL.String(), nil
}
