package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// S3 stores documents in an S3-compatible bucket and shares them through
// presigned GET URLs.
type S3 struct {
	client  *minio.Client
	bucket  string
	region  string
	linkTTL time.Duration
	log     *zap.SugaredLogger
}

// NewS3 creates a MinIO client from the storage settings. The region is
// always set so the client never issues a bucket location lookup.
func NewS3(cfg config.Storage, log *zap.SugaredLogger) (*S3, error) {
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3{client: client, bucket: cfg.S3Bucket, region: region, linkTTL: cfg.LinkTTL, log: log}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	s.log.Infow("bucket created", "bucket", s.bucket)
	return nil
}

// Upload puts the file under remotePath (leading slash dropped) and presigns
// a download link valid for the configured TTL.
func (s *S3) Upload(ctx context.Context, localPath, remotePath string) (model.UploadResult, error) {
	key := strings.TrimPrefix(remotePath, "/")
	f, err := os.Open(localPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("stat upload source: %w", err)
	}
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("detect content type: %w", err)
	}
	opts := minio.PutObjectOptions{ContentType: mt.String()}
	if _, err := s.client.PutObject(ctx, s.bucket, key, f, st.Size(), opts); err != nil {
		return model.UploadResult{}, fmt.Errorf("put object: %w", err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, url.Values{})
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("presign object: %w", err)
	}
	return model.UploadResult{Name: path.Base(key), Path: remotePath, SharedLink: u.String()}, nil
}
