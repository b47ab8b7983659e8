// Package storage uploads rendered documents and hands back links that can be
// shared with buyers. Dropbox is the production backend; S3-compatible buckets
// and an in-memory store cover self-hosted and local runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// ErrNotFound is returned by lookups for paths that were never uploaded.
var ErrNotFound = errors.New("object not found")

// Store uploads a local file to remotePath, replacing anything already there,
// and returns a shareable link to it.
type Store interface {
	Upload(ctx context.Context, localPath, remotePath string) (model.UploadResult, error)
}

// New builds the Store selected by cfg.Backend. Credentials the backend needs
// are checked here so a misconfigured run fails before any rendering.
// timeout bounds each request a backend makes without a context of its own.
func New(ctx context.Context, cfg config.Storage, timeout time.Duration, log *zap.SugaredLogger) (Store, error) {
	switch cfg.Backend {
	case config.BackendDropbox, "":
		if cfg.DropboxToken == "" {
			return nil, fmt.Errorf("%w: DROPBOX_ACCESS_TOKEN", config.ErrMissing)
		}
		return NewDropbox(cfg.DropboxToken, timeout, log), nil
	case config.BackendS3:
		var missing []string
		for name, v := range map[string]string{
			"S3_ENDPOINT":   cfg.S3Endpoint,
			"S3_BUCKET":     cfg.S3Bucket,
			"S3_ACCESS_KEY": cfg.S3AccessKey,
			"S3_SECRET_KEY": cfg.S3SecretKey,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, fmt.Errorf("%w: %s", config.ErrMissing, strings.Join(missing, ", "))
		}
		s3, err := NewS3(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
