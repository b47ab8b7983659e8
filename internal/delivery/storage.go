package delivery

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/document"
	"github.com/dharsanguruparan/auctionlist/internal/model"
	"github.com/dharsanguruparan/auctionlist/internal/storage"
)

// Renderer produces the local PDF for a payload.
type Renderer interface {
	Render(ctx context.Context, payload model.AuctionPayload) (document.Document, error)
}

// StorageUploadError reports a failed upload of a rendered document.
type StorageUploadError struct {
	AuctionID int64
	Path      string
	Err       error
}

func (e *StorageUploadError) Error() string {
	return fmt.Sprintf("upload %s for auction %d: %v", e.Path, e.AuctionID, e.Err)
}

func (e *StorageUploadError) Unwrap() error {
	return e.Err
}

// StorageDelivery renders each payload and uploads it under Folder.
type StorageDelivery struct {
	store    storage.Store
	folder   string
	renderer Renderer
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewStorage builds a StorageDelivery. timeout bounds each upload; zero means
// no bound beyond the caller's context.
func NewStorage(store storage.Store, folder string, renderer Renderer, timeout time.Duration, log *zap.SugaredLogger) *StorageDelivery {
	return &StorageDelivery{store: store, folder: folder, renderer: renderer, timeout: timeout, log: log}
}

func (s *StorageDelivery) Name() string { return config.DeliveryStorage }

func (s *StorageDelivery) Ready() error {
	if s.store == nil {
		return fmt.Errorf("%w: storage backend", config.ErrMissing)
	}
	if s.renderer == nil {
		return fmt.Errorf("%w: renderer", config.ErrMissing)
	}
	return nil
}

// Deliver renders the payload, uploads the PDF and removes the local copy.
// A failed removal is logged and otherwise ignored.
func (s *StorageDelivery) Deliver(ctx context.Context, payload model.AuctionPayload) (Outcome, error) {
	doc, err := s.renderer.Render(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}
	remote := s.RemotePath(doc.Name)

	mt, err := mimetype.DetectFile(doc.Path)
	if err != nil {
		return Outcome{}, &StorageUploadError{AuctionID: payload.AuctionID, Path: remote, Err: err}
	}
	if !mt.Is(document.PDFContentType) {
		return Outcome{}, &StorageUploadError{
			AuctionID: payload.AuctionID,
			Path:      remote,
			Err:       fmt.Errorf("refusing to upload %s content", mt.String()),
		}
	}

	upCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		upCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.store.Upload(upCtx, doc.Path, remote)
	if err != nil {
		return Outcome{}, &StorageUploadError{AuctionID: payload.AuctionID, Path: remote, Err: err}
	}
	s.log.Infow("document uploaded", "auctionId", payload.AuctionID, "path", res.Path)

	if err := os.Remove(doc.Path); err != nil {
		s.log.Warnw("remove local document", "path", doc.Path, "error", err)
	}
	return Outcome{AuctionID: payload.AuctionID, Upload: &res}, nil
}

// RemotePath places name under the configured folder.
func (s *StorageDelivery) RemotePath(name string) string {
	return path.Join("/", s.folder, name)
}
