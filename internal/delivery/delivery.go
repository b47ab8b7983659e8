// Package delivery hands each auction's payload to its destination: either a
// rendered PDF uploaded to storage, or the raw payload posted to the Plumsail
// workflow API.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/model"
	"github.com/dharsanguruparan/auctionlist/internal/storage"
)

// Outcome is what one successful delivery produced. Exactly one of Upload
// and Response is set, depending on the strategy.
type Outcome struct {
	AuctionID int64
	Upload    *model.UploadResult
	Response  json.RawMessage
}

// Strategy delivers one auction payload.
type Strategy interface {
	// Name is the DELIVERY_STRATEGY value selecting the strategy.
	Name() string
	// Ready reports settings the strategy needs but does not have.
	Ready() error
	Deliver(ctx context.Context, payload model.AuctionPayload) (Outcome, error)
}

// Deps are the collaborators a strategy may need.
type Deps struct {
	Renderer   Renderer
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

// New builds the strategy selected by cfg.Delivery.
func New(ctx context.Context, cfg *config.Config, deps Deps) (Strategy, error) {
	switch cfg.Delivery {
	case config.DeliveryStorage, "":
		store, err := storage.New(ctx, cfg.Storage, cfg.Timeouts.Delivery, deps.Log)
		if err != nil {
			return nil, err
		}
		return NewStorage(store, cfg.Storage.Folder, deps.Renderer, cfg.Timeouts.Delivery, deps.Log), nil
	case config.DeliveryWorkflow:
		w := NewWorkflow(cfg.Plumsail, deps.HTTPClient, cfg.Timeouts.Delivery, deps.Log)
		if err := w.Ready(); err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown delivery strategy %q", cfg.Delivery)
	}
}
