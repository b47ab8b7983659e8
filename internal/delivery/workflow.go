package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/model"
)

const maxErrorBody = 512

// DownstreamAPIError is returned when the workflow API answers non-2xx.
type DownstreamAPIError struct {
	AuctionID int64
	Status    int
	Body      string
}

func (e *DownstreamAPIError) Error() string {
	return fmt.Sprintf("downstream api error: status %d", e.Status)
}

type workflowRequest struct {
	Vehicle          []model.FormattedLot `json:"vehicle"`
	AuctionStartDate string               `json:"auctionStartDate"`
	AuctionEndDate   string               `json:"auctionEndDate"`
}

// WorkflowDelivery posts each payload to the Plumsail workflow endpoint.
type WorkflowDelivery struct {
	endpoint string
	apiKey   string
	client   *http.Client
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewWorkflow builds a WorkflowDelivery. A nil client means http.DefaultClient.
func NewWorkflow(cfg config.Plumsail, client *http.Client, timeout time.Duration, log *zap.SugaredLogger) *WorkflowDelivery {
	if client == nil {
		client = http.DefaultClient
	}
	return &WorkflowDelivery{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, client: client, timeout: timeout, log: log}
}

func (w *WorkflowDelivery) Name() string { return config.DeliveryWorkflow }

func (w *WorkflowDelivery) Ready() error {
	if w.endpoint == "" {
		return fmt.Errorf("%w: PLUMSAIL_API_URL", config.ErrMissing)
	}
	return nil
}

// Deliver posts {vehicle, auctionStartDate, auctionEndDate}. The response
// body is returned as JSON; a non-JSON body is returned as a JSON string.
func (w *WorkflowDelivery) Deliver(ctx context.Context, payload model.AuctionPayload) (Outcome, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	lots := payload.Lots
	if lots == nil {
		lots = []model.FormattedLot{}
	}
	body, err := json.Marshal(workflowRequest{Vehicle: lots, AuctionStartDate: payload.StartDate, AuctionEndDate: payload.EndDate})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode workflow request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("post workflow: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read workflow response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return Outcome{}, &DownstreamAPIError{AuctionID: payload.AuctionID, Status: resp.StatusCode, Body: string(raw)}
	}
	w.log.Infow("workflow accepted payload", "auctionId", payload.AuctionID, "lots", len(lots), "status", resp.StatusCode)
	return Outcome{AuctionID: payload.AuctionID, Response: asJSON(raw)}, nil
}

func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
