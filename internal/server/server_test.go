package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/history"
	"github.com/dharsanguruparan/auctionlist/internal/logger"
	"github.com/dharsanguruparan/auctionlist/internal/model"
	"github.com/dharsanguruparan/auctionlist/internal/pipeline"
)

type stubRunner struct {
	calls   atomic.Int32
	summary pipeline.Summary
	err     error
	panics  bool
}

func (s *stubRunner) Run(context.Context) (pipeline.Summary, error) {
	s.calls.Add(1)
	if s.panics {
		panic("renderer crashed")
	}
	return s.summary, s.err
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestNonGetIsRejectedBeforeRunning(t *testing.T) {
	runner := &stubRunner{}
	h := New(":0", runner, nil, logger.Nop()).Handler()
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions} {
		rec, body := do(t, h, method, AuctionListPath)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, rec.Code)
		}
		if body["error"] != "Method not allowed" {
			t.Fatalf("%s: unexpected body %v", method, body)
		}
	}
	if runner.calls.Load() != 0 {
		t.Fatalf("pipeline must not run for rejected methods")
	}
}

func TestStorageSuccessResponse(t *testing.T) {
	runner := &stubRunner{summary: pipeline.Summary{
		Strategy: config.DeliveryStorage,
		Uploads: []model.UploadResult{
			{Name: "auction_list_7.pdf", Path: "/Salvato/Auction Lists/auction_list_7.pdf", SharedLink: "https://dl.dropboxusercontent.com/s/x/auction_list_7.pdf"},
		},
	}}
	rec, body := do(t, New(":0", runner, nil, logger.Nop()).Handler(), http.MethodGet, AuctionListPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != true || body["pdfCount"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
	pdfs := body["pdfs"].([]any)
	first := pdfs[0].(map[string]any)
	if first["downloadUrl"] != "https://dl.dropboxusercontent.com/s/x/auction_list_7.pdf" || first["name"] != "auction_list_7.pdf" {
		t.Fatalf("unexpected pdf entry %v", first)
	}
}

func TestEmptyStorageRunReturnsEmptyList(t *testing.T) {
	runner := &stubRunner{summary: pipeline.Summary{Strategy: config.DeliveryStorage}}
	rec, _ := do(t, New(":0", runner, nil, logger.Nop()).Handler(), http.MethodGet, AuctionListPath)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"pdfCount":0,"pdfs":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestWorkflowSuccessResponse(t *testing.T) {
	runner := &stubRunner{summary: pipeline.Summary{
		Strategy:  config.DeliveryWorkflow,
		Responses: []json.RawMessage{json.RawMessage(`{"id":"a"}`), json.RawMessage(`"ok"`)},
	}}
	rec, _ := do(t, New(":0", runner, nil, logger.Nop()).Handler(), http.MethodGet, AuctionListPath)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"data":[{"id":"a"},"ok"]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestFailureResponse(t *testing.T) {
	runner := &stubRunner{err: errors.New("authenticate: salvato auth failed: 401")}
	rec, body := do(t, New(":0", runner, nil, logger.Nop()).Handler(), http.MethodGet, AuctionListPath)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["success"] != false || !strings.Contains(body["error"].(string), "401") {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	runner := &stubRunner{panics: true}
	rec, body := do(t, New(":0", runner, nil, logger.Nop()).Handler(), http.MethodGet, AuctionListPath)
	if rec.Code != http.StatusInternalServerError || body["success"] != false {
		t.Fatalf("expected 500 failure, got %d %v", rec.Code, body)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	h := New(":0", &stubRunner{}, nil, logger.Nop()).Handler()
	if rec, body := do(t, h, http.MethodGet, "/healthz"); rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", rec.Code, body)
	}
	if rec, _ := do(t, h, http.MethodGet, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	rec := history.NewMemory()
	_ = rec.Start(context.Background(), "run-1", config.DeliveryStorage)
	_ = rec.Finish(context.Background(), "run-1", history.Result{Auctions: 1, Delivered: 1})
	h := New(":0", &stubRunner{}, rec, logger.Nop()).Handler()

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	var runs []history.Run
	if err := json.Unmarshal(resp.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Status != history.StatusSucceeded {
		t.Fatalf("unexpected runs %+v", runs)
	}

	if r, _ := do(t, h, http.MethodGet, "/api/runs?limit=0"); r.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", r.Code)
	}

	empty := httptest.NewRecorder()
	New(":0", &stubRunner{}, nil, logger.Nop()).Handler().ServeHTTP(empty, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if strings.TrimSpace(empty.Body.String()) != "[]" {
		t.Fatalf("expected empty list without history, got %s", empty.Body.String())
	}
}
