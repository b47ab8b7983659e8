// Package salvatotest provides an in-process stand-in for the Salvato API so
// client, pipeline and handler tests can count upstream calls.
package salvatotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/dharsanguruparan/auctionlist/internal/model"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	Token        = "test-token"
)

// Upstream is a fake auction API. Fields may be changed before the first request.
type Upstream struct {
	Server *httptest.Server

	// TokenStatus, when non-zero, is returned by the token endpoint instead of a token.
	TokenStatus int
	// AuctionsStatus, when non-zero, is returned by the auction list endpoint.
	AuctionsStatus int
	// LotsStatus, when non-zero, is returned by every lot page request.
	LotsStatus int
	Auctions   []model.Auction
	Lots       map[int64][]model.Lot
	// ReportTotal overrides the total reported for a lot page.
	ReportTotal func(auctionID int64, offset int) int
	// PageLimit caps the records served per page regardless of the requested limit.
	PageLimit int

	mu    sync.Mutex
	calls map[string]int
}

// NewUpstream starts the fake and registers its shutdown with t.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()
	u := &Upstream{
		Lots:  make(map[int64][]model.Lot),
		calls: make(map[string]int),
	}
	r := mux.NewRouter()
	r.HandleFunc("/auth/token", u.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/auctions", u.handleAuctions).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}/lots", u.handleLots).Methods(http.MethodGet)
	u.Server = httptest.NewServer(r)
	t.Cleanup(u.Server.Close)
	return u
}

// URL is the base URL to configure the client with.
func (u *Upstream) URL() string {
	return u.Server.URL
}

// Calls returns how many requests hit an endpoint key: "token", "auctions"
// or "lots:<auctionID>".
func (u *Upstream) Calls(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[key]
}

// TotalCalls returns the number of requests served so far.
func (u *Upstream) TotalCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		n += c
	}
	return n
}

func (u *Upstream) record(key string) {
	u.mu.Lock()
	u.calls[key]++
	u.mu.Unlock()
}

func (u *Upstream) handleToken(w http.ResponseWriter, r *http.Request) {
	u.record("token")
	if u.TokenStatus != 0 {
		writeJSON(w, u.TokenStatus, map[string]string{"error": "unauthorized"})
		return
	}
	var body struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ClientID != ClientID || body.ClientSecret != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, model.Token{Token: Token, ExpiresIn: 3600})
}

func (u *Upstream) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer"})
		return false
	}
	return true
}

func (u *Upstream) handleAuctions(w http.ResponseWriter, r *http.Request) {
	u.record("auctions")
	if !u.authorized(w, r) {
		return
	}
	if u.AuctionsStatus != 0 {
		writeJSON(w, u.AuctionsStatus, map[string]string{"error": "boom"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       u.Auctions,
		"pagination": model.Pagination{Limit: len(u.Auctions), Offset: 0, Total: len(u.Auctions)},
	})
}

func (u *Upstream) handleLots(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	u.record(fmt.Sprintf("lots:%d", id))
	if !u.authorized(w, r) {
		return
	}
	if u.LotsStatus != 0 {
		writeJSON(w, u.LotsStatus, map[string]string{"error": "boom"})
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if u.PageLimit > 0 && (limit == 0 || limit > u.PageLimit) {
		limit = u.PageLimit
	}
	all := u.Lots[id]
	start, end := min(offset, len(all)), min(offset+limit, len(all))
	total := len(all)
	if u.ReportTotal != nil {
		total = u.ReportTotal(id, offset)
	}
	page := all[start:end]
	if page == nil {
		page = []model.Lot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       page,
		"pagination": model.Pagination{Limit: limit, Offset: offset, Total: total},
	})
}

// MakeLots builds n lots for an auction. Every lot carries one image and the
// same start/end dates except that lot i gets a distinct id, make and odometer.
func MakeLots(auctionID int64, n int) []model.Lot {
	lots := make([]model.Lot, n)
	for i := range lots {
		odo := int64(10000 + i*1500)
		lots[i] = model.Lot{
			ID:              auctionID*1000 + int64(i),
			AuctionID:       auctionID,
			Status:          model.StatusInProgress,
			StartDate:       fmt.Sprintf("2026-10-%02dT15:00:00Z", 20+i%5),
			EndDate:         fmt.Sprintf("2026-10-%02dT18:00:00Z", 21+i%5),
			State:           "TX",
			City:            "Dallas",
			Year:            2015 + i%8,
			Make:            fmt.Sprintf("Make%d", i),
			Model:           "Model",
			OdometerReading: &odo,
			StartCode:       "RUNS_AND_DRIVES",
			HasKeys:         "YES",
			LotImagesDetails: model.LotImagesDetails{
				ImgCount: 1,
				LotImages: []model.LotImage{{
					Sequence: 1,
					Category: "exterior",
					Link:     []model.ImageLink{{URL: fmt.Sprintf("https://img.test/%d.jpg", i), IsThumbNail: true}},
				}},
			},
		}
	}
	return lots
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
