// Package pipeline sequences one generation run: authenticate, list auctions,
// list lots for eligible auctions, project them and hand every payload to the
// delivery strategy on a bounded pool.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/delivery"
	"github.com/dharsanguruparan/auctionlist/internal/history"
	"github.com/dharsanguruparan/auctionlist/internal/model"
	"github.com/dharsanguruparan/auctionlist/internal/processing"
	"github.com/dharsanguruparan/auctionlist/internal/transform"
)

// Source is the upstream auction API.
type Source interface {
	Token(ctx context.Context) (model.Token, error)
	Auctions(ctx context.Context, token string) ([]model.Auction, error)
	Lots(ctx context.Context, auctionID int64, token string) ([]model.Lot, error)
}

// Summary describes a successful run.
type Summary struct {
	RunID     string               `json:"runId"`
	Strategy  string               `json:"strategy"`
	Auctions  int                  `json:"auctions"`
	Eligible  int                  `json:"eligible"`
	Lots      int                  `json:"lots"`
	Uploads   []model.UploadResult `json:"uploads,omitempty"`
	Responses []json.RawMessage    `json:"responses,omitempty"`
	Duration  time.Duration        `json:"duration"`
}

// Delivered is the number of payloads that reached their destination.
func (s Summary) Delivered() int {
	return len(s.Uploads) + len(s.Responses)
}

// Options tunes a Runner.
type Options struct {
	Workers  int
	Timeouts config.Timeouts
	// Recorder, when set, receives the start and end of every run.
	Recorder history.Recorder
}

// Runner executes runs. It keeps no state between runs and is safe for
// concurrent use.
type Runner struct {
	source   Source
	strategy delivery.Strategy
	opts     Options
	log      *zap.SugaredLogger
}

// New constructs a Runner.
func New(source Source, strategy delivery.Strategy, opts Options, log *zap.SugaredLogger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{source: source, strategy: strategy, opts: opts, log: log}
}

// Policy is how failures of sibling deliveries are handled. Storage uploads
// are isolated so one bad render cannot cancel the others; workflow posts
// are all-or-nothing.
func (r *Runner) Policy() processing.Policy {
	if r.strategy.Name() == config.DeliveryWorkflow {
		return processing.AllOrNothing
	}
	return processing.Isolated
}

// Run performs one full run. Any failure fails the run as a whole.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	log := r.log.With("runId", runID, "strategy", r.strategy.Name())
	start := time.Now()

	if r.opts.Recorder != nil {
		if err := r.opts.Recorder.Start(ctx, runID, r.strategy.Name()); err != nil {
			log.Warnw("record run start", "error", err)
		}
	}
	summary, err := r.run(ctx, log)
	summary.RunID = runID
	summary.Strategy = r.strategy.Name()
	summary.Duration = time.Since(start)
	if r.opts.Recorder != nil {
		res := history.Result{Auctions: summary.Eligible, Delivered: summary.Delivered(), Err: err}
		if recErr := r.opts.Recorder.Finish(context.WithoutCancel(ctx), runID, res); recErr != nil {
			log.Warnw("record run finish", "error", recErr)
		}
	}
	if err != nil {
		log.Errorw("run failed", "error", err, "duration", summary.Duration)
		return summary, err
	}
	log.Infow("run finished", "eligible", summary.Eligible, "delivered", summary.Delivered(), "duration", summary.Duration)
	return summary, nil
}

func (r *Runner) run(ctx context.Context, log *zap.SugaredLogger) (Summary, error) {
	var summary Summary
	if err := r.strategy.Ready(); err != nil {
		return summary, err
	}

	log.Debugw("authenticating")
	token, err := withTimeout(ctx, r.opts.Timeouts.Auth, r.source.Token)
	if err != nil {
		return summary, fmt.Errorf("authenticate: %w", err)
	}

	log.Debugw("listing auctions")
	auctions, err := withTimeout(ctx, r.opts.Timeouts.List, func(ctx context.Context) ([]model.Auction, error) {
		return r.source.Auctions(ctx, token.Token)
	})
	if err != nil {
		return summary, fmt.Errorf("list auctions: %w", err)
	}
	summary.Auctions = len(auctions)

	payloads, lots, err := r.collect(ctx, log, auctions, token.Token)
	summary.Eligible = len(payloads)
	summary.Lots = lots
	if err != nil {
		return summary, err
	}
	if len(payloads) == 0 {
		log.Infow("no eligible auctions")
		return summary, nil
	}

	tasks := make([]processing.Task[delivery.Outcome], len(payloads))
	for i, p := range payloads {
		p := p
		tasks[i] = func(ctx context.Context) (delivery.Outcome, error) {
			return r.strategy.Deliver(ctx, p)
		}
	}
	log.Debugw("delivering", "payloads", len(payloads), "workers", r.opts.Workers, "policy", r.Policy().String())
	results, err := processing.Run(ctx, r.opts.Workers, tasks, r.Policy())
	if err != nil {
		return summary, err
	}
	for _, res := range results {
		if res.Value.Upload != nil {
			summary.Uploads = append(summary.Uploads, *res.Value.Upload)
		}
		if res.Value.Response != nil {
			summary.Responses = append(summary.Responses, res.Value.Response)
		}
	}
	return summary, nil
}

// collect fetches lots for eligible auctions one auction at a time, in the
// order the upstream listed them.
func (r *Runner) collect(ctx context.Context, log *zap.SugaredLogger, auctions []model.Auction, token string) ([]model.AuctionPayload, int, error) {
	var (
		payloads []model.AuctionPayload
		total    int
	)
	for _, a := range auctions {
		if !a.Status.Eligible() {
			log.Debugw("skipping auction", "auctionId", a.AuctionID, "status", a.Status)
			continue
		}
		lots, err := withTimeout(ctx, r.opts.Timeouts.List, func(ctx context.Context) ([]model.Lot, error) {
			return r.source.Lots(ctx, a.AuctionID, token)
		})
		if err != nil {
			return payloads, total, fmt.Errorf("list lots for auction %d: %w", a.AuctionID, err)
		}
		log.Infow("lots listed", "auctionId", a.AuctionID, "status", a.Status, "lots", len(lots))
		total += len(lots)
		payloads = append(payloads, transform.Project(a.AuctionID, lots))
	}
	return payloads, total, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}
