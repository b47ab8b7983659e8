// Package history records one row per pipeline run so operators can see when
// lists were generated and why a run failed.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one pipeline invocation.
type Run struct {
	ID           string     `json:"id"`
	Strategy     string     `json:"strategy"`
	Status       Status     `json:"status"`
	Auctions     int        `json:"auctions"`
	Delivered    int        `json:"delivered"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Result closes a run.
type Result struct {
	Auctions  int
	Delivered int
	Err       error
}

// Recorder persists runs.
type Recorder interface {
	Start(ctx context.Context, id, strategy string) error
	Finish(ctx context.Context, id string, res Result) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// Memory is a Recorder kept in process, used when no database is configured.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemory constructs an empty Memory recorder.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*Run)}
}

func (m *Memory) Start(_ context.Context, id, strategy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = &Run{ID: id, Strategy: strategy, Status: StatusRunning, StartedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) Finish(_ context.Context, id string, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Auctions = res.Auctions
	run.Delivered = res.Delivered
	run.Status = StatusSucceeded
	if res.Err != nil {
		msg := res.Err.Error()
		run.Status = StatusFailed
		run.ErrorMessage = &msg
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
