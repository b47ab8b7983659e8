package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// Object is a document held by the Memory store.
type Object struct {
	Path       string
	Data       []byte
	UploadedAt time.Time
}

// Memory keeps uploads in process. Links use the memory:// scheme, so they
// only mean something to code holding the same *Memory (tests, the CLI's
// local runs). Contents vanish when the process exits.
type Memory struct {
	// mu guards objects. Uploads from the render pool arrive concurrently,
	// while Get and Paths only read, hence the RWMutex.
	mu      sync.RWMutex
	objects map[string]*Object
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*Object)}
}

// Upload copies the local file into the store, replacing any previous
// object at remotePath. The file is read fully before the lock is taken so
// a slow disk never blocks readers.
func (m *Memory) Upload(ctx context.Context, localPath, remotePath string) (model.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return model.UploadResult{}, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("read upload source: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[remotePath] = &Object{Path: remotePath, Data: data, UploadedAt: time.Now().UTC()}
	return model.UploadResult{
		Name:       path.Base(remotePath),
		Path:       remotePath,
		SharedLink: "memory://" + remotePath,
	}, nil
}

// Get returns a copy of the object stored at remotePath.
func (m *Memory) Get(remotePath string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[remotePath]
	if !ok {
		return nil, ErrNotFound
	}
	// Callers get their own byte slice; mutating it must not change the
	// stored object.
	cp := *obj
	cp.Data = append([]byte(nil), obj.Data...)
	return &cp, nil
}

// Paths lists stored paths in lexical order.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
