package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/sharing"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

func writeLocal(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "auction_list_1.pdf")
	if err := os.WriteFile(p, pdfBytes, 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}
	return p
}

func TestNewRequiresCredentials(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Storage
		want string
	}{
		{"dropbox without token", config.Storage{Backend: config.BackendDropbox}, "DROPBOX_ACCESS_TOKEN"},
		{"s3 without settings", config.Storage{Backend: config.BackendS3, S3Bucket: "b"}, "S3_ACCESS_KEY, S3_ENDPOINT, S3_SECRET_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.cfg, time.Second, zap.NewNop().Sugar())
			if !errors.Is(err, config.ErrMissing) {
				t.Fatalf("expected ErrMissing, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not name %s", err, tc.want)
			}
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	log := zap.NewNop().Sugar()
	s, err := New(context.Background(), config.Storage{Backend: config.BackendMemory}, time.Second, log)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}
	s, err = New(context.Background(), config.Storage{Backend: config.BackendDropbox, DropboxToken: "tok"}, time.Second, log)
	if err != nil {
		t.Fatalf("dropbox: %v", err)
	}
	if _, ok := s.(*Dropbox); !ok {
		t.Fatalf("expected *Dropbox, got %T", s)
	}
	if _, err := New(context.Background(), config.Storage{Backend: "ftp"}, time.Second, log); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestMemoryUploadOverwrites(t *testing.T) {
	m := NewMemory()
	local := writeLocal(t)
	res, err := m.Upload(context.Background(), local, "/Salvato/Auction Lists/a.pdf")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Name != "a.pdf" || res.SharedLink != "memory:///Salvato/Auction Lists/a.pdf" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := os.WriteFile(local, []byte("%PDF-1.4 second"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := m.Upload(context.Background(), local, "/Salvato/Auction Lists/a.pdf"); err != nil {
		t.Fatalf("second upload: %v", err)
	}
	obj, err := m.Get("/Salvato/Auction Lists/a.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Data) != "%PDF-1.4 second" {
		t.Fatalf("expected overwrite, got %q", obj.Data)
	}
	if got := m.Paths(); len(got) != 1 {
		t.Fatalf("expected one object, got %v", got)
	}
	if _, err := m.Get("/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeDropboxLink(t *testing.T) {
	cases := map[string]string{
		"https://www.dropbox.com/s/abc/list.pdf?dl=0":              "https://dl.dropboxusercontent.com/s/abc/list.pdf",
		"https://www.dropbox.com/scl/fi/xyz/list.pdf?rlkey=k&dl=0": "https://dl.dropboxusercontent.com/scl/fi/xyz/list.pdf?rlkey=k",
		"https://dl.dropboxusercontent.com/s/abc/list.pdf":         "https://dl.dropboxusercontent.com/s/abc/list.pdf",
		"https://www.dropbox.com/s/abc/list.pdf?dl=1":              "https://dl.dropboxusercontent.com/s/abc/list.pdf?dl=1",
	}
	for in, want := range cases {
		if got := NormalizeDropboxLink(in); got != want {
			t.Errorf("NormalizeDropboxLink(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeFiles struct {
	mu      sync.Mutex
	uploads map[string][]byte
	modes   []string
	err     error
	// block, when set, stalls every upload until it is closed.
	block chan struct{}
}

func (f *fakeFiles) Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[arg.Path] = data
	f.modes = append(f.modes, arg.Mode.Tag)
	meta := &files.FileMetadata{}
	meta.PathDisplay = arg.Path
	meta.Name = filepath.Base(arg.Path)
	return meta, nil
}

type fakeSharing struct {
	createErr error
	created   string
	listed    []sharing.IsSharedLinkMetadata
	listCalls int
}

func (f *fakeSharing) CreateSharedLinkWithSettings(arg *sharing.CreateSharedLinkWithSettingsArg) (sharing.IsSharedLinkMetadata, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	link := &sharing.FileLinkMetadata{}
	link.Url = f.created
	return link, nil
}

func (f *fakeSharing) ListSharedLinks(arg *sharing.ListSharedLinksArg) (*sharing.ListSharedLinksResult, error) {
	f.listCalls++
	return &sharing.ListSharedLinksResult{Links: f.listed}, nil
}

func alreadyExists() error {
	return sharing.CreateSharedLinkWithSettingsAPIError{
		APIError: dropbox.APIError{ErrorSummary: "shared_link_already_exists/.."},
		EndpointError: &sharing.CreateSharedLinkWithSettingsError{
			Tagged: dropbox.Tagged{Tag: sharing.CreateSharedLinkWithSettingsErrorSharedLinkAlreadyExists},
		},
	}
}

func TestDropboxUploadCreatesLink(t *testing.T) {
	fs := &fakeFiles{}
	sh := &fakeSharing{created: "https://www.dropbox.com/s/abc/auction_list_1.pdf?dl=0"}
	d := &Dropbox{files: fs, sharing: sh, log: zap.NewNop().Sugar()}

	res, err := d.Upload(context.Background(), writeLocal(t), "/Salvato/Auction Lists/auction_list_1.pdf")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.SharedLink != "https://dl.dropboxusercontent.com/s/abc/auction_list_1.pdf" {
		t.Fatalf("unexpected link %q", res.SharedLink)
	}
	if res.Name != "auction_list_1.pdf" || res.Path != "/Salvato/Auction Lists/auction_list_1.pdf" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(fs.modes) != 1 || fs.modes[0] != files.WriteModeOverwrite {
		t.Fatalf("expected overwrite mode, got %v", fs.modes)
	}
	if string(fs.uploads["/Salvato/Auction Lists/auction_list_1.pdf"]) != string(pdfBytes) {
		t.Fatalf("uploaded bytes differ")
	}
	if sh.listCalls != 0 {
		t.Fatalf("did not expect a list call")
	}
}

func TestDropboxReusesExistingLink(t *testing.T) {
	existing := &sharing.FileLinkMetadata{}
	existing.Url = "https://www.dropbox.com/s/old/auction_list_1.pdf?dl=0"
	sh := &fakeSharing{createErr: alreadyExists(), listed: []sharing.IsSharedLinkMetadata{existing}}
	d := &Dropbox{files: &fakeFiles{}, sharing: sh, log: zap.NewNop().Sugar()}

	res, err := d.Upload(context.Background(), writeLocal(t), "/x/auction_list_1.pdf")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.SharedLink != "https://dl.dropboxusercontent.com/s/old/auction_list_1.pdf" {
		t.Fatalf("unexpected link %q", res.SharedLink)
	}
	if sh.listCalls != 1 {
		t.Fatalf("expected one list call, got %d", sh.listCalls)
	}
}

func TestDropboxExistingLinkMissing(t *testing.T) {
	sh := &fakeSharing{createErr: alreadyExists()}
	d := &Dropbox{files: &fakeFiles{}, sharing: sh, log: zap.NewNop().Sugar()}

	if _, err := d.Upload(context.Background(), writeLocal(t), "/x/a.pdf"); !errors.Is(err, ErrNoSharedLink) {
		t.Fatalf("expected ErrNoSharedLink, got %v", err)
	}
}

func TestDropboxErrors(t *testing.T) {
	d := &Dropbox{files: &fakeFiles{err: errors.New("insufficient_space")}, sharing: &fakeSharing{}, log: zap.NewNop().Sugar()}
	if _, err := d.Upload(context.Background(), writeLocal(t), "/x/a.pdf"); err == nil || !strings.Contains(err.Error(), "insufficient_space") {
		t.Fatalf("expected upload error, got %v", err)
	}

	d = &Dropbox{files: &fakeFiles{}, sharing: &fakeSharing{createErr: errors.New("email_not_verified")}, log: zap.NewNop().Sugar()}
	if _, err := d.Upload(context.Background(), writeLocal(t), "/x/a.pdf"); err == nil || !strings.Contains(err.Error(), "email_not_verified") {
		t.Fatalf("expected shared link error, got %v", err)
	}
}

func TestDropboxUploadHonorsDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	sh := &fakeSharing{created: "https://www.dropbox.com/s/abc/a.pdf?dl=0"}
	d := &Dropbox{files: &fakeFiles{block: block}, sharing: sh, log: zap.NewNop().Sugar()}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.Upload(ctx, writeLocal(t), "/x/a.pdf")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("upload returned after %s", elapsed)
	}
	if sh.listCalls != 0 {
		t.Fatalf("shared link must not be requested after a stalled upload")
	}
}

// fakeS3 answers the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+parts[1]] = data
		f.types[bucket+"/"+parts[1]] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestS3UploadPresigns(t *testing.T) {
	fake, srv := newFakeS3(t)
	cfg := config.Storage{
		Backend:     config.BackendS3,
		S3Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		S3AccessKey: "access",
		S3SecretKey: "secret",
		S3Bucket:    "auction-lists",
		S3Region:    "us-east-1",
		LinkTTL:     time.Hour,
	}
	store, err := New(context.Background(), cfg, time.Second, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	if !fake.buckets["auction-lists"] {
		t.Fatalf("expected bucket to be created")
	}

	res, err := store.Upload(context.Background(), writeLocal(t), "/Salvato/auction_list_1.pdf")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	key := "auction-lists/Salvato/auction_list_1.pdf"
	if string(fake.objects[key]) != string(pdfBytes) {
		t.Fatalf("object not stored, have %v", fake.objects)
	}
	if fake.types[key] != "application/pdf" {
		t.Fatalf("unexpected content type %q", fake.types[key])
	}
	if res.Name != "auction_list_1.pdf" || res.Path != "/Salvato/auction_list_1.pdf" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.SharedLink, "/auction-lists/Salvato/auction_list_1.pdf") ||
		!strings.Contains(res.SharedLink, "X-Amz-Expires=3600") {
		t.Fatalf("unexpected presigned link %q", res.SharedLink)
	}
}
