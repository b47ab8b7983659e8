package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/sharing"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/model"
)

const (
	dropboxWebHost    = "www.dropbox.com"
	dropboxDirectHost = "dl.dropboxusercontent.com"
)

// ErrNoSharedLink is returned when Dropbox reports an existing shared link
// for a path but lists none.
var ErrNoSharedLink = errors.New("no shared link found")

type dropboxFiles interface {
	Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error)
}

type dropboxSharing interface {
	CreateSharedLinkWithSettings(arg *sharing.CreateSharedLinkWithSettingsArg) (sharing.IsSharedLinkMetadata, error)
	ListSharedLinks(arg *sharing.ListSharedLinksArg) (*sharing.ListSharedLinksResult, error)
}

// Dropbox uploads documents to a Dropbox account and returns direct-download
// links.
type Dropbox struct {
	files   dropboxFiles
	sharing dropboxSharing
	log     *zap.SugaredLogger
}

// NewDropbox builds a Dropbox store authorized by an access token. The SDK
// calls take no context, so timeout also caps every HTTP request the SDK
// makes; zero leaves requests unbounded.
func NewDropbox(token string, timeout time.Duration, log *zap.SugaredLogger) *Dropbox {
	cfg := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
		Client:   &http.Client{Timeout: timeout},
	}
	return &Dropbox{files: files.New(cfg), sharing: sharing.New(cfg), log: log}
}

type callResult[T any] struct {
	val T
	err error
}

// withContext runs an SDK call and stops waiting for it once ctx is done.
// The call itself keeps running until the HTTP client gives up on it.
func withContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	done := make(chan callResult[T], 1)
	go func() {
		v, err := call()
		done <- callResult[T]{val: v, err: err}
	}()
	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Upload writes the file in overwrite mode and shares it publicly. When the
// path already has a shared link it is reused.
func (d *Dropbox) Upload(ctx context.Context, localPath, remotePath string) (model.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return model.UploadResult{}, err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	arg := files.NewUploadArg(remotePath)
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
	meta, err := withContext(ctx, func() (*files.FileMetadata, error) {
		return d.files.Upload(arg, f)
	})
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("dropbox upload: %w", err)
	}
	uploaded := remotePath
	if meta != nil && meta.PathDisplay != "" {
		uploaded = meta.PathDisplay
	}

	link, err := d.sharedLink(ctx, uploaded)
	if err != nil {
		return model.UploadResult{}, err
	}
	return model.UploadResult{
		Name:       path.Base(uploaded),
		Path:       uploaded,
		SharedLink: NormalizeDropboxLink(link),
	}, nil
}

func (d *Dropbox) sharedLink(ctx context.Context, p string) (string, error) {
	arg := sharing.NewCreateSharedLinkWithSettingsArg(p)
	arg.Settings = &sharing.SharedLinkSettings{
		RequestedVisibility: &sharing.RequestedVisibility{Tagged: dropbox.Tagged{Tag: sharing.RequestedVisibilityPublic}},
	}
	res, err := withContext(ctx, func() (sharing.IsSharedLinkMetadata, error) {
		return d.sharing.CreateSharedLinkWithSettings(arg)
	})
	if err == nil {
		return linkURL(res), nil
	}
	if !linkAlreadyExists(err) {
		return "", fmt.Errorf("dropbox create shared link: %w", err)
	}
	d.log.Debugw("reusing existing shared link", "path", p)

	list := sharing.NewListSharedLinksArg()
	list.Path = p
	list.DirectOnly = true
	existing, err := withContext(ctx, func() (*sharing.ListSharedLinksResult, error) {
		return d.sharing.ListSharedLinks(list)
	})
	if err != nil {
		return "", fmt.Errorf("dropbox list shared links: %w", err)
	}
	if existing != nil {
		for _, l := range existing.Links {
			if u := linkURL(l); u != "" {
				return u, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoSharedLink, p)
}

func linkAlreadyExists(err error) bool {
	var apiErr sharing.CreateSharedLinkWithSettingsAPIError
	if errors.As(err, &apiErr) && apiErr.EndpointError != nil &&
		apiErr.EndpointError.Tag == sharing.CreateSharedLinkWithSettingsErrorSharedLinkAlreadyExists {
		return true
	}
	var apiErrPtr *sharing.CreateSharedLinkWithSettingsAPIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.EndpointError != nil &&
		apiErrPtr.EndpointError.Tag == sharing.CreateSharedLinkWithSettingsErrorSharedLinkAlreadyExists {
		return true
	}
	return strings.Contains(err.Error(), sharing.CreateSharedLinkWithSettingsErrorSharedLinkAlreadyExists)
}

func linkURL(m sharing.IsSharedLinkMetadata) string {
	switch v := m.(type) {
	case *sharing.FileLinkMetadata:
		return v.Url
	case *sharing.FolderLinkMetadata:
		return v.Url
	case *sharing.SharedLinkMetadata:
		return v.Url
	}
	return ""
}

// NormalizeDropboxLink turns a Dropbox preview link into a direct-download
// link: the host becomes dl.dropboxusercontent.com and dl=0 is dropped.
func NormalizeDropboxLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if u.Host == dropboxWebHost {
		u.Host = dropboxDirectHost
	}
	q := u.Query()
	if q.Get("dl") == "0" {
		q.Del("dl")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
