package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/roach88/intellitodo/internal/config"
)

// BackupPath is the well-known location of the backup on the remote.
const BackupPath = "/intellitodo_backup.json"

const webdavTimeout = 30 * time.Second

// Remote is a file store that can hold the backup.
type Remote interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

// WebDAVRemote is a Remote on a WebDAV server.
//
// The underlying client does not take a context, so cancellation is only
// checked before each request.
type WebDAVRemote struct {
	client *gowebdav.Client
}

// NewWebDAVRemote creates a remote for the server in cfg.
// Returns a *config.MissingError if the URL is not set.
func NewWebDAVRemote(cfg config.WebDAV) (*WebDAVRemote, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	c.SetTimeout(webdavTimeout)
	return &WebDAVRemote{client: c}, nil
}

// Exists reports whether path is present. A 404 is not an error.
func (r *WebDAVRemote) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := r.client.Stat(path); err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Read returns the content of path.
func (r *WebDAVRemote) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.client.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Write creates or overwrites path.
func (r *WebDAVRemote) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.client.Write(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
