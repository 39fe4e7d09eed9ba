// Package transport defines the download-service contract the patch
// pipeline depends on, plus a stdlib net/http implementation, mirroring the
// teacher's registry/client/transport split between a narrow interface
// core packages consume and a concrete HTTP reader wired in at the edges.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/brutus5000/bireus/bierrors"
)

// Downloader is the capability set the patch pipeline depends on: streaming
// a remote resource to disk, and reading one into memory. No retry,
// redirect, or authentication policy is mandated here — those are
// orthogonal transport concerns left to the concrete implementation.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
	Read(ctx context.Context, url string) ([]byte, error)
}

// HTTPDownloader is the out-of-the-box Downloader, backed by net/http. It is
// not a dependency of the core packages themselves (client.Repository
// and patchtask.Task accept any Downloader) — only the CLI entrypoints wire
// this concrete type in.
type HTTPDownloader struct {
	Client *http.Client
}

// NewHTTPDownloader returns an HTTPDownloader using http.DefaultClient.
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{Client: http.DefaultClient}
}

func (d *HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// Download streams the resource at url to destPath, creating parent
// directories as needed.
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string) error {
	body, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return &bierrors.DownloadError{Cause: err, URL: url}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return &bierrors.DownloadError{Cause: err, URL: url}
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return &bierrors.DownloadError{Cause: err, URL: url}
	}

	return nil
}

// Read fetches url and returns its body in full.
func (d *HTTPDownloader) Read(ctx context.Context, url string) ([]byte, error) {
	body, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &bierrors.DownloadError{Cause: err, URL: url}
	}
	return data, nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &bierrors.DownloadError{Cause: err, URL: url}
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, &bierrors.DownloadError{Cause: err, URL: url}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &bierrors.DownloadError{
			Cause: fmt.Errorf("unexpected status %s", resp.Status),
			URL:   url,
		}
	}

	return resp.Body, nil
}
