package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brutus5000/bireus/bierrors"
)

func TestHTTPDownloaderRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from server"))
	}))
	defer srv.Close()

	d := NewHTTPDownloader()
	data, err := d.Read(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello from server", string(data))
}

func TestHTTPDownloaderDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "out.bin")
	d := NewHTTPDownloader()
	require.NoError(t, d.Download(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

func TestHTTPDownloaderNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewHTTPDownloader()
	_, err := d.Read(context.Background(), srv.URL)
	require.Error(t, err)

	var dlErr *bierrors.DownloadError
	assert.ErrorAs(t, err, &dlErr)
	assert.Equal(t, srv.URL, dlErr.URL)
}
