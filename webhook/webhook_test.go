package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) NotifyRepositoryChanged(ctx context.Context, name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func TestUpdateHandlerTriggersNotifier(t *testing.T) {
	notifier := &fakeNotifier{}
	handler := NewHandler(notifier, os.Stderr)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(fmt.Sprintf("%s/update/demo", srv.URL), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"demo"}, notifier.calls)
}

func TestUpdateHandlerReportsFailure(t *testing.T) {
	notifier := &fakeNotifier{err: fmt.Errorf("boom")}
	handler := NewHandler(notifier, os.Stderr)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(fmt.Sprintf("%s/update/demo", srv.URL), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUpdateHandlerRejectsOtherMethods(t *testing.T) {
	notifier := &fakeNotifier{}
	handler := NewHandler(notifier, os.Stderr)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("%s/update/demo", srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
