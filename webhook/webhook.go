// Package webhook implements the HTTP endpoint that triggers a server
// repository update: POST /update/{repository}. Authentication and
// authorization of the call are deliberately not modeled.
package webhook

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/brutus5000/bireus/logctx"
)

// UpdateNotifier is satisfied by a RepositoryManager: it updates the named
// repository and reports whether that succeeded.
type UpdateNotifier interface {
	NotifyRepositoryChanged(ctx context.Context, name string) error
}

// NewHandler returns an http.Handler serving POST /update/{repository},
// wrapped in an access log per request, mirroring the teacher's
// cmd/registry composition of gorilla/mux with
// gorilla/handlers.CombinedLoggingHandler.
func NewHandler(notifier UpdateNotifier, accessLog *os.File) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/update/{repository}", updateHandler(notifier)).Methods(http.MethodPost)

	return handlers.CombinedLoggingHandler(accessLog, router)
}

func updateHandler(notifier UpdateNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["repository"]
		if name == "" {
			http.Error(w, "missing repository name", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		logger := logctx.GetLogger(ctx).WithField("repository", name)

		if err := notifier.NotifyRepositoryChanged(ctx, name); err != nil {
			logger.Errorf("webhook: update failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		logger.Infof("webhook: update triggered")
		w.WriteHeader(http.StatusAccepted)
	}
}
