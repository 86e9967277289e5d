package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/ride_pinpoint/config"
	deps "github.com/bwise1/ride_pinpoint/internal/debs"
	"github.com/bwise1/ride_pinpoint/util/tracing"
	"github.com/bwise1/ride_pinpoint/util/values"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultIdleTimeout  = time.Minute
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	if resp == nil {
		// the handler already wrote the response (websocket upgrade)
		return
	}
	if resp.RequestID == "" {
		if tc, ok := r.Context().Value(values.ContextTracingKey).(tracing.Context); ok {
			resp.RequestID = tc.RequestID
		}
	}
	if resp.Err != nil {
		zap.L().Info("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", r.URL.Path),
			zap.String("status", resp.Status),
			zap.Error(resp.Err),
		)
	}
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
	Logger *zap.Logger
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		Handler:      api.Routes(),
	}
	return api.Server.ListenAndServe()
}

// Routes returns the full router; exported for tests.
func (api *API) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Mount("/sessions", api.SessionRoutes())
	mux.Mount("/recent-places", api.RecentPlaceRoutes())

	return mux
}

func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	return api.Server.Shutdown(ctx)
}
