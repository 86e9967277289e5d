package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bwise1/ride_pinpoint/util"
	"github.com/bwise1/ride_pinpoint/util/tracing"
	"github.com/bwise1/ride_pinpoint/util/values"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (api *API) RecentPlaceRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Route("/", func(r chi.Router) {
		r.Use(RequestTracing)
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/", Handler(api.GetRecentPlaces))
	})

	return mux
}

func (api *API) GetRecentPlaces(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	if api.Deps.RecentPlaces == nil {
		return respondWithError(errors.New("recent places store not configured"), "recent places are unavailable", values.NotFound, &tc)
	}

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "Not authorized", values.NotAuthorised, &tc)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return respondWithError(err, "invalid limit", values.BadRequestBody, &tc)
		}
	}

	places, err := api.Deps.RecentPlaces.ListRecent(r.Context(), userID, limit)
	if err != nil {
		api.logger().Warn("failed to get recent places", zap.String("request_id", tc.RequestID), zap.Error(err))
		return respondWithError(err, "failed to get recent places", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Recent places retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       places,
	}
}
