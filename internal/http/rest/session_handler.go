package rest

import (
	"errors"
	"net/http"

	"github.com/bwise1/ride_pinpoint/internal/location"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/bwise1/ride_pinpoint/internal/session"
	"github.com/bwise1/ride_pinpoint/util"
	"github.com/bwise1/ride_pinpoint/util/tracing"
	"github.com/bwise1/ride_pinpoint/util/values"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errSuggestionGone = errors.New("suggestion no longer listed")

func (api *API) SessionRoutes() chi.Router {
	mux := chi.NewRouter()

	// browsers cannot set headers on a websocket handshake; the session id
	// is the credential here
	mux.Get("/{id}/ws", api.StreamSession)

	mux.Group(func(r chi.Router) {
		r.Use(RequestTracing)
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.CreateSession))
		r.Method(http.MethodGet, "/{id}", Handler(api.GetSession))
		r.Method(http.MethodDelete, "/{id}", Handler(api.DeleteSession))
		r.Method(http.MethodPost, "/{id}/gps", Handler(api.SetGPS))
		r.Method(http.MethodPost, "/{id}/text", Handler(api.SetText))
		r.Method(http.MethodPost, "/{id}/drag", Handler(api.SetMapDrag))
		r.Method(http.MethodPost, "/{id}/select", Handler(api.SelectSuggestion))
		r.Method(http.MethodPost, "/{id}/custom-pickup", Handler(api.SetCustomPickup))
		r.Method(http.MethodPost, "/{id}/tier", Handler(api.SetServiceTier))
		r.Method(http.MethodPost, "/{id}/focus", Handler(api.SetFocus))
	})

	return mux
}

// Positions are deliberately not range-validated: the controller substitutes
// the fallback for out-of-area fixes and tells the rider.
type PositionRequest struct {
	Field     string  `json:"field" validate:"required,location_field"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type TextRequest struct {
	Field string `json:"field" validate:"required,location_field"`
	Text  string `json:"text"`
}

// SelectRequest picks a listed suggestion by id, or re-applies a known place
// (a recent place) when SuggestionID is empty.
type SelectRequest struct {
	Field        string  `json:"field" validate:"required,location_field"`
	SuggestionID string  `json:"suggestion_id"`
	DisplayText  string  `json:"display_text" validate:"required_without=SuggestionID"`
	FullAddress  string  `json:"full_address"`
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
}

type CustomPickupRequest struct {
	Enabled bool `json:"enabled"`
}

type TierRequest struct {
	Tier string `json:"tier" validate:"required,service_tier"`
}

type FocusRequest struct {
	Field string `json:"field" validate:"required,oneof=pickup destination none"`
}

type SessionResponse struct {
	SessionID  string           `json:"session_id"`
	Projection model.Projection `json:"projection"`
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(values.ContextUserIDKey).(string)
	return id
}

// sessionFor loads the session in the URL and checks the caller owns it.
func (api *API) sessionFor(r *http.Request, tc *tracing.Context) (*session.Session, *ServerResponse) {
	s, err := api.Deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		return nil, respondWithError(err, "session not found", values.NotFound, tc)
	}
	if s.UserID != "" && s.UserID != callerID(r) {
		return nil, respondWithError(errors.New("session owned by another user"), "session not found", values.NotFound, tc)
	}
	return s, nil
}

// projectionResponse answers an applied operation with the resulting projection.
func projectionResponse(s *session.Session, opErr error, message string, tc *tracing.Context) *ServerResponse {
	if opErr != nil {
		switch {
		case errors.Is(opErr, location.ErrClosed):
			return respondWithError(opErr, "session closed", values.Gone, tc)
		case errors.Is(opErr, location.ErrUnknownField), errors.Is(opErr, location.ErrUnknownTier):
			return respondWithError(opErr, opErr.Error(), values.BadRequestBody, tc)
		default:
			return respondWithError(opErr, "unable to apply update", values.Error, tc)
		}
	}

	p, err := s.Controller.Snapshot()
	if err != nil {
		return respondWithError(err, "session closed", values.Gone, tc)
	}
	return &ServerResponse{
		Message:    message,
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       SessionResponse{SessionID: s.ID, Projection: p},
	}
}

func decodeAndValidate(r *http.Request, tc *tracing.Context, target interface{}) *ServerResponse {
	if err := util.DecodeJSONBody(tc, r.Body, target); err != nil {
		return respondWithError(err, "unable to decode request", values.BadRequestBody, tc)
	}
	if err := util.ValidateStruct(target); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, tc)
	}
	return nil
}

func (api *API) CreateSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s := api.Deps.Sessions.Create(callerID(r))
	resp := projectionResponse(s, nil, "Session created successfully", &tc)
	if resp.Status == values.Success {
		resp.Status = values.Created
		resp.StatusCode = util.StatusCode(values.Created)
	}
	return resp
}

func (api *API) GetSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	return projectionResponse(s, nil, "Session retrieved successfully", &tc)
}

func (api *API) DeleteSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	if err := api.Deps.Sessions.Delete(s.ID); err != nil {
		return respondWithError(err, "session not found", values.NotFound, &tc)
	}
	return &ServerResponse{
		Message:    "Session closed successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
	}
}

func (api *API) SetGPS(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req PositionRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	field, _ := model.ParseLocationField(req.Field)
	err := s.Controller.SetFromGPS(field, model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude})
	return projectionResponse(s, err, "GPS fix applied", &tc)
}

func (api *API) SetText(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req TextRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	field, _ := model.ParseLocationField(req.Field)
	err := s.Controller.SetFromUserText(field, req.Text)
	return projectionResponse(s, err, "Text applied", &tc)
}

func (api *API) SetMapDrag(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req PositionRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	field, _ := model.ParseLocationField(req.Field)
	err := s.Controller.SetFromMapDrag(field, model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude})
	return projectionResponse(s, err, "Map position applied", &tc)
}

func (api *API) SelectSuggestion(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req SelectRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}
	field, _ := model.ParseLocationField(req.Field)

	suggestion := model.AddressSuggestion{
		DisplayText: req.DisplayText,
		FullAddress: req.FullAddress,
		Coordinate:  model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
	}
	if req.SuggestionID != "" {
		p, err := s.Controller.Snapshot()
		if err != nil {
			return respondWithError(err, "session closed", values.Gone, &tc)
		}
		found := false
		for _, candidate := range p.Field(field).Suggestions {
			if candidate.ID == req.SuggestionID {
				suggestion, found = candidate, true
				break
			}
		}
		if !found {
			return respondWithError(errSuggestionGone, "suggestion is no longer available", values.Conflict, &tc)
		}
	}

	api.logger().Debug("applying suggestion",
		zap.String("request_id", tc.RequestID),
		zap.String("session_id", s.ID),
		zap.Stringer("field", field),
	)
	err := s.Controller.SelectSuggestion(field, suggestion)
	return projectionResponse(s, err, "Suggestion applied", &tc)
}

func (api *API) SetCustomPickup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req CustomPickupRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	var err error
	if req.Enabled {
		err = s.Controller.EnableCustomPickup()
	} else {
		err = s.Controller.DisableCustomPickup()
	}
	return projectionResponse(s, err, "Custom pickup updated", &tc)
}

func (api *API) SetServiceTier(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req TierRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	tier, _ := model.ParseServiceTier(req.Tier)
	err := s.Controller.SetServiceTier(tier)
	return projectionResponse(s, err, "Service tier updated", &tc)
}

func (api *API) SetFocus(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, errResp := api.sessionFor(r, &tc)
	if errResp != nil {
		return errResp
	}
	var req FocusRequest
	if errResp := decodeAndValidate(r, &tc, &req); errResp != nil {
		return errResp
	}

	field, _ := model.ParseLocationField(req.Field)
	err := s.Controller.Focus(field)
	return projectionResponse(s, err, "Focus updated", &tc)
}

// StreamSession upgrades to a websocket that receives every projection.
func (api *API) StreamSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := api.Deps.Sessions.Get(id)
	if err != nil {
		writeErrorResponse(w, err, values.NotFound, "session not found")
		return
	}
	p, err := s.Controller.Snapshot()
	if err != nil {
		writeErrorResponse(w, err, values.Gone, "session closed")
		return
	}
	api.Deps.Hub.HandleConnections(w, r, s.ID, p, func() {
		if err := api.Deps.Sessions.Touch(s.ID); err != nil {
			api.logger().Debug("ping for closed session", zap.String("session_id", s.ID))
		}
	})
}
