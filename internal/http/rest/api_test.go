package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/ride_pinpoint/config"
	deps "github.com/bwise1/ride_pinpoint/internal/debs"
	"github.com/bwise1/ride_pinpoint/internal/location"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/bwise1/ride_pinpoint/internal/session"
	"github.com/bwise1/ride_pinpoint/util/values"
	"github.com/bwise1/ride_pinpoint/util/websockets"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var (
	parliament = model.Coordinate{Latitude: 45.4236, Longitude: -75.7009}
	rideau     = model.Coordinate{Latitude: 45.4254, Longitude: -75.6920}
)

type stubGeocoder struct{}

func (stubGeocoder) ForwardGeocode(context.Context, string, model.BiasRegion) (model.Coordinate, error) {
	return rideau, nil
}

func (stubGeocoder) ReverseGeocode(context.Context, model.Coordinate) (string, error) {
	return "111 Wellington St", nil
}

type stubSearch struct{}

func (stubSearch) Search(context.Context, string, model.BiasRegion) ([]model.AddressSuggestion, error) {
	return []model.AddressSuggestion{
		{ID: "s1", DisplayText: "Rideau Centre", FullAddress: "50 Rideau St, Ottawa", Coordinate: rideau},
		{ID: "s2", DisplayText: "Rideau Hall", FullAddress: "1 Sussex Dr, Ottawa", Coordinate: model.Coordinate{Latitude: 45.4443, Longitude: -75.6862}},
	}, nil
}

func (stubSearch) Resolve(context.Context, string) (model.Coordinate, error) {
	return rideau, nil
}

type stubRouter struct{}

func (stubRouter) CalculateRoute(context.Context, model.Coordinate, model.Coordinate, string) (model.Route, error) {
	return model.Route{DistanceMeters: 2000, DurationSeconds: 300}, nil
}

type stubRecentPlaces struct {
	mu       sync.Mutex
	recorded []model.AddressSuggestion
	places   []model.RecentPlaceResponse
}

func (s *stubRecentPlaces) RecordSelection(_ context.Context, _ string, _ model.LocationField, sug model.AddressSuggestion, _ model.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, sug)
	return nil
}

func (s *stubRecentPlaces) ListRecent(context.Context, uuid.UUID, int) ([]model.RecentPlaceResponse, error) {
	return s.places, nil
}

func (s *stubRecentPlaces) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recorded)
}

type envelope struct {
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	*httptest.Server
	deps *deps.Dependencies
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	settings := location.DefaultSettings()
	settings.SearchDebounce = 10 * time.Millisecond
	settings.MapDragSettle = 10 * time.Millisecond
	settings.RouteDebounce = 10 * time.Millisecond

	store := &stubRecentPlaces{}
	hub := websockets.NewProjectionHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	d := &deps.Dependencies{
		RecentPlaces: store,
		Hub:          hub,
		Logger:       zap.NewNop(),
		Sessions: session.NewManager(session.Params{
			Geocoder:  stubGeocoder{},
			Search:    stubSearch{},
			Router:    stubRouter{},
			Settings:  settings,
			Publisher: hub,
			Recorder:  store,
		}),
	}
	t.Cleanup(d.Sessions.CloseAll)

	api := &API{Config: &config.Config{JwtSecret: secret}, Deps: d, Logger: zap.NewNop()}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, deps: d}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set(values.HeaderRequestSource, "test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (ts *testServer) create(t *testing.T, token string) string {
	t.Helper()
	status, env := ts.do(t, http.MethodPost, "/sessions", token, nil)
	require.Equal(t, http.StatusCreated, status)
	var sr SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	require.NotEmpty(t, sr.SessionID)
	return sr.SessionID
}

func (ts *testServer) projection(t *testing.T, id string) model.Projection {
	t.Helper()
	s, err := ts.deps.Sessions.Get(id)
	require.NoError(t, err)
	p, err := s.Controller.Snapshot()
	require.NoError(t, err)
	return p
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"typ": "access",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRequestSourceRequired(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := ts.Client().Post(ts.URL+"/sessions", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	status, env := ts.do(t, http.MethodGet, "/sessions/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	var sr SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, model.TierStandard, sr.Projection.ServiceTier)

	status, _ = ts.do(t, http.MethodDelete, "/sessions/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/sessions/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGPSAndEstimate(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	status, _ := ts.do(t, http.MethodPost, "/sessions/"+id+"/gps", "", PositionRequest{
		Field: "pickup", Latitude: parliament.Latitude, Longitude: parliament.Longitude,
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/drag", "", PositionRequest{
		Field: "destination", Latitude: rideau.Latitude, Longitude: rideau.Longitude,
	})
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		p := ts.projection(t, id)
		return p.Pickup.AddressText == "111 Wellington St" && p.Estimate.ShowEstimate
	}, 2*time.Second, 10*time.Millisecond)

	p := ts.projection(t, id)
	assert.Equal(t, "2.0 km", p.Estimate.DistanceFormatted)
	assert.Equal(t, model.OriginGPS, p.Pickup.Origin)
	assert.Equal(t, model.OriginMapDrag, p.Destination.Origin)
}

func TestOutOfAreaGPSUsesFallback(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	status, env := ts.do(t, http.MethodPost, "/sessions/"+id+"/gps", "", PositionRequest{
		Field: "pickup", Latitude: 91, Longitude: 0,
	})
	require.Equal(t, http.StatusOK, status)

	var sr SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, model.OriginFallback, sr.Projection.Pickup.Origin)
	assert.Equal(t, location.MsgInvalidPosition, sr.Projection.Pickup.ErrorMessage)
}

func TestValidation(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"unknown field", "/gps", map[string]interface{}{"field": "stopover", "latitude": 45.4, "longitude": -75.7}},
		{"field none", "/text", TextRequest{Field: "none", Text: "Rideau"}},
		{"unknown tier", "/tier", TierRequest{Tier: "limo"}},
		{"bad focus", "/focus", FocusRequest{Field: "stopover"}},
		{"select latitude", "/select", SelectRequest{Field: "destination", DisplayText: "x", Latitude: 120}},
		{"select without text", "/select", SelectRequest{Field: "destination"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.do(t, http.MethodPost, "/sessions/"+id+tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestSearchThenSelect(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	status, _ := ts.do(t, http.MethodPost, "/sessions/"+id+"/text", "", TextRequest{Field: "destination", Text: "Rideau"})
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		return len(ts.projection(t, id).Destination.Suggestions) == 2
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/select", "", SelectRequest{Field: "destination", SuggestionID: "missing"})
	assert.Equal(t, http.StatusConflict, status)

	status, env := ts.do(t, http.MethodPost, "/sessions/"+id+"/select", "", SelectRequest{Field: "destination", SuggestionID: "s1"})
	require.Equal(t, http.StatusOK, status)

	var sr SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, "Rideau Centre", sr.Projection.Destination.AddressText)
	assert.Equal(t, model.OriginSearchSelection, sr.Projection.Destination.Origin)
	require.NotNil(t, sr.Projection.Destination.Coordinate)
	assert.Equal(t, rideau, *sr.Projection.Destination.Coordinate)
	assert.Empty(t, sr.Projection.Destination.Suggestions)
}

func TestTierAndCustomPickup(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	status, env := ts.do(t, http.MethodPost, "/sessions/"+id+"/tier", "", TierRequest{Tier: "premium"})
	require.Equal(t, http.StatusOK, status)
	var sr SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, model.TierPremium, sr.Projection.ServiceTier)

	status, env = ts.do(t, http.MethodPost, "/sessions/"+id+"/custom-pickup", "", CustomPickupRequest{Enabled: true})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.True(t, sr.Projection.CustomPickup)
	assert.Equal(t, model.FieldPickup, sr.Projection.ActiveField)

	status, env = ts.do(t, http.MethodPost, "/sessions/"+id+"/focus", "", FocusRequest{Field: "none"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, model.FieldNone, sr.Projection.ActiveField)
}

func TestRequireLogin(t *testing.T) {
	ts := newTestServer(t, testSecret)

	status, env := ts.do(t, http.MethodPost, "/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, values.NotAuthorised, env.Status)

	status, _ = ts.do(t, http.MethodPost, "/sessions", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	owner := accessToken(t, uuid.NewString())
	id := ts.create(t, owner)

	status, _ = ts.do(t, http.MethodGet, "/sessions/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/sessions/"+id, accessToken(t, uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSelectionIsRecorded(t *testing.T) {
	ts := newTestServer(t, testSecret)
	token := accessToken(t, uuid.NewString())
	id := ts.create(t, token)

	status, _ := ts.do(t, http.MethodPost, "/sessions/"+id+"/select", token, SelectRequest{
		Field:       "destination",
		DisplayText: "Rideau Centre",
		Latitude:    rideau.Latitude,
		Longitude:   rideau.Longitude,
	})
	require.Equal(t, http.StatusOK, status)

	store := ts.deps.RecentPlaces.(*stubRecentPlaces)
	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRecentPlaces(t *testing.T) {
	ts := newTestServer(t, testSecret)
	store := ts.deps.RecentPlaces.(*stubRecentPlaces)
	store.places = []model.RecentPlaceResponse{{ID: 7, Field: model.FieldDestination, DisplayText: "Rideau Centre"}}

	status, env := ts.do(t, http.MethodGet, "/recent-places?limit=5", accessToken(t, uuid.NewString()), nil)
	require.Equal(t, http.StatusOK, status)

	var places []model.RecentPlaceResponse
	require.NoError(t, json.Unmarshal(env.Data, &places))
	require.Len(t, places, 1)
	assert.Equal(t, "Rideau Centre", places[0].DisplayText)

	status, _ = ts.do(t, http.MethodGet, "/recent-places?limit=-1", accessToken(t, uuid.NewString()), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStreamSession(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.create(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first websockets.Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, websockets.MsgTypeProjection, first.Type)

	status, _ := ts.do(t, http.MethodPost, "/sessions/"+id+"/tier", "", TierRequest{Tier: "economy"})
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg websockets.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Projection != nil && msg.Projection.ServiceTier == model.TierEconomy {
			break
		}
	}
}
