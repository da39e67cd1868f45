package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpi-service/internal/auth"
	"kpi-service/internal/http/middleware"
	"kpi-service/internal/kpi"
	"kpi-service/internal/model"
	"kpi-service/internal/service"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	orders   map[string]int64
	riders   map[string]int64
	pings    []model.RiderPing
	err      error
	readyErr error
}

func (s *stubStore) OrderCountsByZone(context.Context, model.Window) (map[string]int64, error) {
	return s.orders, s.err
}

func (s *stubStore) DistinctRidersByZone(context.Context, model.Window) (map[string]int64, error) {
	return s.riders, s.err
}

func (s *stubStore) OrderCountsByZoneMinute(context.Context, model.Window) ([]model.ZoneBucketCount, error) {
	return nil, s.err
}

func (s *stubStore) DistinctRidersByZoneMinute(context.Context, model.Window) ([]model.ZoneBucketCount, error) {
	return nil, s.err
}

func (s *stubStore) Pings(context.Context, model.Window) ([]model.RiderPing, error) {
	return s.pings, s.err
}

func (s *stubStore) RiderPings(_ context.Context, riderID string, _ model.Window) ([]model.RiderPing, error) {
	var out []model.RiderPing
	for _, p := range s.pings {
		if p.RiderID == riderID {
			out = append(out, p)
		}
	}
	return out, s.err
}

func (s *stubStore) DistinctRiderIDs(context.Context, model.Window) ([]string, error) {
	return nil, s.err
}

func (s *stubStore) Ready(context.Context) error {
	return s.readyErr
}

func newTestRouter(store *stubStore, authMiddleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	kpis := service.NewKPIService(store, service.Windows{
		Realtime:    5 * time.Minute,
		Utilization: 15 * time.Minute,
		Trend:       time.Hour,
		History:     24 * time.Hour,
		Surge:       10 * time.Minute,
	}, kpi.DefaultParams(), func() time.Time { return testNow })
	return NewRouter(NewHandler(kpis, zerolog.Nop()), authMiddleware, store, "test")
}

func get(r http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSupplyGapEnvelope(t *testing.T) {
	store := &stubStore{
		orders: map[string]int64{"Z1": 5, "Z2": 1},
		riders: map[string]int64{"Z1": 1, "Z2": 3},
	}
	rec := get(newTestRouter(store, nil), "/kpi/supply-gap")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []model.SupplyGap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "Z1", body.Data[0].ZoneID)
	assert.Equal(t, int64(4), body.Data[0].Gap)
	assert.Equal(t, 5.0, body.Data[0].Pressure)
	assert.Equal(t, int64(-2), body.Data[1].Gap)
}

func TestEmptyResultIsEmptyArray(t *testing.T) {
	rec := get(newTestRouter(&stubStore{}, nil), "/kpi/riders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestRouteParameters(t *testing.T) {
	store := &stubStore{pings: []model.RiderPing{
		{ID: 1, RiderID: "r1", ZoneID: "Z1", Lat: 0, Lon: 0, Timestamp: testNow.Add(-20 * time.Second)},
		{ID: 2, RiderID: "r1", ZoneID: "Z1", Lat: 0.001, Lon: 0, Timestamp: testNow.Add(-10 * time.Second)},
	}}
	r := newTestRouter(store, nil)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"defaults", "/kpi/riders/r1/route", http.StatusOK},
		{"explicit bounds", "/kpi/riders/r1/route?from=2024-05-01T11:00:00Z&to=2024-05-01T12:00:00Z", http.StatusOK},
		{"bad from", "/kpi/riders/r1/route?from=yesterday", http.StatusBadRequest},
		{"inverted bounds", "/kpi/riders/r1/route?from=2024-05-01T12:00:00Z&to=2024-05-01T11:00:00Z", http.StatusBadRequest},
		{"blank rider", "/kpi/riders/%20/route", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(r, tt.path)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestRouteBody(t *testing.T) {
	store := &stubStore{pings: []model.RiderPing{
		{ID: 1, RiderID: "r1", Lat: 0, Lon: 0, Timestamp: testNow.Add(-20 * time.Second)},
		{ID: 2, RiderID: "r1", Lat: 0.001, Lon: 0, Timestamp: testNow.Add(-10 * time.Second)},
	}}
	rec := get(newTestRouter(store, nil), "/kpi/riders/r1/route")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []model.RoutePoint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Zero(t, body.Data[0].DistanceFromPrev)
	assert.Equal(t, 111.32, body.Data[1].DistanceFromPrev)
	assert.Equal(t, 11.13, body.Data[1].SpeedMps)
}

func TestStoreFailureIsServiceUnavailable(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	rec := get(newTestRouter(store, nil), "/kpi/surge")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"event store unavailable"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newTestRouter(&stubStore{}, nil), "/healthz").Code)

	down := &stubStore{readyErr: errors.New("down")}
	assert.Equal(t, http.StatusServiceUnavailable, get(newTestRouter(down, nil), "/healthz").Code)
}

func TestAuthRequired(t *testing.T) {
	const secret = "test-secret"
	r := newTestRouter(&stubStore{}, middleware.Auth(auth.NewParser(secret)))

	assert.Equal(t, http.StatusUnauthorized, get(r, "/kpi/top-zones").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/kpi/top-zones", "Authorization", "Bearer nope").Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: "dispatcher",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, "/kpi/top-zones", "Authorization", "Bearer "+token).Code)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}
