package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"
	"github.com/lintang-b-s/chroute/pkg/server/rest/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigationService struct {
	route service.Route
	alt   *service.Route
	err   error
}

func (f *fakeNavigationService) ShortestPath(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (service.Route, error) {
	return f.route, f.err
}

func (f *fakeNavigationService) AlternativeRoute(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (service.Route, *service.Route, error) {
	return f.route, f.alt, f.err
}

func (f *fakeNavigationService) NearestStreets(ctx context.Context, lat, lon float64) ([]service.NearestStreet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []service.NearestStreet{{StreetName: "jalan veteran", Lat: lat, Lon: lon}}, nil
}

func validBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]float64{
		"from_lat": -7.55, "from_lon": 110.83,
		"to_lat": -7.56, "to_lon": 110.82,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestShortestPathHandler(t *testing.T) {
	svc := &fakeNavigationService{
		route: service.Route{
			Weight:     100,
			EtaMinutes: 1.0,
			DistanceKm: 0.5,
			Polyline:   "abc",
			Instructions: []service.Instruction{
				{Turn: datastructure.TurnRight, StreetName: "jalan slamet riyadi"},
			},
		},
	}
	router := NewRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigation/shortest-path", validBody(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp shortestPathResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.Route.Polyline)
	require.Len(t, resp.Route.Instructions, 1)
	assert.Equal(t, "TurnRight", resp.Route.Instructions[0].Instruction)
}

func TestShortestPathHandlerBadRequest(t *testing.T) {
	router := NewRouter(&fakeNavigationService{})

	body := bytes.NewBufferString(`{"from_lat": 200, "from_lon": 0, "to_lat": 0, "to_lon": 0}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigation/shortest-path", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShortestPathHandlerNotFound(t *testing.T) {
	svc := &fakeNavigationService{err: server.NewErrorf(server.ErrNotFound, "no route")}
	router := NewRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigation/shortest-path", validBody(t)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlternativeRouteHandler(t *testing.T) {
	alt := service.Route{Weight: 108, EtaMinutes: 1.1, Polyline: "xyz"}
	svc := &fakeNavigationService{
		route: service.Route{Weight: 100, EtaMinutes: 1.0, Polyline: "abc"},
		alt:   &alt,
	}
	router := NewRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigation/alternative-route", validBody(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp alternativeRouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.Route.Polyline)
	require.NotNil(t, resp.Alternative)
	assert.Equal(t, "xyz", resp.Alternative.Polyline)
}

func TestNearestStreetsHandler(t *testing.T) {
	router := NewRouter(&fakeNavigationService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/navigation/nearest-streets?lat=-7.55&lon=110.83", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []nearestStreetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "jalan veteran", resp[0].StreetName)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/navigation/nearest-streets?lat=oops", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
