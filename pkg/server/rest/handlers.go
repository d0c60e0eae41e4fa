package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/lintang-b-s/chroute/pkg/server"
	"github.com/lintang-b-s/chroute/pkg/server/middleware"
	"github.com/lintang-b-s/chroute/pkg/server/rest/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type NavigationService interface {
	ShortestPath(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (service.Route, error)
	AlternativeRoute(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (service.Route, *service.Route, error)
	NearestStreets(ctx context.Context, lat, lon float64) ([]service.NearestStreet, error)
}

type navigationHandler struct {
	svc      NavigationService
	validate *validator.Validate
}

// NewRouter wires the navigation endpoints with request ids, panic recovery,
// CORS and the prometheus middleware.
func NewRouter(svc NavigationService) *chi.Mux {
	handler := &navigationHandler{
		svc:      svc,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/navigation", func(r chi.Router) {
		r.Post("/shortest-path", handler.shortestPath)
		r.Post("/alternative-route", handler.alternativeRoute)
		r.Get("/nearest-streets", handler.nearestStreets)
	})
	return r
}

type routeRequest struct {
	FromLat float64 `json:"from_lat" validate:"required,gte=-90,lte=90"`
	FromLon float64 `json:"from_lon" validate:"required,gte=-180,lte=180"`
	ToLat   float64 `json:"to_lat" validate:"required,gte=-90,lte=90"`
	ToLon   float64 `json:"to_lon" validate:"required,gte=-180,lte=180"`
}

type instructionResponse struct {
	Instruction string `json:"instruction"`
	StreetName  string `json:"street_name,omitempty"`
}

type routeResponse struct {
	EtaMinutes   float64               `json:"eta_minutes"`
	DistanceKm   float64               `json:"distance_km"`
	Polyline     string                `json:"polyline"`
	Instructions []instructionResponse `json:"instructions"`
}

type shortestPathResponse struct {
	Route routeResponse `json:"route"`
}

type alternativeRouteResponse struct {
	Route       routeResponse  `json:"route"`
	Alternative *routeResponse `json:"alternative,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *navigationHandler) decode(w http.ResponseWriter, r *http.Request) (routeRequest, bool) {
	var req routeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request body"})
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return req, false
	}
	return req, true
}

func (h *navigationHandler) shortestPath(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	route, err := h.svc.ShortestPath(r.Context(), req.FromLat, req.FromLon, req.ToLat, req.ToLon)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, shortestPathResponse{Route: toRouteResponse(route)})
}

func (h *navigationHandler) alternativeRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	best, alt, err := h.svc.AlternativeRoute(r.Context(), req.FromLat, req.FromLon, req.ToLat, req.ToLon)
	if err != nil {
		renderError(w, r, err)
		return
	}
	resp := alternativeRouteResponse{Route: toRouteResponse(best)}
	if alt != nil {
		altResp := toRouteResponse(*alt)
		resp.Alternative = &altResp
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

type nearestStreetResponse struct {
	StreetName string  `json:"street_name,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKm float64 `json:"distance_km"`
}

func (h *navigationHandler) nearestStreets(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "lat and lon query params are required"})
		return
	}

	streets, err := h.svc.NearestStreets(r.Context(), lat, lon)
	if err != nil {
		renderError(w, r, err)
		return
	}
	resp := make([]nearestStreetResponse, 0, len(streets))
	for _, st := range streets {
		resp = append(resp, nearestStreetResponse{
			StreetName: st.StreetName,
			Lat:        st.Lat,
			Lon:        st.Lon,
			DistanceKm: st.DistanceKm,
		})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func toRouteResponse(route service.Route) routeResponse {
	resp := routeResponse{
		EtaMinutes:   route.EtaMinutes,
		DistanceKm:   route.DistanceKm,
		Polyline:     route.Polyline,
		Instructions: make([]instructionResponse, 0, len(route.Instructions)),
	}
	for _, ins := range route.Instructions {
		resp.Instructions = append(resp.Instructions, instructionResponse{
			Instruction: ins.Turn.String(),
			StreetName:  ins.StreetName,
		})
	}
	return resp
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch server.CodeOf(err) {
	case server.ErrNotFound:
		status = http.StatusNotFound
	case server.ErrInvalidInput:
		status = http.StatusBadRequest
	case server.ErrCancelled:
		status = http.StatusRequestTimeout
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
