package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the post routes behind metrics and authentication.
func NewRouter(handler *HTTPHandler, authenticator *Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(authenticator.Middleware)

	handler.Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}
