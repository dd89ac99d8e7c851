package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/eodrift/jobtracker/internal/server/handlers"
)

func newTestServer() *Server {
	health := handlers.NewHealthManager("test")
	return New("127.0.0.1", 0, health, prometheus.NewRegistry())
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv := newTestServer()

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code)
		})
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Port(t *testing.T) {
	health := handlers.NewHealthManager("test")
	srv := New("127.0.0.1", 9000, health, prometheus.NewRegistry())
	assert.Equal(t, 9000, srv.Port())
}
