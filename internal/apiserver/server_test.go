package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpulse/stackpulse/internal/config"
	"github.com/stackpulse/stackpulse/internal/system"
)

func newTestServer(t *testing.T, start bool) (*APIServer, *system.BackgroundSystem) {
	t.Helper()

	cfg := config.NewServerConfig()
	cfg.Probe.Interval = time.Hour
	sys, err := system.NewBackgroundSystem(cfg, nil)
	require.NoError(t, err)
	if start {
		require.NoError(t, sys.Start())
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Close(ctx)
	})

	srv, err := NewAPIServer(cfg, sys)
	require.NoError(t, err)
	return srv, sys
}

func serve(srv *APIServer, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestNewAPIServer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewAPIServer(nil, nil)
	require.Error(t, err)
	_, err = NewAPIServer(config.NewServerConfig(), nil)
	require.Error(t, err)
}

func TestAPIServer_DeploymentLifecycle(t *testing.T) {
	t.Parallel()
	srv, sys := newTestServer(t, false)

	rec := serve(srv, http.MethodPost, APIPrefix+"/deployments/",
		`{"owner_id":"u1","name":"blog","environment":"production","service_urls":{"frontend":"https://blog.example.com"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)

	rec = serve(srv, http.MethodPut, APIPrefix+"/deployments/"+created.ID+"/services/frontend", `{"status":"building"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"building"`)

	rec = serve(srv, http.MethodPost, APIPrefix+"/metrics/"+created.ID, `{"type":"cpu_usage","value":42.5,"unit":"percent"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), sys.Metrics.GetSystemMetrics().SamplesRecorded)

	rec = serve(srv, http.MethodGet, APIPrefix+"/metrics/"+created.ID+"?type=cpu_usage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":42.5`)

	rec = serve(srv, http.MethodDelete, APIPrefix+"/deployments/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIServer_Validation(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"create without name", http.MethodPost, APIPrefix + "/deployments", `{"owner_id":"u1"}`, http.StatusBadRequest},
		{"bad service url", http.MethodPost, APIPrefix + "/deployments", `{"name":"x","service_urls":{"backend":"nope"}}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, APIPrefix + "/deployments/bad$id", "", http.StatusBadRequest},
		{"bad principal", http.MethodGet, APIPrefix + "/auth/a!b/lock", "", http.StatusBadRequest},
		{"unknown endpoint", http.MethodGet, APIPrefix + "/nope", "", http.StatusNotFound},
		{"unknown root", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, APIPrefix+"/deployments", strings.NewReader(`{"name":"x"}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPIServer_SystemHealth(t *testing.T) {
	t.Parallel()

	t.Run("degraded before start", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, false)

		rec := serve(srv, http.MethodGet, config.APIEndpointHealth, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
		components := body["components"].(map[string]interface{})
		assert.Equal(t, "unhealthy", components["dispatcher"].(map[string]interface{})["status"])
		assert.Equal(t, "healthy", components["metric_store"].(map[string]interface{})["status"])
	})

	t.Run("healthy when running", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, true)

		rec := serve(srv, http.MethodGet, config.APIEndpointHealth, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		scheduler := body["scheduler"].(map[string]interface{})
		assert.Equal(t, config.SchedulerEmbedded, scheduler["type"])
		assert.EqualValues(t, config.DefaultWorkers, scheduler["workers"])
	})
}

func TestAPIServer_ReadyAndLive(t *testing.T) {
	t.Parallel()

	t.Run("not ready before start", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, false)

		rec := serve(srv, http.MethodGet, config.APIEndpointReady, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["ready"])
		checks := body["checks"].(map[string]interface{})
		assert.Equal(t, false, checks["dispatcher"])
		assert.Equal(t, true, checks["metric_store"])
	})

	t.Run("ready when running", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, true)

		rec := serve(srv, http.MethodGet, config.APIEndpointReady, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["ready"])
		assert.NotEmpty(t, body["timestamp"])
	})

	t.Run("live regardless of backends", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, false)

		rec := serve(srv, http.MethodGet, config.APIEndpointLive, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["alive"])
		assert.NotEmpty(t, body["uptime"])
	})
}

func TestAPIServer_PrometheusEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, false)

	serve(srv, http.MethodGet, APIPrefix+"/auth/alice/lock", "")

	rec := serve(srv, http.MethodGet, config.APIEndpointMetrics, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/auth/{principal}/lock"`)
}
