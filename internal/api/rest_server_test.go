package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
	"github.com/annel0/voxel-core/internal/world/generator"
)

// newTestServer сервер поверх мира с одним сгенерированным чанком (0, -2, 0)
func newTestServer(t *testing.T) (*RestServer, *world.World) {
	t.Helper()
	w := world.New(block.DefaultPack(), generator.DefaultPlanet(3), world.Options{Workers: 2, SaveEvery: time.Hour})
	t.Cleanup(func() { w.Shutdown(context.Background()) })

	q := w.Query(vec.Vec3{Y: -2}, chunk.GenDone)
	require.Eventually(t, func() bool {
		w.Tick(context.Background())
		return q.IsFinished()
	}, 10*time.Second, 5*time.Millisecond)

	rs := NewRestServer(Config{World: w, Registerer: prometheus.NewRegistry()})
	return rs, w
}

func do(t *testing.T, rs *RestServer, method, target, body string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, req)

	var resp GenericResponse
	if strings.HasPrefix(target, "/api") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	rs, _ := newTestServer(t)
	rec, _ := do(t, rs, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestStatsAndChunks(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := do(t, rs, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["world"].(map[string]interface{})["chunks"])
	assert.Contains(t, data["server"], "goroutines")

	rec, resp = do(t, rs, http.MethodGet, "/api/chunks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["total"])
}

func TestPutAndGetBlock(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := do(t, rs, http.MethodPut, "/api/block", `{"x":4,"y":-40,"z":4,"block":"glass"}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	rec, resp = do(t, rs, http.MethodGet, "/api/block?x=4&y=-40&z=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "glass", resp.Data.(map[string]interface{})["name"])

	rec, _ = do(t, rs, http.MethodDelete, "/api/block?x=4&y=-40&z=4", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, resp = do(t, rs, http.MethodGet, "/api/block?x=4&y=-40&z=4", "")
	assert.Equal(t, "none", resp.Data.(map[string]interface{})["name"])
}

func TestBlockErrors(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, _ := do(t, rs, http.MethodGet, "/api/block?x=4&y=abc&z=4", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, rs, http.MethodGet, "/api/block?x=4000&y=0&z=0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "чанк не загружен")

	rec, _ = do(t, rs, http.MethodPut, "/api/block", `{"x":1,"y":-40,"z":1,"block":"unobtainium"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, rs, http.MethodPut, "/api/block", `{"x":1,"y":-40,"z":1,"id":4000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, rs, http.MethodPut, "/api/block", `{"x":1,"y":-40,"z":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "блок не указан")
}

func TestLoadArea(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := do(t, rs, http.MethodPost, "/api/load", `{"x":0,"y":-2,"z":0,"radius":1}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.EqualValues(t, 27, resp.Data.(map[string]interface{})["queued"])

	rec, _ = do(t, rs, http.MethodPost, "/api/load", `{"radius":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rs, _ := newTestServer(t)
	do(t, rs, http.MethodGet, "/health", "")

	rec, _ := do(t, rs, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxel_grid_queries_processed_total")
}
