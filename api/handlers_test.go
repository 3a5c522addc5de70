package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/engine"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/internal/source"
	testhelpers "github.com/gcbaptista/package-search/internal/testing"
	"github.com/gcbaptista/package-search/model"
	"github.com/gcbaptista/package-search/services"
)

func setupTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return testhelpers.CreateTestEngine(t)
}

func setupTestRouter(eng *engine.Engine, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if opts.Jobs == nil {
		opts.Jobs = eng.JobManager()
	}
	SetupRoutes(router, eng, opts)
	return router
}

func readyEngine(t *testing.T, docs ...model.PackageDocument) *engine.Engine {
	t.Helper()
	return testhelpers.CreateReadyEngine(t, docs...)
}

func doRequest(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr), w.Body.String())
	return apiErr
}

func waitForJob(t *testing.T, eng *engine.Engine, jobID string) *model.Job {
	t.Helper()
	return testhelpers.WaitForJobCompletion(t, eng, jobID, testhelpers.DefaultJobPollingOptions())
}

func TestSearchHandler_NotReady(t *testing.T) {
	router := setupTestRouter(setupTestEngine(t), Options{})

	w := doRequest(router, http.MethodGet, "/api/search?q=http", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, ErrorCodeIndexNotReady, decodeError(t, w).Code)
}

func TestSearchHandler_WireContract(t *testing.T) {
	eng := setupTestEngine(t)
	require.NoError(t, eng.AddPackage(model.PackageDocument{Name: "maps"}))
	require.NoError(t, eng.AddPackage(model.PackageDocument{Name: "map"}))
	require.NoError(t, eng.MarkReady(context.Background()))
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/api/search?q=map", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.ElementsMatch(t, []string{"timestamp", "totalCount", "sdkLibraryHits", "packageHits"}, keys(raw))
	assert.JSONEq(t, `[]`, string(raw["sdkLibraryHits"]))
	assert.JSONEq(t, `[{"package":"maps","score":1},{"package":"map","score":1}]`, string(raw["packageHits"]))
	assert.JSONEq(t, `2`, string(raw["totalCount"]))
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSearchHandler_Parameters(t *testing.T) {
	eng := readyEngine(t,
		model.PackageDocument{Name: "http", Description: "http client", Popularity: 0.5, Tags: []string{"platform:web"}},
		model.PackageDocument{Name: "dio", Description: "http client", Popularity: 0.9, Tags: []string{"platform:web", "platform:android"}},
		model.PackageDocument{Name: "old_http", Description: "http", Popularity: 0.99, IsDiscontinued: true},
		model.PackageDocument{Name: "async", Description: "async utilities", Popularity: 0.7},
	)
	router := setupTestRouter(eng, Options{})

	search := func(t *testing.T, target string) services.PackageSearchResult {
		t.Helper()
		w := doRequest(router, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result services.PackageSearchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		return result
	}
	names := func(result services.PackageSearchResult) []string {
		out := make([]string, 0, len(result.PackageHits))
		for _, h := range result.PackageHits {
			out = append(out, h.Package)
		}
		return out
	}

	t.Run("popularity order ranks every package", func(t *testing.T) {
		result := search(t, "/api/search?q=http&order=popularity")
		assert.Equal(t, []string{"dio", "async", "http"}, names(result))
		assert.Equal(t, 0.9, result.PackageHits[0].Score)
	})

	t.Run("no query defaults to popularity", func(t *testing.T) {
		result := search(t, "/api/search")
		assert.Equal(t, []string{"dio", "async", "http"}, names(result))
	})

	t.Run("pagination", func(t *testing.T) {
		result := search(t, "/api/search?order=popularity&offset=1&limit=1")
		assert.Equal(t, 3, result.TotalCount)
		assert.Equal(t, []string{"async"}, names(result))
	})

	t.Run("malformed numbers degrade to defaults", func(t *testing.T) {
		result := search(t, "/api/search?order=popularity&offset=abc&limit=-4")
		assert.Equal(t, 3, result.TotalCount)
		assert.Len(t, result.PackageHits, 3)
	})

	t.Run("repeated and comma separated tags", func(t *testing.T) {
		assert.Equal(t, []string{"dio"}, names(search(t, "/api/search?tag=platform:web&tag=platform:android")))
		assert.Equal(t, []string{"dio"}, names(search(t, "/api/search?tag=platform:web,platform:android")))
	})

	t.Run("discontinued opt-in", func(t *testing.T) {
		result := search(t, "/api/search?q=http&discontinued=true&order=popularity")
		assert.Equal(t, "old_http", result.PackageHits[0].Package)
	})

	t.Run("sdk hits", func(t *testing.T) {
		result := search(t, "/api/search?q=async&limit=1")
		require.Len(t, result.SdkLibraryHits, 1)
		assert.Equal(t, "dart:async", result.SdkLibraryHits[0].Library)
	})
}

func TestAddPackagesHandler(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		body           any
		expectedStatus int
		expectedCode   ErrorCode
	}{
		{
			name:           "single package",
			target:         "/api/packages",
			body:           model.PackageDocument{Name: "http"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "array of packages",
			target:         "/api/packages",
			body:           []model.PackageDocument{{Name: "http"}, {Name: "dio"}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "rebuild requested",
			target:         "/api/packages?rebuild=true",
			body:           []model.PackageDocument{{Name: "http"}},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "invalid JSON",
			target:         "/api/packages",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeInvalidJSON,
		},
		{
			name:           "not an object",
			target:         "/api/packages",
			body:           `"http"`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeInvalidRequest,
		},
		{
			name:           "missing name",
			target:         "/api/packages",
			body:           []model.PackageDocument{{Description: "anonymous"}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
		{
			name:           "empty array",
			target:         "/api/packages",
			body:           []model.PackageDocument{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := setupTestEngine(t)
			router := setupTestRouter(eng, Options{})

			w := doRequest(router, http.MethodPut, tt.target, tt.body)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
				return
			}

			var response map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			if tt.expectedStatus == http.StatusAccepted {
				jobID, _ := response["job_id"].(string)
				require.NotEmpty(t, jobID)
				assert.Equal(t, model.JobStatusCompleted, waitForJob(t, eng, jobID).Status)
				assert.True(t, eng.Ready())
			} else {
				assert.False(t, eng.Ready(), "storing packages does not publish")
			}
		})
	}
}

func TestPackageHandlers(t *testing.T) {
	eng := setupTestEngine(t)
	require.NoError(t, eng.AddPackage(model.PackageDocument{Name: "http", Description: "client"}))
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/api/packages/http", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc model.PackageDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "client", doc.Description)

	w = doRequest(router, http.MethodDelete, "/api/packages/http", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/packages/http", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorCodePackageNotFound, decodeError(t, w).Code)

	w = doRequest(router, http.MethodDelete, "/api/packages/http", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/packages/%20http", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexHandlers(t *testing.T) {
	eng := setupTestEngine(t)
	require.NoError(t, eng.AddPackage(model.PackageDocument{Name: "http"}))
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/api/index/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(router, http.MethodPost, "/api/index/rebuild", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	job := waitForJob(t, eng, response["job_id"].(string))
	assert.Equal(t, model.JobStatusCompleted, job.Status)

	w = doRequest(router, http.MethodGet, "/api/index/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["documents"])

	w = doRequest(router, http.MethodGet, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorCodeJobNotFound, decodeError(t, w).Code)
}

func TestRefreshHandler(t *testing.T) {
	t.Run("no source configured", func(t *testing.T) {
		router := setupTestRouter(setupTestEngine(t), Options{})
		w := doRequest(router, http.MethodPost, "/api/index/refresh", nil)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("file source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"name":"http"},{"name":"dio"}]`), 0o600))

		eng := setupTestEngine(t)
		router := setupTestRouter(eng, Options{Source: source.NewFileSource(path, nil)})

		w := doRequest(router, http.MethodPost, "/api/index/refresh", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

		job := waitForJob(t, eng, response["job_id"].(string))
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, model.JobTypeRefresh, job.Type)
		assert.Equal(t, 2, eng.Snapshot().Len())
	})
}

func TestSettingsHandlers(t *testing.T) {
	eng := readyEngine(t, model.PackageDocument{Name: "flutter_test"})
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings config.SearchSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, config.DefaultPageSize, settings.DefaultLimit)

	t.Run("limits only", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/api/settings", map[string]any{"default_limit": 5})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 5, eng.Settings().DefaultLimit)
	})

	t.Run("sdk registry change rebuilds", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/api/settings", map[string]any{"sdk_libraries": []string{"flutter_test"}})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		waitForJob(t, eng, response["job_id"].(string))
		assert.Equal(t, []string{"flutter_test"}, eng.Snapshot().SdkLibraries)
	})

	t.Run("invalid settings", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/api/settings", map[string]any{"default_limit": 500, "max_limit": 10})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorCodeValidationFailed, decodeError(t, w).Code)
	})

	t.Run("empty update", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/api/settings", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobHandlers(t *testing.T) {
	eng := setupTestEngine(t)
	router := setupTestRouter(eng, Options{})

	jobID, err := eng.RebuildAsync("test")
	require.NoError(t, err)
	waitForJob(t, eng, jobID)

	w := doRequest(router, http.MethodGet, "/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Jobs  []model.Job `json:"jobs"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	w = doRequest(router, http.MethodGet, "/api/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/jobs/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metricsResponse map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metricsResponse))
	assert.Contains(t, metricsResponse, "success_rate")
}

func TestProbes(t *testing.T) {
	eng := setupTestEngine(t)
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, false, health["ready"])

	w = doRequest(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, eng.MarkReady(context.Background()))
	w = doRequest(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware(t *testing.T) {
	t.Run("request id is propagated", func(t *testing.T) {
		router := setupTestRouter(setupTestEngine(t), Options{})

		req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
		assert.Equal(t, "abc-123", decodeError(t, w).RequestID)
	})

	t.Run("request id is generated", func(t *testing.T) {
		router := setupTestRouter(setupTestEngine(t), Options{})
		w := doRequest(router, http.MethodGet, "/health", nil)
		assert.Len(t, w.Header().Get(requestIDHeader), 36)
	})

	t.Run("rate limit exempts probes", func(t *testing.T) {
		router := setupTestRouter(readyEngine(t), Options{RateLimit: 0.001, RateBurst: 1})

		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/search", nil).Code)
		w := doRequest(router, http.MethodGet, "/api/search", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, ErrorCodeRateLimited, decodeError(t, w).Code)
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", nil).Code)
	})

	t.Run("body size limit", func(t *testing.T) {
		router := setupTestRouter(setupTestEngine(t), Options{MaxBodyBytes: 16})
		w := doRequest(router, http.MethodPut, "/api/packages", []model.PackageDocument{{Name: "a-rather-long-package-name"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		router := setupTestRouter(setupTestEngine(t), Options{})
		w := doRequest(router, http.MethodOptions, "/api/search", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	})

	t.Run("prometheus metrics", func(t *testing.T) {
		m := metrics.NewForTest()
		router := setupTestRouter(readyEngine(t), Options{Metrics: m})

		doRequest(router, http.MethodGet, "/api/search?q=x", nil)
		w := doRequest(router, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/api/search",status="200"} 1`)
	})
}

func TestSearchHandler_TextOrder(t *testing.T) {
	eng := readyEngine(t,
		model.PackageDocument{Name: "http", Description: "composable http client"},
		model.PackageDocument{Name: "dio", Description: "http networking"},
		model.PackageDocument{Name: "path"},
	)
	router := setupTestRouter(eng, Options{})

	w := doRequest(router, http.MethodGet, "/api/search?q=http+client&order=relevance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result services.PackageSearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, []services.PackageHit{
		{Package: "http", Score: 1.0},
		{Package: "dio", Score: 0.5},
	}, result.PackageHits)
}
