package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission_service/config"
	"submission_service/internal/middleware"
	"submission_service/internal/ratelimit"
	"submission_service/internal/service"
	"submission_service/pkg/logging"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageMemory,
		Events:  config.EventsConfig{Channel: config.ChannelLocal},
		RateLimit: config.RateLimitConfig{
			Backend:    config.BackendMemory,
			Student:    ratelimit.DefaultPolicy().Student,
			Instructor: ratelimit.DefaultPolicy().Instructor,
		},
		HTTP: config.HTTPConfig{MaxBodyBytes: 1 << 20},
	}
}

func do(t *testing.T, srv *httptest.Server, method, path string, userID uuid.UUID, role, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, userID.String())
	req.Header.Set(middleware.HeaderUserRole, role)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) service.SubmissionResponse {
	t.Helper()
	var out service.SubmissionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNewApp_MemoryLifecycle(t *testing.T) {
	cfg := memoryConfig()
	cfg.Events.Async = true
	cfg.Events.WorkerPoolSize = 2
	cfg.Events.QueueSize = 10

	a, err := newApp(cfg, logging.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	student := uuid.New()
	instructor := uuid.New()
	project := uuid.New()

	resp := do(t, srv, http.MethodPost, "/submissions", student, "student",
		`{"student_id":"`+student.String()+`","project_id":"`+project.String()+`","content":"answer"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	assert.Equal(t, "DRAFT", string(created.Status))

	resp = do(t, srv, http.MethodPost, "/submissions/"+created.ID.String()+"/submit", student, "student", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/submissions/"+created.ID.String()+"/grade", instructor, "instructor",
		`{"grade":91,"feedback":"solid"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/submissions/"+created.ID.String(), student, "student", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, "GRADED", string(got.Status))
	require.NotNil(t, got.Grade)
	assert.Equal(t, 91, *got.Grade)
	assert.Equal(t, int64(3), got.Version)
}

func TestNewApp_ExposesMetrics(t *testing.T) {
	a, err := newApp(memoryConfig(), logging.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	student := uuid.New()
	resp := do(t, srv, http.MethodGet, "/submissions/"+uuid.New().String(), student, "student", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `submission_operations_total{operation="get",result="not_found"} 1`)
}

func TestApp_CloseRunsInReverse(t *testing.T) {
	var order []int
	a := &app{}
	for i := 0; i < 3; i++ {
		a.closers = append(a.closers, func() error {
			order = append(order, i)
			return nil
		})
	}
	a.Close()
	assert.Equal(t, []int{2, 1, 0}, order)
}
