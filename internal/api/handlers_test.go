package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/stride/internal/source"
)

type fakeController struct {
	mu       sync.Mutex
	tracking bool
	steps    int64
	goal     int64
	startErr error
	stepsErr error
}

func (f *fakeController) StartTracking(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.tracking = true
	return nil
}

func (f *fakeController) StopTracking() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = false
	return nil
}

func (f *fakeController) Tracking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking
}

func (f *fakeController) CurrentSteps() (int64, error) { return f.steps, f.stepsErr }
func (f *fakeController) Goal() (int64, error)         { return f.goal, nil }

func newTestServer(t *testing.T, ctl Controller) *httptest.Server {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	h := NewHandler(ctl, logger)
	h.now = func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.Local) }
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(h.Logging(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetSteps(t *testing.T) {
	ctl := &fakeController{steps: 342, goal: 10000, tracking: true}
	srv := newTestServer(t, ctl)

	resp, err := http.Get(srv.URL + "/v1/steps")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var v StepsView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, StepsView{Date: "2024-01-05", Steps: 342, Goal: 10000, Tracking: true}, v)
}

func TestGetStepsError(t *testing.T) {
	ctl := &fakeController{stepsErr: errors.New("database is locked")}
	srv := newTestServer(t, ctl)

	resp, err := http.Get(srv.URL + "/v1/steps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "server_error", body.Error.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeController{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/v1/steps"},
		{http.MethodGet, "/v1/tracking/start"},
		{http.MethodGet, "/v1/tracking/stop"},
	} {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeController{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientStartStop(t *testing.T) {
	ctl := &fakeController{steps: 12, goal: 8000}
	srv := newTestServer(t, ctl)
	c := NewClient(srv.URL)
	ctx := context.Background()

	v, err := c.Start(ctx)
	require.NoError(t, err)
	assert.True(t, v.Tracking)

	sv, err := c.Steps(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), sv.Steps)
	assert.Equal(t, int64(8000), sv.Goal)
	assert.True(t, sv.Tracking)

	v, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, v.Tracking)
}

func TestClientSourceUnavailable(t *testing.T) {
	ctl := &fakeController{startErr: fmt.Errorf("start tracking: %w", source.ErrUnavailable)}
	srv := newTestServer(t, ctl)

	_, err := NewClient(srv.URL).Start(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "source_unavailable", apiErr.Code)
	assert.False(t, ctl.Tracking())
}

func TestNewClientAddress(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:7420", NewClient("127.0.0.1:7420").BaseURL)
	assert.Equal(t, "https://steps.local", NewClient("https://steps.local/").BaseURL)
}
