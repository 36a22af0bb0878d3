package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synctools/tracksync/model"
	"github.com/synctools/tracksync/syncer"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	s, err := NewServer(0)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestReportEndpoints(t *testing.T) {
	s, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/report")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()

	report := &syncer.Report{
		ID:          "run-1",
		Destination: model.TRACKER_TYPE_RTC,
		StartedAt:   time.Now(),
		FinishedAt:  time.Now(),
		Total:       2,
	}
	s.Publish(report)

	res, err = http.Get(ts.URL + "/report")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var got syncer.Report
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 2, got.Total)

	res, err = http.Get(ts.URL + "/report/run-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res, err = http.Get(ts.URL + "/report/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "up", body["status"])
}
