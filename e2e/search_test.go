package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForStatus polls the status endpoint until the job reaches want.
func waitForStatus(t *testing.T, ta *testApp, jobID, want string) map[string]interface{} {
	t.Helper()

	var last map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := doRequest(ta.app, http.MethodGet, "/api/search/status/"+jobID, "")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		last = parseJSON(t, resp)
		return last["status"] == want
	}, 5*time.Second, 20*time.Millisecond, "job %s never reached %s (last: %v)", jobID, want, last)

	return last
}

func TestSearch_FullLifecycle(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/search/start",
		`{"queries":["coffee in Atlantis","coffee in Austin"],"radius":300}`)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusAccepted)

	started := parseJSON(t, resp)
	assert.Equal(t, "pending", started["status"])
	jobID, _ := started["jobId"].(string)
	require.NotEmpty(t, jobID)

	status := waitForStatus(t, ta, jobID, "completed")

	// b2 shares b's phone number
	assert.EqualValues(t, 3, status["totalResults"])
	assert.EqualValues(t, 1, status["failedQueries"])
	assert.NotNil(t, status["completedAt"])

	progress, ok := status["progress"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, progress["completed"])
	assert.EqualValues(t, 2, progress["total"])

	records, err := ta.businesses.ListByJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, "Austin", rec.City)
		assert.Equal(t, "TX", rec.State)
		assert.Equal(t, "USA", rec.Country)
	}

	assert.EqualValues(t, 1, ta.google.nearbyCalls.Load(), "a 300 m radius fits in one cell")
	assert.EqualValues(t, 1, ta.google.pageCalls.Load())
}

func TestSearch_StartInvalidBody(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/search/start", `{"queries":["tea"],"radius":99999}`)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
}

func TestSearch_StatusNotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/search/status/does-not-exist", "")
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestSearch_UnknownRoute(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/nope", "")
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusNotFound)

	body := parseJSON(t, resp)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}
