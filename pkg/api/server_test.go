// Unit tests for the coating host API server
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coating-host/pkg/config"
	"coating-host/pkg/history"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	settings := config.DefaultSettings()
	settings.Server.DataDir = dir

	store, err := history.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s, err := New(Config{Settings: settings, History: store})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func outlineProject() map[string]any {
	return map[string]any{
		"name":     "test panel",
		"workArea": map[string]any{"width": 800, "height": 600},
		"shapes": []map[string]any{
			{"id": "s1", "type": "rectangle", "x": 0, "y": 0,
				"width": 100, "height": 50, "coatingType": "outline"},
		},
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeResult(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	result, _ := payload["result"].(map[string]any)
	return result
}

func TestGenerateEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/generate", outlineProject())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResult(t, resp)

	assert.Equal(t, history.StatusCompleted, result["status"])
	assert.NotEmpty(t, result["runId"])
	assert.EqualValues(t, 1, result["shapeCount"])

	programFile, _ := result["programFile"].(string)
	require.NotEmpty(t, programFile)
	gcode, err := s.Programs().Read(programFile)
	require.NoError(t, err)
	assert.Contains(t, gcode, "G1")
	assert.Contains(t, gcode, "M503")
}

func TestGenerateRecordsHistory(t *testing.T) {
	s, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/generate", outlineProject())
	result := decodeResult(t, resp)
	runID, _ := result["runId"].(string)
	require.NotEmpty(t, runID)

	rec, err := s.history.Get(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusCompleted, rec.Status)
	assert.Equal(t, "test panel", rec.ProjectName)
	assert.Positive(t, rec.MoveCount)
	assert.Positive(t, rec.ProgramBytes)
}

func TestGenerateNothingToCoatIsSoft(t *testing.T) {
	s, ts := newTestServer(t)

	proj := map[string]any{
		"name": "masks only",
		"shapes": []map[string]any{
			{"id": "m1", "type": "rectangle", "x": 0, "y": 0,
				"width": 10, "height": 10, "coatingType": "masking"},
		},
	}
	resp := postJSON(t, ts.URL+"/api/generate", proj)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResult(t, resp)
	assert.Equal(t, history.StatusEmpty, result["status"])

	runID, _ := result["runId"].(string)
	rec, err := s.history.Get(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusEmpty, rec.Status)
}

func TestGenerateMalformedBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		strings.NewReader(`{"shapes": [`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	errObj, _ := payload["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "PROJECT_PARSE", errObj["code"])
}

func TestGenerateRejectsGet(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/generate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestProgramsListDownloadDelete(t *testing.T) {
	s, ts := newTestServer(t)
	_, err := s.Programs().Save("panel.gcode", "G0 F3000 X0.000 Y0.000\n")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/programs")
	require.NoError(t, err)
	result := decodeResult(t, resp)

	programs, _ := result["programs"].([]any)
	require.Len(t, programs, 1)
	usage, _ := result["disk_usage"].(map[string]any)
	require.NotNil(t, usage)
	assert.Positive(t, usage["total"].(float64))

	resp, err = http.Get(ts.URL + "/api/programs/download?name=panel.gcode")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "G0 F3000 X0.000 Y0.000\n", string(body))

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/programs?name=panel.gcode", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, err := s.Programs().List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHistoryEndpoints(t *testing.T) {
	s, ts := newTestServer(t)
	ctx := t.Context()

	rec, err := s.history.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.history.FinishRun(ctx, rec.ID, history.StatusCompleted, 2, 20, 512, ""))

	resp, err := http.Get(ts.URL + "/api/history")
	require.NoError(t, err)
	result := decodeResult(t, resp)
	assert.EqualValues(t, 1, result["count"])

	resp, err = http.Get(ts.URL + "/api/history/totals")
	require.NoError(t, err)
	result = decodeResult(t, resp)
	totals, _ := result["totals"].(map[string]any)
	require.NotNil(t, totals)
	assert.EqualValues(t, 1, totals["totalRuns"])

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/history?uid="+rec.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	runs, err := s.history.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInfoEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/info")
	require.NoError(t, err)
	result := decodeResult(t, resp)

	assert.Equal(t, Version, result["software_version"])
	process, _ := result["process"].(map[string]any)
	require.NotNil(t, process)
	assert.EqualValues(t, config.DefaultMoveSpeed, process["move_speed"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "coating_go_goroutines")
}

func TestWebsocketProgressNotifications(t *testing.T) {
	_, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello notification
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "notify_host_ready", hello.Method)

	resp := postJSON(t, ts.URL+"/api/generate", outlineProject())
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sawProgress := false
	sawDone := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !sawDone {
		var msg notification
		conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Method {
		case "notify_progress":
			sawProgress = true
		case "notify_generation_done":
			sawDone = true
		}
	}
	assert.True(t, sawProgress, "expected at least one notify_progress")
	assert.True(t, sawDone, "expected notify_generation_done")
}
