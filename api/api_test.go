package api_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/coil-toolchain/api"
	"github.com/lookbusy1344/coil-toolchain/coil"
)

const helloSource = `
VAL DEFV int8 buf 72
VAL DEFV int8 buf1 105
VAL DEFV int8 buf2 10
CF SYSC 1 1 &buf 3
CF EXIT 0
`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.NewServerWithVersion(0, "test", "abc123", "today").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPI_Version(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/version")
	require.NoError(t, err)
	got := decode[api.VersionResponse](t, resp)

	assert.Equal(t, "test", got.Version)
	assert.Equal(t, "abc123", got.Commit)
}

func TestAPI_AssembleText(t *testing.T) {
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/assemble", api.AssembleRequest{Source: "CF EXIT 0\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.AssembleResponse](t, resp)

	assert.True(t, got.Success)
	assert.Equal(t, 1, got.Records)
	assert.Contains(t, got.Text, "0505")
}

func TestAPI_AssembleBinary(t *testing.T) {
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/assemble", api.AssembleRequest{Source: "CF EXIT 0\n", Binary: true})
	got := decode[api.AssembleResponse](t, resp)

	require.True(t, got.Success)
	data, err := base64.StdEncoding.DecodeString(got.Binary)
	require.NoError(t, err)
	assert.Len(t, data, coil.InstructionSize)
	assert.Equal(t, coil.MarkerInstruction, data[0])
}

func TestAPI_AssembleErrors(t *testing.T) {
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/assemble", api.AssembleRequest{Source: "CF JMP nowhere\n"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[api.AssembleResponse](t, resp)

	assert.False(t, got.Success)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, strings.Join(got.Errors, "\n"), "undefined label")
}

func TestAPI_Run(t *testing.T) {
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/api/run", api.RunRequest{Source: helloSource})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.RunResponse](t, resp)

	assert.True(t, got.Success)
	assert.Equal(t, "Hi\n", got.Output)
	assert.Equal(t, int32(0), got.ExitCode)
	assert.Equal(t, "halted", got.State)
}

func TestAPI_RunRuntimeError(t *testing.T) {
	srv := testServer(t)

	source := "VAL DEFV int64 z 0\nVAL DEFV int64 x 1\nMATH DIV q x z\nCF EXIT 0\n"
	resp := postJSON(t, srv.URL+"/api/run", api.RunRequest{Source: source})
	got := decode[api.RunResponse](t, resp)

	assert.False(t, got.Success)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[0], "division by zero")
	assert.Equal(t, "error", got.State)
}

func TestAPI_RunCycleLimit(t *testing.T) {
	srv := testServer(t)

	source := "CF LABEL spin\nCF JMP spin\n"
	resp := postJSON(t, srv.URL+"/api/run", api.RunRequest{Source: source, MaxCycles: 50})
	got := decode[api.RunResponse](t, resp)

	assert.False(t, got.Success)
	assert.Contains(t, got.Errors[0], "cycle limit")
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/assemble")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPI_RunStream(t *testing.T) {
	srv := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/run"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	defer func() {
		_ = conn.Close()
	}()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"source": helloSource}))

	var steps int
	var sawOutput, sawHalt bool
	var exitCode int32

	for {
		var event api.ExecutionEvent
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		switch event.Type {
		case "step":
			steps++
		case "output":
			sawOutput = true
			assert.Equal(t, "Hi\n", event.Output)
		case "halted":
			sawHalt = true
			exitCode = event.ExitCode
		case "error":
			t.Fatalf("unexpected error event: %s", event.Error)
		}
		if sawHalt {
			break
		}
	}

	assert.Equal(t, 5, steps)
	assert.True(t, sawOutput)
	assert.True(t, sawHalt)
	assert.Equal(t, int32(0), exitCode)
}

func TestAPI_RunStreamAssembleError(t *testing.T) {
	srv := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/run"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	defer func() {
		_ = conn.Close()
	}()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"source": "BOGUS LINE\n"}))

	var event api.ExecutionEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "error", event.Type)
	assert.NotEmpty(t, event.Error)
}
