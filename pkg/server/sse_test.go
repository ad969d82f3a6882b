package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEClient_FrameFormats(t *testing.T) {
	rec := httptest.NewRecorder()
	c := newSSEClient("abc123", rec, rec)

	require.NoError(t, c.ack())
	require.NoError(t, c.Send([]byte(`{"jsonrpc":"2.0"}`)))
	require.NoError(t, c.Heartbeat())

	body := rec.Body.String()
	assert.Contains(t, body, ": connected abc123\n\n")
	assert.Contains(t, body, "data: {\"jsonrpc\":\"2.0\"}\n\n")
	assert.Contains(t, body, ": heartbeat ")
}

func TestSSEClient_SendAfterCloseFails(t *testing.T) {
	rec := httptest.NewRecorder()
	c := newSSEClient("gone", rec, rec)

	c.Close()
	c.Close() // safe to call twice

	require.Error(t, c.Send([]byte("late")))

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}

func TestSSEClient_CloseExcludesInFlightWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	c := newSSEClient("racy", rec, rec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Send([]byte("x"))
		}()
	}

	c.Close()
	// Once Close returns, the writer is quiescent: every further send
	// fails without touching it.
	require.Error(t, c.Send([]byte("after")))
	wg.Wait()
}

func TestSSEClient_ActivityAdvancesOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	c := newSSEClient("busy", rec, rec)

	before := c.LastActivity()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Heartbeat())
	assert.True(t, c.LastActivity().After(before))
}

// readFrame reads one SSE frame (lines up to the blank separator).
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

func TestHandleSSE_StagedHandshake(t *testing.T) {
	s := newTestServer(t, fixtureModule)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// Connection ack arrives before anything else, as a comment frame.
	ack := readFrame(t, reader)
	assert.True(t, strings.HasPrefix(ack, ": connected "), "got %q", ack)

	// First staged notification.
	frame := readFrame(t, reader)
	require.True(t, strings.HasPrefix(frame, "data: "), "got %q", frame)
	var initialized Notification
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &initialized))
	assert.Equal(t, "2.0", initialized.JSONRPC)
	assert.Equal(t, "notifications/initialized", initialized.Method)

	// Second staged notification carries the tool inventory.
	frame = readFrame(t, reader)
	require.True(t, strings.HasPrefix(frame, "data: "))
	var toolsChanged Notification
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &toolsChanged))
	assert.Equal(t, "notifications/tools_changed", toolsChanged.Method)

	params, ok := toolsChanged.Params.(map[string]interface{})
	require.True(t, ok)
	tools, ok := params["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tools, 2)

	// While subscribed, the client is counted.
	assert.Equal(t, 1, s.Clients())
}

func TestHandleSSE_ClientRemovedOnDisconnect(t *testing.T) {
	s := newTestServer(t, fixtureModule)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	readFrame(t, reader) // ack
	require.Equal(t, 1, s.Clients())

	resp.Body.Close()

	require.Eventually(t, func() bool {
		return s.Clients() == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnected client must be removed from the table")
}

func TestHandleSSE_BroadcastReachesSubscriber(t *testing.T) {
	s := newTestServer(t, fixtureModule)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readFrame(t, reader) // ack
	readFrame(t, reader) // initialized
	readFrame(t, reader) // tools_changed

	// A tool call while subscribed produces a tool_result push.
	rpc := httptest.NewRecorder()
	s.routes().ServeHTTP(rpc, httptest.NewRequest(http.MethodPost, "/jsonrpc",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"circleArea","arguments":{"radius":2}}}`)))
	require.Equal(t, http.StatusOK, rpc.Code)

	frame := readFrame(t, reader)
	require.True(t, strings.HasPrefix(frame, "data: "))

	var push struct {
		Method string `json:"method"`
		Params struct {
			ToolName  string                 `json:"toolName"`
			Arguments map[string]interface{} `json:"arguments"`
			Timestamp int64                  `json:"timestamp"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &push))
	assert.Equal(t, "notifications/tool_result", push.Method)
	assert.Equal(t, "circleArea", push.Params.ToolName)
	assert.EqualValues(t, 2, push.Params.Arguments["radius"])
	assert.Greater(t, push.Params.Timestamp, int64(0))
}
