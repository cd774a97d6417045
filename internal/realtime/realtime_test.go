package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"futureslab/internal/workshop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWebsocketURL(t *testing.T) {
	got, err := websocketURL("https://abc.supabase.co", "anon")
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "/realtime/v1/websocket", u.Path)
	assert.Equal(t, "anon", u.Query().Get("apikey"))
	assert.Equal(t, "1.0.0", u.Query().Get("vsn"))

	got, err = websocketURL("http://localhost:54321/", "k")
	require.NoError(t, err)
	assert.Contains(t, got, "ws://localhost:54321/realtime/v1/websocket?")

	_, err = websocketURL("ftp://nope", "k")
	assert.Error(t, err)
}

func TestDecodeChange(t *testing.T) {
	step := `{"data":{"table":"sessions","type":"UPDATE","record":{"id":"s1","current_step":6,"status":"active","code":"ALL-ABCD"}}}`
	ev, ok, err := decodeChange("s1", []byte(step))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workshop.StepChanged{SessionID: "s1", Step: workshop.StepNotSoDistant, Status: workshop.StatusActive}, ev)

	output := `{"data":{"table":"session_outputs","type":"INSERT","record":{"id":"o1","session_id":"s1","step_name":"near_future","content":"2040"}}}`
	ev, ok, err = decodeChange("s1", []byte(output))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workshop.OutputChanged{SessionID: "s1", StepName: "near_future", Content: "2040"}, ev)

	_, ok, err = decodeChange("s2", []byte(output))
	require.NoError(t, err)
	assert.False(t, ok, "other session")

	deleted := `{"data":{"table":"session_outputs","type":"DELETE","record":null}}`
	_, ok, err = decodeChange("s1", []byte(deleted))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = decodeChange("s1", []byte(`{"data":`))
	assert.Error(t, err)
}

func TestJoinMessage(t *testing.T) {
	m := joinMessage("s1", "anon", "1")
	assert.Equal(t, "realtime:session-s1", m.Topic)
	assert.Equal(t, "phx_join", m.Event)

	var p joinPayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	require.Len(t, p.Config.PostgresChanges, 2)
	assert.Equal(t, "id=eq.s1", p.Config.PostgresChanges[0].Filter)
	assert.Equal(t, "session_outputs", p.Config.PostgresChanges[1].Table)
	assert.Equal(t, "anon", p.AccessToken)
}

func TestSubscribeStreamsEvents(t *testing.T) {
	joined := make(chan message, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join message
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joined <- join

		frames := []string{
			`{"topic":"realtime:session-s1","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`,
			`{"topic":"realtime:session-s1","event":"postgres_changes","payload":{"data":{"table":"session_outputs","type":"INSERT","record":{"session_id":"s1","step_name":"distant_future","content":"story"}}},"ref":null}`,
			`{"topic":"realtime:session-s1","event":"postgres_changes","payload":{"data":{"table":"sessions","type":"UPDATE","record":{"id":"s1","current_step":5,"status":"active"}}},"ref":null}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", WithHeartbeat(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Subscribe(ctx, "s1")
	require.NoError(t, err)

	select {
	case join := <-joined:
		assert.Equal(t, "phx_join", join.Event)
		assert.Equal(t, Topic("s1"), join.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw a join")
	}

	var got []workshop.Event
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	assert.Equal(t, workshop.OutputChanged{SessionID: "s1", StepName: "distant_future", Content: "story"}, got[0])
	assert.Equal(t, workshop.StepChanged{SessionID: "s1", Step: workshop.StepDistantFuture, Status: workshop.StatusActive}, got[1])

	cancel()
	for range events {
	}
}
