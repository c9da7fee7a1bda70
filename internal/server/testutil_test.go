package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"

	"tugmath/internal/game"
	"tugmath/internal/game/tugofwar"
	"tugmath/internal/match"
	"tugmath/internal/question"
	"tugmath/internal/session"
	"tugmath/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *session.Manager
}

func setupTestEnv(t *testing.T, opts ...session.Option) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	logger := zaptest.NewLogger(t)

	reg := game.NewRegistry()
	reg.Register(tugofwar.TugOfWar{FeedbackWindow: 20 * time.Millisecond})
	opts = append([]session.Option{session.WithLogger(logger)}, opts...)
	mgr := session.NewManager(reg, store, opts...)

	webFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html><body>test</body></html>")},
	}
	// Websocket handlers can outlive the test, so the server logs nowhere.
	srv := New(reg, mgr, webFS, zap.NewNop())
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		mgr.Close()
		store.Close()
	})

	return &testEnv{ts: ts, mgr: mgr}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func createSessionViaAPI(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Code
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	return createSessionViaAPI(t, ts, fmt.Sprintf(`{"gameType":%q}`, tugofwar.Name))
}

// postAction sends an action through the HTTP shell and returns the status
// code and, on success, the resulting state.
func postAction(t *testing.T, ts *httptest.Server, code, typ string, payload any) (int, statePayload) {
	t.Helper()
	a := map[string]any{"type": typ}
	if payload != nil {
		a["payload"] = payload
	}
	body, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	resp, err := http.Post(ts.URL+"/api/sessions/"+code+"/actions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post action: %v", err)
	}
	defer resp.Body.Close()
	var sp statePayload
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
			t.Fatalf("decode state: %v", err)
		}
	}
	return resp.StatusCode, sp
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsConnect dials a WebSocket, sends a join message, and returns the connection.
// The caller is responsible for closing the connection.
func wsConnect(t *testing.T, ts *httptest.Server, code, displayID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	wsSend(ctx, t, conn, "join", joinPayload{DisplayID: displayID})
	return conn
}

// wsSend marshals and writes a typed message, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg, err := encodeWS(msgType, payload)
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsAction sends an action message.
func wsAction(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	a := game.Action{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal action payload: %v", err)
		}
		a.Payload = raw
	}
	wsSend(ctx, t, conn, "action", actionPayload{Action: a})
}

// readWS reads and unmarshals a single WebSocket message.
func readWS(ctx context.Context, conn *websocket.Conn) (WSMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return WSMessage{}, err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WSMessage{}, err
	}
	return msg, nil
}

// readState reads a WebSocket message and expects it to be a "state" message.
func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) statePayload {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if msg.Type != "state" {
		t.Fatalf("expected state message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var sp statePayload
	if err := json.Unmarshal(msg.Payload, &sp); err != nil {
		t.Fatalf("unmarshal state payload: %v", err)
	}
	return sp
}

// readStateUntil skips state messages until cond holds.
func readStateUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, cond func(match.View) bool) statePayload {
	t.Helper()
	for {
		sp := readState(t, ctx, conn)
		if cond(viewOf(t, sp)) {
			return sp
		}
	}
}

// readError reads a WebSocket message and expects it to be an "error" message.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var ep errorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Message
}

// --- Game helpers ---

// viewOf decodes the generic State of a statePayload into a match view.
func viewOf(t *testing.T, sp statePayload) match.View {
	t.Helper()
	raw, err := json.Marshal(sp.State)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	var v match.View
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	return v
}

// answerOf solves the question shown on a player's panel.
func answerOf(t *testing.T, pv match.PlayerView) int {
	t.Helper()
	op, err := question.ParseOperator(pv.Symbol)
	if err != nil {
		t.Fatalf("parse operator: %v", err)
	}
	return op.Apply(pv.Operand1, pv.Operand2)
}

// answerDigits splits a non-negative answer into digit actions' payloads.
func answerDigits(player, value int) []map[string]int {
	var out []map[string]int
	for _, r := range strconv.Itoa(value) {
		out = append(out, map[string]int{"player": player, "digit": int(r - '0')})
	}
	return out
}

func containsDisplay(displays []string, id string) bool {
	for _, d := range displays {
		if d == id {
			return true
		}
	}
	return false
}
