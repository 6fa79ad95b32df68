package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func dialWebsocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var message map[string]any
	if err := json.Unmarshal(payload, &message); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
	return message
}

func expectNoWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no websocket message, got %s", payload)
	}
}

// waitForWSMessage reads until a message of the given type and action
// arrives.
func waitForWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration, messageType, action string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		message := readWSMessage(t, conn, time.Until(deadline))
		if message["type"] != messageType {
			continue
		}
		if action != "" && message["action"] != action {
			continue
		}
		return message
	}
	t.Fatalf("timed out waiting for %s/%s", messageType, action)
	return nil
}

func handSizes(t *testing.T, message map[string]any) map[string]int {
	t.Helper()
	data, ok := message["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected room data, got %v", message["data"])
	}
	sizes := make(map[string]int)
	for id, raw := range data["players"].(map[string]any) {
		sizes[id] = len(raw.(map[string]any)["hand"].([]any))
	}
	return sizes
}

func TestRoomWebsocketUnknownRoom(t *testing.T) {
	_, ts := newTestApp(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws/rooms/ZZZZ"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown room")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRoomWebsocketRedactsHands(t *testing.T) {
	_, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	joinRoom(t, ts, code, "user-cy", "Cy")

	benConn := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code+"?user_id=user-ben"))
	spectator := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code))

	sync := readWSMessage(t, benConn, 5*time.Second)
	if sync["type"] != "room_state" || sync["action"] != "sync" {
		t.Fatalf("expected initial sync, got %v/%v", sync["type"], sync["action"])
	}
	readWSMessage(t, spectator, 5*time.Second)

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectStatus(t, resp, http.StatusOK)

	started := waitForWSMessage(t, benConn, 5*time.Second, "room_state", "game_started")
	for id, size := range handSizes(t, started) {
		if id == "user-ben" && size != 7 {
			t.Fatalf("expected ben to see own 7 cards, got %d", size)
		}
		if id != "user-ben" && size != 0 {
			t.Fatalf("expected %s hand hidden from ben, got %d", id, size)
		}
	}

	watched := waitForWSMessage(t, spectator, 5*time.Second, "room_state", "game_started")
	for id, size := range handSizes(t, watched) {
		if size != 0 {
			t.Fatalf("expected spectator to see no hand for %s, got %d", id, size)
		}
	}
}

func TestRoomWebsocketPresence(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")

	host := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code+"?user_id=user-ada"))
	readWSMessage(t, host, 5*time.Second)

	ben := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code+"?user_id=user-ben"))
	readWSMessage(t, ben, 5*time.Second)
	_ = ben.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ben.Close()

	waitForWSMessage(t, host, 5*time.Second, "room_state", "player_left")
	if loadRoom(t, srv, code).Player("user-ben").IsOnline {
		t.Fatalf("expected ben offline after closing the last socket")
	}

	again := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code+"?user_id=user-ben"))
	readWSMessage(t, again, 5*time.Second)
	waitForWSMessage(t, host, 5*time.Second, "room_state", "player_online")
	if !loadRoom(t, srv, code).Player("user-ben").IsOnline {
		t.Fatalf("expected ben online after reconnecting")
	}
}

func TestVideoWebsocketRequiresUser(t *testing.T) {
	_, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws/rooms/"+code+"/video"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a user")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestVideoWebsocketSignals(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	base := "/api/rooms/" + code + "/video"

	// A signal sent before the recipient connects waits in the mailbox.
	resp := doRequest(t, ts, http.MethodPost, base+"/signals", "user-ada", map[string]any{
		"target_user_id": "user-ben",
		"type":           "offer",
	})
	expectStatus(t, resp, http.StatusCreated)

	ben := dialWebsocket(t, wsURL(ts.URL, "/ws/rooms/"+code+"/video?user_id=user-ben"))
	if message := readWSMessage(t, ben, 5*time.Second); message["type"] != "participants_list" {
		t.Fatalf("expected participants list first, got %v", message["type"])
	}
	pending := readWSMessage(t, ben, 5*time.Second)
	if pending["type"] != "signal" {
		t.Fatalf("expected pending signal, got %v", pending["type"])
	}

	if err := ben.WriteJSON(map[string]any{"type": "join", "audio": false}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	joined := waitForWSMessage(t, ben, 5*time.Second, "participants_list", "")
	if got := len(joined["data"].([]any)); got != 1 {
		t.Fatalf("expected ben alone in the call, got %d", got)
	}

	resp = doRequest(t, ts, http.MethodPost, base+"/signals", "user-ada", map[string]any{
		"target_user_id": "user-ben",
		"type":           "ice_candidate",
		"payload":        map[string]any{"candidate": "c1"},
	})
	body := expectStatus(t, resp, http.StatusCreated)
	signalID := body["signal"].(map[string]any)["id"].(string)

	live := waitForWSMessage(t, ben, 5*time.Second, "signal", "")
	if live["data"].(map[string]any)["id"] != signalID {
		t.Fatalf("expected live signal %s, got %v", signalID, live["data"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for !signalDelivered(srv, signalID) {
		if time.Now().After(deadline) {
			t.Fatalf("expected live signal to be marked delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := ben.WriteJSON(map[string]any{"type": "offer", "target_user_id": "user-ben"}); err != nil {
		t.Fatalf("write offer: %v", err)
	}
	failure := waitForWSMessage(t, ben, 5*time.Second, "error", "")
	if failure["action"] != "offer" {
		t.Fatalf("expected error for offer, got %v", failure["action"])
	}
}

func TestVideoWebsocketRejectsNonMember(t *testing.T) {
	_, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws/rooms/"+code+"/video?user_id=user-zed"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail for a user outside the room")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func signalDelivered(srv *Server, id string) bool {
	srv.signals.mu.Lock()
	defer srv.signals.mu.Unlock()
	for _, signal := range srv.signals.signals {
		if signal.ID == id {
			return signal.Delivered
		}
	}
	return false
}

func TestHubDeliverSkipsRemovedAndFullClients(t *testing.T) {
	hub := newWSHub()
	client := &wsClient{topic: roomTopic("ABCD"), userID: "user-ada", send: make(chan []byte, 1)}
	hub.Add(client)

	if !hub.deliver(client, []byte("one")) {
		t.Fatalf("expected first delivery to succeed")
	}
	if hub.deliver(client, []byte("two")) {
		t.Fatalf("expected delivery to a full buffer to be dropped")
	}
	if !hub.hasUser(roomTopic("ABCD"), "user-ada") {
		t.Fatalf("expected user to be registered")
	}

	hub.Remove(client)
	if hub.deliver(client, []byte("three")) {
		t.Fatalf("expected delivery to a removed client to fail")
	}
	if len(hub.clients(roomTopic("ABCD"))) != 0 {
		t.Fatalf("expected empty topic")
	}
	// Removing twice must not close the channel again.
	hub.Remove(client)
}
