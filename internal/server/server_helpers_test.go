package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doRequest(t *testing.T, ts *httptest.Server, method, path, userID string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, status int) map[string]any {
	t.Helper()
	body := decodeBody(t, resp)
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d (%v)", status, resp.StatusCode, body)
	}
	return body
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	body := expectStatus(t, resp, status)
	if body["code"] != code {
		t.Fatalf("expected code %q, got %v", code, body["code"])
	}
	if message, ok := body["error"].(string); !ok || message == "" {
		t.Fatalf("expected error message, got %v", body["error"])
	}
}

func createRoom(t *testing.T, ts *httptest.Server, hostID, name string) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", hostID, map[string]any{
		"host_name": name,
		"avatar":    "🦊",
	})
	body := expectStatus(t, resp, http.StatusCreated)
	code, ok := body["room_code"].(string)
	if !ok || len(code) != roomCodeLength {
		t.Fatalf("expected room code, got %v", body["room_code"])
	}
	return code
}

func joinRoom(t *testing.T, ts *httptest.Server, code, userID, name string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", userID, map[string]any{
		"player_name": name,
		"avatar":      "🐙",
	})
	expectStatus(t, resp, http.StatusOK)
}

func fetchRoom(t *testing.T, ts *httptest.Server, code, userID string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code, userID, nil)
	return expectStatus(t, resp, http.StatusOK)
}

// startTestGame creates a room with three players and starts it.
func startTestGame(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	joinRoom(t, ts, code, "user-cy", "Cy")
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectStatus(t, resp, http.StatusOK)
	return code
}
