package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"cards-chaos/internal/game"
)

func nonCzars(room *game.Room) []*game.Player {
	players := make([]*game.Player, 0, len(room.Players))
	for i := range room.Players {
		if room.Players[i].UserID != room.CzarID {
			players = append(players, &room.Players[i])
		}
	}
	return players
}

func TestCreateJoinStartFlow(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")

	body := fetchRoom(t, ts, code, "user-ada")
	if body["status"] != string(game.StatusWaiting) {
		t.Fatalf("expected WAITING, got %v", body["status"])
	}
	if body["packId"] != testPackID {
		t.Fatalf("expected default pack, got %v", body["packId"])
	}

	joinRoom(t, ts, code, "user-ben", "Ben")
	joinRoom(t, ts, code, "user-cy", "Cy")

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	body = expectStatus(t, resp, http.StatusOK)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}

	room := loadRoom(t, srv, code)
	if room.Status != game.StatusPlaying || room.Phase != game.PhaseSubmission {
		t.Fatalf("expected PLAYING/SUBMISSION, got %s/%s", room.Status, room.Phase)
	}
	if room.CurrentRound != 1 {
		t.Fatalf("expected round 1, got %d", room.CurrentRound)
	}
	if room.Player(room.CzarID) == nil {
		t.Fatalf("expected czar to be a player, got %q", room.CzarID)
	}
	for _, player := range room.Players {
		if len(player.Hand) != 7 {
			t.Fatalf("expected 7 cards for %s, got %d", player.UserID, len(player.Hand))
		}
	}
	if room.RoundExpiresAt == nil {
		t.Fatalf("expected round deadline")
	}
}

func TestStartGameRejections(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectError(t, resp, http.StatusBadRequest, "not_enough_players")

	joinRoom(t, ts, code, "user-cy", "Cy")
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ben", nil)
	expectError(t, resp, http.StatusForbidden, "not_host")

	if room := loadRoom(t, srv, code); room.Status != game.StatusWaiting {
		t.Fatalf("expected rejected start to leave room waiting, got %s", room.Status)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectStatus(t, resp, http.StatusOK)
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectError(t, resp, http.StatusBadRequest, "already_started")
}

func TestStartGameWithoutCards(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	joinRoom(t, ts, code, "user-cy", "Cy")

	if _, err := srv.catalog.TogglePack(t.Context(), testPackID); err != nil {
		t.Fatalf("toggle pack: %v", err)
	}

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectError(t, resp, http.StatusBadRequest, "no_cards_for_pack")
	if room := loadRoom(t, srv, code); room.Status != game.StatusWaiting || len(room.Players[0].Hand) != 0 {
		t.Fatalf("expected untouched room, got status=%s hand=%d", room.Status, len(room.Players[0].Hand))
	}
}

func TestSubmitCardRules(t *testing.T) {
	srv, ts := newTestApp(t)
	code := startTestGame(t, ts)
	room := loadRoom(t, srv, code)
	path := "/api/rooms/" + code + "/submit"

	czar := room.Player(room.CzarID)
	resp := doRequest(t, ts, http.MethodPost, path, czar.UserID, map[string]any{"card": czar.Hand[0]})
	expectError(t, resp, http.StatusForbidden, "czar_forbidden")

	players := nonCzars(room)
	first := players[0]
	resp = doRequest(t, ts, http.MethodPost, path, first.UserID, map[string]any{"card": "Not a real card"})
	expectError(t, resp, http.StatusBadRequest, "card_not_held")

	resp = doRequest(t, ts, http.MethodPost, path, first.UserID, map[string]any{"card": first.Hand[0]})
	expectStatus(t, resp, http.StatusOK)

	resp = doRequest(t, ts, http.MethodPost, path, first.UserID, map[string]any{"card": first.Hand[1]})
	expectError(t, resp, http.StatusConflict, "duplicate_submission")

	after := loadRoom(t, srv, code)
	if got := len(after.Player(first.UserID).Hand); got != 6 {
		t.Fatalf("expected 6 cards after submit, got %d", got)
	}
	if after.Phase != game.PhaseSubmission {
		t.Fatalf("expected submission phase with one pending player, got %s", after.Phase)
	}

	second := players[1]
	resp = doRequest(t, ts, http.MethodPost, path, second.UserID, map[string]any{"card": second.Hand[0]})
	expectStatus(t, resp, http.StatusOK)
	if after := loadRoom(t, srv, code); after.Phase != game.PhasePicking {
		t.Fatalf("expected picking once everyone submitted, got %s", after.Phase)
	}

	resp = doRequest(t, ts, http.MethodPost, path, second.UserID, map[string]any{"card": second.Hand[1]})
	expectError(t, resp, http.StatusBadRequest, "wrong_phase")
}

func TestSubmitRequiresCard(t *testing.T) {
	_, ts := newTestApp(t)
	code := startTestGame(t, ts)
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submit", "user-ben", map[string]any{})
	expectError(t, resp, http.StatusBadRequest, codeValidation)
}

func submitAll(t *testing.T, srv *Server, code string) *game.Room {
	t.Helper()
	room := loadRoom(t, srv, code)
	for _, player := range nonCzars(room) {
		if _, err := srv.submitCard(t.Context(), code, player.UserID, player.Hand[0]); err != nil {
			t.Fatalf("submit %s: %v", player.UserID, err)
		}
	}
	return loadRoom(t, srv, code)
}

func TestPickWinnerFlow(t *testing.T) {
	srv, ts := newTestApp(t)
	code := startTestGame(t, ts)
	path := "/api/rooms/" + code + "/pick-winner"

	room := submitAll(t, srv, code)
	players := nonCzars(room)
	winner := players[0]
	winningCard := room.Submission(winner.UserID, 1).Card

	resp := doRequest(t, ts, http.MethodPost, path, winner.UserID, map[string]any{"winner_id": winner.UserID})
	expectError(t, resp, http.StatusForbidden, "not_czar")

	resp = doRequest(t, ts, http.MethodPost, path, room.CzarID, map[string]any{"winner_id": "user-nobody"})
	expectError(t, resp, http.StatusBadRequest, "winner_not_found")

	resp = doRequest(t, ts, http.MethodPost, path, room.CzarID, map[string]any{"winner_id": winner.UserID})
	body := expectStatus(t, resp, http.StatusOK)
	if body["changed"] != true {
		t.Fatalf("expected changed pick, got %v", body["changed"])
	}

	after := loadRoom(t, srv, code)
	if after.Player(winner.UserID).Score != 1 {
		t.Fatalf("expected score 1, got %d", after.Player(winner.UserID).Score)
	}
	if after.LastRound == nil || after.LastRound.WinningCard != winningCard || after.LastRound.RoundNumber != 1 {
		t.Fatalf("expected last round result for %q, got %+v", winningCard, after.LastRound)
	}
	if after.CurrentRound != 2 || after.Phase != game.PhaseSubmission {
		t.Fatalf("expected round 2 submission, got %d/%s", after.CurrentRound, after.Phase)
	}
	if after.CzarID == room.CzarID {
		t.Fatalf("expected czar to rotate away from %s", room.CzarID)
	}
	for _, player := range after.Players {
		if len(player.Hand) != 7 {
			t.Fatalf("expected refilled hand for %s, got %d", player.UserID, len(player.Hand))
		}
	}

	// A repeated pick lands outside the picking phase and changes nothing.
	resp = doRequest(t, ts, http.MethodPost, path, room.CzarID, map[string]any{"winner_id": winner.UserID})
	body = expectStatus(t, resp, http.StatusOK)
	if body["changed"] != false {
		t.Fatalf("expected unchanged repeat pick, got %v", body["changed"])
	}
	if again := loadRoom(t, srv, code); again.Player(winner.UserID).Score != 1 {
		t.Fatalf("expected score to stay 1, got %d", again.Player(winner.UserID).Score)
	}
}

func TestFinalRoundEndsGame(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	joinRoom(t, ts, code, "user-cy", "Cy")
	resp := doRequest(t, ts, http.MethodPatch, "/api/rooms/"+code+"/settings", "user-ada", map[string]any{"max_rounds": 1})
	expectStatus(t, resp, http.StatusOK)
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectStatus(t, resp, http.StatusOK)

	room := submitAll(t, srv, code)
	winner := nonCzars(room)[0]
	if _, _, err := srv.pickWinner(t.Context(), code, room.CzarID, winner.UserID); err != nil {
		t.Fatalf("pick winner: %v", err)
	}
	after := loadRoom(t, srv, code)
	if after.Status != game.StatusGameOver || after.Phase != game.PhaseGameOver {
		t.Fatalf("expected game over, got %s/%s", after.Status, after.Phase)
	}
	if after.RoundExpiresAt != nil {
		t.Fatalf("expected no deadline after game over")
	}
}

func TestRoundTimeoutEndpoint(t *testing.T) {
	srv, ts := newTestApp(t)
	code := startTestGame(t, ts)
	path := "/api/rooms/" + code + "/timeout"

	resp := doRequest(t, ts, http.MethodPost, path, "", nil)
	body := expectStatus(t, resp, http.StatusOK)
	if body["changed"] != false {
		t.Fatalf("expected no change before deadline, got %v", body["changed"])
	}

	advanceClock(srv, 61*time.Second)
	resp = doRequest(t, ts, http.MethodPost, path, "", nil)
	body = expectStatus(t, resp, http.StatusOK)
	if body["changed"] != true {
		t.Fatalf("expected timeout to advance, got %v", body["changed"])
	}

	room := loadRoom(t, srv, code)
	if room.Phase != game.PhasePicking {
		t.Fatalf("expected picking after submission timeout, got %s", room.Phase)
	}
	if got := len(room.RoundSubmissions()); got != 2 {
		t.Fatalf("expected auto submissions for both players, got %d", got)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/ZZZZ/timeout", "", nil)
	expectError(t, resp, http.StatusNotFound, "not_found")
}

func TestJoinRules(t *testing.T) {
	srv, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	for i, id := range []string{"user-b", "user-c", "user-d", "user-e", "user-f", "user-g", "user-h"} {
		joinRoom(t, ts, code, id, "Player"+string(rune('B'+i)))
	}
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", "user-i", map[string]any{"player_name": "Ivy"})
	expectError(t, resp, http.StatusBadRequest, "room_full")

	// Leaving frees a seat without deleting the player.
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/leave", "user-h", nil)
	expectStatus(t, resp, http.StatusOK)
	joinRoom(t, ts, code, "user-i", "Ivy")

	room := loadRoom(t, srv, code)
	if len(room.Players) != 9 {
		t.Fatalf("expected 9 player rows, got %d", len(room.Players))
	}
	if room.Player("user-h").IsOnline {
		t.Fatalf("expected user-h offline")
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start", "user-ada", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", "user-late", map[string]any{"player_name": "Late"})
	expectError(t, resp, http.StatusBadRequest, "already_started")

	// Returning players may rejoin a running game.
	joinRoom(t, ts, code, "user-h", "Hal")
	if room := loadRoom(t, srv, code); !room.Player("user-h").IsOnline {
		t.Fatalf("expected user-h back online")
	}
}

func TestJoinValidation(t *testing.T) {
	_, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", "user-ben", map[string]any{"player_name": ""})
	expectError(t, resp, http.StatusBadRequest, codeValidation)

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", "user-ben", map[string]any{"player_name": "This name is far too long to fit"})
	expectError(t, resp, http.StatusBadRequest, codeValidation)
}

func TestMissingRoomAndIdentity(t *testing.T) {
	_, ts := newTestApp(t)

	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/ZZZZ", "user-ada", nil)
	expectError(t, resp, http.StatusNotFound, "not_found")

	resp = doRequest(t, ts, http.MethodGet, "/api/rooms/not-a-code", "user-ada", nil)
	expectError(t, resp, http.StatusNotFound, "not_found")

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms", "", map[string]any{"host_name": "Ada"})
	expectError(t, resp, http.StatusUnauthorized, "unauthenticated")

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms", "bad id!", map[string]any{"host_name": "Ada"})
	expectError(t, resp, http.StatusBadRequest, codeValidation)
}

func TestRoomCodeIsCaseInsensitive(t *testing.T) {
	_, ts := newTestApp(t)
	code := createRoom(t, ts, "user-ada", "Ada")
	body := fetchRoom(t, ts, strings.ToLower(code), "user-ada")
	if body["roomCode"] != code {
		t.Fatalf("expected room %s, got %v", code, body["roomCode"])
	}
}

func TestCreateRoomWithUnknownPack(t *testing.T) {
	_, ts := newTestApp(t)
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", "user-ada", map[string]any{
		"host_name": "Ada",
		"pack_id":   "missing",
	})
	expectError(t, resp, http.StatusBadRequest, codeValidation)
}

func TestSettingsAreHostOnly(t *testing.T) {
	srv, ts := newTestApp(t)
	seedTestPack(t, srv, "spicy", 5, 30)
	code := createRoom(t, ts, "user-ada", "Ada")
	joinRoom(t, ts, code, "user-ben", "Ben")
	path := "/api/rooms/" + code + "/settings"

	resp := doRequest(t, ts, http.MethodPatch, path, "user-ben", map[string]any{"max_rounds": 3})
	expectError(t, resp, http.StatusForbidden, "not_host")

	resp = doRequest(t, ts, http.MethodPatch, path, "user-ada", map[string]any{"pack_id": "spicy", "max_rounds": 3})
	expectStatus(t, resp, http.StatusOK)
	room := loadRoom(t, srv, code)
	if room.PackID != "spicy" || room.MaxRounds != 3 {
		t.Fatalf("expected spicy/3, got %s/%d", room.PackID, room.MaxRounds)
	}

	resp = doRequest(t, ts, http.MethodPatch, path, "user-ada", map[string]any{"max_rounds": 51})
	expectError(t, resp, http.StatusBadRequest, codeValidation)
}

func TestRoomViewRedactsOtherHands(t *testing.T) {
	_, ts := newTestApp(t)
	code := startTestGame(t, ts)

	body := fetchRoom(t, ts, code, "user-ben")
	players := body["players"].(map[string]any)
	for id, raw := range players {
		hand := raw.(map[string]any)["hand"].([]any)
		if id == "user-ben" && len(hand) != 7 {
			t.Fatalf("expected own hand of 7, got %d", len(hand))
		}
		if id != "user-ben" && len(hand) != 0 {
			t.Fatalf("expected hidden hand for %s, got %d cards", id, len(hand))
		}
	}

	anonymous := fetchRoom(t, ts, code, "")
	for id, raw := range anonymous["players"].(map[string]any) {
		if hand := raw.(map[string]any)["hand"].([]any); len(hand) != 0 {
			t.Fatalf("expected hidden hand for %s when anonymous, got %d", id, len(hand))
		}
	}
}
