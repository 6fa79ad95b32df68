package game

import (
	"encoding/json"
	"testing"
)

func TestViewForRedactsOtherHands(t *testing.T) {
	engine := newTestEngine(30)
	room := startedRoom(t, engine, "Ada", "Ben", "Cam")

	view := ViewFor(room, "user-Ben")
	if got := len(view.Players["user-Ben"].Hand); got != 7 {
		t.Fatalf("expected viewer hand of 7, got %d", got)
	}
	for _, id := range []string{"user-Ada", "user-Cam"} {
		if got := len(view.Players[id].Hand); got != 0 {
			t.Fatalf("expected redacted hand for %s, got %d cards", id, got)
		}
	}

	anonymous := ViewFor(room, "")
	for id, player := range anonymous.Players {
		if len(player.Hand) != 0 {
			t.Fatalf("expected anonymous view to hide %s hand", id)
		}
	}
}

func TestViewJSONShape(t *testing.T) {
	room := newWaitingRoom("Ada")
	data, err := json.Marshal(ViewFor(room, "user-Ada"))
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if body["roomCode"] != "ABCD" || body["packId"] != nil {
		t.Fatalf("unexpected room fields: %v", body)
	}
	state, ok := body["gameState"].(map[string]any)
	if !ok {
		t.Fatalf("expected gameState object, got %#v", body["gameState"])
	}
	if state["lastRoundResult"] != nil || state["phase"] != "WAITING" {
		t.Fatalf("unexpected game state: %v", state)
	}
	players := body["players"].(map[string]any)
	ada := players["user-Ada"].(map[string]any)
	if hand, ok := ada["hand"].([]any); !ok || len(hand) != 0 {
		t.Fatalf("expected empty hand array, got %#v", ada["hand"])
	}
}
