package game

import (
	"errors"
	"fmt"
)

// RuleError is a rejected operation. Code is machine readable, Message is
// shown to the player as is.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

var (
	ErrNotFound       = errors.New("not found")
	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
)

var (
	ErrWrongPhase          = &RuleError{Code: "wrong_phase", Message: "Not in submission phase"}
	ErrCzarForbidden       = &RuleError{Code: "czar_forbidden", Message: "Czar cannot submit"}
	ErrCardNotHeld         = &RuleError{Code: "card_not_held", Message: "Card not in hand"}
	ErrDuplicateSubmission = &RuleError{Code: "duplicate_submission", Message: "Already submitted"}
	ErrWinnerNotFound      = &RuleError{Code: "winner_not_found", Message: "Winner not found"}
	ErrNoCards             = &RuleError{Code: "no_cards_for_pack", Message: "No cards available for this pack"}
	ErrNotEnoughPlayers    = &RuleError{Code: "not_enough_players", Message: "Need at least 3 players"}
	ErrNotHost             = &RuleError{Code: "not_host", Message: "Only host can start"}
	ErrNotCzar             = &RuleError{Code: "not_czar", Message: "Only czar can pick"}
	ErrAlreadyStarted      = &RuleError{Code: "already_started", Message: "Game already started"}
	ErrRoomFull            = &RuleError{Code: "room_full", Message: "Room is full"}
)

// IsRule reports whether err is a rejected operation and returns it.
func IsRule(err error) (*RuleError, bool) {
	var rule *RuleError
	if errors.As(err, &rule) {
		return rule, true
	}
	return nil, false
}
