package game

import "time"

type View struct {
	RoomCode     string                `json:"roomCode"`
	HostID       string                `json:"hostId"`
	Status       Status                `json:"status"`
	PackID       *string               `json:"packId"`
	MaxRounds    int                   `json:"maxRounds"`
	CurrentRound int                   `json:"currentRound"`
	CreatedAt    time.Time             `json:"createdAt"`
	Players      map[string]PlayerView `json:"players"`
	GameState    GameStateView         `json:"gameState"`
}

type PlayerView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Avatar   string   `json:"avatar"`
	Score    int      `json:"score"`
	IsHost   bool     `json:"isHost"`
	IsOnline bool     `json:"isOnline"`
	Hand     []string `json:"hand"`
}

type GameStateView struct {
	CzarID          string            `json:"czarId"`
	CurrentQuestion string            `json:"currentQuestion"`
	Submissions     map[string]string `json:"submissions"`
	BlackDeck       int               `json:"blackDeck"`
	WhiteDeck       int               `json:"whiteDeck"`
	RoundExpiresAt  *time.Time        `json:"roundExpiresAt"`
	Phase           Phase             `json:"phase"`
	LastRoundResult *RoundResultView  `json:"lastRoundResult"`
}

type RoundResultView struct {
	WinnerID    string `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	WinningCard string `json:"winningCard"`
	RoundNumber int    `json:"roundNumber"`
}

// ViewFor renders the room as seen by viewerID. Only the viewer's own hand is
// included; every other hand is empty.
func ViewFor(room *Room, viewerID string) View {
	view := View{
		RoomCode:     room.Code,
		HostID:       room.HostID,
		Status:       room.Status,
		MaxRounds:    room.MaxRounds,
		CurrentRound: room.CurrentRound,
		CreatedAt:    room.CreatedAt,
		Players:      make(map[string]PlayerView, len(room.Players)),
		GameState: GameStateView{
			CzarID:          room.CzarID,
			CurrentQuestion: room.CurrentQuestion,
			Submissions:     make(map[string]string),
			BlackDeck:       room.QuestionDeck.Len(),
			WhiteDeck:       room.AnswerDeck.Len(),
			RoundExpiresAt:  room.RoundExpiresAt,
			Phase:           room.Phase,
		},
	}
	if room.PackID != "" {
		packID := room.PackID
		view.PackID = &packID
	}
	for _, player := range room.Players {
		hand := []string{}
		if viewerID != "" && player.UserID == viewerID {
			hand = append(hand, player.Hand...)
		}
		view.Players[player.UserID] = PlayerView{
			ID:       player.UserID,
			Name:     player.Name,
			Avatar:   player.Avatar,
			Score:    player.Score,
			IsHost:   player.IsHost,
			IsOnline: player.IsOnline,
			Hand:     hand,
		}
	}
	for _, sub := range room.RoundSubmissions() {
		view.GameState.Submissions[sub.PlayerID] = sub.Card
	}
	if room.LastRound != nil {
		view.GameState.LastRoundResult = &RoundResultView{
			WinnerID:    room.LastRound.WinnerID,
			WinnerName:  room.LastRound.WinnerName,
			WinningCard: room.LastRound.WinningCard,
			RoundNumber: room.LastRound.RoundNumber,
		}
	}
	return view
}
