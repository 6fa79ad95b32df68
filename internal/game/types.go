package game

import "time"

type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusGameOver Status = "GAME_OVER"
)

type Phase string

const (
	PhaseWaiting       Phase = "WAITING"
	PhaseSubmission    Phase = "SUBMISSION"
	PhasePicking       Phase = "PICKING"
	PhaseTransitioning Phase = "TRANSITIONING"
	PhaseGameOver      Phase = "GAME_OVER"
)

// Room is the full mutable state of one room: the room row plus its players
// and current submissions. Stores hand out a private copy to mutate.
type Room struct {
	Code            string
	HostID          string
	Status          Status
	Phase           Phase
	PackID          string
	MaxRounds       int
	CurrentRound    int
	CzarID          string
	CurrentQuestion string
	RoundExpiresAt  *time.Time
	QuestionDeck    Deck
	AnswerDeck      Deck
	LastRound       *RoundResult
	CreatedAt       time.Time
	Players         []Player
	Submissions     []Submission
}

type Player struct {
	UserID   string
	Name     string
	Avatar   string
	Score    int
	IsHost   bool
	IsOnline bool
	Hand     []string
	JoinedAt time.Time
}

type Submission struct {
	PlayerID    string
	RoundNumber int
	Card        string
	CreatedAt   time.Time
}

type RoundResult struct {
	WinnerID    string
	WinnerName  string
	WinningCard string
	RoundNumber int
}

// PackCards is the catalog content a game is started with.
type PackCards struct {
	Questions []string
	Answers   []string
}

func (r *Room) Player(userID string) *Player {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i]
		}
	}
	return nil
}

// OnlinePlayers returns pointers into r.Players in join order.
func (r *Room) OnlinePlayers() []*Player {
	online := make([]*Player, 0, len(r.Players))
	for i := range r.Players {
		if r.Players[i].IsOnline {
			online = append(online, &r.Players[i])
		}
	}
	return online
}

func (r *Room) OnlineCount() int {
	count := 0
	for _, player := range r.Players {
		if player.IsOnline {
			count++
		}
	}
	return count
}

func (r *Room) Host() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) Submission(userID string, round int) *Submission {
	for i := range r.Submissions {
		if r.Submissions[i].PlayerID == userID && r.Submissions[i].RoundNumber == round {
			return &r.Submissions[i]
		}
	}
	return nil
}

func (r *Room) RoundSubmissions() []Submission {
	subs := make([]Submission, 0, len(r.Submissions))
	for _, sub := range r.Submissions {
		if sub.RoundNumber == r.CurrentRound {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	clone := *r
	if r.RoundExpiresAt != nil {
		expires := *r.RoundExpiresAt
		clone.RoundExpiresAt = &expires
	}
	if r.LastRound != nil {
		last := *r.LastRound
		clone.LastRound = &last
	}
	clone.QuestionDeck = append(Deck(nil), r.QuestionDeck...)
	clone.AnswerDeck = append(Deck(nil), r.AnswerDeck...)
	clone.Players = make([]Player, len(r.Players))
	for i, player := range r.Players {
		player.Hand = append([]string(nil), player.Hand...)
		clone.Players[i] = player
	}
	clone.Submissions = append([]Submission(nil), r.Submissions...)
	return &clone
}
