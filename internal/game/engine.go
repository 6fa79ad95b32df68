package game

import (
	"math/rand"
	"sync"
	"time"
)

type Config struct {
	HandSize            int
	SubmissionTime      time.Duration
	PickingTime         time.Duration
	OpeningQuestionText string
	OutOfQuestionsText  string
	UnknownWinningCard  string
}

func DefaultConfig() Config {
	return Config{
		HandSize:            7,
		SubmissionTime:      60 * time.Second,
		PickingTime:         30 * time.Second,
		OpeningQuestionText: "No questions available!",
		OutOfQuestionsText:  "Out of questions!",
		UnknownWinningCard:  "Unknown",
	}
}

// Engine applies game transitions to a Room. It does no I/O; callers are
// expected to hold the room's lock for the duration of a call.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(cfg Config, rng *rand.Rand) *Engine {
	defaults := DefaultConfig()
	if cfg.HandSize <= 0 {
		cfg.HandSize = defaults.HandSize
	}
	if cfg.SubmissionTime <= 0 {
		cfg.SubmissionTime = defaults.SubmissionTime
	}
	if cfg.PickingTime <= 0 {
		cfg.PickingTime = defaults.PickingTime
	}
	if cfg.OpeningQuestionText == "" {
		cfg.OpeningQuestionText = defaults.OpeningQuestionText
	}
	if cfg.OutOfQuestionsText == "" {
		cfg.OutOfQuestionsText = defaults.OutOfQuestionsText
	}
	if cfg.UnknownWinningCard == "" {
		cfg.UnknownWinningCard = defaults.UnknownWinningCard
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, rng: rng}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// rand.Rand is not safe for concurrent use and the engine is shared by
// every room.
func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) shuffled(cards []string) Deck {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewDeck(cards, e.rng)
}

func (e *Engine) StartGame(room *Room, cards PackCards, now time.Time) error {
	if room.Status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(cards.Questions) == 0 || len(cards.Answers) == 0 {
		return ErrNoCards
	}
	online := room.OnlinePlayers()
	if len(online) == 0 {
		return ErrNotEnoughPlayers
	}

	room.QuestionDeck = e.shuffled(cards.Questions)
	room.AnswerDeck = e.shuffled(cards.Answers)
	for _, player := range online {
		player.Hand = room.AnswerDeck.Deal(e.cfg.HandSize)
	}

	room.CzarID = online[e.intn(len(online))].UserID
	room.CurrentQuestion = room.QuestionDeck.Draw(e.cfg.OpeningQuestionText)
	room.Status = StatusPlaying
	room.Phase = PhaseSubmission
	room.CurrentRound = 1
	room.setDeadline(now.Add(e.cfg.SubmissionTime))
	room.LastRound = nil
	room.Submissions = nil
	return nil
}

func (e *Engine) SubmitCard(room *Room, userID, card string, now time.Time) error {
	player := room.Player(userID)
	if player == nil {
		return ErrPlayerNotFound
	}
	if room.Phase != PhaseSubmission {
		return ErrWrongPhase
	}
	if userID == room.CzarID {
		return ErrCzarForbidden
	}
	if room.Submission(userID, room.CurrentRound) != nil {
		return ErrDuplicateSubmission
	}
	if !removeCard(player, card) {
		return ErrCardNotHeld
	}
	room.Submissions = append(room.Submissions, Submission{
		PlayerID:    userID,
		RoundNumber: room.CurrentRound,
		Card:        card,
		CreatedAt:   now,
	})
	e.checkAllSubmitted(room, now)
	return nil
}

func (e *Engine) checkAllSubmitted(room *Room, now time.Time) {
	if room.Phase != PhaseSubmission {
		return
	}
	expected := 0
	for _, player := range room.OnlinePlayers() {
		if player.UserID != room.CzarID {
			expected++
		}
	}
	if len(room.RoundSubmissions()) >= expected {
		room.Phase = PhasePicking
		room.setDeadline(now.Add(e.cfg.PickingTime))
	}
}

// PickWinner is a no-op outside of PICKING, so a pick racing a timeout (or a
// retried request) cannot score twice.
func (e *Engine) PickWinner(room *Room, winnerID string, now time.Time) error {
	if room.Phase != PhasePicking {
		return nil
	}
	winner := room.Player(winnerID)
	if winner == nil {
		return ErrWinnerNotFound
	}
	room.Phase = PhaseTransitioning

	card := e.cfg.UnknownWinningCard
	if sub := room.Submission(winnerID, room.CurrentRound); sub != nil {
		card = sub.Card
	}
	winner.Score++
	room.LastRound = &RoundResult{
		WinnerID:    winner.UserID,
		WinnerName:  winner.Name,
		WinningCard: card,
		RoundNumber: room.CurrentRound,
	}

	if room.MaxRounds > 0 && room.CurrentRound >= room.MaxRounds {
		room.Status = StatusGameOver
		room.Phase = PhaseGameOver
		room.RoundExpiresAt = nil
		return nil
	}
	e.advanceRound(room, now)
	return nil
}

func (e *Engine) advanceRound(room *Room, now time.Time) {
	online := room.OnlinePlayers()
	if len(online) > 0 {
		current := 0
		for i, player := range online {
			if player.UserID == room.CzarID {
				current = i
				break
			}
		}
		room.CzarID = online[(current+1)%len(online)].UserID
	}

	room.CurrentQuestion = room.QuestionDeck.Draw(e.cfg.OutOfQuestionsText)
	for _, player := range online {
		if missing := e.cfg.HandSize - len(player.Hand); missing > 0 {
			player.Hand = append(player.Hand, room.AnswerDeck.Deal(missing)...)
		}
	}

	room.CurrentRound++
	room.Phase = PhaseSubmission
	room.setDeadline(now.Add(e.cfg.SubmissionTime))

	kept := room.Submissions[:0]
	for _, sub := range room.Submissions {
		if sub.RoundNumber >= room.CurrentRound {
			kept = append(kept, sub)
		}
	}
	room.Submissions = kept
}

// HandleTimeout applies the expired-deadline transition, if any, and reports
// whether the room changed.
func (e *Engine) HandleTimeout(room *Room, now time.Time) bool {
	if room.Phase == PhaseTransitioning || room.Status == StatusGameOver {
		return false
	}
	if room.RoundExpiresAt == nil || now.Before(*room.RoundExpiresAt) {
		return false
	}

	switch room.Phase {
	case PhaseSubmission:
		for _, player := range room.OnlinePlayers() {
			if player.UserID == room.CzarID || len(player.Hand) == 0 {
				continue
			}
			if room.Submission(player.UserID, room.CurrentRound) != nil {
				continue
			}
			card := player.Hand[e.intn(len(player.Hand))]
			removeCard(player, card)
			room.Submissions = append(room.Submissions, Submission{
				PlayerID:    player.UserID,
				RoundNumber: room.CurrentRound,
				Card:        card,
				CreatedAt:   now,
			})
		}
		room.Phase = PhasePicking
		room.setDeadline(now.Add(e.cfg.PickingTime))
		return true
	case PhasePicking:
		subs := room.RoundSubmissions()
		if len(subs) == 0 {
			e.skipRound(room, now)
			return true
		}
		chosen := subs[e.intn(len(subs))]
		if err := e.PickWinner(room, chosen.PlayerID, now); err != nil {
			// The submitter left the room's player list; nobody can win.
			e.skipRound(room, now)
		}
		return true
	default:
		return false
	}
}

// skipRound ends a round that has nothing to pick from.
func (e *Engine) skipRound(room *Room, now time.Time) {
	room.Phase = PhaseTransitioning
	if room.MaxRounds > 0 && room.CurrentRound >= room.MaxRounds {
		room.Status = StatusGameOver
		room.Phase = PhaseGameOver
		room.RoundExpiresAt = nil
		return
	}
	e.advanceRound(room, now)
}

func (r *Room) setDeadline(at time.Time) {
	at = at.UTC()
	r.RoundExpiresAt = &at
}

func removeCard(player *Player, card string) bool {
	for i, held := range player.Hand {
		if held == card {
			player.Hand = append(player.Hand[:i], player.Hand[i+1:]...)
			return true
		}
	}
	return false
}
