package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cards-chaos/internal/db"
	"cards-chaos/internal/game"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errRoomCodeTaken = errors.New("room code taken")

// sqlRoomStore keeps rooms in Postgres. Update takes a row lock on the room
// (SELECT ... FOR UPDATE) so writers for the same room queue up in the
// database while other rooms proceed.
type sqlRoomStore struct {
	db *gorm.DB
}

func newSQLRoomStore(conn *gorm.DB) *sqlRoomStore {
	return &sqlRoomStore{db: conn}
}

func (s *sqlRoomStore) Create(ctx context.Context, room *game.Room) error {
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		room.Code = newRoomCode()
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			record, err := roomRecord(room)
			if err != nil {
				return err
			}
			result := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errRoomCodeTaken
			}
			for _, player := range room.Players {
				entry, err := playerRecord(room.Code, player)
				if err != nil {
					return err
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, errRoomCodeTaken) || isUniqueViolation(err) {
			continue
		}
		return err
	}
	return errRoomCodesExhausted
}

func (s *sqlRoomStore) Get(ctx context.Context, code string) (*game.Room, error) {
	var record db.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, game.ErrRoomNotFound
		}
		return nil, err
	}
	room, _, _, err := loadRoomChildren(s.db.WithContext(ctx), record)
	return room, err
}

func (s *sqlRoomStore) Update(ctx context.Context, code string, fn func(room *game.Room) error) (*game.Room, error) {
	var updated *game.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record db.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return game.ErrRoomNotFound
			}
			return err
		}
		room, players, submissions, err := loadRoomChildren(tx, record)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		if err := saveRoom(tx, room, players, submissions); err != nil {
			return err
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *sqlRoomStore) DueRooms(ctx context.Context, now time.Time) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&db.Room{}).
		Where("status = ? AND round_expires_at <= ?", string(game.StatusPlaying), now).
		Order("round_expires_at").
		Pluck("code", &codes).Error
	return codes, err
}

func (s *sqlRoomStore) HasPlayer(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.Player{}).Where("user_id = ?", userID).Limit(1).Count(&count).Error
	return count > 0, err
}

func loadRoomChildren(conn *gorm.DB, record db.Room) (*game.Room, []db.Player, []db.Submission, error) {
	var players []db.Player
	if err := conn.Where("room_code = ?", record.Code).Order("joined_at, id").Find(&players).Error; err != nil {
		return nil, nil, nil, err
	}
	var submissions []db.Submission
	if err := conn.Where("room_code = ?", record.Code).Order("created_at, id").Find(&submissions).Error; err != nil {
		return nil, nil, nil, err
	}
	room, err := roomFromRecords(record, players, submissions)
	if err != nil {
		return nil, nil, nil, err
	}
	return room, players, submissions, nil
}

func saveRoom(tx *gorm.DB, room *game.Room, players []db.Player, submissions []db.Submission) error {
	record, err := roomRecord(room)
	if err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Save(&record).Error; err != nil {
		return fmt.Errorf("save room: %w", err)
	}

	existing := make(map[string]db.Player, len(players))
	for _, player := range players {
		existing[player.UserID] = player
	}
	for _, player := range room.Players {
		entry, err := playerRecord(room.Code, player)
		if err != nil {
			return err
		}
		if prev, ok := existing[player.UserID]; ok {
			entry.ID = prev.ID
		}
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("save player: %w", err)
		}
	}

	kept := make(map[submissionKey]bool, len(room.Submissions))
	for _, sub := range room.Submissions {
		kept[submissionKey{sub.PlayerID, sub.RoundNumber}] = true
	}
	stored := make(map[submissionKey]bool, len(submissions))
	stale := make([]uint, 0)
	for _, sub := range submissions {
		key := submissionKey{sub.PlayerID, sub.RoundNumber}
		stored[key] = true
		if !kept[key] {
			stale = append(stale, sub.ID)
		}
	}
	if len(stale) > 0 {
		if err := tx.Where("id IN ?", stale).Delete(&db.Submission{}).Error; err != nil {
			return fmt.Errorf("delete submissions: %w", err)
		}
	}
	for _, sub := range room.Submissions {
		if stored[submissionKey{sub.PlayerID, sub.RoundNumber}] {
			continue
		}
		entry := db.Submission{
			RoomCode:    room.Code,
			PlayerID:    sub.PlayerID,
			RoundNumber: sub.RoundNumber,
			CardText:    sub.Card,
			CreatedAt:   sub.CreatedAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isUniqueViolation(err) {
				return game.ErrDuplicateSubmission
			}
			return fmt.Errorf("create submission: %w", err)
		}
	}
	return nil
}

type submissionKey struct {
	playerID string
	round    int
}

func roomRecord(room *game.Room) (db.Room, error) {
	questions, err := encodeCards(room.QuestionDeck)
	if err != nil {
		return db.Room{}, err
	}
	answers, err := encodeCards(room.AnswerDeck)
	if err != nil {
		return db.Room{}, err
	}
	record := db.Room{
		Code:            room.Code,
		HostID:          room.HostID,
		Status:          string(room.Status),
		Phase:           string(room.Phase),
		MaxRounds:       room.MaxRounds,
		CurrentRound:    room.CurrentRound,
		CzarID:          room.CzarID,
		CurrentQuestion: room.CurrentQuestion,
		RoundExpiresAt:  room.RoundExpiresAt,
		QuestionDeck:    questions,
		AnswerDeck:      answers,
		CreatedAt:       room.CreatedAt,
	}
	if room.PackID != "" {
		packID := room.PackID
		record.PackID = &packID
	}
	if last := room.LastRound; last != nil {
		number := last.RoundNumber
		record.LastRoundWinnerID = last.WinnerID
		record.LastRoundWinnerName = last.WinnerName
		record.LastRoundCard = last.WinningCard
		record.LastRoundNumber = &number
	}
	return record, nil
}

func playerRecord(roomCode string, player game.Player) (db.Player, error) {
	hand, err := encodeCards(player.Hand)
	if err != nil {
		return db.Player{}, err
	}
	return db.Player{
		RoomCode: roomCode,
		UserID:   player.UserID,
		Name:     player.Name,
		Avatar:   player.Avatar,
		Score:    player.Score,
		IsHost:   player.IsHost,
		IsOnline: player.IsOnline,
		Hand:     hand,
		JoinedAt: player.JoinedAt,
	}, nil
}

func roomFromRecords(record db.Room, players []db.Player, submissions []db.Submission) (*game.Room, error) {
	questions, err := decodeCards(record.QuestionDeck)
	if err != nil {
		return nil, fmt.Errorf("decode question deck: %w", err)
	}
	answers, err := decodeCards(record.AnswerDeck)
	if err != nil {
		return nil, fmt.Errorf("decode answer deck: %w", err)
	}
	room := &game.Room{
		Code:            record.Code,
		HostID:          record.HostID,
		Status:          game.Status(record.Status),
		Phase:           game.Phase(record.Phase),
		MaxRounds:       record.MaxRounds,
		CurrentRound:    record.CurrentRound,
		CzarID:          record.CzarID,
		CurrentQuestion: record.CurrentQuestion,
		RoundExpiresAt:  record.RoundExpiresAt,
		QuestionDeck:    game.Deck(questions),
		AnswerDeck:      game.Deck(answers),
		CreatedAt:       record.CreatedAt,
	}
	if record.PackID != nil {
		room.PackID = *record.PackID
	}
	if record.LastRoundNumber != nil {
		room.LastRound = &game.RoundResult{
			WinnerID:    record.LastRoundWinnerID,
			WinnerName:  record.LastRoundWinnerName,
			WinningCard: record.LastRoundCard,
			RoundNumber: *record.LastRoundNumber,
		}
	}
	for _, player := range players {
		hand, err := decodeCards(player.Hand)
		if err != nil {
			return nil, fmt.Errorf("decode hand user_id=%s: %w", player.UserID, err)
		}
		room.Players = append(room.Players, game.Player{
			UserID:   player.UserID,
			Name:     player.Name,
			Avatar:   player.Avatar,
			Score:    player.Score,
			IsHost:   player.IsHost,
			IsOnline: player.IsOnline,
			Hand:     hand,
			JoinedAt: player.JoinedAt,
		})
	}
	for _, sub := range submissions {
		room.Submissions = append(room.Submissions, game.Submission{
			PlayerID:    sub.PlayerID,
			RoundNumber: sub.RoundNumber,
			Card:        sub.CardText,
			CreatedAt:   sub.CreatedAt,
		})
	}
	return room, nil
}

func encodeCards(cards []string) (datatypes.JSON, error) {
	if cards == nil {
		cards = []string{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeCards(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var cards []string
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
