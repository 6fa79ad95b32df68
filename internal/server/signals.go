package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cards-chaos/internal/db"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	signalOffer        = "offer"
	signalAnswer       = "answer"
	signalICECandidate = "ice_candidate"
	signalRenegotiate  = "renegotiate"
)

func isSignalType(value string) bool {
	switch value {
	case signalOffer, signalAnswer, signalICECandidate, signalRenegotiate:
		return true
	default:
		return false
	}
}

type Signal struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	From      string          `json:"from_user_id"`
	To        string          `json:"to_user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Delivered bool            `json:"delivered"`
	CreatedAt time.Time       `json:"created_at"`
}

// mailbox queues WebRTC signals per recipient until they are drained.
type mailbox struct {
	db *gorm.DB

	mu      sync.Mutex
	signals []*Signal
}

func newMailbox(conn *gorm.DB) *mailbox {
	return &mailbox{db: conn}
}

func (m *mailbox) Store(ctx context.Context, roomCode, from, to, signalType string, payload json.RawMessage) (Signal, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	signal := Signal{
		ID:        newSignalID(),
		RoomCode:  roomCode,
		From:      from,
		To:        to,
		Type:      signalType,
		Payload:   payload,
		CreatedAt: timeNowUTC(),
	}
	if m.db == nil {
		m.mu.Lock()
		stored := signal
		m.signals = append(m.signals, &stored)
		m.mu.Unlock()
		return signal, nil
	}
	record := db.VideoCallSignal{
		ID:         signal.ID,
		RoomCode:   roomCode,
		FromUserID: from,
		ToUserID:   to,
		Type:       signalType,
		Payload:    datatypes.JSON(payload),
		CreatedAt:  signal.CreatedAt,
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Signal{}, err
	}
	return signal, nil
}

// Drain returns every undelivered signal for the recipient, oldest first, and
// marks them delivered in the same step.
func (m *mailbox) Drain(ctx context.Context, roomCode, to string) ([]Signal, error) {
	now := timeNowUTC()
	if m.db == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		drained := make([]Signal, 0)
		for _, signal := range m.signals {
			if signal.Delivered || signal.RoomCode != roomCode || signal.To != to {
				continue
			}
			signal.Delivered = true
			drained = append(drained, *signal)
		}
		return drained, nil
	}
	drained := make([]Signal, 0)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []db.VideoCallSignal
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_code = ? AND to_user_id = ? AND delivered = ?", roomCode, to, false).
			Order("created_at, id").
			Find(&records).Error
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
			drained = append(drained, signalFromRecord(record))
		}
		return tx.Model(&db.VideoCallSignal{}).Where("id IN ?", ids).
			Updates(map[string]any{"delivered": true, "delivered_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range drained {
		drained[i].Delivered = true
	}
	return drained, nil
}

func (m *mailbox) MarkDelivered(ctx context.Context, id string) error {
	if m.db == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, signal := range m.signals {
			if signal.ID == id {
				signal.Delivered = true
			}
		}
		return nil
	}
	return m.db.WithContext(ctx).Model(&db.VideoCallSignal{}).Where("id = ?", id).
		Updates(map[string]any{"delivered": true, "delivered_at": timeNowUTC()}).Error
}

// DeleteFrom drops everything a participant sent in a room, used when they
// leave the call.
func (m *mailbox) DeleteFrom(ctx context.Context, roomCode, from string) (int64, error) {
	return m.deleteWhere(ctx, func(signal *Signal) bool {
		return signal.RoomCode == roomCode && signal.From == from
	}, "room_code = ? AND from_user_id = ?", roomCode, from)
}

func (m *mailbox) DeleteDelivered(ctx context.Context, roomCode string) (int64, error) {
	return m.deleteWhere(ctx, func(signal *Signal) bool {
		return signal.RoomCode == roomCode && signal.Delivered
	}, "room_code = ? AND delivered = ?", roomCode, true)
}

// Prune deletes signals created before cutoff.
func (m *mailbox) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteWhere(ctx, func(signal *Signal) bool {
		return signal.CreatedAt.Before(cutoff)
	}, "created_at < ?", cutoff)
}

func (m *mailbox) deleteWhere(ctx context.Context, match func(*Signal) bool, query string, args ...any) (int64, error) {
	if m.db == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		kept := m.signals[:0]
		var removed int64
		for _, signal := range m.signals {
			if match(signal) {
				removed++
				continue
			}
			kept = append(kept, signal)
		}
		for i := len(kept); i < len(m.signals); i++ {
			m.signals[i] = nil
		}
		m.signals = kept
		return removed, nil
	}
	result := m.db.WithContext(ctx).Where(query, args...).Delete(&db.VideoCallSignal{})
	return result.RowsAffected, result.Error
}

func signalFromRecord(record db.VideoCallSignal) Signal {
	return Signal{
		ID:        record.ID,
		RoomCode:  record.RoomCode,
		From:      record.FromUserID,
		To:        record.ToUserID,
		Type:      record.Type,
		Payload:   json.RawMessage(record.Payload),
		Delivered: record.Delivered,
		CreatedAt: record.CreatedAt,
	}
}

// Version 7 ids sort by creation time, which keeps drain order stable for
// signals created in the same instant.
func newSignalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
