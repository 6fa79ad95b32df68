package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cards-chaos/internal/db"
	"cards-chaos/internal/game"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errParticipantNotFound = fmt.Errorf("participant %w", game.ErrNotFound)

type Participant struct {
	RoomCode      string    `json:"room_code"`
	UserID        string    `json:"user_id"`
	VideoEnabled  bool      `json:"video_enabled"`
	AudioEnabled  bool      `json:"audio_enabled"`
	ScreenSharing bool      `json:"screen_sharing"`
	IsConnected   bool      `json:"is_connected"`
	JoinedAt      time.Time `json:"joined_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

type MediaUpdate struct {
	Video  *bool
	Audio  *bool
	Screen *bool
}

// videoRoster tracks call participants and their media flags.
type videoRoster struct {
	db *gorm.DB

	mu           sync.Mutex
	participants map[string]*Participant
}

func newVideoRoster(conn *gorm.DB) *videoRoster {
	return &videoRoster{
		db:           conn,
		participants: make(map[string]*Participant),
	}
}

func participantKey(roomCode, userID string) string {
	return roomCode + "|" + userID
}

func (v *videoRoster) Join(ctx context.Context, roomCode, userID string, video, audio bool) (Participant, error) {
	now := timeNowUTC()
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		participant, ok := v.participants[participantKey(roomCode, userID)]
		if !ok {
			participant = &Participant{RoomCode: roomCode, UserID: userID, JoinedAt: now}
			v.participants[participantKey(roomCode, userID)] = participant
		}
		participant.VideoEnabled = video
		participant.AudioEnabled = audio
		participant.ScreenSharing = false
		participant.IsConnected = true
		participant.LastHeartbeat = now
		return *participant, nil
	}
	record := db.VideoCallParticipant{
		RoomCode:      roomCode,
		UserID:        userID,
		VideoEnabled:  video,
		AudioEnabled:  audio,
		IsConnected:   true,
		JoinedAt:      now,
		LastHeartbeat: now,
	}
	err := v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_code"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"video_enabled", "audio_enabled", "screen_sharing", "is_connected", "last_heartbeat"}),
	}).Create(&record).Error
	if err != nil {
		return Participant{}, err
	}
	return v.get(ctx, roomCode, userID)
}

func (v *videoRoster) Leave(ctx context.Context, roomCode, userID string) error {
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		participant, ok := v.participants[participantKey(roomCode, userID)]
		if !ok {
			return errParticipantNotFound
		}
		participant.IsConnected = false
		participant.ScreenSharing = false
		return nil
	}
	result := v.db.WithContext(ctx).Model(&db.VideoCallParticipant{}).
		Where("room_code = ? AND user_id = ?", roomCode, userID).
		Updates(map[string]any{"is_connected": false, "screen_sharing": false})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errParticipantNotFound
	}
	return nil
}

func (v *videoRoster) SetMedia(ctx context.Context, roomCode, userID string, update MediaUpdate) (Participant, error) {
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		participant, ok := v.participants[participantKey(roomCode, userID)]
		if !ok {
			return Participant{}, errParticipantNotFound
		}
		if update.Video != nil {
			participant.VideoEnabled = *update.Video
		}
		if update.Audio != nil {
			participant.AudioEnabled = *update.Audio
		}
		if update.Screen != nil {
			participant.ScreenSharing = *update.Screen
		}
		return *participant, nil
	}
	changes := map[string]any{}
	if update.Video != nil {
		changes["video_enabled"] = *update.Video
	}
	if update.Audio != nil {
		changes["audio_enabled"] = *update.Audio
	}
	if update.Screen != nil {
		changes["screen_sharing"] = *update.Screen
	}
	if len(changes) > 0 {
		result := v.db.WithContext(ctx).Model(&db.VideoCallParticipant{}).
			Where("room_code = ? AND user_id = ?", roomCode, userID).
			Updates(changes)
		if result.Error != nil {
			return Participant{}, result.Error
		}
	}
	return v.get(ctx, roomCode, userID)
}

func (v *videoRoster) Heartbeat(ctx context.Context, roomCode, userID string) error {
	now := timeNowUTC()
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		participant, ok := v.participants[participantKey(roomCode, userID)]
		if !ok {
			return errParticipantNotFound
		}
		participant.LastHeartbeat = now
		participant.IsConnected = true
		return nil
	}
	result := v.db.WithContext(ctx).Model(&db.VideoCallParticipant{}).
		Where("room_code = ? AND user_id = ?", roomCode, userID).
		Updates(map[string]any{"last_heartbeat": now, "is_connected": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errParticipantNotFound
	}
	return nil
}

// List returns the connected participants of a room in join order.
func (v *videoRoster) List(ctx context.Context, roomCode string) ([]Participant, error) {
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		list := make([]Participant, 0)
		for _, participant := range v.participants {
			if participant.RoomCode == roomCode && participant.IsConnected {
				list = append(list, *participant)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].JoinedAt.Before(list[j].JoinedAt) })
		return list, nil
	}
	var records []db.VideoCallParticipant
	err := v.db.WithContext(ctx).
		Where("room_code = ? AND is_connected = ?", roomCode, true).
		Order("joined_at, id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	list := make([]Participant, 0, len(records))
	for _, record := range records {
		list = append(list, participantFromRecord(record))
	}
	return list, nil
}

// Sweep disconnects participants whose last heartbeat is older than cutoff.
func (v *videoRoster) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		var swept int64
		for _, participant := range v.participants {
			if participant.IsConnected && participant.LastHeartbeat.Before(cutoff) {
				participant.IsConnected = false
				participant.ScreenSharing = false
				swept++
			}
		}
		return swept, nil
	}
	result := v.db.WithContext(ctx).Model(&db.VideoCallParticipant{}).
		Where("is_connected = ? AND last_heartbeat < ?", true, cutoff).
		Updates(map[string]any{"is_connected": false, "screen_sharing": false})
	return result.RowsAffected, result.Error
}

// Purge deletes disconnected participants of a room.
func (v *videoRoster) Purge(ctx context.Context, roomCode string) (int64, error) {
	if v.db == nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		var removed int64
		for key, participant := range v.participants {
			if participant.RoomCode == roomCode && !participant.IsConnected {
				delete(v.participants, key)
				removed++
			}
		}
		return removed, nil
	}
	result := v.db.WithContext(ctx).
		Where("room_code = ? AND is_connected = ?", roomCode, false).
		Delete(&db.VideoCallParticipant{})
	return result.RowsAffected, result.Error
}

func (v *videoRoster) get(ctx context.Context, roomCode, userID string) (Participant, error) {
	var record db.VideoCallParticipant
	err := v.db.WithContext(ctx).Where("room_code = ? AND user_id = ?", roomCode, userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Participant{}, errParticipantNotFound
	}
	if err != nil {
		return Participant{}, err
	}
	return participantFromRecord(record), nil
}

func participantFromRecord(record db.VideoCallParticipant) Participant {
	return Participant{
		RoomCode:      record.RoomCode,
		UserID:        record.UserID,
		VideoEnabled:  record.VideoEnabled,
		AudioEnabled:  record.AudioEnabled,
		ScreenSharing: record.ScreenSharing,
		IsConnected:   record.IsConnected,
		JoinedAt:      record.JoinedAt,
		LastHeartbeat: record.LastHeartbeat,
	}
}
