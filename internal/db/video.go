package db

import (
	"time"

	"gorm.io/datatypes"
)

type VideoCallParticipant struct {
	ID            uint      `gorm:"primaryKey"`
	RoomCode      string    `gorm:"size:4;not null;uniqueIndex:idx_video_participants_room_user"`
	UserID        string    `gorm:"size:36;not null;uniqueIndex:idx_video_participants_room_user"`
	VideoEnabled  bool      `gorm:"not null;default:true"`
	AudioEnabled  bool      `gorm:"not null;default:true"`
	ScreenSharing bool      `gorm:"not null;default:false"`
	IsConnected   bool      `gorm:"not null;default:true"`
	JoinedAt      time.Time `gorm:"not null"`
	LastHeartbeat time.Time `gorm:"not null;index"`
}

type VideoCallSignal struct {
	ID          string         `gorm:"primaryKey;size:36"`
	RoomCode    string         `gorm:"size:4;not null;index:idx_video_signals_inbox"`
	FromUserID  string         `gorm:"size:36;not null;index"`
	ToUserID    string         `gorm:"size:36;not null;index:idx_video_signals_inbox"`
	Type        string         `gorm:"size:20;not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	Delivered   bool           `gorm:"not null;default:false;index:idx_video_signals_inbox"`
	DeliveredAt *time.Time
	CreatedAt   time.Time `gorm:"not null;index"`
}
