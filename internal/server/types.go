package server

import "encoding/json"

type anonymousAuthRequest struct {
	StoredUID string `json:"stored_uid" binding:"omitempty,userid"`
}

type createRoomRequest struct {
	HostName  string `json:"host_name" binding:"required,name"`
	Avatar    string `json:"avatar" binding:"omitempty,avatar"`
	PackID    string `json:"pack_id" binding:"omitempty,packid"`
	MaxRounds *int   `json:"max_rounds" binding:"omitempty,min=0,max=50"`
}

type joinRoomRequest struct {
	PlayerName string `json:"player_name" binding:"required,name"`
	Avatar     string `json:"avatar" binding:"omitempty,avatar"`
}

type settingsRequest struct {
	PackID    *string `json:"pack_id" binding:"omitempty"`
	MaxRounds *int    `json:"max_rounds" binding:"omitempty,min=0,max=50"`
}

type submitCardRequest struct {
	Card string `json:"card" binding:"required"`
}

type pickWinnerRequest struct {
	WinnerID string `json:"winner_id" binding:"required,userid"`
}

type videoJoinRequest struct {
	Video *bool `json:"video"`
	Audio *bool `json:"audio"`
}

type mediaRequest struct {
	Video         *bool `json:"video"`
	Audio         *bool `json:"audio"`
	ScreenSharing *bool `json:"screen_sharing"`
}

type signalRequest struct {
	TargetUserID string          `json:"target_user_id" binding:"required,userid"`
	Type         string          `json:"type" binding:"required,signaltype"`
	Payload      json.RawMessage `json:"payload"`
}

type createPackRequest struct {
	ID      string `json:"id" binding:"required,packid"`
	Name    string `json:"name" binding:"required,max=100"`
	Enabled *bool  `json:"enabled"`
}

type importPackRequest struct {
	Name       string   `json:"name" binding:"omitempty,max=100"`
	BlackCards []string `json:"black_cards" binding:"max=2000,dive,card"`
	WhiteCards []string `json:"white_cards" binding:"max=2000,dive,card"`
}

type createCardRequest struct {
	PackID string `json:"pack_id" binding:"required,packid"`
	Type   string `json:"type" binding:"required,oneof=question answer black white"`
	Text   string `json:"text" binding:"required,card"`
}

type listCardsQuery struct {
	PackID string `form:"pack_id" binding:"omitempty,packid"`
	Type   string `form:"type" binding:"omitempty,oneof=question answer black white"`
}

var (
	createRoomMessages = bindMessages{
		"HostName":  {"required": "Host name is required", "name": "Host name must be 1-20 letters, digits or simple punctuation"},
		"Avatar":    {"avatar": "Avatar is invalid"},
		"PackID":    {"packid": "Pack id is invalid"},
		"MaxRounds": {"min": "Max rounds must be between 0 and 50", "max": "Max rounds must be between 0 and 50"},
	}
	joinRoomMessages = bindMessages{
		"PlayerName": {"required": "Player name is required", "name": "Player name must be 1-20 letters, digits or simple punctuation"},
		"Avatar":     {"avatar": "Avatar is invalid"},
	}
	settingsMessages = bindMessages{
		"MaxRounds": {"min": "Max rounds must be between 0 and 50", "max": "Max rounds must be between 0 and 50"},
	}
	signalMessages = bindMessages{
		"TargetUserID": {"required": "Target user is required", "userid": "Target user is invalid"},
		"Type":         {"required": "Signal type is required", "signaltype": "Invalid signal type"},
	}
	packMessages = bindMessages{
		"ID":         {"required": "Pack id is required", "packid": "Pack id may only contain lowercase letters, digits, dashes and underscores"},
		"Name":       {"required": "Pack name is required", "max": "Pack name must be 100 characters or fewer"},
		"BlackCards": {"max": "Too many cards in one import", "card": "Card text is invalid"},
		"WhiteCards": {"max": "Too many cards in one import", "card": "Card text is invalid"},
	}
	cardMessages = bindMessages{
		"PackID": {"required": "Pack id is required", "packid": "Pack id is invalid"},
		"Type":   {"required": "Card type is required", "oneof": "Card type must be question or answer"},
		"Text":   {"required": "Card text is required", "card": "Card text is invalid"},
	}
)
