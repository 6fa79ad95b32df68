package server

import (
	"net/http"

	"cards-chaos/internal/game"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateRoom(c *gin.Context) {
	if !s.enforceRateLimit(c, "create_room") {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createRoomRequest
	if !bindJSON(c, &req, createRoomMessages, "Invalid room request") {
		return
	}
	name, _ := validateName(req.HostName)
	avatar, _ := validateAvatar(req.Avatar)
	room, err := s.createRoom(c.Request.Context(), userID, name, avatar, req.PackID, req.MaxRounds)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"room_code": room.Code,
		"room":      game.ViewFor(room, userID),
	})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	room, err := s.rooms.Get(c.Request.Context(), code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, game.ViewFor(room, viewerID(c)))
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	if !s.enforceRateLimit(c, "join_room") {
		return
	}
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req joinRoomRequest
	if !bindJSON(c, &req, joinRoomMessages, "Invalid join request") {
		return
	}
	name, _ := validateName(req.PlayerName)
	avatar, _ := validateAvatar(req.Avatar)
	room, err := s.joinRoom(c.Request.Context(), code, userID, name, avatar)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": game.ViewFor(room, userID)})
}

func (s *Server) handleLeaveRoom(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if _, err := s.leaveRoom(c.Request.Context(), code, userID); err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req settingsRequest
	if !bindJSON(c, &req, settingsMessages, "Invalid settings") {
		return
	}
	if req.PackID != nil && *req.PackID != "" {
		if _, err := validatePackID(*req.PackID); err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "Pack id is invalid")
			return
		}
	}
	room, err := s.updateSettings(c.Request.Context(), code, userID, roomSettings{PackID: req.PackID, MaxRounds: req.MaxRounds})
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": game.ViewFor(room, userID)})
}

func (s *Server) handleStartGame(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	room, err := s.startGame(c.Request.Context(), code, userID)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": game.ViewFor(room, userID)})
}

func (s *Server) handleSubmitCard(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req submitCardRequest
	if !bindJSON(c, &req, bindMessages{"Card": {"required": "Card is required"}}, "Invalid submission") {
		return
	}
	room, err := s.submitCard(c.Request.Context(), code, userID, req.Card)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": game.ViewFor(room, userID)})
}

func (s *Server) handlePickWinner(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req pickWinnerRequest
	if !bindJSON(c, &req, bindMessages{"WinnerID": {"required": "Winner is required", "userid": "Winner is invalid"}}, "Invalid pick") {
		return
	}
	room, changed, err := s.pickWinner(c.Request.Context(), code, userID, req.WinnerID)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "changed": changed, "room": game.ViewFor(room, userID)})
}

// handleRoundTimeout lets a client nudge a room whose deadline passed
// without waiting for the sweeper. It never fails on game rules, and it
// always republishes so lagging clients resync.
func (s *Server) handleRoundTimeout(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	room, changed, err := s.handleTimeout(c.Request.Context(), code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	s.publishRoom(code, "timeout")
	c.JSON(http.StatusOK, gin.H{"success": true, "changed": changed, "room": game.ViewFor(room, viewerID(c))})
}
