package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleVideoParticipants(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.requireMember(ctx, code, userID); err != nil {
		writeFailure(c, err)
		return
	}
	participants, err := s.video.List(ctx, code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (s *Server) handleVideoJoin(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req videoJoinRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, nil, "Invalid join request") {
		return
	}
	participant, participants, err := s.joinVideo(c.Request.Context(), code, userID, boolOr(req.Video, true), boolOr(req.Audio, true))
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": participant, "participants": participants})
}

func (s *Server) handleVideoLeave(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := s.leaveVideo(c.Request.Context(), code, userID); err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleVideoMedia(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req mediaRequest
	if !bindJSON(c, &req, nil, "Invalid media update") {
		return
	}
	participant, err := s.updateMedia(c.Request.Context(), code, userID, MediaUpdate{
		Video:  req.Video,
		Audio:  req.Audio,
		Screen: req.ScreenSharing,
	})
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": participant})
}

func (s *Server) handleDrainSignals(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.requireMember(ctx, code, userID); err != nil {
		writeFailure(c, err)
		return
	}
	signals, err := s.signals.Drain(ctx, code, userID)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func (s *Server) handleSendSignal(c *gin.Context) {
	if !s.enforceRateLimit(c, "signal") {
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
	var req signalRequest
	if !bindJSON(c, &req, signalMessages, "Invalid signal") {
		return
	}
	signal, err := s.sendSignal(c.Request.Context(), code, userID, req.TargetUserID, req.Type, req.Payload)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"signal": signal})
}

// handleVideoCleanup drops delivered signals and disconnected participants
// for a room.
func (s *Server) handleVideoCleanup(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	signals, err := s.signals.DeleteDelivered(ctx, code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	participants, err := s.video.Purge(ctx, code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	log.Printf("video cleanup room=%s signals=%d participants=%d", code, signals, participants)
	c.JSON(http.StatusOK, gin.H{"signals_deleted": signals, "participants_removed": participants})
}

func (s *Server) handleICEServers(c *gin.Context) {
	servers := make([]gin.H, 0, len(s.cfg.ICEServers))
	for _, url := range s.cfg.ICEServers {
		servers = append(servers, gin.H{"urls": url})
	}
	c.JSON(http.StatusOK, gin.H{"ice_servers": servers})
}
