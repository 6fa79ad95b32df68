package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleAnonymousAuth issues or recovers the caller's user id. A stored uid
// from an earlier visit takes precedence over whatever the cookie maps to.
func (s *Server) handleAnonymousAuth(c *gin.Context) {
	var req anonymousAuthRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req, bindMessages{"StoredUID": {"userid": "Stored uid is invalid"}}, "Invalid auth request") {
			return
		}
	}
	sessionKey := ensureSessionKey(c)
	result, err := s.sessions.Authenticate(c.Request.Context(), sessionKey, req.StoredUID)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uid":         result.Identity.ID,
		"session_key": result.Identity.SessionKey,
		"created":     result.Created,
		"recovered":   result.Recovered,
	})
}

func (s *Server) handleSession(c *gin.Context) {
	cookie, err := c.Request.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(c, http.StatusUnauthorized, "unauthenticated", "No session")
		return
	}
	identity, ok, err := s.sessions.BySessionKey(c.Request.Context(), cookie.Value)
	if err != nil {
		writeFailure(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthenticated", "No session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": identity.ID, "session_key": identity.SessionKey})
}
