package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	userIDHeader  = "X-User-ID"
	userIDContext = "user_id"
)

// identify resolves the caller from the X-User-ID header, a user_id query
// parameter (browsers cannot set headers on websocket upgrades) or the
// session cookie, in that order. A claimed id must be a registered identity;
// an unknown one falls through to the cookie.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		claimed := strings.TrimSpace(c.GetHeader(userIDHeader))
		if claimed == "" {
			claimed = strings.TrimSpace(c.Query("user_id"))
		}
		if claimed != "" && !isUserID(claimed) {
			writeError(c, http.StatusBadRequest, codeValidation, "Invalid user id")
			return
		}

		userID := ""
		if claimed != "" {
			identity, ok, err := s.sessions.Lookup(ctx, claimed)
			if err != nil {
				log.Printf("identity lookup failed user_id=%s error=%v", claimed, err)
			} else if ok {
				userID = identity.ID
			}
		}
		if userID == "" {
			if cookie, err := c.Request.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				identity, ok, err := s.sessions.BySessionKey(ctx, cookie.Value)
				if err != nil {
					log.Printf("session lookup failed error=%v", err)
				} else if ok {
					userID = identity.ID
				}
			}
		}
		c.Set(userIDContext, userID)
		c.Next()
	}
}

func viewerID(c *gin.Context) string {
	return c.GetString(userIDContext)
}

func requireUser(c *gin.Context) (string, bool) {
	userID := viewerID(c)
	if userID == "" {
		writeError(c, http.StatusUnauthorized, "unauthenticated", "Not authenticated")
		return "", false
	}
	return userID, true
}

func roomCodeParam(c *gin.Context) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if !isRoomCode(code) {
		writeError(c, http.StatusNotFound, "not_found", "Room not found")
		return "", false
	}
	return code, true
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}
		log.Printf("http request method=%s path=%s status=%d duration=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
