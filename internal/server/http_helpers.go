package server

import (
	"errors"
	"log"
	"net/http"

	"cards-chaos/internal/game"

	"github.com/gin-gonic/gin"
)

const codeValidation = "validation"

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

// writeFailure maps a service error onto the response. Rule errors keep their
// code and message, missing entities become 404, anything else is a 500.
func writeFailure(c *gin.Context, err error) {
	if rule, ok := game.IsRule(err); ok {
		writeError(c, ruleStatus(rule), rule.Code, rule.Message)
		return
	}
	if isNotFound(err) {
		writeError(c, http.StatusNotFound, "not_found", capitalize(err.Error()))
		return
	}
	log.Printf("request failed method=%s path=%s error=%v", c.Request.Method, c.FullPath(), err)
	writeError(c, http.StatusInternalServerError, "internal", "Internal server error")
}

func errorBody(err error) gin.H {
	if rule, ok := game.IsRule(err); ok {
		return gin.H{"error": rule.Message, "code": rule.Code}
	}
	if isNotFound(err) {
		return gin.H{"error": capitalize(err.Error()), "code": "not_found"}
	}
	return gin.H{"error": "Internal server error", "code": "internal"}
}

func ruleStatus(rule *game.RuleError) int {
	switch rule.Code {
	case game.ErrCzarForbidden.Code, game.ErrNotHost.Code, game.ErrNotCzar.Code:
		return http.StatusForbidden
	case game.ErrDuplicateSubmission.Code, errPackExists.Code:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, game.ErrNotFound)
}

func capitalize(message string) string {
	if message == "" || message[0] < 'a' || message[0] > 'z' {
		return message
	}
	return string(message[0]-'a'+'A') + message[1:]
}
