package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, resolveBindError(err, messages, fallback))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, resolveBindError(err, messages, fallback))
		return false
	}
	return true
}

// resolveBindError picks the message registered for the first failing
// field and tag.
func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "Invalid request"
}
