package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"speakup/internal/apperr"
)

func Success(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func Created(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidAudio),
		errors.Is(err, apperr.ErrTranscriptionFailed),
		errors.Is(err, apperr.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrProviderUnavailable),
		errors.Is(err, apperr.ErrEmptyGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fail writes err with its mapped status. Learner-actionable errors carry
// friendly text; internal errors are logged and hidden.
func Fail(c *gin.Context, err error) {
	code := StatusFor(err)
	if msg, ok := apperr.UserMessage(err); ok {
		Error(c, code, msg)
		return
	}
	if code == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		Error(c, code, "internal server error")
		return
	}
	Error(c, code, publicMessage(err))
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not found"
	case errors.Is(err, apperr.ErrProviderUnavailable), errors.Is(err, apperr.ErrEmptyGeneration):
		return "an upstream AI provider is unavailable, please try again"
	}
	return err.Error()
}
