package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/middleware"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
	"github.com/stemsi/mcqprep-backend/internal/response"
	"github.com/stemsi/mcqprep-backend/internal/service"
)

// sessionError maps a session service error to an HTTP status and code.
func sessionError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrResultNotReady):
		return http.StatusConflict, response.ErrResultNotReady
	case errors.Is(err, quiz.ErrNotReady):
		return http.StatusConflict, response.ErrSessionNotReady
	case errors.Is(err, quiz.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrSessionSubmitted
	case errors.Is(err, quiz.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, quiz.ErrIndexOutOfRange):
		return http.StatusBadRequest, response.ErrIndexOutOfRange
	case errors.Is(err, quiz.ErrUnknownOption):
		return http.StatusBadRequest, response.ErrUnknownOption
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// requestLogger tags base with the request ID and, behind a session ticket,
// the session and ticket ID the caller presented.
func requestLogger(c *gin.Context, base zerolog.Logger) zerolog.Logger {
	log := response.Logger(c, base)
	if claims := middleware.GetClaims(c); claims != nil {
		log = log.With().Str("session_id", claims.SessionID).Str("ticket_id", claims.ID).Logger()
	}
	return log
}
