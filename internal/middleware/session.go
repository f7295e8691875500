package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/mcqprep-backend/internal/response"
)

// ValidSessionID rejects requests whose :session_id is not a UUID before any
// ticket or registry lookup happens.
func ValidSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param("session_id")); err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		c.Next()
	}
}
