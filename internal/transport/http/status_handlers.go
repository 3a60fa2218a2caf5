package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatgate/internal/irc"
)

// SessionLister reports the connected IRC sessions.
type SessionLister interface {
	Sessions() []irc.SessionInfo
}

// StatusHandlers provides the read-only status endpoints.
type StatusHandlers struct {
	sessions SessionLister
	log      *zerolog.Logger
}

func NewStatusHandlers(sessions SessionLister, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		sessions: sessions,
		log:      logger,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Count    int               `json:"count"`
	Sessions []irc.SessionInfo `json:"sessions"`
}

// Health handles liveness checks.
// GET /health
func (h *StatusHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Sessions handles listing connected IRC sessions.
// GET /sessions
func (h *StatusHandlers) Sessions(c *gin.Context) {
	list := h.sessions.Sessions()
	h.log.Debug().Int("count", len(list)).Msg("listing sessions")
	c.JSON(http.StatusOK, SessionsResponse{Count: len(list), Sessions: list})
}
