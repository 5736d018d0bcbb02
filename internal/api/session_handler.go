package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pmbr/domain/core"
	"pmbr/internal/analysis"
	"pmbr/internal/errors"
	"pmbr/ports"
)

const defaultListLimit = 50

// SessionHandler serves stored sessions and their trial records
type SessionHandler struct {
	repo ports.SessionRepository
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(repo ports.SessionRepository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// ListSessions returns sessions newest first; ?limit=N caps the result
func (sh *SessionHandler) ListSessions(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	sessions, err := sh.repo.ListSessions(c.Request.Context(), limit)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// GetSession returns one session manifest
func (sh *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	m, err := sh.repo.GetSession(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListTrials returns a session's trial records in order
func (sh *SessionHandler) ListTrials(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	if _, err := sh.repo.GetSession(c.Request.Context(), id); err != nil {
		writeRepoError(c, err)
		return
	}
	records, err := sh.repo.ListTrials(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "trials": records, "count": len(records)})
}

// GetSummary returns per-condition RT statistics and the PMBR effect
func (sh *SessionHandler) GetSummary(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	m, err := sh.repo.GetSession(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	records, err := sh.repo.ListTrials(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": m, "summary": analysis.Summarize(records)})
}

func sessionParam(c *gin.Context) (core.SessionID, bool) {
	id, err := core.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func writeRepoError(c *gin.Context, err error) {
	if core.IsNotFoundError(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": errors.CodeNotFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": errors.CodeInternalError})
}
