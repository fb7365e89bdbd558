package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agencyops/renewd/internal/config"
)

func (s *Server) GetReminderPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.policy.Get()})
}

// UpdateReminderPolicy swaps the active policy. Omitted fields fall back
// to the documented defaults; the next scheduler tick picks the new
// policy up without a restart.
func (s *Server) UpdateReminderPolicy(c *gin.Context) {
	var req config.ReminderPolicy
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.policy.Store(req); err != nil {
		AbortWithError(c, newValidationError("policy", "invalid_policy", err.Error()))
		return
	}

	if s.scheduler != nil {
		s.scheduler.TriggerNow()
	}

	c.JSON(http.StatusOK, gin.H{"data": s.policy.Get()})
}
