package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
)

func (s *Server) ListEscalations(c *gin.Context) {
	includeResolved, err := parseOptionalBool(c.Query("include_resolved"))
	if err != nil {
		AbortWithError(c, newValidationError("include_resolved", "invalid_include_resolved", "invalid include_resolved"))
		return
	}

	resp, err := s.escalationSvc.List(c.Request.Context(), escalationdomain.ListEscalationRequest{
		IncludeResolved: includeResolved != nil && *includeResolved,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveEscalation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.escalationSvc.Resolve(c.Request.Context(), escalationdomain.ResolveEscalationRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
