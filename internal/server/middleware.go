package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/agencyops/renewd/internal/orgcontext"
)

const HeaderOrg = "X-Org-ID"

// OrgContext resolves the active organization from the request header,
// falling back to the configured default. Services reject requests that
// reach them without an organization in context.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if header != "" {
			orgID, err := snowflake.ParseString(header)
			if err != nil || orgID == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization header"))
				return
			}
			c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), int64(orgID)))
			c.Next()
			return
		}

		if s.cfg.DefaultOrgID != 0 {
			c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), s.cfg.DefaultOrgID))
		}
		c.Next()
	}
}
