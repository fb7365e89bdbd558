package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agencyops/renewd/internal/alerts"
	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/orgcontext"
)

// RenewalAlerts returns the dashboard summary. Counts and lists come
// from one status resolution pass so they cannot disagree.
func (s *Server) RenewalAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, assetdomain.ErrInvalidOrganization)
		return
	}

	assets, err := s.assetRepo.ListSchedulable(ctx, s.db, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary := alerts.Summarize(assets, s.clk.Now(), s.policy.Get())
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ListExpiringAssets returns the flat expiring and expired rows behind
// the alert summary, optionally filtered to one status bucket.
func (s *Server) ListExpiringAssets(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, assetdomain.ErrInvalidOrganization)
		return
	}

	filter := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	switch filter {
	case "", "EXPIRING_SOON", "EXPIRED":
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "invalid status filter"))
		return
	}

	assets, err := s.assetRepo.ListSchedulable(ctx, s.db, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary := alerts.Summarize(assets, s.clk.Now(), s.policy.Get())

	var entries []alerts.Entry
	switch filter {
	case "EXPIRING_SOON":
		entries = summary.ExpiringList
	case "EXPIRED":
		entries = summary.ExpiredList
	default:
		entries = append(entries, summary.ExpiredList...)
		entries = append(entries, summary.ExpiringList...)
	}
	if entries == nil {
		entries = []alerts.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"assets":    entries,
		"truncated": summary.Truncated,
	}})
}
