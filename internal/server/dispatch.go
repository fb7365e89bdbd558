package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
)

func (s *Server) ListDispatches(c *gin.Context) {
	var query struct {
		pagination.Pagination
		AssetID string `form:"asset_id"`
		Outcome string `form:"outcome"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.dispatchSvc.List(c.Request.Context(), dispatchdomain.ListDispatchRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		AssetID:   strings.TrimSpace(query.AssetID),
		Outcome:   dispatchdomain.Outcome(strings.ToUpper(strings.TrimSpace(query.Outcome))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AcknowledgeDispatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.dispatchSvc.Acknowledge(c.Request.Context(), dispatchdomain.AcknowledgeRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SendDueNotifications runs the reminder pass on demand instead of
// waiting for the next scheduler tick.
func (s *Server) SendDueNotifications(c *gin.Context) {
	outcome, err := s.scheduler.DispatchDueNow(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}
