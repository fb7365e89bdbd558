package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	renewaldomain "github.com/agencyops/renewd/internal/renewal/domain"
)

type renewBatchRequest struct {
	Items []struct {
		AssetID       string `json:"asset_id"`
		ExpiresAt     string `json:"expires_at"`
		AllowBackdate bool   `json:"allow_backdate"`
	} `json:"items"`
}

// RenewAssets applies a batch of renewals. Item failures are reported
// per item in the response; the endpoint only errors as a whole for
// malformed or empty requests.
func (s *Server) RenewAssets(c *gin.Context) {
	var req renewBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]renewaldomain.RenewalItem, 0, len(req.Items))
	for _, item := range req.Items {
		// An unparseable expiry flows through as the zero time so the
		// coordinator rejects that item without failing the batch.
		var expiresAt time.Time
		if parsed, err := parseOptionalTime(item.ExpiresAt, false); err == nil && parsed != nil {
			expiresAt = *parsed
		}
		items = append(items, renewaldomain.RenewalItem{
			AssetID:       strings.TrimSpace(item.AssetID),
			ExpiresAt:     expiresAt,
			AllowBackdate: item.AllowBackdate,
		})
	}

	resp, err := s.renewalSvc.RenewBatch(c.Request.Context(), renewaldomain.RenewBatchRequest{
		Items: items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
