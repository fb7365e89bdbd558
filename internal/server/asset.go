package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
)

type createAssetRequest struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	ClientID  string `json:"client_id"`
	OwnerID   string `json:"owner_id"`
	ExpiresAt string `json:"expires_at"`
	AutoRenew bool   `json:"auto_renew"`
}

func (s *Server) CreateAsset(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	expiresAt, err := parseOptionalTime(req.ExpiresAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("expires_at", "invalid_expires_at", "invalid expires_at"))
		return
	}

	resp, err := s.assetSvc.Create(c.Request.Context(), assetdomain.CreateAssetRequest{
		Kind:      assetdomain.Kind(strings.TrimSpace(req.Kind)),
		Name:      strings.TrimSpace(req.Name),
		ClientID:  strings.TrimSpace(req.ClientID),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		ExpiresAt: expiresAt,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAssets(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Kind     string `form:"kind"`
		ClientID string `form:"client_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.assetSvc.List(c.Request.Context(), assetdomain.ListAssetRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Kind:      assetdomain.Kind(strings.TrimSpace(query.Kind)),
		ClientID:  strings.TrimSpace(query.ClientID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAssetByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.assetSvc.GetByID(c.Request.Context(), assetdomain.GetAssetRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssetDataQuality(c *gin.Context) {
	resp, err := s.assetSvc.DataQuality(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isAssetValidationError(err error) bool {
	switch err {
	case assetdomain.ErrInvalidOrganization,
		assetdomain.ErrInvalidKind,
		assetdomain.ErrInvalidName,
		assetdomain.ErrInvalidClient,
		assetdomain.ErrInvalidExpiry,
		assetdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
