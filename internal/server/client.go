package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
)

type createClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.Create(c.Request.Context(), clientdomain.CreateClientRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListClients(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name string `form:"name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), clientdomain.ListClientRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Name:      strings.TrimSpace(query.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.clientSvc.GetByID(c.Request.Context(), clientdomain.GetClientRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientPreferences(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.clientSvc.GetPreferences(c.Request.Context(), clientdomain.GetPreferencesRequest{
		ClientID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePreferencesRequest struct {
	OptOut *bool `json:"opt_out"`
	Steps  []struct {
		Channel    string `json:"channel"`
		DelayHours int    `json:"delay_hours"`
		Enabled    bool   `json:"enabled"`
	} `json:"steps"`
}

func (s *Server) UpdateClientPreferences(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	steps := make([]clientdomain.PreferenceInput, 0, len(req.Steps))
	for _, step := range req.Steps {
		steps = append(steps, clientdomain.PreferenceInput{
			Channel:    clientdomain.Channel(strings.TrimSpace(step.Channel)),
			DelayHours: step.DelayHours,
			Enabled:    step.Enabled,
		})
	}

	resp, err := s.clientSvc.UpdatePreferences(c.Request.Context(), clientdomain.UpdatePreferencesRequest{
		ClientID: id,
		OptOut:   req.OptOut,
		Steps:    steps,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isClientValidationError(err error) bool {
	switch err {
	case clientdomain.ErrInvalidOrganization,
		clientdomain.ErrInvalidName,
		clientdomain.ErrInvalidEmail,
		clientdomain.ErrInvalidChannel,
		clientdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
