package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	graph    *services.GraphService
	accounts *services.AccountService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(graph *services.GraphService, accounts *services.AccountService) *FollowHandler {
	return &FollowHandler{graph: graph, accounts: accounts}
}

// FollowResponse reports the edge state after a follow or unfollow.
type FollowResponse struct {
	User      models.UserCompact `json:"user"`
	Following bool               `json:"following"`
	Changed   bool               `json:"changed"`
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/follow/:id", h.FollowUser)
	g.POST("/unfollow/:id", h.UnfollowUser)
}

// FollowUser follows a user given by id or handle
func (h *FollowHandler) FollowUser(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	target, err := h.accounts.ResolveUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	changed, err := h.graph.Follow(c.Request().Context(), userID, target.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FollowResponse{User: target.ToCompact(), Following: true, Changed: changed})
}

// UnfollowUser unfollows a user given by id or handle
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	target, err := h.accounts.ResolveUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	changed, err := h.graph.Unfollow(c.Request().Context(), userID, target.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FollowResponse{User: target.ToCompact(), Following: false, Changed: changed})
}
