package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	accounts *services.AccountService
	graph    *services.GraphService
	blobs    storage.BlobStore
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts *services.AccountService, graph *services.GraphService, blobs storage.BlobStore) *UserHandler {
	return &UserHandler{accounts: accounts, graph: graph, blobs: blobs}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/main", h.GetProfile)
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/:handle", h.GetUser)
	g.GET("/users/:handle/followers", h.GetFollowers)
	g.GET("/users/:handle/following", h.GetFollowing)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	profile, err := h.accounts.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// GetUser returns another user's profile with their visible posts
func (h *UserHandler) GetUser(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	profile, err := h.accounts.Profile(c.Request().Context(), userID, c.Param("handle"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile updates name, bio and, for multipart requests, the avatar
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	multipart := strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
	if multipart {
		params, err := c.FormParams()
		if err != nil {
			return apperrors.InvalidInput("invalid multipart form")
		}
		if v, ok := params["name"]; ok && len(v) > 0 {
			req.Name = &v[0]
		}
		if v, ok := params["bio"]; ok && len(v) > 0 {
			req.Bio = &v[0]
		}
	} else if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	update := models.ProfileUpdate{Name: req.Name, Bio: req.Bio}
	if multipart {
		if fh, err := c.FormFile("avatar"); err == nil {
			url, err := storage.SaveFile(c.Request().Context(), h.blobs, fh)
			if err != nil {
				return apperrors.InvalidInput(err.Error())
			}
			update.AvatarURL = &url
		} else if err != http.ErrMissingFile {
			return apperrors.InvalidInput("invalid avatar upload")
		}
	}

	profile, err := h.accounts.UpdateProfile(c.Request().Context(), userID, update)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetFollowers(c echo.Context) error {
	user, err := h.accounts.ResolveUser(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return err
	}
	users, err := h.graph.Followers(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetFollowing(c echo.Context) error {
	user, err := h.accounts.ResolveUser(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return err
	}
	users, err := h.graph.Following(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(name + " must be an integer")
	}
	return n, nil
}
