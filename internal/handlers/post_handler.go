package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts *services.PostService
	blobs storage.BlobStore
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService, blobs storage.BlobStore) *PostHandler {
	return &PostHandler{posts: posts, blobs: blobs}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost creates a new post from JSON or from a multipart form whose
// "photos" files are uploaded to the blob store in order.
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	photos := req.Photos
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.InvalidInput("invalid multipart form")
		}
		files := form.File["photos"]
		if len(files) > models.MaxPhotosPerPost {
			return apperrors.InvalidInput("a post can have at most 10 photos")
		}
		if strings.TrimSpace(req.Content) == "" {
			return apperrors.InvalidInput("content is required")
		}
		photos, err = storage.SaveFiles(c.Request().Context(), h.blobs, files)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
	}

	post, err := h.posts.CreatePost(c.Request().Context(), userID, req.Content, photos, models.Visibility(req.Visibility))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, models.NewPostView(*post, userID))
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	post, err := h.posts.GetPost(c.Request().Context(), userID, postID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewPostView(*post, userID))
}

// UpdatePost updates the supplied fields of an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	patch := models.PostPatch{Content: req.Content}
	if req.Visibility != nil {
		v := models.Visibility(*req.Visibility)
		patch.Visibility = &v
	}
	if req.Photos != nil {
		patch.Photos = append([]string{}, *req.Photos...)
	}

	post, err := h.posts.UpdatePost(c.Request().Context(), userID, postID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewPostView(*post, userID))
}

// DeletePost deletes a post
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.posts.DeletePost(c.Request().Context(), userID, postID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
