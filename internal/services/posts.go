package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostService owns posts and their engagement (likes and comments).
type PostService struct {
	posts    repositories.PostRepository
	users    repositories.UserRepository
	notifier *NotificationService
}

func NewPostService(posts repositories.PostRepository, users repositories.UserRepository, notifier *NotificationService) *PostService {
	return &PostService{posts: posts, users: users, notifier: notifier}
}

// CreatePost stores a new post. The author handle is copied onto the post
// and stays as it was even if the author later renames.
func (s *PostService) CreatePost(ctx context.Context, authorID primitive.ObjectID, content string, photos []string, visibility models.Visibility) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxPostLength {
		return nil, apperrors.InvalidInput("content is too long")
	}
	if len(photos) > models.MaxPhotosPerPost {
		return nil, apperrors.InvalidInput("a post can have at most 10 photos")
	}
	if visibility == "" {
		visibility = models.DefaultVisibility
	}
	if !visibility.Valid() {
		return nil, apperrors.InvalidInput("visibility must be public or private")
	}

	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, userLookupError(err)
	}

	post := &models.Post{
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Content:      content,
		Photos:       append([]string{}, photos...),
		Likes:        []primitive.ObjectID{},
		Comments:     []models.Comment{},
		Visibility:   visibility,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, apperrors.Internal("failed to create post", err)
	}
	return post, nil
}

// GetPost returns a post readable by viewerID. Private posts of other users
// are reported as not found.
func (s *PostService) GetPost(ctx context.Context, viewerID, postID primitive.ObjectID) (*models.Post, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(viewerID) {
		return nil, apperrors.NotFound("post not found")
	}
	post.NormalizeLikes()
	return post, nil
}

// UpdatePost applies the supplied fields of patch. Only the author may update.
func (s *PostService) UpdatePost(ctx context.Context, actorID, postID primitive.ObjectID, patch models.PostPatch) (*models.Post, error) {
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return nil, apperrors.InvalidInput("content cannot be empty")
		}
		if utf8.RuneCountInString(content) > models.MaxPostLength {
			return nil, apperrors.InvalidInput("content is too long")
		}
		patch.Content = &content
	}
	if patch.Visibility != nil && !patch.Visibility.Valid() {
		return nil, apperrors.InvalidInput("visibility must be public or private")
	}
	if len(patch.Photos) > models.MaxPhotosPerPost {
		return nil, apperrors.InvalidInput("a post can have at most 10 photos")
	}

	if _, err := s.loadOwned(ctx, actorID, postID, "update"); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.GetPost(ctx, actorID, postID)
	}

	post, err := s.posts.UpdatePost(ctx, postID, patch)
	if err != nil {
		return nil, postWriteError(err)
	}
	if err := s.normalizeLikes(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post. Notifications that reference it are kept.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	if _, err := s.loadOwned(ctx, actorID, postID, "delete"); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return postWriteError(err)
	}
	return nil
}

// Like adds actorID to the post's like set. Liking twice is a no-op and only
// the first like notifies the author.
func (s *PostService) Like(ctx context.Context, actorID, postID primitive.ObjectID) (*models.Post, error) {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, userLookupError(err)
	}
	if _, err := s.GetPost(ctx, actorID, postID); err != nil {
		return nil, err
	}

	post, added, err := s.posts.AddLike(ctx, postID, actorID)
	if err != nil {
		return nil, postWriteError(err)
	}
	if err := s.normalizeLikes(ctx, post); err != nil {
		return nil, err
	}

	if added && post.AuthorID != actorID {
		postRef := post.ID
		s.notifier.notify(ctx, &models.Notification{
			RecipientID: post.AuthorID,
			ActorID:     actorID,
			ActorHandle: actor.Handle,
			Kind:        models.NotificationLike,
			PostID:      &postRef,
			Text:        actor.Handle + " liked your post",
		})
	}
	return post, nil
}

// Unlike removes actorID from the like set. It never notifies.
func (s *PostService) Unlike(ctx context.Context, actorID, postID primitive.ObjectID) (*models.Post, error) {
	if _, err := s.GetPost(ctx, actorID, postID); err != nil {
		return nil, err
	}
	post, _, err := s.posts.RemoveLike(ctx, postID, actorID)
	if err != nil {
		return nil, postWriteError(err)
	}
	if err := s.normalizeLikes(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Comment appends a comment of at most 100 characters.
func (s *PostService) Comment(ctx context.Context, actorID, postID primitive.ObjectID, content string) (*models.Post, *models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.InvalidInput("comment is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return nil, nil, apperrors.InvalidInput("comment must be at most 100 characters")
	}

	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, nil, userLookupError(err)
	}
	if _, err := s.GetPost(ctx, actorID, postID); err != nil {
		return nil, nil, err
	}

	comment := models.Comment{
		ID:         primitive.NewObjectID(),
		UserID:     actor.ID,
		UserHandle: actor.Handle,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	post, err := s.posts.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, nil, postWriteError(err)
	}
	if err := s.normalizeLikes(ctx, post); err != nil {
		return nil, nil, err
	}

	if post.AuthorID != actorID {
		postRef := post.ID
		s.notifier.notify(ctx, &models.Notification{
			RecipientID: post.AuthorID,
			ActorID:     actorID,
			ActorHandle: actor.Handle,
			Kind:        models.NotificationComment,
			PostID:      &postRef,
			Text:        content,
		})
	}
	return post, &comment, nil
}

// PostsByAuthor lists authorID's posts newest first; private ones only for the author.
func (s *PostService) PostsByAuthor(ctx context.Context, viewerID, authorID primitive.ObjectID, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > models.DefaultFeedLimit {
		limit = models.DefaultFeedLimit
	}
	posts, err := s.posts.GetPostsByAuthor(ctx, authorID, viewerID == authorID, int64(limit))
	if err != nil {
		return nil, apperrors.Internal("failed to load posts", err)
	}
	for i := range posts {
		posts[i].NormalizeLikes()
	}
	return posts, nil
}

// normalizeLikes restores the like-set invariant on post and persists the
// cleaned set when anything was stripped.
func (s *PostService) normalizeLikes(ctx context.Context, post *models.Post) error {
	if !post.NormalizeLikes() {
		return nil
	}
	if err := s.posts.SetLikes(ctx, post.ID, post.Likes); err != nil {
		return postWriteError(err)
	}
	return nil
}

func (s *PostService) load(ctx context.Context, postID primitive.ObjectID) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("post not found")
		}
		return nil, apperrors.Internal("failed to load post", err)
	}
	return post, nil
}

func (s *PostService) loadOwned(ctx context.Context, actorID, postID primitive.ObjectID, action string) (*models.Post, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperrors.Forbidden("you are not allowed to " + action + " this post")
	}
	return post, nil
}

func postWriteError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("post not found")
	}
	return apperrors.Internal("failed to update post", err)
}
