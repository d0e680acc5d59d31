package services

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedService composes a user's home feed: their own posts of any visibility
// plus the public posts of everyone they follow, newest first.
type FeedService struct {
	users repositories.UserRepository
	posts repositories.PostRepository
	limit int
}

// NewFeedService returns a feed composer capped at limit posts per request.
func NewFeedService(users repositories.UserRepository, posts repositories.PostRepository, limit int) *FeedService {
	if limit <= 0 {
		limit = models.DefaultFeedLimit
	}
	return &FeedService{users: users, posts: posts, limit: limit}
}

// Limit is the configured cap.
func (s *FeedService) Limit() int {
	return s.limit
}

// Feed returns up to limit posts for userID. A non-positive limit means the cap.
func (s *FeedService) Feed(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}

	following := make([]primitive.ObjectID, 0, len(user.Following))
	for _, id := range user.Following {
		if !id.IsZero() && id != user.ID {
			following = append(following, id)
		}
	}

	posts, err := s.posts.GetFeed(ctx, user.ID, following, int64(limit))
	if err != nil {
		return nil, apperrors.Internal("failed to load feed", err)
	}
	for i := range posts {
		posts[i].NormalizeLikes()
	}
	return posts, nil
}
