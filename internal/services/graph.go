package services

import (
	"context"
	"errors"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GraphService maintains the follow graph. Each edge is stored twice, in the
// follower's Following and the followee's Followers; the two writes are
// separate single-document updates, both idempotent, so a retry after a
// partial failure converges.
type GraphService struct {
	users    repositories.UserRepository
	notifier *NotificationService
}

func NewGraphService(users repositories.UserRepository, notifier *NotificationService) *GraphService {
	return &GraphService{users: users, notifier: notifier}
}

// Follow makes actorID follow targetID. It reports whether a new edge was
// created; following an already-followed user is a silent no-op.
func (s *GraphService) Follow(ctx context.Context, actorID, targetID primitive.ObjectID) (bool, error) {
	if actorID == targetID {
		return false, apperrors.InvalidOperation("cannot follow yourself")
	}
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return false, err
	}

	if actor.IsFollowing(targetID) && containsID(target.Followers, actorID) {
		return false, nil
	}

	if err := s.users.AddFollowing(ctx, actorID, targetID); err != nil {
		return false, userWriteError(err)
	}
	if err := s.users.AddFollower(ctx, targetID, actorID); err != nil {
		return false, userWriteError(err)
	}

	s.notifier.notify(ctx, &models.Notification{
		RecipientID: targetID,
		ActorID:     actorID,
		ActorHandle: actor.Handle,
		Kind:        models.NotificationFollow,
		Text:        actor.Handle + " started following you",
	})
	return true, nil
}

// Unfollow removes the edge actorID -> targetID. Not following is a no-op.
func (s *GraphService) Unfollow(ctx context.Context, actorID, targetID primitive.ObjectID) (bool, error) {
	if actorID == targetID {
		return false, nil
	}
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return false, err
	}

	if !actor.IsFollowing(targetID) && !containsID(target.Followers, actorID) {
		return false, nil
	}

	if err := s.users.RemoveFollowing(ctx, actorID, targetID); err != nil {
		return false, userWriteError(err)
	}
	if err := s.users.RemoveFollower(ctx, targetID, actorID); err != nil {
		return false, userWriteError(err)
	}
	return true, nil
}

// IsFollowing reports whether actorID follows targetID.
func (s *GraphService) IsFollowing(ctx context.Context, actorID, targetID primitive.ObjectID) (bool, error) {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return false, userLookupError(err)
	}
	return actor.IsFollowing(targetID), nil
}

func (s *GraphService) Followers(ctx context.Context, userID primitive.ObjectID) ([]models.UserCompact, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}
	return s.compacts(ctx, user.Followers)
}

func (s *GraphService) Following(ctx context.Context, userID primitive.ObjectID) ([]models.UserCompact, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}
	return s.compacts(ctx, user.Following)
}

func (s *GraphService) compacts(ctx context.Context, ids []primitive.ObjectID) ([]models.UserCompact, error) {
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load users", err)
	}
	out := make([]models.UserCompact, len(users))
	for i := range users {
		out[i] = users[i].ToCompact()
	}
	return out, nil
}

func (s *GraphService) loadPair(ctx context.Context, actorID, targetID primitive.ObjectID) (*models.User, *models.User, error) {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, nil, userLookupError(err)
	}
	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, nil, userLookupError(err)
	}
	return actor, target, nil
}

func userLookupError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("user not found")
	}
	return apperrors.Internal("failed to load user", err)
}

func userWriteError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("user not found")
	}
	return apperrors.Internal("failed to update follow graph", err)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
