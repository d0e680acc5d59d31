package services

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFollowIsSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "")
	b := env.createUser(t, "")

	changed, err := env.graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []primitive.ObjectID{b.ID}, env.reload(t, a.ID).Following)
	assert.Equal(t, []primitive.ObjectID{a.ID}, env.reload(t, b.ID).Followers)

	following, err := env.graph.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)

	reverse, err := env.graph.IsFollowing(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, reverse)

	notifications := env.notificationsFor(t, b.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Kind)
	assert.Equal(t, a.ID, notifications[0].ActorID)
	assert.Equal(t, a.Handle, notifications[0].ActorHandle)
	assert.Nil(t, notifications[0].PostID)

	events := env.live.For(b.ID)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventNotification, events[0].Event)
}

func TestFollowTwiceIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "")
	b := env.createUser(t, "")

	_, err := env.graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	changed, err := env.graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Len(t, env.reload(t, a.ID).Following, 1)
	assert.Len(t, env.reload(t, b.ID).Followers, 1)
	assert.Len(t, env.notificationsFor(t, b.ID), 1)
}

func TestFollowSelfFails(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t, "")

	_, err := env.graph.Follow(context.Background(), a.ID, a.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidOperation, apperrors.KindOf(err))

	reloaded := env.reload(t, a.ID)
	assert.Empty(t, reloaded.Following)
	assert.Empty(t, reloaded.Followers)
	assert.Empty(t, env.notificationsFor(t, a.ID))
}

func TestFollowUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t, "")

	_, err := env.graph.Follow(context.Background(), a.ID, primitive.NewObjectID())
	assert.True(t, errors.Is(err, apperrors.NotFound("")))
	assert.Empty(t, env.reload(t, a.ID).Following)
}

func TestUnfollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "")
	b := env.createUser(t, "")

	_, err := env.graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	changed, err := env.graph.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, env.reload(t, a.ID).Following)
	assert.Empty(t, env.reload(t, b.ID).Followers)

	// not following any more: no-op, not an error
	changed, err = env.graph.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// unfollow never notifies
	assert.Len(t, env.notificationsFor(t, b.ID), 1)
}

func TestFollowRepairsHalfWrittenEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "")
	b := env.createUser(t, "")

	// simulate a failure between the two writes of an earlier follow
	require.NoError(t, env.store.AddFollowing(ctx, a.ID, b.ID))

	changed, err := env.graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []primitive.ObjectID{b.ID}, env.reload(t, a.ID).Following)
	assert.Equal(t, []primitive.ObjectID{a.ID}, env.reload(t, b.ID).Followers)
}

func TestFollowersAndFollowing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "")
	b := env.createUser(t, "")
	c := env.createUser(t, "")

	for _, follower := range []*models.User{b, c} {
		_, err := env.graph.Follow(ctx, follower.ID, a.ID)
		require.NoError(t, err)
	}

	followers, err := env.graph.Followers(ctx, a.ID)
	require.NoError(t, err)
	handles := []string{}
	for _, u := range followers {
		handles = append(handles, u.Handle)
	}
	assert.ElementsMatch(t, []string{b.Handle, c.Handle}, handles)

	following, err := env.graph.Following(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, a.Handle, following[0].Handle)
}

func TestFollowSurvivesNotificationFailure(t *testing.T) {
	store := repositories.NewMemoryStore()
	notifications := NewNotificationService(failingNotifications{store}, nil, nil)
	graph := NewGraphService(store, notifications)
	ctx := context.Background()

	a := &models.User{Handle: "alice"}
	b := &models.User{Handle: "bob"}
	require.NoError(t, store.CreateUser(ctx, a))
	require.NoError(t, store.CreateUser(ctx, b))

	changed, err := graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)
}

type failingNotifications struct {
	repositories.NotificationRepository
}

func (failingNotifications) CreateNotification(context.Context, *models.Notification) error {
	return errors.New("store unavailable")
}
