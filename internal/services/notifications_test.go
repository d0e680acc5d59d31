package services

import (
	"context"
	"sync"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryUnread struct {
	mu     sync.Mutex
	counts map[string]int64
	hits   int
}

func newMemoryUnread() *memoryUnread {
	return &memoryUnread{counts: make(map[string]int64)}
}

func (c *memoryUnread) Get(_ context.Context, userID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[userID]
	if ok {
		c.hits++
	}
	return n, ok
}

func (c *memoryUnread) Set(_ context.Context, userID string, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID] = count
}

func (c *memoryUnread) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, userID)
}

func TestEmitDropsSelfNotification(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "")

	err := env.notifications.Emit(context.Background(), &models.Notification{
		RecipientID: u.ID,
		ActorID:     u.ID,
		Kind:        models.NotificationFollow,
	})
	require.NoError(t, err)
	assert.Empty(t, env.notificationsFor(t, u.ID))
	assert.Empty(t, env.live.For(u.ID))
}

func TestEmitPersistsBeforeDelivery(t *testing.T) {
	env := newTestEnv(t)
	recipient := env.createUser(t, "")
	actor := env.createUser(t, "")

	n := &models.Notification{
		RecipientID: recipient.ID,
		ActorID:     actor.ID,
		ActorHandle: actor.Handle,
		Kind:        models.NotificationFollow,
	}
	require.NoError(t, env.notifications.Emit(context.Background(), n))
	assert.False(t, n.ID.IsZero())

	events := env.live.For(recipient.ID)
	require.Len(t, events, 1)
	delivered, ok := events[0].Data.(*models.Notification)
	require.True(t, ok)
	assert.Equal(t, n.ID, delivered.ID, "live payload is the stored record")
}

func TestListNewestFirstAndCapped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipient := env.createUser(t, "")

	var last primitive.ObjectID
	for i := 0; i < models.MaxNotificationLimit+5; i++ {
		actor := env.createUser(t, "")
		n := &models.Notification{RecipientID: recipient.ID, ActorID: actor.ID, Kind: models.NotificationFollow}
		require.NoError(t, env.notifications.Emit(ctx, n))
		last = n.ID
	}

	list, err := env.notifications.List(ctx, recipient.ID, 500, 0)
	require.NoError(t, err)
	assert.Len(t, list, models.MaxNotificationLimit)
	assert.Equal(t, last, list[0].ID)

	rest, err := env.notifications.List(ctx, recipient.ID, 10, 50)
	require.NoError(t, err)
	assert.Len(t, rest, 5)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	store := repositories.NewMemoryStore()
	unread := newMemoryUnread()
	svc := NewNotificationService(store, nil, unread)
	ctx := context.Background()
	recipient := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		n := &models.Notification{RecipientID: recipient, ActorID: primitive.NewObjectID(), Kind: models.NotificationLike}
		require.NoError(t, svc.Emit(ctx, n))
		ids = append(ids, n.ID)
	}

	count, err := svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// second read comes from the cache
	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	assert.Equal(t, 1, unread.hits)

	require.NoError(t, svc.MarkRead(ctx, recipient, ids[0]))
	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	err = svc.MarkRead(ctx, stranger, ids[1])
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	require.NoError(t, svc.MarkAllRead(ctx, recipient))
	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	list, err := svc.List(ctx, recipient, 0, 0)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.IsRead)
	}
}

// racingNotifications runs onCount once, after the store has been counted
// and before the caller sees the result.
type racingNotifications struct {
	*repositories.MemoryStore
	onCount func()
}

func (r *racingNotifications) CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	count, err := r.MemoryStore.CountUnread(ctx, recipientID)
	if hook := r.onCount; hook != nil {
		r.onCount = nil
		hook()
	}
	return count, err
}

func TestUnreadCountDoesNotCacheRacedCount(t *testing.T) {
	repo := &racingNotifications{MemoryStore: repositories.NewMemoryStore()}
	unread := newMemoryUnread()
	svc := NewNotificationService(repo, nil, unread)
	ctx := context.Background()
	recipient := primitive.NewObjectID()

	repo.onCount = func() {
		n := &models.Notification{RecipientID: recipient, ActorID: primitive.NewObjectID(), Kind: models.NotificationLike}
		require.NoError(t, svc.Emit(ctx, n))
	}

	count, err := svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, unread.hits)
}

func TestMarkAllReadInvalidatesCachedCount(t *testing.T) {
	store := repositories.NewMemoryStore()
	unread := newMemoryUnread()
	svc := NewNotificationService(store, nil, unread)
	ctx := context.Background()
	recipient := primitive.NewObjectID()

	require.NoError(t, svc.Emit(ctx, &models.Notification{RecipientID: recipient, ActorID: primitive.NewObjectID(), Kind: models.NotificationFollow}))
	count, err := svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, svc.MarkAllRead(ctx, recipient))
	_, cached := unread.Get(ctx, recipient.Hex())
	assert.False(t, cached)

	count, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}
