package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingDeliverer struct {
	mu     sync.Mutex
	events map[primitive.ObjectID][]realtime.Event
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{events: make(map[primitive.ObjectID][]realtime.Event)}
}

func (d *recordingDeliverer) Deliver(userID primitive.ObjectID, event realtime.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[userID] = append(d.events[userID], event)
	return 1
}

func (d *recordingDeliverer) For(userID primitive.ObjectID) []realtime.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]realtime.Event(nil), d.events[userID]...)
}

type testEnv struct {
	store         *repositories.MemoryStore
	live          *recordingDeliverer
	notifications *NotificationService
	graph         *GraphService
	posts         *PostService
	feed          *FeedService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repositories.NewMemoryStore()
	live := newRecordingDeliverer()
	notifications := NewNotificationService(store, live, nil)
	return &testEnv{
		store:         store,
		live:          live,
		notifications: notifications,
		graph:         NewGraphService(store, notifications),
		posts:         NewPostService(store, store, notifications),
		feed:          NewFeedService(store, store, 50),
	}
}

func (e *testEnv) createUser(t *testing.T, handle string) *models.User {
	t.Helper()
	if handle == "" {
		handle = strings.ToLower(gofakeit.LetterN(12))
	}
	user := &models.User{Handle: handle, Name: gofakeit.Name()}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) reload(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	user, err := e.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (e *testEnv) notificationsFor(t *testing.T, id primitive.ObjectID) []models.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), id, 0, 0)
	require.NoError(t, err)
	return list
}

func (e *testEnv) createPost(t *testing.T, author *models.User, content string, visibility models.Visibility) *models.Post {
	t.Helper()
	post, err := e.posts.CreatePost(context.Background(), author.ID, content, nil, visibility)
	require.NoError(t, err)
	return post
}
