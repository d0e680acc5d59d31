package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/internal/health"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/storage"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	e     *echo.Echo
	store *repositories.MemoryStore
}

func newTestAPI(t *testing.T, pinger health.Pinger) *testAPI {
	t.Helper()
	cfg := config.Default()
	cfg.UploadDir = t.TempDir()
	cfg.StoreDriver = config.StoreMemory

	store := repositories.NewMemoryStore()
	if pinger == nil {
		pinger = store
	}
	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	require.NoError(t, err)

	monitor := health.NewMonitor(pinger, time.Second)
	monitor.Check(context.Background())

	e := New(Dependencies{
		Config:        cfg,
		Users:         store,
		Posts:         store,
		Notifications: store,
		Blobs:         blobs,
		Monitor:       monitor,
	})
	return &testAPI{e: e, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, handle, password string) models.AuthResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/register", "", map[string]string{"handle": handle, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestAliceAndBobScenario(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register(t, "alice", "pw1")
	bob := api.register(t, "bob", "pw2")

	rec := api.do(t, http.MethodPost, "/follow/alice", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/users/alice/followers", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	followers := decode[[]models.UserCompact](t, rec)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Handle)

	rec = api.do(t, http.MethodPost, "/posts", alice.Token, map[string]string{"content": "hello", "visibility": "public"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.PostView](t, rec)

	rec = api.do(t, http.MethodGet, "/feed", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[[]models.PostView](t, rec)
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].ID)
	assert.Equal(t, "alice", feed[0].AuthorHandle)

	rec = api.do(t, http.MethodPost, "/posts/"+post.ID.Hex()+"/like", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	liked := decode[models.PostView](t, rec)
	assert.Equal(t, 1, liked.LikesCount)
	assert.True(t, liked.IsLiked)

	rec = api.do(t, http.MethodGet, "/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notifications := decode[[]models.Notification](t, rec)
	var likes []models.Notification
	for _, n := range notifications {
		if n.Kind == models.NotificationLike {
			likes = append(likes, n)
		}
	}
	require.Len(t, likes, 1)
	require.NotNil(t, likes[0].PostID)
	assert.Equal(t, post.ID, *likes[0].PostID)
	assert.Equal(t, "bob", likes[0].ActorHandle)

	rec = api.do(t, http.MethodPost, "/posts/"+post.ID.Hex()+"/unlike", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unliked := decode[models.PostView](t, rec)
	assert.Empty(t, unliked.Likes)

	rec = api.do(t, http.MethodGet, "/notifications", alice.Token, nil)
	assert.Len(t, decode[[]models.Notification](t, rec), len(notifications))

	rec = api.do(t, http.MethodGet, "/users/alice", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[models.PublicProfile](t, rec)
	assert.True(t, profile.IsFollowing)
	assert.Len(t, profile.Posts, 1)
}

func TestAuthErrors(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Error.Code)

	rec = api.do(t, http.MethodGet, "/feed", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[errorBody](t, rec).Error.Code)

	api.register(t, "carol", "secret")
	rec = api.do(t, http.MethodPost, "/login", "", map[string]string{"handle": "carol", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/register", "", map[string]string{"handle": "carol", "password": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[errorBody](t, rec).Error.Code)

	rec = api.do(t, http.MethodPost, "/register", "", map[string]string{"handle": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[errorBody](t, rec).Error.Code)
}

func TestEngagementErrors(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register(t, "alice", "pw1")
	bob := api.register(t, "bob", "pw2")

	rec := api.do(t, http.MethodPost, "/follow/"+alice.User.ID.Hex(), alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_operation", decode[errorBody](t, rec).Error.Code)

	rec = api.do(t, http.MethodPost, "/posts", alice.Token, map[string]string{"content": "mine"})
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decode[models.PostView](t, rec)
	postPath := "/posts/" + post.ID.Hex()

	rec = api.do(t, http.MethodPost, postPath+"/comment", bob.Token, map[string]string{"content": strings.Repeat("a", 101)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[errorBody](t, rec).Error.Code)

	rec = api.do(t, http.MethodPost, postPath+"/comment", bob.Token, map[string]string{"content": strings.Repeat("a", 100)})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPut, postPath, bob.Token, map[string]string{"content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, postPath, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPut, postPath, alice.Token, map[string]string{"visibility": "private"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mine", decode[models.PostView](t, rec).Content)

	rec = api.do(t, http.MethodGet, postPath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Error.Code)

	rec = api.do(t, http.MethodDelete, postPath, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreatePostWithPhotos(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register(t, "alice", "pw1")

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("content", "album"))
	for _, name := range []string{"one.png", "two.jpg", "three.png"} {
		part, err := w.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice.Token)
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[models.PostView](t, rec)
	require.Len(t, post.Photos, 3)
	assert.True(t, strings.HasSuffix(post.Photos[0], ".png"))
	assert.True(t, strings.HasSuffix(post.Photos[1], ".jpg"))
	assert.True(t, strings.HasSuffix(post.Photos[2], ".png"))

	rec = api.do(t, http.MethodGet, "/posts/"+post.ID.Hex(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, post.Photos, decode[models.PostView](t, rec).Photos)

	rec = api.do(t, http.MethodGet, post.Photos[1], "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image-two.jpg", rec.Body.String())
}

func TestProfileEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register(t, "alice", "pw1")

	rec := api.do(t, http.MethodGet, "/main", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[models.ProfileSummary](t, rec).Handle)

	rec = api.do(t, http.MethodPut, "/profile", alice.Token, map[string]string{"name": "Alice A.", "bio": "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/profile", alice.Token, nil)
	summary := decode[models.ProfileSummary](t, rec)
	assert.Equal(t, "Alice A.", summary.Name)
	assert.Equal(t, "hi", summary.Bio)
}

func TestNotificationEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register(t, "alice", "pw1")
	bob := api.register(t, "bob", "pw2")

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/follow/alice", bob.Token, nil).Code)

	rec := api.do(t, http.MethodGet, "/notifications/unread-count", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]int64](t, rec)["count"])

	rec = api.do(t, http.MethodGet, "/notifications", alice.Token, nil)
	list := decode[[]models.Notification](t, rec)
	require.Len(t, list, 1)

	rec = api.do(t, http.MethodPut, "/notifications/"+list[0].ID.Hex()+"/read", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPut, "/notifications/"+list[0].ID.Hex()+"/read", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/notifications/unread-count", alice.Token, nil)
	assert.EqualValues(t, 0, decode[map[string]int64](t, rec)["count"])

	rec = api.do(t, http.MethodPut, "/notifications/read-all", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestStoreDown(t *testing.T) {
	api := newTestAPI(t, downPinger{})

	rec := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]interface{}](t, rec)["database"])

	rec = api.do(t, http.MethodPost, "/register", "", map[string]string{"handle": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decode[errorBody](t, rec).Error.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["database"])
}

type liveFrame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) liveFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame liveFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestLikeIsPushedToLiveSession(t *testing.T) {
	api := newTestAPI(t, nil)
	srv := httptest.NewServer(api.e)
	defer srv.Close()

	alice := api.register(t, "alice", "pw1")
	bob := api.register(t, "bob", "pw2")

	rec := api.do(t, http.MethodPost, "/posts", alice.Token, map[string]string{"content": "live"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.PostView](t, rec)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": realtime.EventJoin,
		"data":  map[string]string{"token": alice.Token},
	}))
	joined := readFrame(t, conn)
	require.Equal(t, realtime.EventJoined, joined.Event)
	assert.Equal(t, alice.User.ID.Hex(), joined.Data["user_id"])

	rec = api.do(t, http.MethodPost, "/posts/"+post.ID.Hex()+"/like", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	frame := readFrame(t, conn)
	assert.Equal(t, realtime.EventNotification, frame.Event)
	assert.Equal(t, string(models.NotificationLike), frame.Data["kind"])
	assert.Equal(t, post.ID.Hex(), frame.Data["post_id"])
	assert.Equal(t, bob.User.ID.Hex(), frame.Data["actor_id"])
	assert.Equal(t, "bob", frame.Data["actor_handle"])
}
