package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Content
	}
	return out
}

func TestFeedComposition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "")
	x := env.createUser(t, "")
	y := env.createUser(t, "")
	stranger := env.createUser(t, "")

	for _, target := range []*models.User{x, y} {
		_, err := env.graph.Follow(ctx, u.ID, target.ID)
		require.NoError(t, err)
	}

	env.createPost(t, u, "u public", models.VisibilityPublic)
	env.createPost(t, x, "x public", models.VisibilityPublic)
	env.createPost(t, x, "x private", models.VisibilityPrivate)
	env.createPost(t, stranger, "stranger public", models.VisibilityPublic)
	env.createPost(t, u, "u private", models.VisibilityPrivate)
	env.createPost(t, y, "y public", models.VisibilityPublic)

	feed, err := env.feed.Feed(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"y public", "u private", "x public", "u public"}, contents(feed))

	// followees never see each other's private posts or the follower's
	xFeed, err := env.feed.Feed(ctx, x.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x private", "x public"}, contents(xFeed))
}

func TestFeedLimit(t *testing.T) {
	env := newTestEnv(t)
	env.feed = NewFeedService(env.store, env.store, 5)
	ctx := context.Background()
	u := env.createUser(t, "")

	for i := 0; i < 8; i++ {
		env.createPost(t, u, fmt.Sprintf("post %d", i), models.VisibilityPublic)
	}

	capped, err := env.feed.Feed(ctx, u.ID, 100)
	require.NoError(t, err)
	assert.Len(t, capped, 5)
	assert.Equal(t, "post 7", capped[0].Content)

	small, err := env.feed.Feed(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"post 7", "post 6"}, contents(small))
}

func TestFeedAfterUnfollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "")
	x := env.createUser(t, "")

	_, err := env.graph.Follow(ctx, u.ID, x.ID)
	require.NoError(t, err)
	env.createPost(t, x, "x public", models.VisibilityPublic)

	feed, err := env.feed.Feed(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 1)

	_, err = env.graph.Unfollow(ctx, u.ID, x.ID)
	require.NoError(t, err)
	feed, err = env.feed.Feed(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)
}
