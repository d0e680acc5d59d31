package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps users, posts and notifications in process memory. It
// implements UserRepository, PostRepository and NotificationRepository with
// the same semantics as the Mongo repositories. Every call is serialized by
// one mutex and values are copied in and out.
type MemoryStore struct {
	mu            sync.Mutex
	seq           int64
	users         map[primitive.ObjectID]*models.User
	posts         map[primitive.ObjectID]*memPost
	notifications []*memNotification
}

type memPost struct {
	seq  int64
	post models.Post
}

type memNotification struct {
	seq          int64
	notification models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[primitive.ObjectID]*models.User),
		posts: make(map[primitive.ObjectID]*memPost),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

// --- users ---

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Handle == user.Handle || (user.FirebaseUID != "" && u.FirebaseUID == user.FirebaseUID) {
			return ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	stored := copyUser(*user)
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyUser(*u)
	return &out, nil
}

func (s *MemoryStore) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Handle == handle })
}

func (s *MemoryStore) GetUserByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return uid != "" && u.FirebaseUID == uid })
}

func (s *MemoryStore) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			out := copyUser(*u)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := []models.User{}
	for _, id := range models.NormalizeIDs(ids) {
		if u, ok := s.users[id]; ok {
			users = append(users, copyUser(*u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Handle < users[j].Handle })
	return users, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	u.UpdatedAt = time.Now().UTC()
	out := copyUser(*u)
	return &out, nil
}

func (s *MemoryStore) AddFollowing(ctx context.Context, userID, targetID primitive.ObjectID) error {
	return s.mutateUser(userID, func(u *models.User) { u.Following = addID(u.Following, targetID) })
}

func (s *MemoryStore) RemoveFollowing(ctx context.Context, userID, targetID primitive.ObjectID) error {
	return s.mutateUser(userID, func(u *models.User) { u.Following = removeID(u.Following, targetID) })
}

func (s *MemoryStore) AddFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return s.mutateUser(userID, func(u *models.User) { u.Followers = addID(u.Followers, followerID) })
}

func (s *MemoryStore) RemoveFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return s.mutateUser(userID, func(u *models.User) { u.Followers = removeID(u.Followers, followerID) })
}

func (s *MemoryStore) mutateUser(id primitive.ObjectID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- posts ---

func (s *MemoryStore) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	if post.Photos == nil {
		post.Photos = []string{}
	}
	post.Likes = models.NormalizeIDs(post.Likes)
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	s.posts[post.ID] = &memPost{seq: s.nextSeq(), post: copyPost(*post)}
	return nil
}

func (s *MemoryStore) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyPost(p.post)
	return &out, nil
}

func (s *MemoryStore) GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, includePrivate bool, limit int64) ([]models.Post, error) {
	return s.findPosts(limit, func(p *models.Post) bool {
		return p.AuthorID == authorID && (includePrivate || p.Visibility == models.VisibilityPublic)
	})
}

func (s *MemoryStore) GetFeed(ctx context.Context, selfID primitive.ObjectID, following []primitive.ObjectID, limit int64) ([]models.Post, error) {
	followed := make(map[primitive.ObjectID]struct{}, len(following))
	for _, id := range following {
		followed[id] = struct{}{}
	}
	return s.findPosts(limit, func(p *models.Post) bool {
		if p.AuthorID == selfID {
			return true
		}
		_, ok := followed[p.AuthorID]
		return ok && p.Visibility == models.VisibilityPublic
	})
}

func (s *MemoryStore) findPosts(limit int64, match func(*models.Post) bool) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*memPost, 0)
	for _, p := range s.posts {
		if match(&p.post) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	posts := make([]models.Post, len(matched))
	for i, p := range matched {
		posts[i] = copyPost(p.post)
	}
	return posts, nil
}

func (s *MemoryStore) UpdatePost(ctx context.Context, id primitive.ObjectID, patch models.PostPatch) (*models.Post, error) {
	return s.mutatePost(id, func(p *models.Post) {
		if patch.Content != nil {
			p.Content = *patch.Content
		}
		if patch.Visibility != nil {
			p.Visibility = *patch.Visibility
		}
		if patch.Photos != nil {
			p.Photos = append([]string{}, patch.Photos...)
		}
		p.UpdatedAt = time.Now().UTC()
	})
}

func (s *MemoryStore) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *MemoryStore) AddLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	var changed bool
	post, err := s.mutatePost(postID, func(p *models.Post) {
		if p.LikedBy(userID) {
			return
		}
		p.Likes = append(p.Likes, userID)
		changed = true
	})
	return post, changed, err
}

func (s *MemoryStore) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	var changed bool
	post, err := s.mutatePost(postID, func(p *models.Post) {
		if !p.LikedBy(userID) {
			return
		}
		p.Likes = removeID(p.Likes, userID)
		changed = true
	})
	return post, changed, err
}

func (s *MemoryStore) SetLikes(ctx context.Context, postID primitive.ObjectID, likes []primitive.ObjectID) error {
	_, err := s.mutatePost(postID, func(p *models.Post) {
		p.Likes = append([]primitive.ObjectID{}, likes...)
	})
	return err
}

func (s *MemoryStore) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	return s.mutatePost(postID, func(p *models.Post) {
		p.Comments = append(p.Comments, comment)
	})
}

func (s *MemoryStore) mutatePost(id primitive.ObjectID, fn func(*models.Post)) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&p.post)
	out := copyPost(p.post)
	return &out, nil
}

// --- notifications ---

func (s *MemoryStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification.ID = primitive.NewObjectID()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	s.notifications = append(s.notifications, &memNotification{seq: s.nextSeq(), notification: *notification})
	return nil
}

func (s *MemoryStore) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit, offset int64) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*memNotification, 0)
	for _, n := range s.notifications {
		if n.notification.RecipientID == recipientID {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.notification.CreatedAt.Equal(b.notification.CreatedAt) {
			return a.notification.CreatedAt.After(b.notification.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := []models.Notification{}
	if offset >= int64(len(matched)) {
		return out, nil
	}
	matched = matched[offset:]
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	for _, n := range matched {
		out = append(out, copyNotification(n.notification))
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, n := range s.notifications {
		if n.notification.RecipientID == recipientID && !n.notification.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkAsRead(ctx context.Context, recipientID, notificationID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.notification.ID == notificationID && n.notification.RecipientID == recipientID {
			n.notification.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllAsRead(ctx context.Context, recipientID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.notification.RecipientID == recipientID {
			n.notification.IsRead = true
		}
	}
	return nil
}

// --- helpers ---

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func copyUser(u models.User) models.User {
	u.Followers = append([]primitive.ObjectID{}, u.Followers...)
	u.Following = append([]primitive.ObjectID{}, u.Following...)
	return u
}

func copyPost(p models.Post) models.Post {
	p.Photos = append([]string{}, p.Photos...)
	p.Likes = append([]primitive.ObjectID{}, p.Likes...)
	p.Comments = append([]models.Comment{}, p.Comments...)
	return p
}

func copyNotification(n models.Notification) models.Notification {
	if n.PostID != nil {
		postID := *n.PostID
		n.PostID = &postID
	}
	return n
}
