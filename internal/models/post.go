package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

const (
	MaxPhotosPerPost  = 10
	MaxPostLength     = 2000
	MaxCommentLength  = 100
	DefaultFeedLimit  = 50
	DefaultVisibility = VisibilityPublic
)

// Post is a post document. AuthorHandle is a snapshot taken at creation and
// is not updated when the author renames.
type Post struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	AuthorID     primitive.ObjectID   `json:"author_id" bson:"author_id"`
	AuthorHandle string               `json:"author_handle" bson:"author_handle"`
	Content      string               `json:"content" bson:"content"`
	Photos       []string             `json:"photos" bson:"photos"`
	Likes        []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments     []Comment            `json:"comments" bson:"comments"`
	Visibility   Visibility           `json:"visibility" bson:"visibility"`
	CreatedAt    time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" bson:"updated_at"`
}

// VisibleTo reports whether viewer may read p.
func (p *Post) VisibleTo(viewer primitive.ObjectID) bool {
	return p.Visibility != VisibilityPrivate || p.AuthorID == viewer
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	return containsID(p.Likes, userID)
}

// NormalizeLikes strips nil ids and duplicates from the like set, keeping the
// first occurrence order. It reports whether the set changed.
func (p *Post) NormalizeLikes() bool {
	normalized := NormalizeIDs(p.Likes)
	changed := len(normalized) != len(p.Likes)
	p.Likes = normalized
	return changed
}

// NormalizeIDs returns ids without nil entries and duplicates. The result is
// never nil so that it encodes as an empty array.
func NormalizeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// PostPatch holds the fields of a partial post update. Nil means unchanged.
type PostPatch struct {
	Content    *string
	Visibility *Visibility
	Photos     []string
}

func (p PostPatch) Empty() bool {
	return p.Content == nil && p.Visibility == nil && p.Photos == nil
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content    string   `json:"content" form:"content" validate:"max=2000"`
	Visibility string   `json:"visibility" form:"visibility" validate:"omitempty,oneof=public private"`
	Photos     []string `json:"photos" form:"photos" validate:"omitempty,max=10,dive,required"`
}

// UpdatePostRequest defines the request body for updating an existing post.
// Pointer fields distinguish "absent" from "empty".
type UpdatePostRequest struct {
	Content    *string   `json:"content" validate:"omitempty,max=2000"`
	Visibility *string   `json:"visibility" validate:"omitempty,oneof=public private"`
	Photos     *[]string `json:"photos" validate:"omitempty,max=10"`
}

// PostView is a post annotated for the requesting user.
type PostView struct {
	Post
	LikesCount    int  `json:"likes_count"`
	CommentsCount int  `json:"comments_count"`
	IsLiked       bool `json:"is_liked"`
}

func NewPostView(p Post, viewer primitive.ObjectID) PostView {
	return PostView{
		Post:          p,
		LikesCount:    len(p.Likes),
		CommentsCount: len(p.Comments),
		IsLiked:       p.LikedBy(viewer),
	}
}

func NewPostViews(posts []Post, viewer primitive.ObjectID) []PostView {
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = NewPostView(p, viewer)
	}
	return views
}
