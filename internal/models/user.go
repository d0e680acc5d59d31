package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account document. Followers and Following are kept symmetric by
// the social graph service: A in B.Followers iff B in A.Following.
type User struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Handle      string               `json:"handle" bson:"handle"`
	Password    string               `json:"-" bson:"password"` // bcrypt hash
	Name        string               `json:"name" bson:"name"`
	AvatarURL   string               `json:"avatar_url" bson:"avatar_url"`
	Bio         string               `json:"bio" bson:"bio"`
	FirebaseUID string               `json:"-" bson:"firebase_uid,omitempty"`
	Followers   []primitive.ObjectID `json:"followers" bson:"followers"`
	Following   []primitive.ObjectID `json:"following" bson:"following"`
	CreatedAt   time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" bson:"updated_at"`
}

// IsFollowing reports whether u follows target.
func (u *User) IsFollowing(target primitive.ObjectID) bool {
	return containsID(u.Following, target)
}

// UserCompact is the public card of a user embedded in listings.
type UserCompact struct {
	ID        primitive.ObjectID `json:"id"`
	Handle    string             `json:"handle"`
	Name      string             `json:"name"`
	AvatarURL string             `json:"avatar_url"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:        u.ID,
		Handle:    u.Handle,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

// ProfileSummary is the self profile returned by /main and /profile.
type ProfileSummary struct {
	UserCompact
	Bio            string `json:"bio"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
}

func (u *User) ToSummary() ProfileSummary {
	return ProfileSummary{
		UserCompact:    u.ToCompact(),
		Bio:            u.Bio,
		FollowersCount: len(u.Followers),
		FollowingCount: len(u.Following),
	}
}

// PublicProfile is another user's profile as seen by the viewer.
type PublicProfile struct {
	User        ProfileSummary `json:"user"`
	Posts       []PostView     `json:"posts"`
	IsFollowing bool           `json:"is_following"`
}

// ProfileUpdate carries the optional fields of a profile edit. Nil means unchanged.
type ProfileUpdate struct {
	Name      *string
	Bio       *string
	AvatarURL *string
}

type RegisterRequest struct {
	Handle   string `json:"handle" validate:"required,min=3,max=30,alphanum"`
	Password string `json:"password" validate:"required,min=3,max=72"`
	Name     string `json:"name" validate:"omitempty,max=50"`
}

type LoginRequest struct {
	Handle   string `json:"handle" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
	Handle  string `json:"handle" validate:"omitempty,min=3,max=30,alphanum"`
}

// UpdateProfileRequest is the JSON or multipart body of PUT /profile. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=50"`
	Bio  *string `json:"bio" validate:"omitempty,max=300"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string         `json:"token"`
	User  ProfileSummary `json:"user"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}
