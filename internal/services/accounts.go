package services

import (
	"context"
	"errors"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// IdentityVerifier verifies third-party ID tokens. *auth.Client from the
// Firebase admin SDK satisfies it.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// AccountService handles registration, login and profiles.
type AccountService struct {
	users    repositories.UserRepository
	posts    *PostService
	graph    *GraphService
	tokens   *auth.TokenManager
	identity IdentityVerifier
}

// NewAccountService wires account operations. identity may be nil, in which
// case Firebase login is unavailable.
func NewAccountService(users repositories.UserRepository, posts *PostService, graph *GraphService, tokens *auth.TokenManager, identity IdentityVerifier) *AccountService {
	return &AccountService{users: users, posts: posts, graph: graph, tokens: tokens, identity: identity}
}

// Register creates a local account and returns a session for it.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	handle := strings.TrimSpace(req.Handle)
	if handle == "" || req.Password == "" {
		return nil, apperrors.InvalidInput("handle and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = handle
	}
	user := &models.User{
		Handle:   handle,
		Password: string(hash),
		Name:     name,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Conflict("handle is already taken")
		}
		return nil, apperrors.Internal("failed to create user", err)
	}
	log.WithField("handle", user.Handle).Info("User registered")
	return s.session(user)
}

// Login verifies a handle/password pair.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByHandle(ctx, strings.TrimSpace(req.Handle))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid handle or password")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}
	if user.Password == "" {
		return nil, apperrors.Unauthorized("invalid handle or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid handle or password")
	}
	return s.session(user)
}

// FirebaseEnabled reports whether an identity verifier is configured.
func (s *AccountService) FirebaseEnabled() bool {
	return s.identity != nil
}

// FirebaseLogin exchanges a Firebase ID token for a local session. A first
// login creates the account and needs a handle.
func (s *AccountService) FirebaseLogin(ctx context.Context, req models.FirebaseLoginRequest) (*models.AuthResponse, error) {
	if s.identity == nil {
		return nil, apperrors.ServiceUnavailable("firebase login is not configured")
	}
	token, err := s.identity.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid firebase ID token")
	}

	user, err := s.users.GetUserByFirebaseUID(ctx, token.UID)
	if err == nil {
		return s.session(user)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Internal("failed to load user", err)
	}

	handle := strings.TrimSpace(req.Handle)
	if handle == "" {
		return nil, apperrors.InvalidInput("handle is required for a new account")
	}
	name, _ := token.Claims["name"].(string)
	if name == "" {
		name = handle
	}
	user = &models.User{
		Handle:      handle,
		Name:        name,
		FirebaseUID: token.UID,
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		user.AvatarURL = picture
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Conflict("handle is already taken")
		}
		return nil, apperrors.Internal("failed to create user", err)
	}
	log.WithFields(log.Fields{"handle": user.Handle, "firebase_uid": token.UID}).Info("User registered via firebase")
	return s.session(user)
}

// Me returns the caller's own profile summary.
func (s *AccountService) Me(ctx context.Context, userID primitive.ObjectID) (*models.ProfileSummary, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}
	summary := user.ToSummary()
	return &summary, nil
}

// UpdateProfile overwrites the supplied profile fields.
func (s *AccountService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update models.ProfileUpdate) (*models.ProfileSummary, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Name == nil && update.Bio == nil && update.AvatarURL == nil {
		return s.Me(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, userLookupError(err)
	}
	summary := user.ToSummary()
	return &summary, nil
}

// ResolveUser finds a user by hex id or, failing that, by handle.
func (s *AccountService) ResolveUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.InvalidInput("user reference is required")
	}
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		user, err := s.users.GetUserByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Internal("failed to load user", err)
		}
	}
	user, err := s.users.GetUserByHandle(ctx, ref)
	if err != nil {
		return nil, userLookupError(err)
	}
	return user, nil
}

// Profile returns handle's public profile with their posts visible to viewerID.
func (s *AccountService) Profile(ctx context.Context, viewerID primitive.ObjectID, handle string, limit int) (*models.PublicProfile, error) {
	user, err := s.users.GetUserByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, userLookupError(err)
	}
	posts, err := s.posts.PostsByAuthor(ctx, viewerID, user.ID, limit)
	if err != nil {
		return nil, err
	}
	following, err := s.graph.IsFollowing(ctx, viewerID, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.PublicProfile{
		User:        user.ToSummary(),
		Posts:       models.NewPostViews(posts, viewerID),
		IsFollowing: following,
	}, nil
}

func (s *AccountService) session(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Internal("failed to issue token", err)
	}
	return &models.AuthResponse{Token: token, User: user.ToSummary()}, nil
}
