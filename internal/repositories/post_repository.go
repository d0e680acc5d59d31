package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations.
// AddLike and RemoveLike report whether the like set actually changed.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, includePrivate bool, limit int64) ([]models.Post, error)
	GetFeed(ctx context.Context, selfID primitive.ObjectID, following []primitive.ObjectID, limit int64) ([]models.Post, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, patch models.PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	AddLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error)
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error)
	SetLikes(ctx context.Context, postID primitive.ObjectID, likes []primitive.ObjectID) error
	AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	return nil
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
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
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *MongoPostRepository) GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, includePrivate bool, limit int64) ([]models.Post, error) {
	filter := bson.M{"author_id": authorID}
	if !includePrivate {
		filter["visibility"] = models.VisibilityPublic
	}
	return r.find(ctx, filter, limit)
}

// GetFeed returns public posts of followed users plus every post of selfID, newest first.
func (r *MongoPostRepository) GetFeed(ctx context.Context, selfID primitive.ObjectID, following []primitive.ObjectID, limit int64) ([]models.Post, error) {
	if following == nil {
		following = []primitive.ObjectID{}
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"author_id": bson.M{"$in": following}, "visibility": models.VisibilityPublic},
		bson.M{"author_id": selfID},
	}}
	return r.find(ctx, filter, limit)
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, limit int64) ([]models.Post, error) {
	posts := []models.Post{}
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost applies the supplied fields of patch and returns the updated post.
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id primitive.ObjectID, patch models.PostPatch) (*models.Post, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Visibility != nil {
		set["visibility"] = *patch.Visibility
	}
	if patch.Photos != nil {
		set["photos"] = patch.Photos
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	filter := bson.M{"_id": postID, "likes": bson.M{"$ne": userID}}
	return r.toggleLike(ctx, postID, filter, bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	filter := bson.M{"_id": postID, "likes": userID}
	return r.toggleLike(ctx, postID, filter, bson.M{"$pull": bson.M{"likes": userID}})
}

// toggleLike applies update only when filter matches. A miss means either the
// post is gone or the set already had the desired state.
func (r *MongoPostRepository) toggleLike(ctx context.Context, postID primitive.ObjectID, filter, update bson.M) (*models.Post, bool, error) {
	post, err := r.findOneAndUpdate(ctx, filter, update)
	if err == nil {
		return post, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	post, err = r.GetPostByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return post, false, nil
}

func (r *MongoPostRepository) SetLikes(ctx context.Context, postID primitive.ObjectID, likes []primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": bson.M{"likes": likes}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": postID}, bson.M{"$push": bson.M{"comments": comment}})
}

func (r *MongoPostRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}
