package mongostorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memories/plain"
	"memories/schemas"
	"memories/storage"
)

const collName = "posts"

type Storage struct {
	postsCollection *mongo.Collection
	publisher       storage.TagsPublisher
}

// NewStorage uses the posts collection of db. publisher may be nil, in which
// case tag statistics are not refreshed.
func NewStorage(ctx context.Context, db *mongo.Database, publisher storage.TagsPublisher) (*Storage, error) {
	postsCollection := db.Collection(collName)

	if err := ensureIndexes(ctx, postsCollection); err != nil {
		return nil, err
	}

	return &Storage{
		postsCollection: postsCollection,
		publisher:       publisher,
	}, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return nil
}

func (s *Storage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	var post schemas.Post
	err := s.postsCollection.FindOne(ctx, bson.M{"_id": postId}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
		}
		return nil, fmt.Errorf("failed to extract post %s: %w", postId, err)
	}
	return &post, nil
}

func (s *Storage) GetPosts(ctx context.Context, pageData plain.PageData) ([]*schemas.Post, int64, error) {
	_, size, err := plain.CorrectDestruct(pageData)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.postsCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count failed: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(int64(pageData.Offset())).
		SetLimit(int64(size))
	cursor, err := s.postsCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}
	postList := []*schemas.Post{}
	if err = cursor.All(ctx, &postList); err != nil {
		return nil, 0, fmt.Errorf("posts mapping failed: %w", err)
	}
	return postList, total, nil
}

func (s *Storage) SearchPosts(ctx context.Context, search plain.SearchData) ([]*schemas.Post, error) {
	mongoFilter := searchFilter(search)

	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := s.postsCollection.Find(ctx, mongoFilter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSearch, err.Error())
	}
	postList := []*schemas.Post{}
	if err = cursor.All(ctx, &postList); err != nil {
		return nil, fmt.Errorf("%w: posts mapping failed: %s", storage.ErrSearch, err.Error())
	}
	return postList, nil
}

func searchFilter(search plain.SearchData) bson.M {
	var clauses bson.A
	if search.Query != "" {
		clauses = append(clauses, bson.M{"title": primitive.Regex{
			Pattern: regexp.QuoteMeta(search.Query),
			Options: "i",
		}})
	}
	if len(search.Tags) > 0 {
		clauses = append(clauses, bson.M{"tags": bson.M{"$in": search.Tags}})
	}
	if len(clauses) == 0 {
		return bson.M{}
	}
	return bson.M{"$or": clauses}
}

func (s *Storage) PutPost(ctx context.Context, creator schemas.UserId, draft schemas.Draft) (*schemas.Post, error) {
	newPost := &schemas.Post{
		ID:           schemas.NewPostId(),
		Title:        draft.Title,
		Message:      draft.Message,
		Name:         draft.Name,
		Creator:      creator,
		Tags:         draft.Tags,
		SelectedFile: draft.SelectedFile,
		Likes:        []schemas.UserId{},
		Comments:     []string{},
		CreatedAt:    s.Now(),
	}
	if newPost.Tags == nil {
		newPost.Tags = schemas.TagList{}
	}

	_, err := s.postsCollection.InsertOne(ctx, newPost)
	if err != nil {
		return nil, fmt.Errorf("%w: insertion failed: %s", storage.ErrWriteConflict, err.Error())
	}
	s.publishTags(newPost.Tags)
	return newPost, nil
}

func (s *Storage) EditPost(ctx context.Context, postId schemas.PostId, draft schemas.Draft) (*schemas.Post, error) {
	tags := draft.Tags
	if tags == nil {
		tags = schemas.TagList{}
	}
	mongoSelector := bson.D{{Key: "_id", Value: postId}}
	mongoCommand := bson.D{
		{
			Key: "$set", Value: bson.D{
				{Key: "title", Value: draft.Title},
				{Key: "message", Value: draft.Message},
				{Key: "tags", Value: tags},
				{Key: "selectedFile", Value: draft.SelectedFile},
			},
		},
		{
			Key: "$inc", Value: bson.D{{Key: "version", Value: 1}},
		},
	}
	// The previous document is returned so tags dropped by the edit are recounted too.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var previous schemas.Post
	err := s.postsCollection.FindOneAndUpdate(ctx, mongoSelector, mongoCommand, opts).Decode(&previous)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
		}
		return nil, fmt.Errorf("%w: %s", storage.ErrWriteConflict, err.Error())
	}

	edited := previous.Copy()
	edited.Title = draft.Title
	edited.Message = draft.Message
	edited.Tags = tags
	edited.SelectedFile = draft.SelectedFile
	edited.Version++

	s.publishTags(append(append([]string{}, previous.Tags...), tags...))
	return edited, nil
}

func (s *Storage) DeletePost(ctx context.Context, postId schemas.PostId) error {
	var deleted schemas.Post
	err := s.postsCollection.FindOneAndDelete(ctx, bson.M{"_id": postId}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return fmt.Errorf("%w: %s", storage.ErrWriteConflict, err.Error())
	}
	s.publishTags(deleted.Tags)
	return nil
}

// ToggleLike flips membership of userId in likes with a single update
// pipeline, so concurrent toggles by different users never overwrite each other.
func (s *Storage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	if userId == "" {
		return nil, storage.ErrUnauthenticated
	}

	return s.updateOne(ctx, postId, toggleLikeUpdate(userId))
}

// toggleLikeUpdate builds the update pipeline for ToggleLike. The user id is
// wrapped in $literal so ids starting with "$" are not read as field paths.
func toggleLikeUpdate(userId schemas.UserId) mongo.Pipeline {
	user := bson.D{{Key: "$literal", Value: string(userId)}}
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{user, likes}}}},
				{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likes},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", user}}}},
				}}}},
				{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{user}}}}},
			}}}},
			{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$version", 0}}}, 1,
			}}}},
		}}},
	}
}

func addCommentUpdate(text string) bson.D {
	return bson.D{
		{Key: "$push", Value: bson.D{{Key: "comments", Value: text}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
}

func (s *Storage) AddComment(ctx context.Context, postId schemas.PostId, text string) (*schemas.Post, error) {
	return s.updateOne(ctx, postId, addCommentUpdate(text))
}

func (s *Storage) updateOne(ctx context.Context, postId schemas.PostId, update interface{}) (*schemas.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	result := s.postsCollection.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: postId}}, update, opts)

	var updated schemas.Post
	if err := result.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
		}
		return nil, fmt.Errorf("%w: %s", storage.ErrWriteConflict, err.Error())
	}
	return &updated, nil
}

func (s *Storage) CountTagged(ctx context.Context, tag string) (int64, error) {
	return s.postsCollection.CountDocuments(ctx, bson.M{"tags": tag})
}

func (s *Storage) publishTags(tags []string) {
	if s.publisher == nil || len(tags) == 0 {
		return
	}
	// Statistics lag behind on failure; the post itself is already stored.
	if err := s.publisher.PublishRefreshTags(tags); err != nil {
		slog.Warn("failed to publish tag refresh", "tags", tags, "error", err)
	}
}

func (s *Storage) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
