package storage

import (
	"context"
	"errors"
	"fmt"

	"memories/plain"
	"memories/schemas"
)

var (
	StorageError       = errors.New("storage")
	ErrNotFound        = fmt.Errorf("%w.not_found", StorageError)
	ErrUnauthenticated = fmt.Errorf("%w.unauthenticated", StorageError)
	ErrWriteConflict   = fmt.Errorf("%w.write_conflict", StorageError)
	ErrSearch          = fmt.Errorf("%w.search", StorageError)
)

// Storage is the post store. Identifiers are parsed by the caller, so a
// malformed id never reaches an implementation.
type Storage interface {
	GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error)
	GetPosts(ctx context.Context, pageData plain.PageData) (_ []*schemas.Post, total int64, _ error)
	SearchPosts(ctx context.Context, search plain.SearchData) ([]*schemas.Post, error)
	PutPost(ctx context.Context, creator schemas.UserId, draft schemas.Draft) (*schemas.Post, error)
	EditPost(ctx context.Context, postId schemas.PostId, draft schemas.Draft) (*schemas.Post, error)
	DeletePost(ctx context.Context, postId schemas.PostId) error
	ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error)
	AddComment(ctx context.Context, postId schemas.PostId, text string) (*schemas.Post, error)
}

// TagCounter is implemented by stores that can count posts carrying a tag.
type TagCounter interface {
	CountTagged(ctx context.Context, tag string) (int64, error)
}

// TagsPublisher is notified when the tag set of some posts may have changed.
type TagsPublisher interface {
	PublishRefreshTags(tags []string) error
}
