package rediscached

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"memories/plain"
	"memories/schemas"
	"memories/storage"
	"memories/storage/rediscached/redisgeneral"
)

// CachedPostsPack is the cached first page of the post list.
type CachedPostsPack struct {
	Posts []*schemas.Post
	Total int64
}

func (cpp CachedPostsPack) GetVersion() int {
	vers := 0
	for i := range cpp.Posts {
		vers += cpp.Posts[i].Version
	}
	return vers
}

// CachedStorage caches single posts and the first page of the post list in
// redis. Searches always go to the persistent storage.
type CachedStorage struct {
	persistentStorage   storage.Storage
	postCache           *redisgeneral.Storage[schemas.Post]
	firstPostsPackCache *redisgeneral.Storage[CachedPostsPack]
}

func NewCachedStorage(persistentStorage storage.Storage, client redis.Cmdable, cacheTTL time.Duration) *CachedStorage {
	return &CachedStorage{
		persistentStorage:   persistentStorage,
		postCache:           redisgeneral.NewStorage[schemas.Post](client, cacheTTL),
		firstPostsPackCache: redisgeneral.NewStorage[CachedPostsPack](client, cacheTTL),
	}
}

func (cs *CachedStorage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	postKey := cs.getKeyForPost(postId)

	cachedPost, isFound, err := cs.postCache.Get(ctx, postKey)
	if err != nil {
		return nil, err
	}
	if isFound {
		return cachedPost.Copy(), nil
	}

	actualPost, err := cs.persistentStorage.GetPost(ctx, postId)
	if err != nil {
		return nil, err
	}
	return cs.cachePost(ctx, actualPost)
}

func (cs *CachedStorage) GetPosts(ctx context.Context, pageData plain.PageData) ([]*schemas.Post, int64, error) {
	page, size, err := plain.CorrectDestruct(pageData)
	if err != nil {
		return nil, 0, err
	}
	if page != 1 || size != plain.DefaultPageSize {
		return cs.persistentStorage.GetPosts(ctx, pageData)
	}

	// A write landing between the miss below and SetWithFreshness can leave
	// the pre-write page cached until the key expires.
	fppKey := cs.getKeyForFPP()
	cached, found, err := cs.firstPostsPackCache.Get(ctx, fppKey)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		firstPage, total, err := cs.persistentStorage.GetPosts(ctx, pageData)
		if err != nil {
			return nil, 0, err
		}
		cached, err = cs.firstPostsPackCache.SetWithFreshness(ctx, fppKey, CachedPostsPack{Posts: firstPage, Total: total})
		if err != nil {
			return nil, 0, err
		}
	}

	posts := make([]*schemas.Post, len(cached.Posts))
	for i := range cached.Posts {
		posts[i] = cached.Posts[i].Copy()
	}
	return posts, cached.Total, nil
}

func (cs *CachedStorage) SearchPosts(ctx context.Context, search plain.SearchData) ([]*schemas.Post, error) {
	return cs.persistentStorage.SearchPosts(ctx, search)
}

func (cs *CachedStorage) PutPost(ctx context.Context, creator schemas.UserId, draft schemas.Draft) (*schemas.Post, error) {
	post, err := cs.persistentStorage.PutPost(ctx, creator, draft)
	if err != nil {
		return nil, err
	}
	if err = cs.firstPostsPackCache.Delete(ctx, cs.getKeyForFPP()); err != nil {
		return nil, err
	}
	return cs.cachePost(ctx, post)
}

func (cs *CachedStorage) EditPost(ctx context.Context, postId schemas.PostId, draft schemas.Draft) (*schemas.Post, error) {
	editedPost, err := cs.persistentStorage.EditPost(ctx, postId, draft)
	if err != nil {
		return nil, err
	}
	return cs.refresh(ctx, editedPost)
}

func (cs *CachedStorage) DeletePost(ctx context.Context, postId schemas.PostId) error {
	if err := cs.persistentStorage.DeletePost(ctx, postId); err != nil {
		return err
	}
	return cs.postCache.Delete(ctx, cs.getKeyForPost(postId), cs.getKeyForFPP())
}

func (cs *CachedStorage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	post, err := cs.persistentStorage.ToggleLike(ctx, postId, userId)
	if err != nil {
		return nil, err
	}
	return cs.refresh(ctx, post)
}

func (cs *CachedStorage) AddComment(ctx context.Context, postId schemas.PostId, text string) (*schemas.Post, error) {
	post, err := cs.persistentStorage.AddComment(ctx, postId, text)
	if err != nil {
		return nil, err
	}
	return cs.refresh(ctx, post)
}

// refresh stores a mutated post and drops the first page, which may contain it.
func (cs *CachedStorage) refresh(ctx context.Context, post *schemas.Post) (*schemas.Post, error) {
	if err := cs.firstPostsPackCache.Delete(ctx, cs.getKeyForFPP()); err != nil {
		return nil, err
	}
	if _, err := cs.postCache.SetWithFreshness(ctx, cs.getKeyForPost(post.ID), *post); err != nil {
		return nil, err
	}
	// The caller gets the post it changed, even when a newer one is cached.
	return post, nil
}

func (cs *CachedStorage) cachePost(ctx context.Context, post *schemas.Post) (*schemas.Post, error) {
	cachedPost, err := cs.postCache.SetWithFreshness(ctx, cs.getKeyForPost(post.ID), *post)
	if err != nil {
		return nil, err
	}
	return cachedPost.Copy(), nil
}

func (cs *CachedStorage) getKeyForPost(postID schemas.PostId) string {
	return fmt.Sprintf("memories:posts:%s", postID.Hex())
}

func (cs *CachedStorage) getKeyForFPP() string {
	return "memories:fppack"
}
