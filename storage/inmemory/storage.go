package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"memories/plain"
	"memories/schemas"
	"memories/storage"
)

type MemoryStorage struct {
	mu sync.RWMutex

	postById map[schemas.PostId]*schemas.Post
	// newest first
	ordered []*schemas.Post
}

func NewInMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		postById: map[schemas.PostId]*schemas.Post{},
	}
}

func (s *MemoryStorage) PutPost(_ context.Context, creator schemas.UserId, draft schemas.Draft) (*schemas.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newPost := &schemas.Post{
		ID:           schemas.NewPostId(),
		Title:        draft.Title,
		Message:      draft.Message,
		Name:         draft.Name,
		Creator:      creator,
		Tags:         append(schemas.TagList{}, draft.Tags...),
		SelectedFile: draft.SelectedFile,
		Likes:        []schemas.UserId{},
		Comments:     []string{},
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, exists := s.postById[newPost.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate id %s", storage.ErrWriteConflict, newPost.ID)
	}

	s.postById[newPost.ID] = newPost
	s.ordered = append(s.ordered, newPost)
	sort.SliceStable(s.ordered, func(i, j int) bool {
		return s.ordered[i].ID.Hex() > s.ordered[j].ID.Hex()
	})

	return newPost.Copy(), nil
}

func (s *MemoryStorage) GetPost(_ context.Context, postId schemas.PostId) (*schemas.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
	}
	return post.Copy(), nil
}

func (s *MemoryStorage) GetPosts(_ context.Context, pageData plain.PageData) ([]*schemas.Post, int64, error) {
	_, size, err := plain.CorrectDestruct(pageData)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.ordered)
	start := MinInt(pageData.Offset(), total)
	end := MinInt(start+size, total)

	pack := make([]*schemas.Post, 0, end-start)
	for _, post := range s.ordered[start:end] {
		pack = append(pack, post.Copy())
	}
	return pack, int64(total), nil
}

func (s *MemoryStorage) SearchPosts(_ context.Context, search plain.SearchData) ([]*schemas.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(search.Query)
	result := []*schemas.Post{}
	for _, post := range s.ordered {
		if matches(post, query, search) {
			result = append(result, post.Copy())
		}
	}
	return result, nil
}

func matches(post *schemas.Post, lowerQuery string, search plain.SearchData) bool {
	if search.IsEmpty() {
		return true
	}
	if lowerQuery != "" && strings.Contains(strings.ToLower(post.Title), lowerQuery) {
		return true
	}
	return len(search.Tags) > 0 && lo.Some([]string(post.Tags), search.Tags)
}

func (s *MemoryStorage) EditPost(_ context.Context, postId schemas.PostId, draft schemas.Draft) (*schemas.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
	}
	post.Title = draft.Title
	post.Message = draft.Message
	post.Tags = append(schemas.TagList{}, draft.Tags...)
	post.SelectedFile = draft.SelectedFile
	post.Version++
	return post.Copy(), nil
}

func (s *MemoryStorage) DeletePost(_ context.Context, postId schemas.PostId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postById[postId]; !ok {
		return nil
	}
	delete(s.postById, postId)
	s.ordered = lo.Filter(s.ordered, func(post *schemas.Post, _ int) bool {
		return post.ID != postId
	})
	return nil
}

func (s *MemoryStorage) ToggleLike(_ context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	if userId == "" {
		return nil, storage.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
	}
	if post.HasLike(userId) {
		post.Likes = lo.Without(post.Likes, userId)
	} else {
		post.Likes = append(post.Likes, userId)
	}
	post.Version++
	return post.Copy(), nil
}

func (s *MemoryStorage) AddComment(_ context.Context, postId schemas.PostId, text string) (*schemas.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", storage.ErrNotFound, postId)
	}
	post.Comments = append(post.Comments, text)
	post.Version++
	return post.Copy(), nil
}

func (s *MemoryStorage) CountTagged(_ context.Context, tag string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(lo.CountBy(s.ordered, func(post *schemas.Post) bool {
		return lo.Contains([]string(post.Tags), tag)
	})), nil
}

func MinInt(a int, b int) int {
	if a < b {
		return a
	}
	return b
}
