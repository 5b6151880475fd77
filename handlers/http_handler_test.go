package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memories/plain"
	"memories/schemas"
	"memories/storage"
	"memories/storage/inmemory"
	"memories/tags"
)

const testSecret = "test-secret"

// countingStorage records every call that reaches the store.
type countingStorage struct {
	inner storage.Storage
	calls []string
}

func (c *countingStorage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	c.calls = append(c.calls, "GetPost")
	return c.inner.GetPost(ctx, postId)
}

func (c *countingStorage) GetPosts(ctx context.Context, pageData plain.PageData) ([]*schemas.Post, int64, error) {
	c.calls = append(c.calls, "GetPosts")
	return c.inner.GetPosts(ctx, pageData)
}

func (c *countingStorage) SearchPosts(ctx context.Context, search plain.SearchData) ([]*schemas.Post, error) {
	c.calls = append(c.calls, "SearchPosts")
	return c.inner.SearchPosts(ctx, search)
}

func (c *countingStorage) PutPost(ctx context.Context, creator schemas.UserId, draft schemas.Draft) (*schemas.Post, error) {
	c.calls = append(c.calls, "PutPost")
	return c.inner.PutPost(ctx, creator, draft)
}

func (c *countingStorage) EditPost(ctx context.Context, postId schemas.PostId, draft schemas.Draft) (*schemas.Post, error) {
	c.calls = append(c.calls, "EditPost")
	return c.inner.EditPost(ctx, postId, draft)
}

func (c *countingStorage) DeletePost(ctx context.Context, postId schemas.PostId) error {
	c.calls = append(c.calls, "DeletePost")
	return c.inner.DeletePost(ctx, postId)
}

func (c *countingStorage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	c.calls = append(c.calls, "ToggleLike")
	return c.inner.ToggleLike(ctx, postId, userId)
}

func (c *countingStorage) AddComment(ctx context.Context, postId schemas.PostId, text string) (*schemas.Post, error) {
	c.calls = append(c.calls, "AddComment")
	return c.inner.AddComment(ctx, postId, text)
}

type staticTags struct {
	stats  []tags.TagStat
	limits []int
}

func (s *staticTags) Top(_ context.Context, limit int) ([]tags.TagStat, error) {
	s.limits = append(s.limits, limit)
	return s.stats, nil
}

type testEnv struct {
	handler http.Handler
	store   *countingStorage
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := &countingStorage{inner: inmemory.NewInMemoryStorage()}
	router := NewRouter(NewHTTPHandler(store, opts), NewAuthenticator(testSecret))
	return &testEnv{handler: router, store: store}
}

func signToken(t *testing.T, userId string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UID: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, target, body, userId string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userId != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userId))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createPost(t *testing.T, title string, tagList ...string) schemas.PostData {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"title":   title,
		"message": "message of " + title,
		"name":    "Author",
		"tags":    tagList,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/posts", string(body), "creator-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[schemas.PostData](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result), rec.Body.String())
	return result
}

func TestCreateAndGetPost(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/posts",
		`{"title":"A","message":"m","name":"N","tags":"x, y ,x","selectedFile":""}`, "creator-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	created := decode[schemas.PostData](t, rec)
	assert.Len(t, created.ID, 24)
	assert.Equal(t, "A", created.Title)
	assert.Equal(t, "N", created.Name)
	assert.Equal(t, "creator-1", created.Creator)
	assert.Equal(t, []string{"x", "y"}, created.Tags)
	assert.Equal(t, []string{}, created.Likes)
	assert.Equal(t, []string{}, created.Comments)
	assert.NotEmpty(t, created.CreatedAt)

	rec = env.do(t, http.MethodGet, "/posts/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[schemas.PostData](t, rec))
}

func TestCreatePostFailures(t *testing.T) {
	env := newTestEnv(t, Options{})

	testCases := []struct {
		name    string
		body    string
		userId  string
		status  int
		message string
	}{
		{name: "anonymous", body: `{"title":"A"}`, status: http.StatusUnauthorized, message: "Unauthenticated"},
		{name: "broken json", body: `{"title":`, userId: "u1", status: http.StatusBadRequest, message: "bad body"},
		{name: "empty title", body: `{"title":"  "}`, userId: "u1", status: http.StatusConflict},
		{name: "bad image", body: `{"title":"A","selectedFile":"data:image/png,xyz"}`, userId: "u1", status: http.StatusConflict},
		{name: "bad tags", body: `{"title":"A","tags":42}`, userId: "u1", status: http.StatusConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/posts", tc.body, tc.userId)
			assert.Equal(t, tc.status, rec.Code)
			body := decode[MessageResponse](t, rec)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Message)
			} else {
				assert.NotEmpty(t, body.Message)
			}
		})
	}
	assert.NotContains(t, env.store.calls, "PutPost")
}

func TestInvalidTokenIsRejected(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, header := range []string{"Bearer not-a-token", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
	assert.Empty(t, env.store.calls)
}

func TestGetPostsPagination(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/posts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[GetPostsResponse](t, rec)
	assert.Equal(t, []schemas.PostData{}, empty.Data)
	assert.Equal(t, 1, empty.CurrentPage)
	assert.Equal(t, 0, empty.NumberOfPages)

	for i := 0; i < 10; i++ {
		env.createPost(t, fmt.Sprintf("post %d", i))
	}

	rec = env.do(t, http.MethodGet, "/posts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[GetPostsResponse](t, rec)
	assert.Len(t, first.Data, plain.DefaultPageSize)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, 2, first.NumberOfPages)
	assert.Equal(t, "post 9", first.Data[0].Title)

	rec = env.do(t, http.MethodGet, "/posts?page=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[GetPostsResponse](t, rec)
	require.Len(t, second.Data, 2)
	assert.Equal(t, 2, second.CurrentPage)
	assert.Equal(t, "post 0", second.Data[1].Title)

	rec = env.do(t, http.MethodGet, "/posts?page=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[GetPostsResponse](t, rec).Data)

	rec = env.do(t, http.MethodGet, "/posts?page="+strconv.Itoa(plain.MaxPage), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	last := decode[GetPostsResponse](t, rec)
	assert.Empty(t, last.Data)
	assert.Equal(t, plain.MaxPage, last.CurrentPage)

	for _, page := range []string{"abc", "0", "-1", "1152921504606846977", "2305843009213693953"} {
		rec = env.do(t, http.MethodGet, "/posts?page="+page, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, page)
	}
}

func TestGetPostNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/posts/"+schemas.NewPostId().Hex(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[MessageResponse](t, rec).Message)
	assert.Equal(t, []string{"GetPost"}, env.store.calls)

	rec = env.do(t, http.MethodGet, "/posts/not-an-id", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"GetPost"}, env.store.calls)
}

func TestMalformedIdOnMutationsNeverReachesStore(t *testing.T) {
	env := newTestEnv(t, Options{})

	testCases := []struct {
		method string
		target string
		body   string
	}{
		{method: http.MethodPatch, target: "/posts/nope", body: `{"title":"A"}`},
		{method: http.MethodDelete, target: "/posts/nope"},
		{method: http.MethodPatch, target: "/posts/nope/likePost"},
		{method: http.MethodPost, target: "/posts/nope/commentPost", body: `{"value":"hi"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.target, tc.body, "u1")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "No post with that id\n", rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		})
	}
	assert.Empty(t, env.store.calls)
}

func TestEditPost(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := env.createPost(t, "before", "a")

	rec := env.do(t, http.MethodPatch, "/posts/"+created.ID,
		`{"title":"after","message":"changed","name":"Someone Else","tags":["b"]}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	edited := decode[schemas.PostData](t, rec)
	assert.Equal(t, created.ID, edited.ID)
	assert.Equal(t, "after", edited.Title)
	assert.Equal(t, "changed", edited.Message)
	assert.Equal(t, []string{"b"}, edited.Tags)
	assert.Equal(t, created.Name, edited.Name)
	assert.Equal(t, created.Creator, edited.Creator)
	assert.Equal(t, created.CreatedAt, edited.CreatedAt)

	rec = env.do(t, http.MethodPatch, "/posts/"+schemas.NewPostId().Hex(), `{"title":"x"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[MessageResponse](t, rec).Message)

	rec = env.do(t, http.MethodPatch, "/posts/"+created.ID, `{"title":""}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := env.createPost(t, "doomed")

	rec := env.do(t, http.MethodDelete, "/posts/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Post deleted succesfully", decode[MessageResponse](t, rec).Message)

	rec = env.do(t, http.MethodGet, "/posts/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/posts/"+created.ID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLikePost(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := env.createPost(t, "likeable")

	rec := env.do(t, http.MethodPatch, "/posts/"+created.ID+"/likePost", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1"}, decode[schemas.PostData](t, rec).Likes)

	rec = env.do(t, http.MethodPatch, "/posts/"+created.ID+"/likePost", "", "u2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1", "u2"}, decode[schemas.PostData](t, rec).Likes)

	rec = env.do(t, http.MethodPatch, "/posts/"+created.ID+"/likePost", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u2"}, decode[schemas.PostData](t, rec).Likes)

	rec = env.do(t, http.MethodPatch, "/posts/"+schemas.NewPostId().Hex()+"/likePost", "", "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikePostAnonymous(t *testing.T) {
	testCases := []struct {
		name   string
		legacy bool
		status int
	}{
		{name: "default", status: http.StatusUnauthorized},
		{name: "legacy", legacy: true, status: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Options{LikeUnauthLegacy: tc.legacy})
			created := env.createPost(t, "likeable")
			callsBefore := len(env.store.calls)

			rec := env.do(t, http.MethodPatch, "/posts/"+created.ID+"/likePost", "", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "Unauthenticated", decode[MessageResponse](t, rec).Message)
			assert.Len(t, env.store.calls, callsBefore)
		})
	}
}

func TestCommentPost(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := env.createPost(t, "talkative")

	rec := env.do(t, http.MethodPost, "/posts/"+created.ID+"/commentPost", `{"value":"Ann: hi"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/posts/"+created.ID+"/commentPost", `{"value":"Bob: hello"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Ann: hi", "Bob: hello"}, decode[schemas.PostData](t, rec).Comments)

	rec = env.do(t, http.MethodPost, "/posts/"+created.ID+"/commentPost", `{"value":"   "}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/posts/"+created.ID+"/commentPost", `{"value":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/posts/"+schemas.NewPostId().Hex()+"/commentPost", `{"value":"hi"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchPosts(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.createPost(t, "String Concatenation", "go")
	env.createPost(t, "My cat", "cats", "pets")
	env.createPost(t, "Unrelated", "misc")

	titles := func(rec *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := []string{}
		for _, post := range decode[SearchPostsResponse](t, rec).Data {
			result = append(result, post.Title)
		}
		return result
	}

	assert.Equal(t, []string{"String Concatenation"},
		titles(env.do(t, http.MethodGet, "/posts/search?searchQuery=concat", "", "")))
	assert.Equal(t, []string{"My cat"},
		titles(env.do(t, http.MethodGet, "/posts/search?searchQuery=none&tags=cats", "", "")))
	assert.ElementsMatch(t, []string{"My cat", "Unrelated"},
		titles(env.do(t, http.MethodGet, "/posts/search?tags=pets,misc", "", "")))
	assert.Empty(t,
		titles(env.do(t, http.MethodGet, "/posts/search?searchQuery=zzz&tags=zzz", "", "")))
	assert.Len(t, titles(env.do(t, http.MethodGet, "/posts/search", "", "")), 3)
}

func TestTopTags(t *testing.T) {
	reader := &staticTags{stats: []tags.TagStat{{Tag: "go", Count: 3}, {Tag: "cats", Count: 1}}}
	env := newTestEnv(t, Options{Tags: reader})

	rec := env.do(t, http.MethodGet, "/posts/tags?limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"tag":"go","count":3},{"tag":"cats","count":1}]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/posts/tags", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2, 0}, reader.limits)

	rec = env.do(t, http.MethodGet, "/posts/tags?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopTagsDisabled(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/posts/tags", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPingAndMetrics(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/maintenance/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memories_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/maintenance/ping"`)
}
