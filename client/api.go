package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"resty.dev/v3"

	"memories/schemas"
)

const (
	postsPath       = "/posts"
	searchPath      = "/posts/search"
	postPath        = "/posts/{postId}"
	likePostPath    = "/posts/{postId}/likePost"
	commentPostPath = "/posts/{postId}/commentPost"
)

// APIError is a failed answer of the posts server: a non-2xx status, or a
// 2xx carrying a message instead of a post.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("posts api: %d %s", e.StatusCode, e.Message)
}

type messageBody struct {
	Message string `json:"message"`
}

type PostsPage struct {
	Data          []schemas.PostData `json:"data"`
	CurrentPage   int                `json:"currentPage"`
	NumberOfPages int                `json:"numberOfPages"`
}

// PostsClient dispatches post actions to the server and keeps the list the
// user is currently looking at in sync with the answers.
type PostsClient struct {
	client *resty.Client
	now    func() time.Time

	mu            sync.RWMutex
	session       *Profile
	posts         []schemas.PostData
	currentPage   int
	numberOfPages int
}

func NewPostsClient(baseURL string) *PostsClient {
	client := resty.NewWithTransportSettings(&resty.TransportSettings{
		DialerTimeout:         5 * time.Second,
		DialerKeepAlive:       30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetResponseBodyUnlimitedReads(true)

	return &PostsClient{
		client: client,
		now:    time.Now,
		posts:  []schemas.PostData{},
	}
}

func (c *PostsClient) Close() error {
	return c.client.Close()
}

// SetSession replaces the profile whose token authenticates requests; nil signs out.
func (c *PostsClient) SetSession(profile *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = profile
}

func (c *PostsClient) Session() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *PostsClient) r(ctx context.Context) *resty.Request {
	req := c.client.R().WithContext(ctx).SetError(&messageBody{})
	if session := c.Session(); session.Live(c.now()) {
		req.SetAuthToken(session.Token)
	}
	return req
}

func (c *PostsClient) FetchPosts(ctx context.Context, page int) (*PostsPage, error) {
	res, err := c.r(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetResult(&PostsPage{}).
		Get(postsPath)
	if err = checkResponse(res, err); err != nil {
		return nil, err
	}

	result := res.Result().(*PostsPage)
	c.mu.Lock()
	c.posts = lo.Ternary(result.Data == nil, []schemas.PostData{}, result.Data)
	c.currentPage = result.CurrentPage
	c.numberOfPages = result.NumberOfPages
	c.mu.Unlock()
	return result, nil
}

func (c *PostsClient) FetchPost(ctx context.Context, postId string) (schemas.PostData, error) {
	res, err := c.r(ctx).
		SetPathParam("postId", postId).
		SetResult(&schemas.PostData{}).
		Get(postPath)
	if err = checkResponse(res, err); err != nil {
		return schemas.PostData{}, err
	}
	return *res.Result().(*schemas.PostData), nil
}

// SearchPosts replaces the cached list with the matching posts.
func (c *PostsClient) SearchPosts(ctx context.Context, query string, tagList []string) ([]schemas.PostData, error) {
	type searchResult struct {
		Data []schemas.PostData `json:"data"`
	}

	res, err := c.r(ctx).
		SetQueryParam("searchQuery", query).
		SetQueryParam("tags", strings.Join(tagList, ",")).
		SetResult(&searchResult{}).
		Get(searchPath)
	if err = checkResponse(res, err); err != nil {
		return nil, err
	}

	posts := res.Result().(*searchResult).Data
	if posts == nil {
		posts = []schemas.PostData{}
	}
	c.mu.Lock()
	c.posts = posts
	c.mu.Unlock()
	return posts, nil
}

func (c *PostsClient) CreatePost(ctx context.Context, draft schemas.Draft) (schemas.PostData, error) {
	post, err := c.sendPost(c.r(ctx).SetBody(draft), http.MethodPost, postsPath)
	if err != nil {
		return schemas.PostData{}, err
	}

	c.mu.Lock()
	c.posts = append([]schemas.PostData{post}, c.posts...)
	c.mu.Unlock()
	return post, nil
}

func (c *PostsClient) UpdatePost(ctx context.Context, postId string, draft schemas.Draft) (schemas.PostData, error) {
	post, err := c.sendPost(c.r(ctx).SetPathParam("postId", postId).SetBody(draft), http.MethodPatch, postPath)
	if err != nil {
		return schemas.PostData{}, err
	}
	c.replace(post)
	return post, nil
}

func (c *PostsClient) DeletePost(ctx context.Context, postId string) error {
	res, err := c.r(ctx).
		SetPathParam("postId", postId).
		Delete(postPath)
	if err = checkResponse(res, err); err != nil {
		return err
	}

	c.mu.Lock()
	c.posts = lo.Reject(c.posts, func(post schemas.PostData, _ int) bool {
		return post.ID == postId
	})
	c.mu.Unlock()
	return nil
}

func (c *PostsClient) LikePost(ctx context.Context, postId string) (schemas.PostData, error) {
	post, err := c.sendPost(c.r(ctx).SetPathParam("postId", postId), http.MethodPatch, likePostPath)
	if err != nil {
		return schemas.PostData{}, err
	}
	c.replace(post)
	return post, nil
}

func (c *PostsClient) CommentPost(ctx context.Context, postId string, value string) (schemas.PostData, error) {
	body := map[string]string{"value": value}
	post, err := c.sendPost(c.r(ctx).SetPathParam("postId", postId).SetBody(body), http.MethodPost, commentPostPath)
	if err != nil {
		return schemas.PostData{}, err
	}
	c.replace(post)
	return post, nil
}

// Posts returns a copy of the cached list.
func (c *PostsClient) Posts() []schemas.PostData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]schemas.PostData{}, c.posts...)
}

func (c *PostsClient) Pages() (currentPage int, numberOfPages int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPage, c.numberOfPages
}

// Cached finds a post in the cached list.
func (c *PostsClient) Cached(postId string) (schemas.PostData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.posts, func(post schemas.PostData) bool {
		return post.ID == postId
	})
}

func (c *PostsClient) sendPost(req *resty.Request, method string, url string) (schemas.PostData, error) {
	res, err := req.SetResult(&schemas.PostData{}).Execute(method, url)
	if err = checkResponse(res, err); err != nil {
		return schemas.PostData{}, err
	}

	post := *res.Result().(*schemas.PostData)
	if post.ID == "" {
		// Legacy servers answer an anonymous like with 200 and a message body.
		var body messageBody
		message := strings.TrimSpace(res.String())
		if json.Unmarshal([]byte(message), &body) == nil && body.Message != "" {
			message = body.Message
		}
		return schemas.PostData{}, &APIError{StatusCode: res.StatusCode(), Message: message}
	}
	return post, nil
}

func (c *PostsClient) replace(updated schemas.PostData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = lo.Map(c.posts, func(post schemas.PostData, _ int) schemas.PostData {
		return lo.Ternary(post.ID == updated.ID, updated, post)
	})
}

func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}

	message := strings.TrimSpace(res.String())
	if body, ok := res.Error().(*messageBody); ok && body.Message != "" {
		message = body.Message
	}
	return &APIError{StatusCode: res.StatusCode(), Message: message}
}
