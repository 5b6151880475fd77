package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"memories/plain"
	"memories/schemas"
	"memories/storage"
	"memories/tags"
)

const (
	maxPostBodyBytes    = 16 << 20
	maxCommentBodyBytes = 64 << 10
)

// TagsReader serves trending tags.
type TagsReader interface {
	Top(ctx context.Context, limit int) ([]tags.TagStat, error)
}

type Options struct {
	// Tags is optional; without it the trending tags route is not registered.
	Tags TagsReader
	// LikeUnauthLegacy answers unauthenticated likes with 200, as older clients expect.
	LikeUnauthLegacy bool
}

func NewHTTPHandler(storage storage.Storage, opts Options) *HTTPHandler {
	return &HTTPHandler{
		Storage: storage,
		opts:    opts,
	}
}

type HTTPHandler struct {
	Storage storage.Storage
	opts    Options
}

type GetPostsResponse struct {
	Data          []schemas.PostData `json:"data"`
	CurrentPage   int                `json:"currentPage"`
	NumberOfPages int                `json:"numberOfPages"`
}

type SearchPostsResponse struct {
	Data []schemas.PostData `json:"data"`
}

type TopTagsResponse struct {
	Data []tags.TagStat `json:"data"`
}

type CommentPostRequestData struct {
	Value string `json:"value"`
}

func (h *HTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/posts", h.HandleGetPosts).Methods(http.MethodGet)
	r.HandleFunc("/posts", h.HandleCreatePost).Methods(http.MethodPost)
	r.HandleFunc("/posts/search", h.HandleSearchPosts).Methods(http.MethodGet)
	if h.opts.Tags != nil {
		r.HandleFunc("/posts/tags", h.HandleTopTags).Methods(http.MethodGet)
	}
	r.HandleFunc("/posts/{postId}", h.HandleGetPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId}", h.HandleEditPost).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{postId}", h.HandleDeletePost).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{postId}/likePost", h.HandleLikePost).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{postId}/commentPost", h.HandleCommentPost).Methods(http.MethodPost)

	r.HandleFunc("/maintenance/ping", h.HandlePing).Methods(http.MethodGet)
}

func (h *HTTPHandler) HandleGetPosts(rw http.ResponseWriter, r *http.Request) {
	page, err := plain.ParsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	pageData := plain.PageData{Page: page, Size: plain.DefaultPageSize}
	postList, total, err := h.Storage.GetPosts(r.Context(), pageData)
	if err != nil {
		writeLookupError(rw, r, err)
		return
	}

	writeJSON(rw, http.StatusOK, GetPostsResponse{
		Data:          schemas.ToPostDataList(postList),
		CurrentPage:   page,
		NumberOfPages: plain.NumberOfPages(total, pageData.Size),
	})
}

func (h *HTTPHandler) HandleGetPost(rw http.ResponseWriter, r *http.Request) {
	postId, err := schemas.IDFromText(mux.Vars(r)["postId"])
	if err != nil {
		writeLookupError(rw, r, err)
		return
	}

	post, err := h.Storage.GetPost(r.Context(), postId)
	if err != nil {
		writeLookupError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post.ToPostData())
}

func (h *HTTPHandler) HandleSearchPosts(rw http.ResponseWriter, r *http.Request) {
	queryParams := r.URL.Query()
	search := plain.ParseSearch(queryParams.Get("searchQuery"), queryParams.Get("tags"))

	postList, err := h.Storage.SearchPosts(r.Context(), search)
	if err != nil {
		writeLookupError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, SearchPostsResponse{Data: schemas.ToPostDataList(postList)})
}

func (h *HTTPHandler) HandleTopTags(rw http.ResponseWriter, r *http.Request) {
	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			writeError(rw, http.StatusBadRequest, "invalid limit: "+rawLimit)
			return
		}
		limit = parsed
	}

	stats, err := h.opts.Tags.Top(r.Context(), limit)
	if err != nil {
		writeLookupError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, TopTagsResponse{Data: stats})
}

func (h *HTTPHandler) HandleCreatePost(rw http.ResponseWriter, r *http.Request) {
	userId := GetUserID(r)
	if userId == "" {
		writeError(rw, http.StatusUnauthorized, unauthenticated)
		return
	}

	draft, ok := decodeDraft(rw, r)
	if !ok {
		return
	}

	newPost, err := h.Storage.PutPost(r.Context(), userId, draft)
	if err != nil {
		writeStoreError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, newPost.ToPostData())
}

func (h *HTTPHandler) HandleEditPost(rw http.ResponseWriter, r *http.Request) {
	postId, err := schemas.IDFromText(mux.Vars(r)["postId"])
	if err != nil {
		writeInvalidID(rw)
		return
	}

	draft, ok := decodeDraft(rw, r)
	if !ok {
		return
	}

	editedPost, err := h.Storage.EditPost(r.Context(), postId, draft)
	if err != nil {
		writeStoreError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, editedPost.ToPostData())
}

func (h *HTTPHandler) HandleDeletePost(rw http.ResponseWriter, r *http.Request) {
	postId, err := schemas.IDFromText(mux.Vars(r)["postId"])
	if err != nil {
		writeInvalidID(rw)
		return
	}

	if err = h.Storage.DeletePost(r.Context(), postId); err != nil {
		writeStoreError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, MessageResponse{Message: postDeletedResponse})
}

func (h *HTTPHandler) HandleLikePost(rw http.ResponseWriter, r *http.Request) {
	userId := GetUserID(r)
	if userId == "" {
		h.writeUnauthenticatedLike(rw)
		return
	}

	postId, err := schemas.IDFromText(mux.Vars(r)["postId"])
	if err != nil {
		writeInvalidID(rw)
		return
	}

	post, err := h.Storage.ToggleLike(r.Context(), postId, userId)
	if err != nil {
		if errors.Is(err, storage.ErrUnauthenticated) {
			h.writeUnauthenticatedLike(rw)
			return
		}
		writeStoreError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post.ToPostData())
}

func (h *HTTPHandler) writeUnauthenticatedLike(rw http.ResponseWriter) {
	status := http.StatusUnauthorized
	if h.opts.LikeUnauthLegacy {
		status = http.StatusOK
	}
	writeError(rw, status, unauthenticated)
}

func (h *HTTPHandler) HandleCommentPost(rw http.ResponseWriter, r *http.Request) {
	postId, err := schemas.IDFromText(mux.Vars(r)["postId"])
	if err != nil {
		writeInvalidID(rw)
		return
	}

	r.Body = http.MaxBytesReader(rw, r.Body, maxCommentBodyBytes)
	var data CommentPostRequestData
	if err = json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeDecodeError(rw, err)
		return
	}
	if err = schemas.ValidateComment(data.Value); err != nil {
		writeError(rw, http.StatusConflict, err.Error())
		return
	}

	post, err := h.Storage.AddComment(r.Context(), postId, data.Value)
	if err != nil {
		writeStoreError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post.ToPostData())
}

func (h *HTTPHandler) HandlePing(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

// decodeDraft reads, normalizes and validates a draft, answering the request
// itself when that fails.
func decodeDraft(rw http.ResponseWriter, r *http.Request) (schemas.Draft, bool) {
	r.Body = http.MaxBytesReader(rw, r.Body, maxPostBodyBytes)

	var draft schemas.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeDecodeError(rw, err)
		return schemas.Draft{}, false
	}

	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		writeError(rw, http.StatusConflict, err.Error())
		return schemas.Draft{}, false
	}
	return draft, true
}
