package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"memories/schemas"
)

const SignInPrompt = "Please Sign In to create your own memories."

var ErrSignInRequired = errors.New("sign in required")

type FormMode int

const (
	Creating FormMode = iota
	Editing
)

func (m FormMode) String() string {
	if m == Editing {
		return "Editing"
	}
	return "Creating"
}

// Dispatcher sends form submissions to the server. PostsClient implements it.
type Dispatcher interface {
	CreatePost(ctx context.Context, draft schemas.Draft) (schemas.PostData, error)
	UpdatePost(ctx context.Context, postId string, draft schemas.Draft) (schemas.PostData, error)
	Cached(postId string) (schemas.PostData, bool)
}

// FormController holds the post form. Without a target post it creates a new
// one; after Select it edits the selected post.
type FormController struct {
	dispatcher Dispatcher
	now        func() time.Time

	mu        sync.Mutex
	session   *Profile
	currentId string
	draft     schemas.Draft
}

func NewFormController(dispatcher Dispatcher, session *Profile) *FormController {
	return &FormController{
		dispatcher: dispatcher,
		now:        time.Now,
		session:    session,
	}
}

func (f *FormController) SetSession(profile *Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = profile
}

func (f *FormController) signedIn() bool {
	return f.session.Live(f.now())
}

// Prompt returns the sign-in prompt shown instead of the form, or "" when the
// form is usable.
func (f *FormController) Prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signedIn() {
		return ""
	}
	return SignInPrompt
}

func (f *FormController) Mode() FormMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentId == "" {
		return Creating
	}
	return Editing
}

func (f *FormController) Heading() string {
	return f.Mode().String() + " a Memory"
}

func (f *FormController) CurrentID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentId
}

func (f *FormController) Draft() schemas.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft := f.draft
	if f.draft.Tags != nil {
		draft.Tags = append(schemas.TagList{}, f.draft.Tags...)
	}
	return draft
}

// Select switches to editing postId, filling the draft from the cached post
// when it is known. It reports whether the post was found.
func (f *FormController) Select(postId string) bool {
	post, found := f.dispatcher.Cached(postId)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentId = postId
	if found {
		f.draft = schemas.Draft{
			Title:        post.Title,
			Message:      post.Message,
			Name:         post.Name,
			Tags:         append(schemas.TagList{}, post.Tags...),
			SelectedFile: post.SelectedFile,
		}
	}
	return found
}

func (f *FormController) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Title = title
}

func (f *FormController) SetMessage(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Message = message
}

// SetTags takes the raw comma separated input of the tags field.
func (f *FormController) SetTags(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Tags = schemas.ParseTags(raw)
}

func (f *FormController) SetSelectedFile(base64Data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.SelectedFile = base64Data
}

// Submit dispatches the draft as a new post or as an update of the selected
// one, then resets the form. Without a live session nothing is dispatched.
func (f *FormController) Submit(ctx context.Context) (schemas.PostData, error) {
	f.mu.Lock()
	if !f.signedIn() {
		f.mu.Unlock()
		return schemas.PostData{}, ErrSignInRequired
	}
	postId := f.currentId
	draft := f.draft
	draft.Name = f.session.Result.Name
	f.resetLocked()
	f.mu.Unlock()

	if postId != "" {
		return f.dispatcher.UpdatePost(ctx, postId, draft)
	}
	return f.dispatcher.CreatePost(ctx, draft)
}

func (f *FormController) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *FormController) resetLocked() {
	f.currentId = ""
	f.draft = schemas.Draft{}
}
