package schemas

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	MaxTitleLength   = 256
	MaxMessageLength = 10000
	MaxTags          = 32
	MaxTagLength     = 64
	MaxCommentLength = 2000
)

// Draft is the client-supplied part of a post, accepted by create and update.
type Draft struct {
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	Name         string  `json:"name"`
	Tags         TagList `json:"tags"`
	SelectedFile string  `json:"selectedFile"`
}

// TagList decodes from either a JSON array or a comma separated string; the
// browser form sends the raw input until the tags field is edited.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*t = ParseTags(raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return NewValidationError("tags", "must be a list of strings or a comma separated string")
	}
	*t = list
	return nil
}

func ParseTags(raw string) TagList {
	if strings.TrimSpace(raw) == "" {
		return TagList{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags, drops empty ones and keeps the first occurrence of
// duplicates.
func NormalizeTags(tags []string) TagList {
	trimmed := lo.Map(tags, func(tag string, _ int) string { return strings.TrimSpace(tag) })
	nonEmpty := lo.Filter(trimmed, func(tag string, _ int) bool { return tag != "" })
	return lo.Uniq(nonEmpty)
}

func (d Draft) Normalize() Draft {
	d.Tags = NormalizeTags(d.Tags)
	d.SelectedFile = strings.TrimSpace(d.SelectedFile)
	return d
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(d.Message) > MaxMessageLength {
		return NewValidationError("message", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
	}
	if len(d.Tags) > MaxTags {
		return NewValidationError("tags", fmt.Sprintf("at most %d tags allowed", MaxTags))
	}
	for _, tag := range d.Tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return NewValidationError("tags", fmt.Sprintf("tag %q is longer than %d characters", tag, MaxTagLength))
		}
	}
	if d.SelectedFile != "" {
		if err := validateImageData(d.SelectedFile); err != nil {
			return err
		}
	}
	return nil
}

func ValidateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("value", "comment must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return NewValidationError("value", fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}
	return nil
}

// validateImageData accepts plain base64 or a base64 data URL.
func validateImageData(data string) error {
	payload := data
	if strings.HasPrefix(data, "data:") {
		meta, rest, found := strings.Cut(strings.TrimPrefix(data, "data:"), ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return NewValidationError("selectedFile", "data url must be base64 encoded")
		}
		payload = rest
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return NewValidationError("selectedFile", "invalid base64 payload")
	}
	return nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
