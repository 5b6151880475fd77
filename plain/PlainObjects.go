package plain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"memories/schemas"
)

const (
	DefaultPageSize = 8
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*size within int for every allowed size.
	MaxPage = math.MaxInt / MaxPageSize
)

// PageData addresses a 1-indexed page of posts, most recent first.
type PageData struct {
	Page int
	Size int
}

func CorrectDestruct(pageData PageData) (page int, size int, err error) {
	size = pageData.Size
	switch {
	case size < 0:
		return 0, 0, fmt.Errorf("page size must not be negative: %d", size)
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		return 0, 0, fmt.Errorf("page size must not exceed %d: %d", MaxPageSize, size)
	}

	page = pageData.Page
	switch {
	case page < 0:
		return 0, 0, fmt.Errorf("page must be positive: %d", page)
	case page == 0:
		page = 1
	case page > MaxPage:
		return 0, 0, fmt.Errorf("page must not exceed %d: %d", MaxPage, page)
	}
	return page, size, nil
}

func (p PageData) Offset() int {
	page, size, err := CorrectDestruct(p)
	if err != nil {
		return 0
	}
	return (page - 1) * size
}

// ParsePage reads the page query parameter; a missing value means the first page.
func ParsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid page %q: %w", raw, err)
	}
	if page < 1 {
		return 0, fmt.Errorf("page must be positive: %d", page)
	}
	if page > MaxPage {
		return 0, fmt.Errorf("page must not exceed %d: %d", MaxPage, page)
	}
	return page, nil
}

func NumberOfPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

type SearchData struct {
	Query string
	Tags  []string
}

func ParseSearch(query, rawTags string) SearchData {
	return SearchData{
		Query: strings.TrimSpace(query),
		Tags:  schemas.ParseTags(rawTags),
	}
}

func (s SearchData) IsEmpty() bool {
	return s.Query == "" && len(s.Tags) == 0
}
