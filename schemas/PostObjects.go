package schemas

import (
	"time"

	"github.com/samber/lo"
)

type UserId string

type Post struct {
	ID           PostId    `bson:"_id"`
	Version      int       `bson:"version"`
	Title        string    `bson:"title"`
	Message      string    `bson:"message"`
	Name         string    `bson:"name"`
	Creator      UserId    `bson:"creator"`
	Tags         TagList   `bson:"tags"`
	SelectedFile string    `bson:"selectedFile,omitempty"`
	Likes        []UserId  `bson:"likes"`
	Comments     []string  `bson:"comments"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// PostData is the wire representation of a post. Field names follow the
// browser client, which predates this server.
type PostData struct {
	ID           string   `json:"_id"`
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Name         string   `json:"name"`
	Creator      string   `json:"creator"`
	Tags         []string `json:"tags"`
	SelectedFile string   `json:"selectedFile"`
	Likes        []string `json:"likes"`
	Comments     []string `json:"comments"`
	CreatedAt    string   `json:"createdAt"`
}

func (p *Post) ToPostData() PostData {
	return PostData{
		ID:           p.ID.Hex(),
		Title:        p.Title,
		Message:      p.Message,
		Name:         p.Name,
		Creator:      string(p.Creator),
		Tags:         append([]string{}, p.Tags...),
		SelectedFile: p.SelectedFile,
		Likes:        lo.Map(p.Likes, func(u UserId, _ int) string { return string(u) }),
		Comments:     append([]string{}, p.Comments...),
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (p Post) GetVersion() int {
	return p.Version
}

func (p *Post) HasLike(userId UserId) bool {
	return lo.Contains(p.Likes, userId)
}

// Copy returns a deep copy; slices are not shared with the receiver.
func (p Post) Copy() *Post {
	p.Tags = append(TagList{}, p.Tags...)
	p.Likes = append([]UserId{}, p.Likes...)
	p.Comments = append([]string{}, p.Comments...)
	return &p
}

func ToPostDataList(posts []*Post) []PostData {
	result := make([]PostData, len(posts))
	for i, post := range posts {
		result[i] = post.ToPostData()
	}
	return result
}
