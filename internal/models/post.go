package models

import "time"

type PostType string

const (
	Doubt PostType = "doubt"
	Offer PostType = "offer"
)

func (t PostType) Valid() bool { return t == Doubt || t == Offer }

type PostStatus string

const (
	PostOpen      PostStatus = "open"
	PostMatched   PostStatus = "matched"
	PostCompleted PostStatus = "completed" // хранится, но переход не реализован
)

// CanAdvanceTo: единственный разрешённый переход open → matched.
func (s PostStatus) CanAdvanceTo(next PostStatus) bool {
	return s == PostOpen && next == PostMatched
}

type Post struct {
	ID          string     `json:"id"`
	Type        PostType   `json:"type"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Subject     string     `json:"subject"`
	CreatedAt   time.Time  `json:"createdAt"`
	Status      PostStatus `json:"status"`
}
