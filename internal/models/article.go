package models

// Article is the CMS content a batch of drafts is generated from
type Article struct {
	ID      string   `json:"id"`
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}
