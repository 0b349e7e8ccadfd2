package domain

// NewsArticle is a single search result from a news results page.
type NewsArticle struct {
	Keyword   string `json:"keyword"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"` // As displayed, e.g. "3 days ago"
	Page      int    `json:"page"`
}
