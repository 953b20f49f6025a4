package domain

// BookSummary is one entry in a reader account's book list.
type BookSummary struct {
	ASIN     string   `json:"asin"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
}

// BookDetails is the full metadata for one book, fetched on demand and
// memoized per session.
type BookDetails struct {
	ASIN            string   `json:"asin"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors,omitempty"`
	Description     string   `json:"description,omitempty"`
	CoverURL        string   `json:"coverUrl,omitempty"`
	CoverBlurHash   string   `json:"coverBlurHash,omitempty"`
	CurrentPosition int64    `json:"currentPosition"`
	Length          int64    `json:"length"`
}
