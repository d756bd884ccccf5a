package model

import "time"

// SearchResult is a persisted, completed search
type SearchResult struct {
	ID        string    `json:"id"`
	SearchID  string    `json:"searchId"`
	Query     string    `json:"query"`
	Sites     []string  `json:"sites"`
	Summary   string    `json:"summary"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Sources   []Source  `json:"sources,omitempty"`
}

// Source is the scraped content of one cited page
type Source struct {
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	ScrapedAt  time.Time `json:"scrapedAt"`
	ArchiveKey string    `json:"archiveKey,omitempty"`
}

// DataResponse is returned by GET /data/
type DataResponse struct {
	Data []SearchResult `json:"data"`
}

// SourceDetailResponse is returned by GET /source_detail
type SourceDetailResponse struct {
	URL        string `json:"url"`
	Content    string `json:"content"`
	ArchiveURL string `json:"archiveUrl,omitempty"`
}

// DeleteResponse is returned by the delete endpoints
type DeleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}
