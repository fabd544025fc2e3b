package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request scoped to one user's reachable notes.
type Query struct {
	Text   string
	UserID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// NoteRecord is the data we index for a note.
type NoteRecord struct {
	ID       string   `json:"id"`
	FolderID string   `json:"folderId"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
}

// AccessChecker decides whether a user may read a note. Hits from the
// external index are re-checked through it before they leave the service.
type AccessChecker interface {
	CanReadNote(ctx context.Context, userID, noteID string) bool
}
