package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS searches notes with PostgreSQL full-text search as a fallback.
// Access filtering happens in SQL: the query only ranks notes the user can
// reach through ownership, a folder share, or a note share.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const ftsAccessibleCTE = `
	WITH accessible AS (
		SELECT n.id
		FROM notes n
		JOIN folders f ON f.id = n.folder_id
		WHERE f.owner_id = $2
		UNION
		SELECT n.id
		FROM notes n
		JOIN folder_shares fs ON fs.folder_id = n.folder_id
		WHERE fs.user_id = $2
		UNION
		SELECT ns.note_id
		FROM note_shares ns
		WHERE ns.user_id = $2
	)
`

// Search ranks the user's reachable notes against the query text.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var total int
	countSQL := ftsAccessibleCTE + `
		SELECT count(*)
		FROM notes n
		JOIN accessible a ON a.id = n.id
		WHERE n.search_vector @@ plainto_tsquery('english', $1)
	`
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text, q.UserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := ftsAccessibleCTE + fmt.Sprintf(`
		SELECT n.id, n.folder_id, n.title,
			ts_headline('english', coalesce(n.body, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM notes n
		JOIN accessible a ON a.id = n.id
		WHERE n.search_vector @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(n.search_vector, plainto_tsquery('english', $1)) DESC, n.id DESC
		LIMIT %d OFFSET %d`, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text, q.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.FolderID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every note for full reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, folder_id, title, body, tags
		FROM notes
	`)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	records := make([]NoteRecord, 0)
	for rows.Next() {
		var record NoteRecord
		var tagsRaw []byte
		if err := rows.Scan(&record.ID, &record.FolderID, &record.Title, &record.Body, &tagsRaw); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		decodeTags(tagsRaw, &record.Tags)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return records, nil
}

func decodeTags(raw []byte, into *[]string) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, into)
}
