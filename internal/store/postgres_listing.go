package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notelab/api/internal/access"
)

// FolderOwner returns the owner of a folder, reporting ok=false when the
// folder does not exist.
func (s *PostgresStore) FolderOwner(ctx context.Context, folderID string) (string, bool, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM folders WHERE id=$1`, folderID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup folder owner: %w", err)
	}
	return ownerID, true, nil
}

// FolderGrant returns the share level a user holds directly on a folder,
// reporting ok=false when no share row exists.
func (s *PostgresStore) FolderGrant(ctx context.Context, folderID, userID string) (access.Level, bool, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `
		SELECT level FROM folder_shares WHERE folder_id=$1 AND user_id=$2
	`, folderID, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return access.LevelNone, false, nil
	}
	if err != nil {
		return access.LevelNone, false, fmt.Errorf("lookup folder grant: %w", err)
	}
	return access.Level(level), true, nil
}

// NoteFolder returns the folder a note belongs to, reporting ok=false when
// the note does not exist.
func (s *PostgresStore) NoteFolder(ctx context.Context, noteID string) (string, bool, error) {
	var folderID string
	err := s.db.QueryRowContext(ctx, `SELECT folder_id FROM notes WHERE id=$1`, noteID).Scan(&folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup note folder: %w", err)
	}
	return folderID, true, nil
}

// NoteGrant returns the share level a user holds directly on a note,
// reporting ok=false when no share row exists.
func (s *PostgresStore) NoteGrant(ctx context.Context, noteID, userID string) (access.Level, bool, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `
		SELECT level FROM note_shares WHERE note_id=$1 AND user_id=$2
	`, noteID, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return access.LevelNone, false, nil
	}
	if err != nil {
		return access.LevelNone, false, fmt.Errorf("lookup note grant: %w", err)
	}
	return access.Level(level), true, nil
}

// accessibleFoldersCTE unions owned folders with folder shares. Each row
// carries a source rank so the owner path wins when a user is both owner and
// grantee of the same folder.
const accessibleFoldersCTE = `
	WITH accessible AS (
		SELECT f.id, 0 AS source_rank, 'owner' AS level
		FROM folders f
		WHERE f.owner_id = $1
		UNION ALL
		SELECT fs.folder_id, 1, fs.level
		FROM folder_shares fs
		WHERE fs.user_id = $1
	), deduped AS (
		SELECT DISTINCT ON (id) id, level
		FROM accessible
		ORDER BY id, source_rank
	)
`

// ListAccessibleFolders returns every folder the user owns or has a share on,
// newest first, with the total match count before windowing. A limit of zero
// or less disables paging.
func (s *PostgresStore) ListAccessibleFolders(ctx context.Context, userID string, limit, offset int) ([]FolderWithAccess, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, accessibleFoldersCTE+`SELECT COUNT(*) FROM deduped`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count accessible folders: %w", err)
	}

	query := accessibleFoldersCTE + `
		SELECT f.id, f.name, f.description, f.owner_id, f.created_at, f.updated_at, d.level
		FROM deduped d
		JOIN folders f ON f.id = d.id
		ORDER BY f.updated_at DESC, f.id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list accessible folders: %w", err)
	}
	defer rows.Close()

	items := make([]FolderWithAccess, 0)
	for rows.Next() {
		var item FolderWithAccess
		var level string
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt, &level); err != nil {
			return nil, 0, fmt.Errorf("scan accessible folder: %w", err)
		}
		item.Access = access.Level(level)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accessible folders: %w", err)
	}
	return items, total, nil
}

// accessibleNotesCTE unions three reachability paths: notes in owned folders,
// notes in shared folders, and directly shared notes. The folder paths
// outrank direct note shares, so a folder grant decides the level even when a
// narrower note share exists.
const accessibleNotesCTE = `
	WITH accessible AS (
		SELECT n.id, 0 AS source_rank, 'owner' AS level
		FROM notes n
		JOIN folders f ON f.id = n.folder_id
		WHERE f.owner_id = $1
		UNION ALL
		SELECT n.id, 1, fs.level
		FROM notes n
		JOIN folder_shares fs ON fs.folder_id = n.folder_id
		WHERE fs.user_id = $1
		UNION ALL
		SELECT ns.note_id, 2, ns.level
		FROM note_shares ns
		WHERE ns.user_id = $1
	), deduped AS (
		SELECT DISTINCT ON (id) id, level
		FROM accessible
		ORDER BY id, source_rank
	)
`

// ListAccessibleNotes returns every note reachable by the user, newest first,
// with the total match count before windowing. A limit of zero or less
// disables paging.
func (s *PostgresStore) ListAccessibleNotes(ctx context.Context, userID string, limit, offset int) ([]NoteWithAccess, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, accessibleNotesCTE+`SELECT COUNT(*) FROM deduped`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count accessible notes: %w", err)
	}

	query := accessibleNotesCTE + `
		SELECT n.id, n.folder_id, n.title, n.body, n.tags, n.created_at, n.updated_at, d.level
		FROM deduped d
		JOIN notes n ON n.id = d.id
		ORDER BY n.updated_at DESC, n.id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list accessible notes: %w", err)
	}
	defer rows.Close()

	items := make([]NoteWithAccess, 0)
	for rows.Next() {
		var item NoteWithAccess
		var tagsRaw []byte
		var level string
		if err := rows.Scan(&item.ID, &item.FolderID, &item.Title, &item.Body, &tagsRaw, &item.CreatedAt, &item.UpdatedAt, &level); err != nil {
			return nil, 0, fmt.Errorf("scan accessible note: %w", err)
		}
		_ = json.Unmarshal(tagsRaw, &item.Tags)
		item.Access = access.Level(level)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accessible notes: %w", err)
	}
	return items, total, nil
}
