package app

import (
	"context"

	"notelab/api/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// ListFolders returns every folder the user owns or holds a grant on, newest
// first, annotated with the effective access level.
func (s *Service) ListFolders(ctx context.Context, session Session, page, limit int) (map[string]any, error) {
	page, limit = normalizePage(page, limit)
	folders, total, err := s.store.ListAccessibleFolders(ctx, session.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(folders))
	for _, folder := range folders {
		items = append(items, folderPayload(folder.Folder, folder.Access))
	}
	return map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	}, nil
}

// ListNotes returns every note reachable by the user across all three grant
// layers, deduplicated by note id with folder grants outranking note grants.
func (s *Service) ListNotes(ctx context.Context, session Session, page, limit int) (map[string]any, error) {
	page, limit = normalizePage(page, limit)
	notes, total, err := s.store.ListAccessibleNotes(ctx, session.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		items = append(items, notePayload(note.Note, note.Access))
	}
	return map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	}, nil
}

// ListAllFolders is the unbounded listing used by the asset aggregator.
func (s *Service) ListAllFolders(ctx context.Context, userID string) ([]store.FolderWithAccess, error) {
	folders, _, err := s.store.ListAccessibleFolders(ctx, userID, 0, 0)
	return folders, err
}

// ListAllNotes is the unbounded listing used by the asset aggregator.
func (s *Service) ListAllNotes(ctx context.Context, userID string) ([]store.NoteWithAccess, error) {
	notes, _, err := s.store.ListAccessibleNotes(ctx, userID, 0, 0)
	return notes, err
}
