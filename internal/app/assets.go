package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"notelab/api/internal/store"
)

type memberAssets struct {
	folders []store.FolderWithAccess
	notes   []store.NoteWithAccess
	err     error
}

// GetTeamAssets aggregates everything the team's members can reach. The
// unbounded listing runs once per member concurrently; results merge in
// roster order with the first occurrence of a resource id winning, then sort
// and window. Cost grows with members x resources.
func (s *Service) GetTeamAssets(ctx context.Context, session Session, teamID string, folderPage, folderLimit, notePage, noteLimit int) (map[string]any, error) {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("team not found")
		}
		return nil, err
	}
	if session.Role != store.RoleRoot {
		if err := s.requireManager(ctx, teamID, session.UserID); err != nil {
			return nil, err
		}
	}

	memberships, err := s.store.ListTeamMemberships(ctx, teamID)
	if err != nil {
		return nil, err
	}

	results := make([]memberAssets, len(memberships))
	var wg sync.WaitGroup
	for i, membership := range memberships {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			folders, err := s.ListAllFolders(ctx, userID)
			if err != nil {
				results[i].err = err
				return
			}
			notes, err := s.ListAllNotes(ctx, userID)
			if err != nil {
				results[i].err = err
				return
			}
			results[i].folders = folders
			results[i].notes = notes
		}(i, membership.UserID)
	}
	wg.Wait()

	for _, result := range results {
		if result.err != nil {
			return nil, result.err
		}
	}

	folders := mergeFolders(results)
	notes := mergeNotes(results)

	folderPage, folderLimit = normalizePage(folderPage, folderLimit)
	notePage, noteLimit = normalizePage(notePage, noteLimit)

	return map[string]any{
		"teamId": teamID,
		"folders": map[string]any{
			"items": folderItems(pageFolders(folders, folderPage, folderLimit)),
			"total": len(folders),
			"page":  folderPage,
			"limit": folderLimit,
		},
		"notes": map[string]any{
			"items": noteItems(pageNotes(notes, notePage, noteLimit)),
			"total": len(notes),
			"page":  notePage,
			"limit": noteLimit,
		},
	}, nil
}

// GetUserAssets lists a single user's reachable resources. Allowed for the
// user themselves, root, or a manager of any team the user belongs to.
func (s *Service) GetUserAssets(ctx context.Context, session Session, userID string, folderPage, folderLimit, notePage, noteLimit int) (map[string]any, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("user not found")
		}
		return nil, err
	}
	if err := s.gateUserAssets(ctx, session, userID); err != nil {
		return nil, err
	}

	folderPage, folderLimit = normalizePage(folderPage, folderLimit)
	notePage, noteLimit = normalizePage(notePage, noteLimit)

	folders, folderTotal, err := s.store.ListAccessibleFolders(ctx, userID, folderLimit, (folderPage-1)*folderLimit)
	if err != nil {
		return nil, err
	}
	notes, noteTotal, err := s.store.ListAccessibleNotes(ctx, userID, noteLimit, (notePage-1)*noteLimit)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"userId": userID,
		"folders": map[string]any{
			"items": folderItems(folders),
			"total": folderTotal,
			"page":  folderPage,
			"limit": folderLimit,
		},
		"notes": map[string]any{
			"items": noteItems(notes),
			"total": noteTotal,
			"page":  notePage,
			"limit": noteLimit,
		},
	}, nil
}

func (s *Service) gateUserAssets(ctx context.Context, session Session, userID string) error {
	if session.UserID == userID || session.Role == store.RoleRoot {
		return nil
	}
	teams, err := s.store.ListUserTeams(ctx, userID)
	if err != nil {
		return err
	}
	for _, team := range teams {
		membership, err := s.store.GetTeamMembership(ctx, team.ID, session.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}
		if membership.Role == store.TeamRoleManager {
			return nil
		}
	}
	return errForbidden("not allowed to view this user's assets")
}

func mergeFolders(results []memberAssets) []store.FolderWithAccess {
	seen := make(map[string]struct{})
	merged := make([]store.FolderWithAccess, 0)
	for _, result := range results {
		for _, folder := range result.folders {
			if _, ok := seen[folder.ID]; ok {
				continue
			}
			seen[folder.ID] = struct{}{}
			merged = append(merged, folder)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].UpdatedAt.Equal(merged[j].UpdatedAt) {
			return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
		}
		return merged[i].ID > merged[j].ID
	})
	return merged
}

func mergeNotes(results []memberAssets) []store.NoteWithAccess {
	seen := make(map[string]struct{})
	merged := make([]store.NoteWithAccess, 0)
	for _, result := range results {
		for _, note := range result.notes {
			if _, ok := seen[note.ID]; ok {
				continue
			}
			seen[note.ID] = struct{}{}
			merged = append(merged, note)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].UpdatedAt.Equal(merged[j].UpdatedAt) {
			return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
		}
		return merged[i].ID > merged[j].ID
	})
	return merged
}

func pageFolders(folders []store.FolderWithAccess, page, limit int) []store.FolderWithAccess {
	start := (page - 1) * limit
	if start >= len(folders) {
		return nil
	}
	end := start + limit
	if end > len(folders) {
		end = len(folders)
	}
	return folders[start:end]
}

func pageNotes(notes []store.NoteWithAccess, page, limit int) []store.NoteWithAccess {
	start := (page - 1) * limit
	if start >= len(notes) {
		return nil
	}
	end := start + limit
	if end > len(notes) {
		end = len(notes)
	}
	return notes[start:end]
}

func folderItems(folders []store.FolderWithAccess) []map[string]any {
	items := make([]map[string]any, 0, len(folders))
	for _, folder := range folders {
		items = append(items, folderPayload(folder.Folder, folder.Access))
	}
	return items
}

func noteItems(notes []store.NoteWithAccess) []map[string]any {
	items := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		items = append(items, notePayload(note.Note, note.Access))
	}
	return items
}
