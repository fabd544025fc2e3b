package app

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/store"
)

func folderAt(id string, updated time.Time) store.FolderWithAccess {
	return store.FolderWithAccess{
		Folder: store.Folder{ID: id, Name: "F " + id, UpdatedAt: updated},
		Access: access.LevelOwner,
	}
}

func noteAt(id string, updated time.Time) store.NoteWithAccess {
	return store.NoteWithAccess{
		Note:   store.Note{ID: id, FolderID: "fld_1", Title: "N " + id, UpdatedAt: updated},
		Access: access.LevelRead,
	}
}

func TestMergeFoldersFirstOccurrenceWins(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	shared := folderAt("fld_shared", base)
	sharedAgain := shared
	sharedAgain.Access = access.LevelRead

	merged := mergeFolders([]memberAssets{
		{folders: []store.FolderWithAccess{shared, folderAt("fld_b", base.Add(-time.Hour))}},
		{folders: []store.FolderWithAccess{sharedAgain, folderAt("fld_a", base.Add(time.Hour))}},
	})

	if len(merged) != 3 {
		t.Fatalf("expected 3 folders after dedup, got %v", merged)
	}
	// Newest first; the duplicate keeps the first member's access level.
	if merged[0].ID != "fld_a" || merged[1].ID != "fld_shared" || merged[2].ID != "fld_b" {
		t.Fatalf("unexpected order %v %v %v", merged[0].ID, merged[1].ID, merged[2].ID)
	}
	if merged[1].Access != access.LevelOwner {
		t.Fatalf("first occurrence must win, got %v", merged[1].Access)
	}
}

func TestMergeNotesTieBreaksOnID(t *testing.T) {
	same := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	merged := mergeNotes([]memberAssets{
		{notes: []store.NoteWithAccess{noteAt("note_a", same), noteAt("note_c", same)}},
		{notes: []store.NoteWithAccess{noteAt("note_b", same)}},
	})
	if merged[0].ID != "note_c" || merged[1].ID != "note_b" || merged[2].ID != "note_a" {
		t.Fatalf("expected id descending on equal timestamps, got %v %v %v", merged[0].ID, merged[1].ID, merged[2].ID)
	}
}

func TestPageFoldersWindows(t *testing.T) {
	base := time.Now()
	folders := []store.FolderWithAccess{
		folderAt("fld_1", base), folderAt("fld_2", base), folderAt("fld_3", base),
	}
	if got := pageFolders(folders, 2, 2); len(got) != 1 || got[0].ID != "fld_3" {
		t.Fatalf("unexpected second page %v", got)
	}
	if got := pageFolders(folders, 5, 2); got != nil {
		t.Fatalf("expected empty page past the end, got %v", got)
	}
}

func TestGetTeamAssetsAggregatesMembers(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listAccessibleFoldersFn: func(_ context.Context, userID string, limit, offset int) ([]store.FolderWithAccess, int, error) {
			if limit != 0 || offset != 0 {
				t.Errorf("member listing must be unbounded, got limit=%d offset=%d", limit, offset)
			}
			switch userID {
			case "usr_main":
				return []store.FolderWithAccess{folderAt("fld_1", base)}, 1, nil
			case "usr_member":
				return []store.FolderWithAccess{folderAt("fld_1", base), folderAt("fld_2", base.Add(time.Hour))}, 2, nil
			}
			return nil, 0, nil
		},
		listAccessibleNotesFn: func(_ context.Context, userID string, _, _ int) ([]store.NoteWithAccess, int, error) {
			if userID == "usr_member" {
				return []store.NoteWithAccess{noteAt("note_1", base)}, 1, nil
			}
			return nil, 0, nil
		},
	}
	teamWithRoster(fs, "team_1", []store.TeamMembership{
		{TeamID: "team_1", UserID: "usr_main", Role: store.TeamRoleManager, IsMainManager: true},
		{TeamID: "team_1", UserID: "usr_member", Role: store.TeamRoleMember},
	})
	svc := newTestService(fs)

	payload, err := svc.GetTeamAssets(context.Background(), Session{UserID: "usr_main"}, "team_1", 1, 20, 1, 20)
	if err != nil {
		t.Fatalf("GetTeamAssets() error = %v", err)
	}
	folders := payload["folders"].(map[string]any)
	if folders["total"] != 2 {
		t.Fatalf("expected 2 unique folders, got %v", folders["total"])
	}
	items := folders["items"].([]map[string]any)
	if len(items) != 2 || items[0]["id"] != "fld_2" {
		t.Fatalf("expected fld_2 first (newest), got %v", items)
	}
	notes := payload["notes"].(map[string]any)
	if notes["total"] != 1 {
		t.Fatalf("expected 1 note, got %v", notes["total"])
	}
}

func TestGetTeamAssetsManagerOnly(t *testing.T) {
	fs := &fakeStore{}
	teamWithRoster(fs, "team_1", platformRoster())
	svc := newTestService(fs)

	_, err := svc.GetTeamAssets(context.Background(), Session{UserID: "usr_member", Role: store.RoleMember}, "team_1", 1, 20, 1, 20)
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")

	if _, err := svc.GetTeamAssets(context.Background(), Session{UserID: "usr_root", Role: store.RoleRoot}, "team_1", 1, 20, 1, 20); err != nil {
		t.Fatalf("root access error = %v", err)
	}
}

func TestGetTeamAssetsUnknownTeam(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GetTeamAssets(context.Background(), Session{UserID: "usr_1"}, "team_missing", 1, 20, 1, 20)
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestGetUserAssetsAuthorization(t *testing.T) {
	fs := &fakeStore{
		listUserTeamsFn: func(_ context.Context, userID string) ([]store.Team, error) {
			if userID == "usr_target" {
				return []store.Team{{ID: "team_1"}}, nil
			}
			return nil, nil
		},
		getTeamMembershipFn: func(_ context.Context, teamID, userID string) (store.TeamMembership, error) {
			if teamID == "team_1" && userID == "usr_mgr" {
				return store.TeamMembership{TeamID: teamID, UserID: userID, Role: store.TeamRoleManager}, nil
			}
			return store.TeamMembership{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	if _, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_target"}, "usr_target", 1, 20, 1, 20); err != nil {
		t.Fatalf("self access error = %v", err)
	}
	if _, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_root", Role: store.RoleRoot}, "usr_target", 1, 20, 1, 20); err != nil {
		t.Fatalf("root access error = %v", err)
	}
	if _, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_mgr"}, "usr_target", 1, 20, 1, 20); err != nil {
		t.Fatalf("manager access error = %v", err)
	}

	_, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_stranger"}, "usr_target", 1, 20, 1, 20)
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestGetUserAssetsUnknownUser(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) {
			return store.User{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_root", Role: store.RoleRoot}, "usr_ghost", 1, 20, 1, 20)
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestGetUserAssetsPaginates(t *testing.T) {
	var gotLimit, gotOffset int
	fs := &fakeStore{
		listAccessibleFoldersFn: func(_ context.Context, _ string, limit, offset int) ([]store.FolderWithAccess, int, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.GetUserAssets(context.Background(), Session{UserID: "usr_1"}, "usr_1", 3, 10, 1, 20); err != nil {
		t.Fatalf("GetUserAssets() error = %v", err)
	}
	if gotLimit != 10 || gotOffset != 20 {
		t.Fatalf("expected limit 10 offset 20, got %d %d", gotLimit, gotOffset)
	}
}
