package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/export"
	"notelab/api/internal/notegit"
	"notelab/api/internal/search"
	"notelab/api/internal/store"
)

// noteInFolder wires the fake store with one note inside one folder, plus
// optional folder- and note-level grants.
func noteInFolder(fs *fakeStore, noteID, folderID, ownerID string, folderGrants, noteGrants map[string]access.Level) {
	ownedFolder(fs, folderID, ownerID, folderGrants)
	fs.noteFolderFn = func(_ context.Context, id string) (string, bool, error) {
		if id == noteID {
			return folderID, true, nil
		}
		return "", false, nil
	}
	fs.noteGrantFn = func(_ context.Context, id, userID string) (access.Level, bool, error) {
		if id != noteID {
			return access.LevelNone, false, nil
		}
		level, ok := noteGrants[userID]
		return level, ok, nil
	}
	fs.getNoteFn = func(_ context.Context, id string) (store.Note, error) {
		if id == noteID {
			return store.Note{ID: noteID, FolderID: folderID, Title: "Note", Body: "Body", Tags: []string{"a"}, UpdatedAt: time.Now()}, nil
		}
		return store.Note{}, sql.ErrNoRows
	}
}

func TestCreateNoteRequiresWriteAccess(t *testing.T) {
	fs := &fakeStore{}
	ownedFolder(fs, "fld_1", "usr_owner", map[string]access.Level{"usr_reader": access.LevelRead})
	svc := newTestService(fs)

	_, err := svc.CreateNote(context.Background(), Session{UserID: "usr_reader"}, NoteInput{FolderID: "fld_1", Title: "Note"})
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestCreateNoteUnknownFolderHidden(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateNote(context.Background(), Session{UserID: "usr_1"}, NoteInput{FolderID: "fld_missing", Title: "Note"})
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestCreateNoteCommitsAndIndexes(t *testing.T) {
	fs := &fakeStore{}
	ownedFolder(fs, "fld_1", "usr_owner", nil)
	svc := newTestService(fs)

	var commitMessage, commitAuthor string
	svc.history = &fakeHistory{
		commitNoteFn: func(_, _ string, _ notegit.NoteContent, author, message string) (store.CommitInfo, error) {
			commitAuthor, commitMessage = author, message
			return store.CommitInfo{Hash: "abc1234", Author: author, Message: message, CreatedAt: time.Now()}, nil
		},
	}
	idx := &fakeSearch{}
	svc.search = idx

	payload, err := svc.CreateNote(context.Background(), Session{UserID: "usr_owner", Username: "Avery"}, NoteInput{
		FolderID: "fld_1",
		Title:    "Meeting notes",
		Body:     "Agenda",
		Tags:     []string{"work"},
	})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if commitMessage != "Create Meeting notes" || commitAuthor != "Avery" {
		t.Fatalf("unexpected commit %q by %q", commitMessage, commitAuthor)
	}
	indexed := idx.indexedRecords()
	if len(indexed) != 1 || indexed[0].Title != "Meeting notes" {
		t.Fatalf("expected the note indexed, got %v", indexed)
	}
	commit, ok := payload["commit"].(map[string]any)
	if !ok || commit["hash"] != "abc1234" {
		t.Fatalf("expected commit in payload, got %v", payload["commit"])
	}
}

func TestUpdateNoteCommitsNewRevision(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", map[string]access.Level{"usr_writer": access.LevelWrite}, nil)
	svc := newTestService(fs)

	var commitMessage string
	svc.history = &fakeHistory{
		commitNoteFn: func(_, _ string, _ notegit.NoteContent, author, message string) (store.CommitInfo, error) {
			commitMessage = message
			return store.CommitInfo{Hash: "def5678", Author: author, Message: message, CreatedAt: time.Now()}, nil
		},
	}
	idx := &fakeSearch{}
	svc.search = idx

	if _, err := svc.UpdateNote(context.Background(), Session{UserID: "usr_writer", Username: "Blair"}, "note_1", NoteInput{Title: "Note"}); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}
	if commitMessage != "Update Note" {
		t.Fatalf("unexpected commit message %q", commitMessage)
	}
	if len(idx.indexedRecords()) != 1 {
		t.Fatal("expected the updated note reindexed")
	}
}

func TestUpdateNoteViaNoteGrant(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, map[string]access.Level{"usr_writer": access.LevelWrite})
	svc := newTestService(fs)

	if _, err := svc.UpdateNote(context.Background(), Session{UserID: "usr_writer"}, "note_1", NoteInput{Title: "Note"}); err != nil {
		t.Fatalf("UpdateNote() with a note grant error = %v", err)
	}
}

func TestNoteGrantDoesNotOpenFolder(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, map[string]access.Level{"usr_reader": access.LevelRead})
	svc := newTestService(fs)

	if _, err := svc.GetNote(context.Background(), Session{UserID: "usr_reader"}, "note_1"); err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	_, err := svc.GetFolder(context.Background(), Session{UserID: "usr_reader"}, "fld_1")
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestFolderGrantOutranksNoteGrant(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner",
		map[string]access.Level{"usr_2": access.LevelRead},
		map[string]access.Level{"usr_2": access.LevelWrite})
	svc := newTestService(fs)

	// The folder grant wins even though the note grant is wider.
	_, err := svc.UpdateNote(context.Background(), Session{UserID: "usr_2"}, "note_1", NoteInput{Title: "Note"})
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestDeleteNoteWriterForbidden(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", map[string]access.Level{"usr_writer": access.LevelWrite}, nil)
	svc := newTestService(fs)

	err := svc.DeleteNote(context.Background(), Session{UserID: "usr_writer"}, "note_1")
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestDeleteNoteCleansUp(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)
	idx := &fakeSearch{}
	svc.search = idx
	var removedNote string
	svc.history = &fakeHistory{removeNoteFn: func(_, noteID, _ string) error {
		removedNote = noteID
		return nil
	}}

	if err := svc.DeleteNote(context.Background(), Session{UserID: "usr_owner"}, "note_1"); err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if deleted := idx.deletedIDs(); len(deleted) != 1 || deleted[0] != "note_1" {
		t.Fatalf("expected note_1 deindexed, got %v", deleted)
	}
	if removedNote != "note_1" {
		t.Fatalf("expected history removal for note_1, got %q", removedNote)
	}
}

func TestShareNoteUnknownUser(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) {
			return store.User{}, sql.ErrNoRows
		},
	}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)

	_, err := svc.ShareNote(context.Background(), Session{UserID: "usr_owner"}, "note_1", ShareInput{UserID: "usr_ghost", Level: "read"})
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestNoteHistoryClampsLimit(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)

	var gotLimit int
	svc.history = &fakeHistory{
		noteHistoryFn: func(_, _ string, limit int) ([]store.CommitInfo, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	session := Session{UserID: "usr_owner"}

	for _, tc := range []struct{ in, want int }{{0, 50}, {-5, 50}, {500, 50}, {10, 10}} {
		if _, err := svc.NoteHistory(context.Background(), session, "note_1", tc.in); err != nil {
			t.Fatalf("NoteHistory(%d) error = %v", tc.in, err)
		}
		if gotLimit != tc.want {
			t.Fatalf("limit %d clamped to %d, want %d", tc.in, gotLimit, tc.want)
		}
	}
}

func TestNoteAtCommitUnknownHash(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)
	svc.history = &fakeHistory{
		noteAtCommitFn: func(string, string, string) (notegit.NoteContent, error) {
			return notegit.NoteContent{}, errors.New("object not found")
		},
	}

	_, err := svc.NoteAtCommit(context.Background(), Session{UserID: "usr_owner"}, "note_1", "badbeef")
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestExportNoteRejectsUnknownFormat(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)

	_, err := svc.ExportNote(context.Background(), Session{UserID: "usr_owner"}, "note_1", "epub")
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestExportNoteBuildsRequest(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", map[string]access.Level{"usr_reader": access.LevelRead}, nil)
	svc := newTestService(fs)

	var gotReq export.Request
	svc.exporter = &fakeExporter{
		exportFn: func(req export.Request) (*export.Result, error) {
			gotReq = req
			return &export.Result{Data: []byte("%PDF"), Filename: "note.pdf", MimeType: "application/pdf"}, nil
		},
	}

	result, err := svc.ExportNote(context.Background(), Session{UserID: "usr_reader", Username: "Blair"}, "note_1", " PDF ")
	if err != nil {
		t.Fatalf("ExportNote() error = %v", err)
	}
	if gotReq.Format != export.FormatPDF || gotReq.Title != "Note" || gotReq.FolderName != "Plans" || gotReq.Author != "Blair" {
		t.Fatalf("unexpected export request %+v", gotReq)
	}
	if result.MimeType != "application/pdf" {
		t.Fatalf("unexpected mime type %q", result.MimeType)
	}
}

func TestSearchNotesRequiresQuery(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.SearchNotes(context.Background(), Session{UserID: "usr_1"}, "   ", 1, 20)
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestSearchNotesPagination(t *testing.T) {
	svc := newTestService(&fakeStore{})
	var gotQuery search.Query
	svc.search = &fakeSearch{
		searchFn: func(_ context.Context, q search.Query) search.Response {
			gotQuery = q
			return search.Response{
				Results: []search.Result{{ID: "note_1", FolderID: "fld_1", Title: "Note", Snippet: "..."}},
				Total:   41,
				Query:   q.Text,
			}
		},
	}

	payload, err := svc.SearchNotes(context.Background(), Session{UserID: "usr_1"}, "meeting", 3, 10)
	if err != nil {
		t.Fatalf("SearchNotes() error = %v", err)
	}
	if gotQuery.UserID != "usr_1" || gotQuery.Limit != 10 || gotQuery.Offset != 20 {
		t.Fatalf("unexpected query %+v", gotQuery)
	}
	if payload["total"] != 41 || payload["page"] != 3 {
		t.Fatalf("unexpected payload %v", payload)
	}
}
