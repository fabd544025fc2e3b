package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"notelab/api/internal/access"
)

// openTestDB connects to the database named by NOTELAB_TEST_DATABASE_URL,
// resets the public schema, and applies all migrations. Tests that call it
// skip when no test database is configured.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("NOTELAB_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("NOTELAB_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE SCHEMA public`); err != nil {
		t.Fatalf("recreate schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, testMigrationsDir()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func testMigrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func mustExec(t *testing.T, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
}

// seedListingFixture builds two owners and a grantee with every reachability
// path represented:
//
//	fld_a (alice): note_a1, note_a2; folder share read -> bob; note share write -> bob on note_a1
//	fld_b (alice): note_b1; note share write -> bob
//	fld_c (carol): note_c1, unreachable for bob
//
// It also plants a redundant self-share for alice on fld_a to prove the owner
// path outranks grant rows.
func seedListingFixture(t *testing.T, st *PostgresStore) {
	t.Helper()
	ctx := context.Background()

	for _, u := range []User{
		{ID: "usr_alice", Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: RoleMember},
		{ID: "usr_bob", Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: RoleMember},
		{ID: "usr_carol", Username: "carol", Email: "carol@example.com", PasswordHash: "x", Role: RoleMember},
	} {
		mustExec(t, st.CreateUser(ctx, u), "seed user "+u.ID)
	}

	for _, f := range []Folder{
		{ID: "fld_a", Name: "Alpha", OwnerID: "usr_alice"},
		{ID: "fld_b", Name: "Beta", OwnerID: "usr_alice"},
		{ID: "fld_c", Name: "Gamma", OwnerID: "usr_carol"},
	} {
		mustExec(t, st.InsertFolder(ctx, f), "seed folder "+f.ID)
	}

	for _, n := range []Note{
		{ID: "note_a1", FolderID: "fld_a", Title: "A1", Body: "alpha one"},
		{ID: "note_a2", FolderID: "fld_a", Title: "A2", Body: "alpha two"},
		{ID: "note_b1", FolderID: "fld_b", Title: "B1", Body: "beta one"},
		{ID: "note_c1", FolderID: "fld_c", Title: "C1", Body: "gamma one"},
	} {
		mustExec(t, st.InsertNote(ctx, n), "seed note "+n.ID)
	}

	mustExec(t, st.UpsertFolderShare(ctx, FolderShare{
		FolderID: "fld_a", UserID: "usr_bob", Level: access.LevelRead, GrantedBy: "usr_alice",
	}), "share fld_a with bob")
	mustExec(t, st.UpsertFolderShare(ctx, FolderShare{
		FolderID: "fld_a", UserID: "usr_alice", Level: access.LevelRead, GrantedBy: "usr_alice",
	}), "redundant self share on fld_a")
	mustExec(t, st.UpsertNoteShare(ctx, NoteShare{
		NoteID: "note_a1", UserID: "usr_bob", Level: access.LevelWrite, GrantedBy: "usr_alice",
	}), "share note_a1 with bob")
	mustExec(t, st.UpsertNoteShare(ctx, NoteShare{
		NoteID: "note_b1", UserID: "usr_bob", Level: access.LevelWrite, GrantedBy: "usr_alice",
	}), "share note_b1 with bob")

	// Pin update times so newest-first ordering is deterministic.
	stamps := map[string]string{
		"note_a1": "2025-06-01T10:00:00Z",
		"note_a2": "2025-06-02T10:00:00Z",
		"note_b1": "2025-06-03T10:00:00Z",
		"note_c1": "2025-06-04T10:00:00Z",
	}
	for id, ts := range stamps {
		_, err := st.DB().ExecContext(ctx, `UPDATE notes SET updated_at=$2 WHERE id=$1`, id, ts)
		mustExec(t, err, "pin updated_at for "+id)
	}
}

func TestListAccessibleNotesDedupAndPrecedence(t *testing.T) {
	db := openTestDB(t)
	st := NewPostgresStore(db)
	seedListingFixture(t, st)
	ctx := context.Background()

	// Bob reaches note_a1 twice (folder share and note share) and note_a2
	// once; each note must appear exactly once.
	notes, total, err := st.ListAccessibleNotes(ctx, "usr_bob", 0, 0)
	if err != nil {
		t.Fatalf("ListAccessibleNotes: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}

	levels := map[string]access.Level{}
	for _, n := range notes {
		if _, dup := levels[n.ID]; dup {
			t.Fatalf("note %s returned more than once", n.ID)
		}
		levels[n.ID] = n.Access
	}
	// The folder grant decides the level even though bob holds a wider
	// direct share on note_a1.
	if levels["note_a1"] != access.LevelRead {
		t.Errorf("note_a1 level = %q, want read via folder grant", levels["note_a1"])
	}
	if levels["note_a2"] != access.LevelRead {
		t.Errorf("note_a2 level = %q, want read", levels["note_a2"])
	}
	if levels["note_b1"] != access.LevelWrite {
		t.Errorf("note_b1 level = %q, want write via note grant", levels["note_b1"])
	}
	if _, leaked := levels["note_c1"]; leaked {
		t.Error("note_c1 is visible to bob without any grant")
	}

	// Newest first.
	gotOrder := []string{notes[0].ID, notes[1].ID, notes[2].ID}
	wantOrder := []string{"note_b1", "note_a2", "note_a1"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestListAccessibleNotesOwnerOutranksGrants(t *testing.T) {
	db := openTestDB(t)
	st := NewPostgresStore(db)
	seedListingFixture(t, st)
	ctx := context.Background()

	notes, total, err := st.ListAccessibleNotes(ctx, "usr_alice", 0, 0)
	if err != nil {
		t.Fatalf("ListAccessibleNotes: %v", err)
	}
	// alice owns fld_a and fld_b; the self share on fld_a must not add rows
	// or downgrade her level.
	if total != 3 || len(notes) != 3 {
		t.Fatalf("total = %d, len = %d, want 3 and 3", total, len(notes))
	}
	for _, n := range notes {
		if n.Access != access.LevelOwner {
			t.Errorf("note %s level = %q, want owner", n.ID, n.Access)
		}
	}
}

func TestListAccessibleNotesCountsBeforeWindowing(t *testing.T) {
	db := openTestDB(t)
	st := NewPostgresStore(db)
	seedListingFixture(t, st)
	ctx := context.Background()

	page1, total, err := st.ListAccessibleNotes(ctx, "usr_bob", 2, 0)
	if err != nil {
		t.Fatalf("ListAccessibleNotes page 1: %v", err)
	}
	if total != 3 {
		t.Fatalf("windowed total = %d, want full match count 3", total)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(page1))
	}

	page2, total, err := st.ListAccessibleNotes(ctx, "usr_bob", 2, 2)
	if err != nil {
		t.Fatalf("ListAccessibleNotes page 2: %v", err)
	}
	if total != 3 || len(page2) != 1 {
		t.Fatalf("page 2: total = %d, size = %d, want 3 and 1", total, len(page2))
	}
	if page2[0].ID == page1[0].ID || page2[0].ID == page1[1].ID {
		t.Fatalf("page 2 repeats a note from page 1: %s", page2[0].ID)
	}
}

func TestListAccessibleFoldersOwnerRankWins(t *testing.T) {
	db := openTestDB(t)
	st := NewPostgresStore(db)
	seedListingFixture(t, st)
	ctx := context.Background()

	folders, total, err := st.ListAccessibleFolders(ctx, "usr_alice", 0, 0)
	if err != nil {
		t.Fatalf("ListAccessibleFolders: %v", err)
	}
	if total != 2 || len(folders) != 2 {
		t.Fatalf("total = %d, len = %d, want 2 and 2 (self share must not duplicate)", total, len(folders))
	}
	for _, f := range folders {
		if f.Access != access.LevelOwner {
			t.Errorf("folder %s level = %q, want owner", f.ID, f.Access)
		}
	}

	folders, total, err = st.ListAccessibleFolders(ctx, "usr_bob", 0, 0)
	if err != nil {
		t.Fatalf("ListAccessibleFolders for grantee: %v", err)
	}
	if total != 1 || len(folders) != 1 || folders[0].ID != "fld_a" || folders[0].Access != access.LevelRead {
		t.Fatalf("grantee listing = %+v (total %d), want fld_a at read", folders, total)
	}
}

func TestMigrationsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := applyDownMigrations(ctx, db, testMigrationsDir()); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, testMigrationsDir()); err != nil {
		t.Fatalf("re-apply up migrations: %v", err)
	}
}

func applyDownMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return err
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.down\.sql$`)
	var downs []string
	for _, entry := range entries {
		if entry.IsDir() || pattern.FindStringSubmatch(entry.Name()) == nil {
			continue
		}
		downs = append(downs, filepath.Join(migrationsDir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, path := range downs {
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return err
		}
	}
	return nil
}
