package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notelab/api/internal/access"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertFolder(ctx context.Context, folder Folder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, folder.ID, folder.Name, folder.Description, folder.OwnerID)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, folderID string) (Folder, error) {
	var item Folder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM folders
		WHERE id=$1
	`, folderID).Scan(&item.ID, &item.Name, &item.Description, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Folder{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateFolder(ctx context.Context, folderID, name, description string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE folders SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, folderID, name, description)
	if err != nil {
		return false, fmt.Errorf("update folder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update folder rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id=$1`, folderID)
	if err != nil {
		return false, fmt.Errorf("delete folder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete folder rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) error {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	encodedTags, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal note tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, folder_id, title, body, tags)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, note.ID, note.FolderID, note.Title, note.Body, string(encodedTags))
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	var item Note
	var tagsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, title, body, tags, created_at, updated_at
		FROM notes
		WHERE id=$1
	`, noteID).Scan(&item.ID, &item.FolderID, &item.Title, &item.Body, &tagsRaw, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	_ = json.Unmarshal(tagsRaw, &item.Tags)
	return item, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, noteID, title, body string, tags []string) (bool, error) {
	if tags == nil {
		tags = []string{}
	}
	encodedTags, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("marshal note tags: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET title=$2, body=$3, tags=$4::jsonb, updated_at=NOW()
		WHERE id=$1
	`, noteID, title, body, string(encodedTags))
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update note rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete note rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListFolderNotes(ctx context.Context, folderID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, folder_id, title, body, tags, created_at, updated_at
		FROM notes
		WHERE folder_id=$1
		ORDER BY updated_at DESC, id DESC
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list folder notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var item Note
		var tagsRaw []byte
		if err := rows.Scan(&item.ID, &item.FolderID, &item.Title, &item.Body, &tagsRaw, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		_ = json.Unmarshal(tagsRaw, &item.Tags)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertFolderShare(ctx context.Context, share FolderShare) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folder_shares (folder_id, user_id, level, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (folder_id, user_id)
		DO UPDATE SET level=EXCLUDED.level, granted_by=EXCLUDED.granted_by, updated_at=NOW()
	`, share.FolderID, share.UserID, string(share.Level), share.GrantedBy)
	if err != nil {
		return fmt.Errorf("upsert folder share: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFolderShare(ctx context.Context, folderID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM folder_shares WHERE folder_id=$1 AND user_id=$2
	`, folderID, userID)
	if err != nil {
		return false, fmt.Errorf("delete folder share: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete folder share rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListFolderShares(ctx context.Context, folderID string) ([]FolderShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder_id, user_id, level, granted_by, created_at, updated_at
		FROM folder_shares
		WHERE folder_id=$1
		ORDER BY created_at ASC
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list folder shares: %w", err)
	}
	defer rows.Close()

	items := make([]FolderShare, 0)
	for rows.Next() {
		var item FolderShare
		var level string
		if err := rows.Scan(&item.FolderID, &item.UserID, &level, &item.GrantedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder share: %w", err)
		}
		item.Level = access.Level(level)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder shares: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertNoteShare(ctx context.Context, share NoteShare) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO note_shares (note_id, user_id, level, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (note_id, user_id)
		DO UPDATE SET level=EXCLUDED.level, granted_by=EXCLUDED.granted_by, updated_at=NOW()
	`, share.NoteID, share.UserID, string(share.Level), share.GrantedBy)
	if err != nil {
		return fmt.Errorf("upsert note share: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNoteShare(ctx context.Context, noteID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM note_shares WHERE note_id=$1 AND user_id=$2
	`, noteID, userID)
	if err != nil {
		return false, fmt.Errorf("delete note share: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete note share rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListNoteShares(ctx context.Context, noteID string) ([]NoteShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT note_id, user_id, level, granted_by, created_at, updated_at
		FROM note_shares
		WHERE note_id=$1
		ORDER BY created_at ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list note shares: %w", err)
	}
	defer rows.Close()

	items := make([]NoteShare, 0)
	for rows.Next() {
		var item NoteShare
		var level string
		if err := rows.Scan(&item.NoteID, &item.UserID, &level, &item.GrantedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note share: %w", err)
		}
		item.Level = access.Level(level)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note shares: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Username, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
