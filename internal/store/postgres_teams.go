package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateTeamWithMembers(ctx context.Context, team Team, members []TeamMembership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create team tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, created_by)
		VALUES ($1, $2, $3)
	`, team.ID, team.Name, team.CreatedBy); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert team: %w", err)
	}

	for _, member := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO team_memberships (team_id, user_id, role, is_main_manager)
			VALUES ($1, $2, $3, $4)
		`, team.ID, member.UserID, member.Role, member.IsMainManager); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("insert team member %s: %w", member.UserID, ErrDuplicate)
			}
			return fmt.Errorf("insert team member %s: %w", member.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create team tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	var item Team
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, updated_at
		FROM teams
		WHERE id=$1
	`, teamID).Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Team{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, teamID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id=$1`, teamID)
	if err != nil {
		return false, fmt.Errorf("delete team: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete team rows: %w", err)
	}
	return affected > 0, nil
}

// ReplaceTeamMembers renames the team and swaps its roster atomically. The
// partial unique index on is_main_manager rejects any roster carrying more
// than one main manager.
func (s *PostgresStore) ReplaceTeamMembers(ctx context.Context, teamID, name string, members []TeamMembership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace members tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET name=$2, updated_at=NOW() WHERE id=$1
	`, teamID, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update team: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_memberships WHERE team_id=$1`, teamID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear team members: %w", err)
	}

	for _, member := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO team_memberships (team_id, user_id, role, is_main_manager)
			VALUES ($1, $2, $3, $4)
		`, teamID, member.UserID, member.Role, member.IsMainManager); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("insert team member %s: %w", member.UserID, ErrDuplicate)
			}
			return fmt.Errorf("insert team member %s: %w", member.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace members tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeamMembership(ctx context.Context, teamID, userID string) (TeamMembership, error) {
	var item TeamMembership
	err := s.db.QueryRowContext(ctx, `
		SELECT team_id, user_id, role, is_main_manager, created_at
		FROM team_memberships
		WHERE team_id=$1 AND user_id=$2
	`, teamID, userID).Scan(&item.TeamID, &item.UserID, &item.Role, &item.IsMainManager, &item.CreatedAt)
	if err != nil {
		return TeamMembership{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTeamMembership(ctx context.Context, member TeamMembership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_memberships (team_id, user_id, role, is_main_manager)
		VALUES ($1, $2, $3, $4)
	`, member.TeamID, member.UserID, member.Role, member.IsMainManager)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert team membership: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert team membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTeamMembership(ctx context.Context, teamID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM team_memberships WHERE team_id=$1 AND user_id=$2
	`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("delete team membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete team membership rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListTeamMemberships(ctx context.Context, teamID string) ([]TeamMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.team_id, tm.user_id, tm.role, tm.is_main_manager, tm.created_at, u.username, u.email
		FROM team_memberships tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id=$1
		ORDER BY tm.role ASC, tm.created_at ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team memberships: %w", err)
	}
	defer rows.Close()

	items := make([]TeamMembership, 0)
	for rows.Next() {
		var item TeamMembership
		if err := rows.Scan(&item.TeamID, &item.UserID, &item.Role, &item.IsMainManager, &item.CreatedAt, &item.Username, &item.Email); err != nil {
			return nil, fmt.Errorf("scan team membership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team memberships: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListUserTeams(ctx context.Context, userID string) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_by, t.created_at, t.updated_at
		FROM teams t
		JOIN team_memberships tm ON tm.team_id = t.id
		WHERE tm.user_id=$1
		ORDER BY t.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user teams: %w", err)
	}
	defer rows.Close()

	items := make([]Team, 0)
	for rows.Next() {
		var item Team
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}
	return items, nil
}
