package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"notelab/api/internal/store"
	"notelab/api/internal/util"
)

type TeamInput struct {
	Name          string   `json:"name"`
	ManagerIDs    []string `json:"managerIds"`
	MemberIDs     []string `json:"memberIds"`
	MainManagerID string   `json:"mainManagerId"`
}

type TeamMemberInput struct {
	UserID string `json:"userId"`
}

// buildRoster turns manager and member id lists into membership rows. The
// main manager is forced into the manager set, duplicates collapse, and a
// user listed as both manager and member becomes a manager.
func buildRoster(teamID, mainManagerID string, managerIDs, memberIDs []string) []store.TeamMembership {
	roles := make(map[string]string)
	order := make([]string, 0, len(managerIDs)+len(memberIDs)+1)

	add := func(userID, role string) {
		if userID == "" {
			return
		}
		existing, seen := roles[userID]
		if !seen {
			order = append(order, userID)
			roles[userID] = role
			return
		}
		if existing == store.TeamRoleMember && role == store.TeamRoleManager {
			roles[userID] = role
		}
	}

	add(mainManagerID, store.TeamRoleManager)
	for _, id := range managerIDs {
		add(id, store.TeamRoleManager)
	}
	for _, id := range memberIDs {
		add(id, store.TeamRoleMember)
	}

	roster := make([]store.TeamMembership, 0, len(order))
	for _, userID := range order {
		roster = append(roster, store.TeamMembership{
			TeamID:        teamID,
			UserID:        userID,
			Role:          roles[userID],
			IsMainManager: userID == mainManagerID,
		})
	}
	return roster
}

func (s *Service) checkUsersExist(ctx context.Context, roster []store.TeamMembership) error {
	for _, member := range roster {
		if _, err := s.store.GetUserByID(ctx, member.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errInvalid("unknown user", map[string]any{"userId": member.UserID})
			}
			return err
		}
	}
	return nil
}

func (s *Service) CreateTeam(ctx context.Context, session Session, input TeamInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalid("name is required", nil)
	}

	team := store.Team{
		ID:        util.NewID("team"),
		Name:      name,
		CreatedBy: session.UserID,
	}
	roster := buildRoster(team.ID, session.UserID, input.ManagerIDs, input.MemberIDs)
	if err := s.checkUsersExist(ctx, roster); err != nil {
		return nil, err
	}

	if err := s.store.CreateTeamWithMembers(ctx, team, roster); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("duplicate team membership", nil)
		}
		return nil, err
	}
	return s.teamPayload(ctx, team)
}

func (s *Service) GetTeam(ctx context.Context, session Session, teamID string) (map[string]any, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("team not found")
	}
	if err != nil {
		return nil, err
	}

	if session.Role != store.RoleRoot {
		if _, err := s.store.GetTeamMembership(ctx, teamID, session.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errNotFound("team not found")
			}
			return nil, err
		}
	}
	return s.teamPayload(ctx, team)
}

// UpdateTeam renames the team and replaces its whole roster. Only the current
// main manager may call it; the replacement roster always carries exactly one
// main manager (the explicit mainManagerId, defaulting to the requester).
func (s *Service) UpdateTeam(ctx context.Context, session Session, teamID string, input TeamInput) (map[string]any, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("team not found")
	}
	if err != nil {
		return nil, err
	}

	if err := s.requireMainManager(ctx, teamID, session.UserID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = team.Name
	}
	mainManagerID := input.MainManagerID
	if mainManagerID == "" {
		mainManagerID = session.UserID
	}

	roster := buildRoster(teamID, mainManagerID, input.ManagerIDs, input.MemberIDs)
	if err := s.checkUsersExist(ctx, roster); err != nil {
		return nil, err
	}

	if err := s.store.ReplaceTeamMembers(ctx, teamID, name, roster); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("duplicate team membership", nil)
		}
		return nil, err
	}

	team.Name = name
	return s.teamPayload(ctx, team)
}

func (s *Service) DeleteTeam(ctx context.Context, session Session, teamID string) error {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("team not found")
		}
		return err
	}
	if session.Role != store.RoleRoot {
		if err := s.requireMainManager(ctx, teamID, session.UserID); err != nil {
			return err
		}
	}

	deleted, err := s.store.DeleteTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("team not found")
	}
	return nil
}

func (s *Service) AddMember(ctx context.Context, session Session, teamID, userID string) error {
	return s.addTeamUser(ctx, session, teamID, userID, store.TeamRoleMember)
}

func (s *Service) AddManager(ctx context.Context, session Session, teamID, userID string) error {
	return s.addTeamUser(ctx, session, teamID, userID, store.TeamRoleManager)
}

func (s *Service) addTeamUser(ctx context.Context, session Session, teamID, userID, role string) error {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("team not found")
		}
		return err
	}

	// Adding a manager is reserved to the main manager; adding a member only
	// needs manager role.
	if role == store.TeamRoleManager {
		if err := s.requireMainManager(ctx, teamID, session.UserID); err != nil {
			return err
		}
	} else {
		if err := s.requireManager(ctx, teamID, session.UserID); err != nil {
			return err
		}
	}

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("user not found")
		}
		return err
	}

	if _, err := s.store.GetTeamMembership(ctx, teamID, userID); err == nil {
		return errConflict("user is already on the team", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if err := s.store.InsertTeamMembership(ctx, store.TeamMembership{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
	}); err != nil {
		// Concurrent insert backstop.
		if errors.Is(err, store.ErrDuplicate) {
			return errConflict("user is already on the team", nil)
		}
		return err
	}
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, session Session, teamID, userID string) error {
	return s.removeTeamUser(ctx, session, teamID, userID, store.TeamRoleMember)
}

func (s *Service) RemoveManager(ctx context.Context, session Session, teamID, userID string) error {
	return s.removeTeamUser(ctx, session, teamID, userID, store.TeamRoleManager)
}

func (s *Service) removeTeamUser(ctx context.Context, session Session, teamID, userID, role string) error {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("team not found")
		}
		return err
	}

	if role == store.TeamRoleManager {
		if err := s.requireMainManager(ctx, teamID, session.UserID); err != nil {
			return err
		}
	} else {
		if err := s.requireManager(ctx, teamID, session.UserID); err != nil {
			return err
		}
	}

	target, err := s.store.GetTeamMembership(ctx, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("membership not found")
	}
	if err != nil {
		return err
	}
	if target.IsMainManager {
		return errForbidden("the main manager cannot be removed")
	}
	if target.Role != role {
		return errInvalid("membership role mismatch", map[string]any{"role": target.Role})
	}

	deleted, err := s.store.DeleteTeamMembership(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("membership not found")
	}
	return nil
}

func (s *Service) MyTeams(ctx context.Context, session Session) (map[string]any, error) {
	teams, err := s.store.ListUserTeams(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(teams))
	for _, team := range teams {
		items = append(items, map[string]any{
			"id":        team.ID,
			"name":      team.Name,
			"createdBy": team.CreatedBy,
			"createdAt": team.CreatedAt,
		})
	}
	return map[string]any{"items": items}, nil
}

func (s *Service) requireManager(ctx context.Context, teamID, userID string) error {
	membership, err := s.store.GetTeamMembership(ctx, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return errForbidden("manager role required")
	}
	if err != nil {
		return err
	}
	if membership.Role != store.TeamRoleManager {
		return errForbidden("manager role required")
	}
	return nil
}

func (s *Service) requireMainManager(ctx context.Context, teamID, userID string) error {
	membership, err := s.store.GetTeamMembership(ctx, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return errForbidden("main manager role required")
	}
	if err != nil {
		return err
	}
	if !membership.IsMainManager {
		return errForbidden("main manager role required")
	}
	return nil
}

func (s *Service) teamPayload(ctx context.Context, team store.Team) (map[string]any, error) {
	memberships, err := s.store.ListTeamMemberships(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	members := make([]map[string]any, 0, len(memberships))
	for _, membership := range memberships {
		members = append(members, map[string]any{
			"userId":        membership.UserID,
			"username":      membership.Username,
			"email":         membership.Email,
			"role":          membership.Role,
			"isMainManager": membership.IsMainManager,
		})
	}
	return map[string]any{
		"id":        team.ID,
		"name":      team.Name,
		"createdBy": team.CreatedBy,
		"createdAt": team.CreatedAt,
		"members":   members,
	}, nil
}
