package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"notelab/api/internal/access"
	"notelab/api/internal/store"
	"notelab/api/internal/util"
)

type FolderInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ShareInput struct {
	UserID string `json:"userId"`
	Level  string `json:"level"`
}

func (s *Service) CreateFolder(ctx context.Context, session Session, input FolderInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalid("name is required", nil)
	}

	folder := store.Folder{
		ID:          util.NewID("fld"),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     session.UserID,
	}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return nil, err
	}
	if err := s.history.EnsureFolderRepo(folder.ID, session.Username); err != nil {
		return nil, err
	}

	return folderPayload(folder, access.LevelOwner), nil
}

func (s *Service) GetFolder(ctx context.Context, session Session, folderID string) (map[string]any, error) {
	level, err := s.gateFolderRead(ctx, folderID, session.UserID)
	if err != nil {
		return nil, err
	}

	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListFolderNotes(ctx, folderID)
	if err != nil {
		return nil, err
	}

	payload := folderPayload(folder, level)
	noteItems := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		noteItems = append(noteItems, notePayload(note, level))
	}
	payload["notes"] = noteItems

	// Shares are owner-only detail.
	if level == access.LevelOwner {
		shares, err := s.store.ListFolderShares(ctx, folderID)
		if err != nil {
			return nil, err
		}
		shareItems := make([]map[string]any, 0, len(shares))
		for _, share := range shares {
			shareItems = append(shareItems, map[string]any{
				"userId":    share.UserID,
				"level":     share.Level.String(),
				"grantedBy": share.GrantedBy,
				"sharedAt":  share.UpdatedAt,
			})
		}
		payload["shares"] = shareItems
	}
	return payload, nil
}

func (s *Service) UpdateFolder(ctx context.Context, session Session, folderID string, input FolderInput) (map[string]any, error) {
	level, err := s.gateFolderWrite(ctx, folderID, session.UserID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalid("name is required", nil)
	}

	updated, err := s.store.UpdateFolder(ctx, folderID, name, strings.TrimSpace(input.Description))
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("folder not found")
	}

	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return folderPayload(folder, level), nil
}

func (s *Service) DeleteFolder(ctx context.Context, session Session, folderID string) error {
	if err := s.gateFolderOwner(ctx, folderID, session.UserID); err != nil {
		return err
	}

	notes, err := s.store.ListFolderNotes(ctx, folderID)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("folder not found")
	}

	for _, note := range notes {
		s.search.DeleteNote(note.ID)
	}
	if err := s.history.RemoveFolderRepo(folderID); err != nil {
		s.log.Warn().Err(err).Str("folder_id", folderID).Msg("failed to remove folder history")
	}
	return nil
}

func (s *Service) ShareFolder(ctx context.Context, session Session, folderID string, input ShareInput) (map[string]any, error) {
	if err := s.gateFolderOwner(ctx, folderID, session.UserID); err != nil {
		return nil, err
	}
	level, err := access.ParseGrantLevel(input.Level)
	if err != nil {
		return nil, errInvalid("level must be read or write", nil)
	}
	if input.UserID == session.UserID {
		return nil, errInvalid("cannot share a folder with yourself", nil)
	}

	grantee, err := s.store.GetUserByID(ctx, input.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertFolderShare(ctx, store.FolderShare{
		FolderID:  folderID,
		UserID:    grantee.ID,
		Level:     level,
		GrantedBy: session.UserID,
	}); err != nil {
		return nil, err
	}

	if folder, err := s.store.GetFolder(ctx, folderID); err == nil {
		s.notifyShare(grantee, session.Username, "folder", folder.Name, level)
	}

	return map[string]any{
		"folderId": folderID,
		"userId":   grantee.ID,
		"level":    level.String(),
	}, nil
}

func (s *Service) RevokeFolderShare(ctx context.Context, session Session, folderID, userID string) error {
	if err := s.gateFolderOwner(ctx, folderID, session.UserID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteFolderShare(ctx, folderID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		// Revoking an absent grant is idempotent success.
		s.log.Debug().Str("folder_id", folderID).Str("user_id", userID).Msg("revoke without grant")
	}
	return nil
}

// notifyShare delivers a share notification in the background. Notification
// failures never fail the share itself.
func (s *Service) notifyShare(grantee store.User, sharedBy, resourceKind, resourceName string, level access.Level) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	go func() {
		if err := s.mail.SendShareNotification(grantee.Email, grantee.Username, sharedBy, resourceKind, resourceName, level.String()); err != nil {
			s.log.Warn().Err(err).Str("to", grantee.Email).Msg("share notification failed")
		}
	}()
}

func folderPayload(folder store.Folder, level access.Level) map[string]any {
	return map[string]any{
		"id":          folder.ID,
		"name":        folder.Name,
		"description": folder.Description,
		"ownerId":     folder.OwnerID,
		"access":      level.String(),
		"createdAt":   folder.CreatedAt,
		"updatedAt":   folder.UpdatedAt,
	}
}
