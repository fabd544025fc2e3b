package app

import (
	"context"
	"errors"

	"notelab/api/internal/access"
)

// Read paths hide resources the caller cannot see: both a missing resource
// and a no-access resource come back as NotFound. Write paths keep that for
// no-access callers but report Forbidden to a caller who can read. Owner
// gates reveal existence first and ownership second.

func (s *Service) gateFolderRead(ctx context.Context, folderID, userID string) (access.Level, error) {
	level, err := s.access.ResolveFolder(ctx, folderID, userID)
	if errors.Is(err, access.ErrNotFound) {
		return access.LevelNone, errNotFound("folder not found")
	}
	if err != nil {
		return access.LevelNone, err
	}
	if !level.AllowsRead() {
		return access.LevelNone, errNotFound("folder not found")
	}
	return level, nil
}

func (s *Service) gateFolderWrite(ctx context.Context, folderID, userID string) (access.Level, error) {
	level, err := s.gateFolderRead(ctx, folderID, userID)
	if err != nil {
		return access.LevelNone, err
	}
	if !level.AllowsWrite() {
		return access.LevelNone, errForbidden("write access required")
	}
	return level, nil
}

func (s *Service) gateFolderOwner(ctx context.Context, folderID, userID string) error {
	level, err := s.access.ResolveFolder(ctx, folderID, userID)
	if errors.Is(err, access.ErrNotFound) {
		return errNotFound("folder not found")
	}
	if err != nil {
		return err
	}
	if level != access.LevelOwner {
		return errForbidden("only the folder owner can do this")
	}
	return nil
}

func (s *Service) gateNoteRead(ctx context.Context, noteID, userID string) (access.Level, error) {
	level, err := s.access.ResolveNote(ctx, noteID, userID)
	if errors.Is(err, access.ErrNotFound) {
		return access.LevelNone, errNotFound("note not found")
	}
	if err != nil {
		return access.LevelNone, err
	}
	if !level.AllowsRead() {
		return access.LevelNone, errNotFound("note not found")
	}
	return level, nil
}

func (s *Service) gateNoteWrite(ctx context.Context, noteID, userID string) (access.Level, error) {
	level, err := s.gateNoteRead(ctx, noteID, userID)
	if err != nil {
		return access.LevelNone, err
	}
	if !level.AllowsWrite() {
		return access.LevelNone, errForbidden("write access required")
	}
	return level, nil
}

func (s *Service) gateNoteOwner(ctx context.Context, noteID, userID string) error {
	level, err := s.access.ResolveNote(ctx, noteID, userID)
	if errors.Is(err, access.ErrNotFound) {
		return errNotFound("note not found")
	}
	if err != nil {
		return err
	}
	if level != access.LevelOwner {
		return errForbidden("only the folder owner can do this")
	}
	return nil
}
