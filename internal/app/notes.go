package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"notelab/api/internal/access"
	"notelab/api/internal/export"
	"notelab/api/internal/notegit"
	"notelab/api/internal/search"
	"notelab/api/internal/store"
	"notelab/api/internal/util"
)

type NoteInput struct {
	FolderID string   `json:"folderId"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
}

func (s *Service) CreateNote(ctx context.Context, session Session, input NoteInput) (map[string]any, error) {
	if strings.TrimSpace(input.FolderID) == "" {
		return nil, errInvalid("folderId is required", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errInvalid("title is required", nil)
	}

	level, err := s.gateFolderWrite(ctx, input.FolderID, session.UserID)
	if err != nil {
		return nil, err
	}

	note := store.Note{
		ID:       util.NewID("note"),
		FolderID: input.FolderID,
		Title:    title,
		Body:     input.Body,
		Tags:     input.Tags,
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return nil, err
	}

	commit, err := s.history.CommitNote(note.FolderID, note.ID, notegit.NoteContent{
		Title: note.Title,
		Body:  note.Body,
		Tags:  note.Tags,
	}, session.Username, "Create "+note.Title)
	if err != nil {
		return nil, err
	}
	s.search.IndexNote(noteRecord(note))

	payload := notePayload(note, level)
	payload["commit"] = commitPayload(commit)
	return payload, nil
}

func (s *Service) GetNote(ctx context.Context, session Session, noteID string) (map[string]any, error) {
	level, err := s.gateNoteRead(ctx, noteID, session.UserID)
	if err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	payload := notePayload(note, level)
	if level == access.LevelOwner {
		shares, err := s.store.ListNoteShares(ctx, noteID)
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

func (s *Service) UpdateNote(ctx context.Context, session Session, noteID string, input NoteInput) (map[string]any, error) {
	level, err := s.gateNoteWrite(ctx, noteID, session.UserID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errInvalid("title is required", nil)
	}

	updated, err := s.store.UpdateNote(ctx, noteID, title, input.Body, input.Tags)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("note not found")
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	commit, err := s.history.CommitNote(note.FolderID, note.ID, notegit.NoteContent{
		Title: note.Title,
		Body:  note.Body,
		Tags:  note.Tags,
	}, session.Username, "Update "+note.Title)
	if err != nil {
		return nil, err
	}
	s.search.IndexNote(noteRecord(note))

	payload := notePayload(note, level)
	payload["commit"] = commitPayload(commit)
	return payload, nil
}

func (s *Service) DeleteNote(ctx context.Context, session Session, noteID string) error {
	if err := s.gateNoteOwner(ctx, noteID, session.UserID); err != nil {
		return err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteNote(ctx, noteID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("note not found")
	}

	s.search.DeleteNote(noteID)
	if err := s.history.RemoveNote(note.FolderID, noteID, session.Username); err != nil {
		s.log.Warn().Err(err).Str("note_id", noteID).Msg("failed to remove note history entry")
	}
	return nil
}

func (s *Service) ShareNote(ctx context.Context, session Session, noteID string, input ShareInput) (map[string]any, error) {
	if err := s.gateNoteOwner(ctx, noteID, session.UserID); err != nil {
		return nil, err
	}
	level, err := access.ParseGrantLevel(input.Level)
	if err != nil {
		return nil, errInvalid("level must be read or write", nil)
	}
	if input.UserID == session.UserID {
		return nil, errInvalid("cannot share a note with yourself", nil)
	}

	grantee, err := s.store.GetUserByID(ctx, input.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertNoteShare(ctx, store.NoteShare{
		NoteID:    noteID,
		UserID:    grantee.ID,
		Level:     level,
		GrantedBy: session.UserID,
	}); err != nil {
		return nil, err
	}

	if note, err := s.store.GetNote(ctx, noteID); err == nil {
		s.notifyShare(grantee, session.Username, "note", note.Title, level)
	}

	return map[string]any{
		"noteId": noteID,
		"userId": grantee.ID,
		"level":  level.String(),
	}, nil
}

func (s *Service) RevokeNoteShare(ctx context.Context, session Session, noteID, userID string) error {
	if err := s.gateNoteOwner(ctx, noteID, session.UserID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteNoteShare(ctx, noteID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		s.log.Debug().Str("note_id", noteID).Str("user_id", userID).Msg("revoke without grant")
	}
	return nil
}

func (s *Service) NoteHistory(ctx context.Context, session Session, noteID string, limit int) (map[string]any, error) {
	if _, err := s.gateNoteRead(ctx, noteID, session.UserID); err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	commits, err := s.history.NoteHistory(note.FolderID, noteID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, commitPayload(commit))
	}
	return map[string]any{"noteId": noteID, "commits": items}, nil
}

func (s *Service) NoteAtCommit(ctx context.Context, session Session, noteID, hash string) (map[string]any, error) {
	if _, err := s.gateNoteRead(ctx, noteID, session.UserID); err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	content, err := s.history.NoteAtCommit(note.FolderID, noteID, hash)
	if err != nil {
		return nil, errNotFound("revision not found")
	}
	return map[string]any{
		"noteId": noteID,
		"hash":   hash,
		"title":  content.Title,
		"body":   content.Body,
		"tags":   content.Tags,
	}, nil
}

func (s *Service) ExportNote(ctx context.Context, session Session, noteID, format string) (*export.Result, error) {
	if _, err := s.gateNoteRead(ctx, noteID, session.UserID); err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	exportFormat := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if exportFormat != export.FormatPDF && exportFormat != export.FormatDOCX {
		return nil, errInvalid("format must be pdf or docx", nil)
	}

	folderName := ""
	if folder, err := s.store.GetFolder(ctx, note.FolderID); err == nil {
		folderName = folder.Name
	}

	return s.exporter.Export(export.Request{
		Title:      note.Title,
		Body:       note.Body,
		Tags:       note.Tags,
		FolderName: folderName,
		Author:     session.Username,
		UpdatedAt:  note.UpdatedAt,
		Format:     exportFormat,
	})
}

func (s *Service) SearchNotes(ctx context.Context, session Session, query string, page, limit int) (map[string]any, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return nil, errInvalid("q is required", nil)
	}
	page, limit = normalizePage(page, limit)

	response := s.search.Search(ctx, search.Query{
		Text:   text,
		UserID: session.UserID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})

	items := make([]map[string]any, 0, len(response.Results))
	for _, result := range response.Results {
		items = append(items, map[string]any{
			"id":       result.ID,
			"folderId": result.FolderID,
			"title":    result.Title,
			"snippet":  result.Snippet,
		})
	}
	return map[string]any{
		"items": items,
		"total": response.Total,
		"page":  page,
		"limit": limit,
		"query": text,
	}, nil
}

func notePayload(note store.Note, level access.Level) map[string]any {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":        note.ID,
		"folderId":  note.FolderID,
		"title":     note.Title,
		"body":      note.Body,
		"tags":      tags,
		"access":    level.String(),
		"createdAt": note.CreatedAt,
		"updatedAt": note.UpdatedAt,
	}
}

func commitPayload(commit store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      commit.Hash,
		"message":   commit.Message,
		"author":    commit.Author,
		"createdAt": commit.CreatedAt,
	}
}

func noteRecord(note store.Note) search.NoteRecord {
	return search.NoteRecord{
		ID:       note.ID,
		FolderID: note.FolderID,
		Title:    note.Title,
		Body:     note.Body,
		Tags:     note.Tags,
	}
}
