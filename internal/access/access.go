// Package access resolves a user's effective access level to folders and
// notes from ownership and sharing grants.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelNone  Level = "none"
	LevelRead  Level = "read"
	LevelWrite Level = "write"
	LevelOwner Level = "owner"
)

// ErrNotFound is returned when the resolved resource does not exist. Callers
// on read paths fold "no access" into the same condition; owner-gated
// mutations report it distinctly.
var ErrNotFound = errors.New("resource not found")

// ParseGrantLevel validates a share payload level. Grants can only ever be
// read or write; owner is derived from folder ownership and none from the
// absence of a grant.
func ParseGrantLevel(value string) (Level, error) {
	switch Level(value) {
	case LevelRead, LevelWrite:
		return Level(value), nil
	default:
		return LevelNone, fmt.Errorf("invalid access level %q", value)
	}
}

func (l Level) AllowsRead() bool {
	return l == LevelRead || l == LevelWrite || l == LevelOwner
}

func (l Level) AllowsWrite() bool {
	return l == LevelWrite || l == LevelOwner
}

func (l Level) String() string {
	return string(l)
}

// Store is the narrow storage port the resolver needs. The ok result
// distinguishes "row absent" from storage failure.
type Store interface {
	FolderOwner(ctx context.Context, folderID string) (string, bool, error)
	FolderGrant(ctx context.Context, folderID, userID string) (Level, bool, error)
	NoteFolder(ctx context.Context, noteID string) (string, bool, error)
	NoteGrant(ctx context.Context, noteID, userID string) (Level, bool, error)
}

type Resolver struct {
	store Store
	log   zerolog.Logger
}

func NewResolver(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// ResolveFolder computes the effective level of userID on a folder:
// owner if they own it, otherwise the folder grant level, otherwise none.
func (r *Resolver) ResolveFolder(ctx context.Context, folderID, userID string) (Level, error) {
	ownerID, ok, err := r.store.FolderOwner(ctx, folderID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve folder owner: %w", err)
	}
	if !ok {
		return LevelNone, ErrNotFound
	}
	if ownerID == userID {
		return LevelOwner, nil
	}
	level, ok, err := r.store.FolderGrant(ctx, folderID, userID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve folder grant: %w", err)
	}
	if !ok {
		return LevelNone, nil
	}
	return level, nil
}

// CanReadNote reports whether userID can read a note. Resolution failures
// deny rather than error; callers use this for filtering, not gating.
func (r *Resolver) CanReadNote(ctx context.Context, userID, noteID string) bool {
	level, err := r.ResolveNote(ctx, noteID, userID)
	return err == nil && level.AllowsRead()
}

// ResolveNote computes the effective level of userID on a note. Precedence is
// parent-folder ownership, then the folder grant, then the note grant; the
// first matching layer wins and layers are never merged.
func (r *Resolver) ResolveNote(ctx context.Context, noteID, userID string) (Level, error) {
	folderID, ok, err := r.store.NoteFolder(ctx, noteID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve note folder: %w", err)
	}
	if !ok {
		return LevelNone, ErrNotFound
	}

	ownerID, ok, err := r.store.FolderOwner(ctx, folderID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve note folder owner: %w", err)
	}
	if !ok {
		// Orphaned note: the parent folder row is gone. Deletion cascades
		// should make this impossible, so flag it and deny access.
		r.log.Warn().
			Str("note_id", noteID).
			Str("folder_id", folderID).
			Msg("integrity: note references missing folder")
		return LevelNone, nil
	}
	if ownerID == userID {
		return LevelOwner, nil
	}

	level, ok, err := r.store.FolderGrant(ctx, folderID, userID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve note folder grant: %w", err)
	}
	if ok {
		return level, nil
	}

	level, ok, err = r.store.NoteGrant(ctx, noteID, userID)
	if err != nil {
		return LevelNone, fmt.Errorf("resolve note grant: %w", err)
	}
	if !ok {
		return LevelNone, nil
	}
	return level, nil
}
