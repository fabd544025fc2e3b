package store

import (
	"time"

	"notelab/api/internal/access"
)

const (
	RoleRoot    = "root"
	RoleManager = "manager"
	RoleMember  = "member"
)

// ValidRole reports whether role is one of the known workspace roles.
func ValidRole(role string) bool {
	switch role {
	case RoleRoot, RoleManager, RoleMember:
		return true
	}
	return false
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Folder struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Note struct {
	ID        string
	FolderID  string
	Title     string
	Body      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FolderShare struct {
	FolderID  string
	UserID    string
	Level     access.Level
	GrantedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NoteShare struct {
	NoteID    string
	UserID    string
	Level     access.Level
	GrantedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FolderWithAccess is a folder annotated with the effective level the
// requesting user holds on it.
type FolderWithAccess struct {
	Folder
	Access access.Level
}

// NoteWithAccess is a note annotated with the effective level the
// requesting user holds on it.
type NoteWithAccess struct {
	Note
	Access access.Level
}

type Team struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TeamMembership struct {
	TeamID        string
	UserID        string
	Role          string
	IsMainManager bool
	CreatedAt     time.Time
	// Joined fields for API responses
	Username string
	Email    string
}

const (
	TeamRoleManager = "manager"
	TeamRoleMember  = "member"
)

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
