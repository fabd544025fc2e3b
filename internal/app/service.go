package app

import (
	"context"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/auth"
	"notelab/api/internal/authpw"
	"notelab/api/internal/config"
	"notelab/api/internal/email"
	"notelab/api/internal/export"
	"notelab/api/internal/notegit"
	"notelab/api/internal/search"
	"notelab/api/internal/session"
	"notelab/api/internal/store"
	"notelab/api/internal/util"

	"github.com/rs/zerolog"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error

	InsertFolder(context.Context, store.Folder) error
	GetFolder(context.Context, string) (store.Folder, error)
	UpdateFolder(context.Context, string, string, string) (bool, error)
	DeleteFolder(context.Context, string) (bool, error)

	InsertNote(context.Context, store.Note) error
	GetNote(context.Context, string) (store.Note, error)
	UpdateNote(context.Context, string, string, string, []string) (bool, error)
	DeleteNote(context.Context, string) (bool, error)
	ListFolderNotes(context.Context, string) ([]store.Note, error)

	UpsertFolderShare(context.Context, store.FolderShare) error
	DeleteFolderShare(context.Context, string, string) (bool, error)
	ListFolderShares(context.Context, string) ([]store.FolderShare, error)
	UpsertNoteShare(context.Context, store.NoteShare) error
	DeleteNoteShare(context.Context, string, string) (bool, error)
	ListNoteShares(context.Context, string) ([]store.NoteShare, error)

	FolderOwner(context.Context, string) (string, bool, error)
	FolderGrant(context.Context, string, string) (access.Level, bool, error)
	NoteFolder(context.Context, string) (string, bool, error)
	NoteGrant(context.Context, string, string) (access.Level, bool, error)

	ListAccessibleFolders(context.Context, string, int, int) ([]store.FolderWithAccess, int, error)
	ListAccessibleNotes(context.Context, string, int, int) ([]store.NoteWithAccess, int, error)

	CreateTeamWithMembers(context.Context, store.Team, []store.TeamMembership) error
	GetTeam(context.Context, string) (store.Team, error)
	DeleteTeam(context.Context, string) (bool, error)
	ReplaceTeamMembers(context.Context, string, string, []store.TeamMembership) error
	GetTeamMembership(context.Context, string, string) (store.TeamMembership, error)
	InsertTeamMembership(context.Context, store.TeamMembership) error
	DeleteTeamMembership(context.Context, string, string) (bool, error)
	ListTeamMemberships(context.Context, string) ([]store.TeamMembership, error)
	ListUserTeams(context.Context, string) ([]store.Team, error)

	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	Ping(ctx context.Context) error
}

type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type historyService interface {
	EnsureFolderRepo(folderID, author string) error
	CommitNote(folderID, noteID string, content notegit.NoteContent, author, message string) (store.CommitInfo, error)
	RemoveNote(folderID, noteID, author string) error
	NoteHistory(folderID, noteID string, limit int) ([]store.CommitInfo, error)
	NoteAtCommit(folderID, noteID, hash string) (notegit.NoteContent, error)
	RemoveFolderRepo(folderID string) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexNote(record search.NoteRecord)
	DeleteNote(id string)
}

type mailService interface {
	IsConfigured() bool
	SendShareNotification(to, userName, sharedBy, resourceKind, resourceName, level string) error
}

type exportService interface {
	Export(req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	access   *access.Resolver
	refresh  refreshStore
	authpw   *authpw.Service
	history  historyService
	search   searchService
	exporter exportService
	mail     mailService
	log      zerolog.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, history *notegit.Service, searchService *search.Service, exporter *export.Service, mail *email.Service, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		access:   access.NewResolver(dataStore, log),
		refresh:  session.NewPostgresStore(dataStore),
		authpw:   authpw.NewService(dataStore),
		history:  history,
		search:   searchService,
		exporter: exporter,
		mail:     mail,
		log:      log,
	}
}

// NewWithSessionStore wires Redis-backed refresh sessions in place of the
// Postgres fallback.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, history *notegit.Service, searchService *search.Service, exporter *export.Service, mail *email.Service, log zerolog.Logger) *Service {
	service := New(cfg, dataStore, history, searchService, exporter, mail, log)
	service.refresh = sessions
	return service
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) ChangePassword(ctx context.Context, session Session, current, next string) error {
	return s.authpw.ChangePassword(ctx, session.Email, current, next)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Username, user.Role, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
