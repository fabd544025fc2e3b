package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/auth"
	"notelab/api/internal/authpw"
	"notelab/api/internal/export"
	"notelab/api/internal/session"
	"notelab/api/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/password", s.requireSession(s.handleChangePassword)).Methods(http.MethodPut)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	api.HandleFunc("/folders", s.requireSession(s.handleListFolders)).Methods(http.MethodGet)
	api.HandleFunc("/folders", s.requireSession(s.handleCreateFolder)).Methods(http.MethodPost)
	api.HandleFunc("/folders/{folderID}", s.requireSession(s.handleGetFolder)).Methods(http.MethodGet)
	api.HandleFunc("/folders/{folderID}", s.requireSession(s.handleUpdateFolder)).Methods(http.MethodPut)
	api.HandleFunc("/folders/{folderID}", s.requireSession(s.handleDeleteFolder)).Methods(http.MethodDelete)
	api.HandleFunc("/folders/{folderID}/share", s.requireSession(s.handleShareFolder)).Methods(http.MethodPost)
	api.HandleFunc("/folders/{folderID}/share/{userID}", s.requireSession(s.handleRevokeFolderShare)).Methods(http.MethodDelete)

	api.HandleFunc("/notes", s.requireSession(s.handleListNotes)).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.requireSession(s.handleCreateNote)).Methods(http.MethodPost)
	api.HandleFunc("/notes/{noteID}", s.requireSession(s.handleGetNote)).Methods(http.MethodGet)
	api.HandleFunc("/notes/{noteID}", s.requireSession(s.handleUpdateNote)).Methods(http.MethodPut)
	api.HandleFunc("/notes/{noteID}", s.requireSession(s.handleDeleteNote)).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{noteID}/share", s.requireSession(s.handleShareNote)).Methods(http.MethodPost)
	api.HandleFunc("/notes/{noteID}/share/{userID}", s.requireSession(s.handleRevokeNoteShare)).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{noteID}/history", s.requireSession(s.handleNoteHistory)).Methods(http.MethodGet)
	api.HandleFunc("/notes/{noteID}/history/{hash}", s.requireSession(s.handleNoteAtCommit)).Methods(http.MethodGet)
	api.HandleFunc("/notes/{noteID}/export", s.requireSession(s.handleExportNote)).Methods(http.MethodGet)

	api.HandleFunc("/search", s.requireSession(s.handleSearch)).Methods(http.MethodGet)

	api.HandleFunc("/teams", s.requireSession(s.handleMyTeams)).Methods(http.MethodGet)
	api.HandleFunc("/teams", s.requireSession(s.handleCreateTeam)).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}", s.requireSession(s.handleGetTeam)).Methods(http.MethodGet)
	api.HandleFunc("/teams/{teamID}", s.requireSession(s.handleUpdateTeam)).Methods(http.MethodPut)
	api.HandleFunc("/teams/{teamID}", s.requireSession(s.handleDeleteTeam)).Methods(http.MethodDelete)
	api.HandleFunc("/teams/{teamID}/members", s.requireSession(s.handleAddMember)).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/members/{userID}", s.requireSession(s.handleRemoveMember)).Methods(http.MethodDelete)
	api.HandleFunc("/teams/{teamID}/managers", s.requireSession(s.handleAddManager)).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/managers/{userID}", s.requireSession(s.handleRemoveManager)).Methods(http.MethodDelete)
	api.HandleFunc("/teams/{teamID}/assets", s.requireSession(s.handleTeamAssets)).Methods(http.MethodGet)

	api.HandleFunc("/users/{userID}/assets", s.requireSession(s.handleUserAssets)).Methods(http.MethodGet)

	return s.withMiddleware(r)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:    body.Email,
		Password: body.Password,
		Username: body.Username,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			session = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), session, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        session.UserID,
		"username":      session.Username,
		"role":          session.Role,
	})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ChangePassword(r.Context(), session, body.CurrentPassword, body.NewPassword); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListFolders(w http.ResponseWriter, r *http.Request, session Session) {
	page, limit := pagination(r)
	payload, err := s.service.ListFolders(r.Context(), session, page, limit)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleCreateFolder(w http.ResponseWriter, r *http.Request, session Session) {
	var input FolderInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateFolder(r.Context(), session, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetFolder(w http.ResponseWriter, r *http.Request, session Session) {
	payload, err := s.service.GetFolder(r.Context(), session, mux.Vars(r)["folderID"])
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleUpdateFolder(w http.ResponseWriter, r *http.Request, session Session) {
	var input FolderInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateFolder(r.Context(), session, mux.Vars(r)["folderID"], input)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleDeleteFolder(w http.ResponseWriter, r *http.Request, session Session) {
	s.respondOK(w, s.service.DeleteFolder(r.Context(), session, mux.Vars(r)["folderID"]))
}

func (s *HTTPServer) handleShareFolder(w http.ResponseWriter, r *http.Request, session Session) {
	var input ShareInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.ShareFolder(r.Context(), session, mux.Vars(r)["folderID"], input)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleRevokeFolderShare(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	s.respondOK(w, s.service.RevokeFolderShare(r.Context(), session, vars["folderID"], vars["userID"]))
}

func (s *HTTPServer) handleListNotes(w http.ResponseWriter, r *http.Request, session Session) {
	page, limit := pagination(r)
	payload, err := s.service.ListNotes(r.Context(), session, page, limit)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleCreateNote(w http.ResponseWriter, r *http.Request, session Session) {
	var input NoteInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateNote(r.Context(), session, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetNote(w http.ResponseWriter, r *http.Request, session Session) {
	payload, err := s.service.GetNote(r.Context(), session, mux.Vars(r)["noteID"])
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleUpdateNote(w http.ResponseWriter, r *http.Request, session Session) {
	var input NoteInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateNote(r.Context(), session, mux.Vars(r)["noteID"], input)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleDeleteNote(w http.ResponseWriter, r *http.Request, session Session) {
	s.respondOK(w, s.service.DeleteNote(r.Context(), session, mux.Vars(r)["noteID"]))
}

func (s *HTTPServer) handleShareNote(w http.ResponseWriter, r *http.Request, session Session) {
	var input ShareInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.ShareNote(r.Context(), session, mux.Vars(r)["noteID"], input)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleRevokeNoteShare(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	s.respondOK(w, s.service.RevokeNoteShare(r.Context(), session, vars["noteID"], vars["userID"]))
}

func (s *HTTPServer) handleNoteHistory(w http.ResponseWriter, r *http.Request, session Session) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payload, err := s.service.NoteHistory(r.Context(), session, mux.Vars(r)["noteID"], limit)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleNoteAtCommit(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	payload, err := s.service.NoteAtCommit(r.Context(), session, vars["noteID"], vars["hash"])
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleExportNote(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.ExportNote(r.Context(), session, mux.Vars(r)["noteID"], r.URL.Query().Get("format"))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	page, limit := pagination(r)
	payload, err := s.service.SearchNotes(r.Context(), session, r.URL.Query().Get("q"), page, limit)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleMyTeams(w http.ResponseWriter, r *http.Request, session Session) {
	payload, err := s.service.MyTeams(r.Context(), session)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleCreateTeam(w http.ResponseWriter, r *http.Request, session Session) {
	var input TeamInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateTeam(r.Context(), session, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetTeam(w http.ResponseWriter, r *http.Request, session Session) {
	payload, err := s.service.GetTeam(r.Context(), session, mux.Vars(r)["teamID"])
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleUpdateTeam(w http.ResponseWriter, r *http.Request, session Session) {
	var input TeamInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateTeam(r.Context(), session, mux.Vars(r)["teamID"], input)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleDeleteTeam(w http.ResponseWriter, r *http.Request, session Session) {
	s.respondOK(w, s.service.DeleteTeam(r.Context(), session, mux.Vars(r)["teamID"]))
}

func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request, session Session) {
	var input TeamMemberInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respondOK(w, s.service.AddMember(r.Context(), session, mux.Vars(r)["teamID"], input.UserID))
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	s.respondOK(w, s.service.RemoveMember(r.Context(), session, vars["teamID"], vars["userID"]))
}

func (s *HTTPServer) handleAddManager(w http.ResponseWriter, r *http.Request, session Session) {
	var input TeamMemberInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respondOK(w, s.service.AddManager(r.Context(), session, mux.Vars(r)["teamID"], input.UserID))
}

func (s *HTTPServer) handleRemoveManager(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	s.respondOK(w, s.service.RemoveManager(r.Context(), session, vars["teamID"], vars["userID"]))
}

func (s *HTTPServer) handleTeamAssets(w http.ResponseWriter, r *http.Request, session Session) {
	folderPage, folderLimit := assetPagination(r, "folderPage", "folderLimit")
	notePage, noteLimit := assetPagination(r, "notePage", "noteLimit")
	payload, err := s.service.GetTeamAssets(r.Context(), session, mux.Vars(r)["teamID"], folderPage, folderLimit, notePage, noteLimit)
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleUserAssets(w http.ResponseWriter, r *http.Request, session Session) {
	folderPage, folderLimit := assetPagination(r, "folderPage", "folderLimit")
	notePage, noteLimit := assetPagination(r, "notePage", "noteLimit")
	payload, err := s.service.GetUserAssets(r.Context(), session, mux.Vars(r)["userID"], folderPage, folderLimit, notePage, noteLimit)
	s.respond(w, payload, err)
}

// requireSession wraps a handler with bearer-token authentication.
func (s *HTTPServer) requireSession(next func(http.ResponseWriter, *http.Request, Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload map[string]any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) respondOK(w http.ResponseWriter, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func assetPagination(r *http.Request, pageKey, limitKey string) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get(pageKey))
	limit, _ = strconv.Atoi(r.URL.Query().Get(limitKey))
	return page, limit
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, access.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, session.ErrSessionNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil
	}
	if errors.Is(err, authpw.ErrEmailTaken) {
		return http.StatusConflict, "CONFLICT", "Email already registered", nil
	}
	if errors.Is(err, authpw.ErrInvalidInput) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependencies unavailable", nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal error", nil
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"username":     session.Username,
		"email":        session.Email,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt,
	}
}
