package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/auth"
	"notelab/api/internal/authpw"
	"notelab/api/internal/export"
	"notelab/api/internal/session"
	"notelab/api/internal/store"

	"github.com/rs/zerolog"
)

func newTestHandler(svc *Service) http.Handler {
	return NewHTTPServer(svc, "*", zerolog.Nop()).Handler()
}

func testToken(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(svc.cfg.JWTSecret), userID, "Avery", store.RoleMember, "jti_test", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code, body.Error
}

func TestHTTPRequiresBearerToken(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/folders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code, _ := decodeErrorBody(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("code = %q, want UNAUTHORIZED", code)
	}
}

func TestHTTPRejectsGarbageToken(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHTTPHealth(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHTTPReadyReportsDatabaseFailure(t *testing.T) {
	svc := newTestService(&fakeStore{
		pingFn: func(context.Context) error { return errors.New("connection refused") },
	})
	handler := newTestHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHTTPCreateFolder(t *testing.T) {
	svc := newTestService(&fakeStore{})
	handler := newTestHandler(svc)
	token := testToken(t, svc, "usr_1")

	req := httptest.NewRequest(http.MethodPost, "/api/folders", strings.NewReader(`{"name":"Plans"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["access"] != "owner" || payload["name"] != "Plans" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestHTTPCreateFolderValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	handler := newTestHandler(svc)
	token := testToken(t, svc, "usr_1")

	req := httptest.NewRequest(http.MethodPost, "/api/folders", strings.NewReader(`{"name":""}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code, _ := decodeErrorBody(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %q, want VALIDATION_ERROR", code)
	}
}

func TestHTTPMissingFolderIs404(t *testing.T) {
	svc := newTestService(&fakeStore{})
	handler := newTestHandler(svc)
	token := testToken(t, svc, "usr_1")

	req := httptest.NewRequest(http.MethodGet, "/api/folders/fld_missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code, _ := decodeErrorBody(t, rec); code != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", code)
	}
}

func TestHTTPExportSetsDownloadHeaders(t *testing.T) {
	fs := &fakeStore{}
	noteInFolder(fs, "note_1", "fld_1", "usr_owner", nil, nil)
	svc := newTestService(fs)
	handler := newTestHandler(svc)
	token := testToken(t, svc, "usr_owner")

	req := httptest.NewRequest(http.MethodGet, "/api/notes/note_1/export?format=pdf", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestHTTPPreflightShortCircuits(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/folders", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain error passthrough", errForbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"sql no rows", sql.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{"access not found", access.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing session", session.ErrSessionNotFound, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad credentials", authpw.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"email taken", authpw.ErrEmailTaken, http.StatusConflict, "CONFLICT"},
		{"invalid input", authpw.ErrInvalidInput, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"duplicate row", store.ErrDuplicate, http.StatusConflict, "CONFLICT"},
		{"pdf engine missing", export.ErrPDFDependencyMissing, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE"},
		{"docx engine missing", export.ErrDOCXDependencyMissing, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _, _ := mapError(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
			}
		})
	}
}

func TestHTTPSignupValidation(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@example.com","password":"short","username":"A"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHTTPLoginBadCredentials(t *testing.T) {
	handler := newTestHandler(newTestService(&fakeStore{}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"whatever"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
