package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/chrisgscott/ellen/internal/store"
)

var testSecret = []byte("test-secret")

func authContext(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSignupDuplicateEmailIsConflict(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: testSecret}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "a@example.com", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	ctx, _ := authContext(e, "/api/auth/signup", `{"email":"a@example.com","password":"longenough"}`)
	err = h.signup(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409 error, got %#v", err)
	}
}

func TestSignupShortPasswordIsBadRequest(t *testing.T) {
	e := echo.New()
	h := &AuthHandler{Secret: testSecret}

	ctx, _ := authContext(e, "/api/auth/signup", `{"email":"a@example.com","password":"short"}`)
	err := h.signup(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}

func TestLoginIssuesTokenAcceptedByMiddleware(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: testSecret}

	hash, err := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`SELECT id, password_hash FROM users`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).
			AddRow("user-1", string(hash)))

	ctx, rec := authContext(e, "/api/auth/login", `{"email":"a@example.com","password":"longenough"}`)
	if err := h.login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a signed token")
	}

	// The issued token must pass the auth middleware and surface the subject.
	next := func(c echo.Context) error {
		if c.Get("user_id").(string) != "user-1" {
			t.Fatalf("middleware subject: %v", c.Get("user_id"))
		}
		return c.NoContent(http.StatusOK)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	authed := e.NewContext(req, httptest.NewRecorder())
	if err := withAuth(next, testSecret)(authed); err != nil {
		t.Fatalf("withAuth: %v", err)
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: testSecret}

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpassword"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, password_hash FROM users`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).
			AddRow("user-1", string(hash)))

	ctx, _ := authContext(e, "/api/auth/login", `{"email":"a@example.com","password":"wrongpassword"}`)
	err = h.login(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %#v", err)
	}
}

func TestWithAuthMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := withAuth(next, testSecret)(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %#v", err)
	}
}

func TestWithAuthWrongSecret(t *testing.T) {
	e := echo.New()
	tok, err := signJWT("user-1", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	ctx := e.NewContext(req, httptest.NewRecorder())

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err = withAuth(next, testSecret)(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %#v", err)
	}
}
