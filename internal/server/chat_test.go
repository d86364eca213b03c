package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/internal/chat"
	"github.com/chrisgscott/ellen/internal/store"
	"github.com/chrisgscott/ellen/internal/stream"
	"github.com/chrisgscott/ellen/models"
	"github.com/chrisgscott/ellen/provider"
)

// cannedBackend replays a fixed event wire for any request.
type cannedBackend struct {
	body string
}

func (b *cannedBackend) OpenStream(context.Context, provider.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(b.body)), nil
}

func TestChatSendStreamsAndReconciles(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, title, created_at, updated_at FROM sessions`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow("sess-1", "user-1", "lithium", now, now))
	mock.ExpectExec(`INSERT INTO threads`).
		WithArgs(sqlmock.AnyArg(), "sess-1", "what moved lithium?", "Lithium rose.",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sessions SET updated_at`).
		WithArgs("sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	wire := `{"type":"token","content":"Lithium "}
{"type":"token","content":"rose."}
{"type":"sources","content":[{"title":"Quota filing","url":"https://example.com/q"}]}
{"type":"suggestions","content":["What changed?"]}
`
	svc := chat.NewService(&store.Store{DB: db}, &cannedBackend{body: wire}, log.New(io.Discard, "", 0))
	h := &ChatHandler{Chat: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"session_id":"sess-1","message":"what moved lithium?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.send(ctx); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "application/x-ndjson" {
		t.Fatalf("content type: %q", got)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 wire records, got %d: %q", len(lines), rec.Body.String())
	}

	var events []stream.Event
	for _, line := range lines {
		var ev stream.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("decode line %q: %v", line, err)
		}
		events = append(events, ev)
	}

	// The wire re-emits deltas, never cumulative text.
	for i, want := range []string{"Lithium ", "rose."} {
		if events[i].Type != stream.EventToken {
			t.Fatalf("event %d: expected token, got %s", i, events[i].Type)
		}
		delta, err := events[i].Token()
		if err != nil || delta != want {
			t.Fatalf("event %d: expected delta %q, got %q (%v)", i, want, delta, err)
		}
	}
	if events[2].Type != stream.EventSources || events[3].Type != stream.EventSuggestions {
		t.Fatalf("unexpected event order: %s, %s", events[2].Type, events[3].Type)
	}

	if events[4].Type != "done" {
		t.Fatalf("expected final done record, got %s", events[4].Type)
	}
	var doneEv ChatDoneEvent
	if err := json.Unmarshal(events[4].Content, &doneEv); err != nil {
		t.Fatalf("decode done record: %v", err)
	}
	if doneEv.Thread == nil {
		t.Fatalf("done record must carry the reconciled thread")
	}
	if doneEv.Thread.Assistant.Content != "Lithium rose." {
		t.Fatalf("assistant content: %q", doneEv.Thread.Assistant.Content)
	}
	if doneEv.Thread.ID == "" || chat.IsOptimisticID(doneEv.Thread.ID) {
		t.Fatalf("done thread must carry the server id, got %q", doneEv.Thread.ID)
	}
	if len(doneEv.Thread.Sources) != 1 || doneEv.Thread.Sources[0].URL != "https://example.com/q" {
		t.Fatalf("sources not reconciled: %#v", doneEv.Thread.Sources)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatSendMissingMessageIsBadRequest(t *testing.T) {
	e := echo.New()
	h := &ChatHandler{Chat: chat.NewService(nil, nil, log.New(io.Discard, "", 0))}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"sess-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := h.send(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}

func TestChatSendSessionLookupFailureIsErrorRecord(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user_id, title, created_at, updated_at FROM sessions`).
		WithArgs("missing").
		WillReturnError(models.ErrSessionNotFound)

	svc := chat.NewService(&store.Store{DB: db}, &cannedBackend{}, log.New(io.Discard, "", 0))
	h := &ChatHandler{Chat: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"session_id":"missing","message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.send(ctx); err != nil {
		t.Fatalf("send: %v", err)
	}
	var ev stream.Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(rec.Body.String())), &ev); err != nil {
		t.Fatalf("decode error record: %v", err)
	}
	if ev.Type != stream.EventError {
		t.Fatalf("expected a single error record, got %s", ev.Type)
	}
}
