package chat

import (
	"context"
	"log"
	"time"

	"github.com/chrisgscott/ellen/internal/store"
	"github.com/chrisgscott/ellen/internal/stream"
	"github.com/chrisgscott/ellen/models"
	"github.com/chrisgscott/ellen/provider"
)

// Service runs one chat exchange end to end: ensure a session, mint the
// optimistic thread, open the backend stream, aggregate it, persist the
// outcome and hand back the canonical thread.
type Service struct {
	Store   *store.Store
	Backend provider.ChatBackend
	Logger  *log.Logger
}

func NewService(st *store.Store, backend provider.ChatBackend, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &Service{Store: st, Backend: backend, Logger: logger}
}

// Send processes one user message. Events flow through h as they arrive;
// the thread returned is the persisted, reconciled one (the optimistic
// placeholder is replaced wholesale, never merged field by field).
//
// A partial response is still persisted when the stream errors after tokens
// have arrived: whatever the user saw survives. Cancellation persists
// nothing and is not an error. The returned error is the stream error, if
// any; opening the stream or resolving the session failing is a hard fail
// before any callback fires.
func (s *Service) Send(ctx context.Context, sessionID, userID, message, documentName string, h stream.Handler) (*models.Thread, error) {
	if sessionID == "" {
		sess, err := s.Store.CreateSession(ctx, userID, sessionTitle(message))
		if err != nil {
			return nil, err
		}
		sessionID = sess.ID
	} else if _, err := s.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	thread := NewOptimisticThread(sessionID, message)

	rc, err := s.Backend.OpenStream(ctx, provider.ChatRequest{
		SessionID:    sessionID,
		Message:      message,
		DocumentName: documentName,
	})
	if err != nil {
		return nil, err
	}

	agg := stream.NewAggregator(s.Logger)
	streamErr := agg.Run(ctx, rc, BindThread(thread, h))

	if ctx.Err() != nil {
		// Superseded or abandoned request: nothing to reconcile.
		return thread, nil
	}
	if streamErr != nil && thread.Assistant.Content == "" {
		return thread, streamErr
	}

	id, err := s.Store.CreateThread(ctx, thread)
	if err != nil {
		s.Logger.Printf("persist thread for session %s: %v", sessionID, err)
		return thread, err
	}
	if err := s.Store.TouchSession(ctx, sessionID, time.Now()); err != nil {
		s.Logger.Printf("touch session %s: %v", sessionID, err)
	}

	canonical := *thread
	canonical.ID = id
	return &canonical, streamErr
}

func sessionTitle(message string) string {
	const maxTitle = 80
	if len(message) <= maxTitle {
		return message
	}
	return message[:maxTitle]
}
