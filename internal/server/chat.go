package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/internal/chat"
	"github.com/chrisgscott/ellen/internal/stream"
	"github.com/chrisgscott/ellen/models"
)

// ChatHandler exposes the streaming chat endpoint. The response body is the
// same newline-delimited JSON event wire the backend produced, re-emitted
// record by record as the aggregator consumes it, followed by a final
// "done" record carrying the reconciled thread. Clients that don't know
// "done" skip it, matching the unknown-type contract.
type ChatHandler struct {
	Chat *chat.Service
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.send)
}

func (h *ChatHandler) send(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req ChatRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	write := func(ev stream.Event) {
		line, err := ev.Marshal()
		if err != nil {
			return
		}
		if _, err := res.Write(append(line, '\n')); err != nil {
			return
		}
		res.Flush()
	}

	// Callbacks receive cumulative text; the wire carries deltas.
	sent := 0
	handler := stream.Handler{
		OnToken: func(full string) {
			if len(full) <= sent {
				return
			}
			write(stream.NewTokenEvent(full[sent:]))
			sent = len(full)
		},
		OnSources:     func(s []models.Source) { write(stream.NewSourcesEvent(s)) },
		OnMaterials:   func(m []models.Material) { write(stream.NewMaterialsEvent(m)) },
		OnSuggestions: func(q []string) { write(stream.NewSuggestionsEvent(q)) },
		OnError:       func(err error) { write(stream.NewErrorEvent(err.Error())) },
	}

	thread, err := h.Chat.Send(c.Request().Context(), req.SessionID, userID, req.Message, req.DocumentName, handler)
	if thread == nil && err != nil {
		// Stream never opened; nothing was written yet, so a plain error
		// record keeps the body well-formed for the client.
		write(stream.NewErrorEvent(err.Error()))
		return nil
	}

	doneContent, merr := json.Marshal(ChatDoneEvent{Thread: thread})
	if merr == nil {
		write(stream.Event{Type: "done", Content: doneContent})
	}
	return nil
}
