package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/internal/store"
	"github.com/chrisgscott/ellen/models"
)

// ThreadsHandler serves persisted sessions and threads. The presentation
// layer reconciles its optimistic placeholder against these endpoints.
type ThreadsHandler struct {
	Store *store.Store
}

func (h *ThreadsHandler) Register(sessions, threads *echo.Group, secret []byte) {
	auth := func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) }
	sessions.Use(auth)
	threads.Use(auth)
	sessions.GET("", h.listSessions)
	sessions.GET("/:id/threads", h.listThreads)
	threads.GET("/:id", h.getThread)
}

func (h *ThreadsHandler) listSessions(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.Session{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ThreadsHandler) listThreads(c echo.Context) error {
	if _, err := h.Store.GetSession(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	items, err := h.Store.ListThreadsBySession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.Thread{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ThreadsHandler) getThread(c echo.Context) error {
	t, err := h.Store.GetThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrThreadNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "thread not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}
