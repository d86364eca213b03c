package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/internal/docsearch"
)

// SearchHandler exposes the keyword document-chunk search. Unlike related
// articles this is a primary feature path: store failures surface as 500s,
// but zero matches is a 200 with an explicit no-documents result.
type SearchHandler struct {
	Searcher *docsearch.Searcher
}

func (h *SearchHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.search)
}

func (h *SearchHandler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	result, err := h.Searcher.Search(c.Request().Context(), req.SessionID, req.DocumentName, req.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SearchResponse{Result: result})
}
