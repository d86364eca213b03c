package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/internal/newsindex"
	"github.com/chrisgscott/ellen/internal/related"
	"github.com/chrisgscott/ellen/internal/store"
	"github.com/chrisgscott/ellen/models"
)

type NewsHandler struct {
	Store        *store.Store
	Index        *newsindex.Index
	RelatedLimit int
	Logger       *log.Logger
}

func (h *NewsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/:id/related", h.related)
}

func (h *NewsHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListNews(c.Request().Context(),
		c.QueryParam("cluster"), c.QueryParam("geography"), c.QueryParam("type"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.NewsItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// related returns the ranked neighbours of one article. Related content is
// a soft enhancement: a pool fetch failure degrades to an empty list, never
// an error page on the article itself.
func (h *NewsHandler) related(c echo.Context) error {
	focal, ok, err := h.Store.GetNewsItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "news item not found")
	}

	pool, err := h.Store.ListNews(c.Request().Context(), focal.InterestCluster, "", "", 100)
	if err != nil {
		h.Logger.Printf("related pool fetch for %s: %v", focal.ID, err)
		return c.JSON(http.StatusOK, RelatedResponse{Items: []models.NewsItem{}})
	}

	ranked := related.Rank(time.Now(), focal, pool, h.RelatedLimit)
	items := make([]models.NewsItem, 0, len(ranked))
	for _, sc := range ranked {
		items = append(items, sc.Item)
	}
	return c.JSON(http.StatusOK, RelatedResponse{Items: items})
}

func (h *NewsHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []newsindex.Hit{}
	}
	return c.JSON(http.StatusOK, NewsSearchResponse{Hits: hits})
}
