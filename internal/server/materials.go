package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chrisgscott/ellen/models"
)

// materialCatalog is satisfied by both the store and its redis cache.
type materialCatalog interface {
	LookupMaterial(ctx context.Context, name string) (models.Material, bool, error)
}

type MaterialsHandler struct {
	Catalog materialCatalog
}

func (h *MaterialsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/:name", h.lookup)
}

func (h *MaterialsHandler) lookup(c echo.Context) error {
	m, ok, err := h.Catalog.LookupMaterial(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "material not found")
	}
	return c.JSON(http.StatusOK, MaterialResponse{Material: m})
}
