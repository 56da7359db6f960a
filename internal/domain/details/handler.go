package details

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/lcd/:id", h.GetLCD)
	api.GET("/ncd/:id", h.GetNCD)
	api.GET("/article/:id", h.GetArticle)
	api.GET("/article/:id/codes", h.GetArticleCodes)
}

// GetLCD returns detail for one Local Coverage Determination.
func (h *Handler) GetLCD(c echo.Context) error {
	doc, err := h.svc.GetLCD(c.Request().Context(), c.Param("id"), c.QueryParam("version"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if len(doc) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "LCD not found")
	}
	return c.JSON(http.StatusOK, doc)
}

// GetNCD returns detail for one National Coverage Determination.
func (h *Handler) GetNCD(c echo.Context) error {
	doc, err := h.svc.GetNCD(c.Request().Context(), c.Param("id"), c.QueryParam("version"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if len(doc) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "NCD not found")
	}
	return c.JSON(http.StatusOK, doc)
}

// GetArticle returns detail for one local coverage article.
func (h *Handler) GetArticle(c echo.Context) error {
	doc, err := h.svc.GetArticle(c.Request().Context(), c.Param("id"), c.QueryParam("version"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if len(doc) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	return c.JSON(http.StatusOK, doc)
}

// GetArticleCodes returns the structured-code bundle for one article,
// including the mined CPT/HCPCS → ICD-10 mapping.
func (h *Handler) GetArticleCodes(c echo.Context) error {
	bundle, err := h.svc.GetArticleCodes(c.Request().Context(), c.Param("id"), c.QueryParam("version"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, bundle)
}
