package search

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coversearch/coversearch/internal/platform/cms"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/search", h.Search)
	api.GET("/meta/states", h.States)
	api.GET("/meta/contract-types", h.ContractTypes)
}

// Search runs a keyword search across the selected coverage document types.
func (h *Handler) Search(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("keyword"))
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}

	docType := c.QueryParam("doc_type")
	if docType == "" {
		docType = DocTypeAll
	}
	if !ValidDocType(docType) {
		return echo.NewHTTPError(http.StatusBadRequest, "doc_type must be all, lcd, ncd, or article")
	}

	page := 1
	if p := c.QueryParam("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
		page = parsed
	}

	results, err := h.svc.Search(c.Request().Context(), keyword, docType, page)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// States lists the US states and territories usable as search filters.
func (h *Handler) States(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"states": h.svc.States()})
}

// ContractTypes lists the CMS contract-type metadata.
func (h *Handler) ContractTypes(c echo.Context) error {
	types, err := h.svc.ContractTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if types == nil {
		types = []cms.Document{}
	}
	return c.JSON(http.StatusOK, map[string]any{"contract_types": types})
}
