package codemap

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/codes/search", h.SearchCodes)
}

// SearchCodes looks a CPT/HCPCS or ICD-10 code up across coverage articles.
func (h *Handler) SearchCodes(c echo.Context) error {
	code := strings.ToUpper(strings.TrimSpace(c.QueryParam("code")))
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	direction := c.QueryParam("direction")
	if direction == "" {
		direction = DirectionForward
	}
	keyword := c.QueryParam("keyword")
	ctx := c.Request().Context()

	switch direction {
	case DirectionForward:
		results, err := h.svc.SearchForward(ctx, code, keyword)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{
			"code":      code,
			"direction": direction,
			"keyword":   keyword,
			"total":     len(results),
			"results":   results,
		})
	case DirectionReverse:
		results, err := h.svc.SearchReverse(ctx, code, keyword)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{
			"code":      code,
			"direction": direction,
			"keyword":   keyword,
			"total":     len(results),
			"results":   results,
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "direction must be cpt_to_icd or icd_to_cpt")
	}
}
