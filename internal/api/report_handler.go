package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"xnstat/internal/render"
	"xnstat/internal/service"
)

// ReportHandler は閲覧用の JSON と画像を返す。
type ReportHandler struct {
	report     service.ReportService
	lastActive service.LastActiveService
}

// lastActive は nil でもよい（ログイン情報が無いとき）。
func NewReportHandler(report service.ReportService, lastActive service.LastActiveService) *ReportHandler {
	return &ReportHandler{report: report, lastActive: lastActive}
}

// GET /api/grid
func (h *ReportHandler) Grid(c echo.Context) error {
	params := service.GridParams{
		Query:    c.QueryParam("query"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
		Order:    c.QueryParam("order"),
		Gals:     c.QueryParam("gals"),
		SMin:     c.QueryParam("s_min"),
		SMax:     c.QueryParam("s_max"),
		MinRank:  c.QueryParam("min_rank"),
	}
	// user_flags は「空文字」と「未指定」を分ける
	if vals, ok := c.QueryParams()["user_flags"]; ok && len(vals) > 0 {
		flags := vals[0]
		params.UserFlags = &flags
	}
	res, err := h.report.Grid(c.Request().Context(), params)
	if err != nil {
		c.Logger().Error("grid: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "grid query failed")
	}
	return c.JSON(http.StatusOK, res)
}

// GET /api/lastlogs
func (h *ReportHandler) LastLogs(c echo.Context) error {
	res, err := h.report.LastLogs(c.Request().Context(), service.LastLogsParams{
		Category: c.QueryParam("category"),
		Value:    c.QueryParam("value"),
		Nick:     c.QueryParam("nick"),
	})
	if err != nil {
		c.Logger().Error("lastlogs: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "lastlogs query failed")
	}
	return c.JSON(http.StatusOK, res)
}

// GET /api/lastactive
func (h *ReportHandler) LastActive(c echo.Context) error {
	if h.lastActive == nil {
		return c.JSON(http.StatusOK, service.LastActiveResult{
			Rows:  []service.LastActiveRow{},
			Error: "Failed to authorize to xnova site!",
		})
	}
	res, err := h.lastActive.Lookup(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		c.Logger().Error("lastactive: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "lastactive lookup failed")
	}
	return c.JSON(http.StatusOK, res)
}

// GET /api/gmap/population
func (h *ReportHandler) Population(c echo.Context) error {
	counts, err := h.report.Population(c.Request().Context())
	if err != nil {
		c.Logger().Error("population: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "population query failed")
	}
	return c.JSON(http.StatusOK, counts)
}

// GET /galaxymap?mode=...&objects=...&name=...
func (h *ReportHandler) GalaxyMap(c echo.Context) error {
	return h.galaxyMap(c, c.QueryParam("mode"))
}

func (h *ReportHandler) galaxyMap(c echo.Context, mode string) error {
	layers, err := h.report.MapLayers(c.Request().Context(), service.MapRequest{
		Mode:    mode,
		Objects: c.QueryParam("objects"),
		Name:    c.QueryParam("name"),
	})
	if errors.Is(err, service.ErrUnknownMapMode) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		c.Logger().Error("galaxymap: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "map query failed")
	}
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, layers); err != nil {
		c.Logger().Error("galaxymap: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "render failed")
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
