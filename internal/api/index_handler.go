package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	Title   string
	SiteURL string
	Files   []DataFile
}

// IndexHandler はトップページと旧 index.py 互換の入口。
type IndexHandler struct {
	report  *ReportHandler
	files   *DataFileWatcher
	siteURL string
}

func NewIndexHandler(report *ReportHandler, files *DataFileWatcher, siteURL string) *IndexHandler {
	return &IndexHandler{report: report, files: files, siteURL: strings.TrimRight(siteURL, "/")}
}

// GET /
func (h *IndexHandler) Index(c echo.Context) error {
	data := indexData{Title: "XNova stats", SiteURL: h.siteURL}
	if h.files != nil {
		data.Files = h.files.Files()
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		c.Logger().Error("index template: ", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "render failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// GET /index.py?ajax=...|galaxymap=...
// 古いフロントエンドのクエリをそのまま受ける。
func (h *IndexHandler) Compat(c echo.Context) error {
	params := c.QueryParams()
	if _, ok := params["ajax"]; ok {
		switch c.QueryParam("ajax") {
		case "grid":
			return h.report.Grid(c)
		case "lastactive":
			return h.report.LastActive(c)
		case "lastlogs":
			return h.report.LastLogs(c)
		case "gmap_population":
			return h.report.Population(c)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "unknown ajax action")
	}
	if _, ok := params["galaxymap"]; ok {
		return h.report.galaxyMap(c, c.QueryParam("galaxymap"))
	}
	return h.Index(c)
}
