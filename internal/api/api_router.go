package api

import (
	"github.com/labstack/echo/v4"
)

func SetupRoutes(
	// 引数
	e *echo.Echo,
	healthHandler *HealthHandler,
	reportHandler *ReportHandler,
	indexHandler *IndexHandler) {

	api := e.Group("/api")

	// ヘルスチェック
	api.GET("/livez", healthHandler.Livez)
	api.GET("/readyz", healthHandler.Readyz)
	api.GET("/healthz", healthHandler.Healthz)

	// 閲覧用
	api.GET("/grid", reportHandler.Grid)
	api.GET("/lastlogs", reportHandler.LastLogs)
	api.GET("/lastactive", reportHandler.LastActive)
	api.GET("/gmap/population", reportHandler.Population)

	e.GET("/galaxymap", reportHandler.GalaxyMap)
	e.GET("/", indexHandler.Index)
	e.GET("/index.py", indexHandler.Compat)
}
