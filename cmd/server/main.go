package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"xnstat/database"
	"xnstat/internal/api"
	"xnstat/internal/config"
	"xnstat/internal/discord"
	"xnstat/internal/galaxy"
	"xnstat/internal/jsbox"
	"xnstat/internal/repository"
	"xnstat/internal/service"
	"xnstat/internal/xnova"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("Invalid config: " + err.Error())
	}

	// DB接続
	db, err := database.NewConnection(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}
	defer db.Close()

	// Echo インスタンスを作成
	e := echo.New()
	e.Logger.SetLevel(log.INFO)
	e.Logger.SetOutput(os.Stdout)

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		e.Logger.Fatal("migrate: ", err)
	}
	cancelMigrate()

	loc, _ := cfg.Location()
	siteURL := cfg.SiteURL()

	healthRepo := repository.NewHealthRepository(db)
	healthService := service.NewHealthService(healthRepo)
	healthHandler := api.NewHealthHandler(healthService)

	planetRepo := repository.NewPlanetRepository(db)
	logRepo := repository.NewLogRepository(db)
	watchRepo := repository.NewWatchRepository(db)
	reportService := service.NewReportService(planetRepo, logRepo, service.ReportOptions{
		SiteURL:  siteURL,
		Location: loc,
	})
	watchService := service.NewWatchService(watchRepo, planetRepo)

	// ログイン情報があるときだけ lastactive と監視を動かす
	var lastActiveService service.LastActiveService
	if xcfg := cfg.XNova(); xcfg.Validate() != nil {
		e.Logger.Warn("XNOVA_LOGIN/XNOVA_PASSWORD not set: lastactive and online poller disabled")
	} else if client, err := xnova.NewClient(xcfg); err != nil {
		e.Logger.Error("xnova client init failed: ", err)
	} else {
		unscrambler := galaxy.NewUnscrambler(jsbox.New(cfg.Scraper.JSTimeout), e.Logger)
		lastActiveService = service.NewLastActiveService(planetRepo, client, unscrambler, siteURL)
	}

	reportHandler := api.NewReportHandler(reportService, lastActiveService)
	files := cfg.Server.DataFiles
	if len(files) == 0 && cfg.Database.Driver == database.DriverSQLite {
		files = []string{cfg.Database.DSN}
	}
	dataFiles := api.NewDataFileWatcher(files)
	indexHandler := api.NewIndexHandler(reportHandler, dataFiles, siteURL)

	// ミドルウェア
	// 起動時のASCIIバナーを消す
	e.HideBanner = true
	// /api/grid/ のような末尾スラッシュをリクエスト内で剥がす
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	// ルート設定
	api.SetupRoutes(e, healthHandler, reportHandler, indexHandler)

	port := cfg.Server.Port

	// ---- server with timeouts ----
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		// lastactive はゲームサイトを何ページも取りに行く
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- 起動ウォームアップ：依存OKならready ON ----
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// まずflagをONにしてから疎通を見る。
		healthService.MarkReady()
		if !healthService.Ready(ctx) {
			// 依存がまだならflagをOFF
			healthService.MarkNotReady()
		}
	}()

	// ========= Discord セッション準備 =========
	var dSession discord.Session
	if cfg.Discord.Token != "" {
		s, err := discord.NewSession(cfg.Discord.Token)
		if err != nil {
			e.Logger.Fatal("failed to init discord session: ", err)
		}
		dSession = s
	} else {
		e.Logger.Warn("DISCORD_TOKEN not set: discord bot disabled")
	}

	// ---- server start & wait for signal ----
	// HTTP と Discord の両方のエラーを受けるので容量2
	errCh := make(chan error, 2)

	// HTTPサーバ起動
	go func() {
		if err := e.StartServer(srv); err != nil {
			errCh <- err
		}
	}()

	// Discord起動
	if dSession != nil {
		router := discord.NewRouter(reportService, watchService, siteURL)
		dSession.AddHandler(router.HandleInteraction)

		go func() {
			ctxStart, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := dSession.Start(ctxStart); err != nil {
				errCh <- fmt.Errorf("discord start: %w", err)
				return
			}

			ctxCmd, cancelCmd := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelCmd()

			if err := dSession.RegisterCommands(ctxCmd, cfg.Discord.AppID, cfg.Discord.GuildID); err != nil {
				errCh <- fmt.Errorf("discord register commands: %w", err)
				return
			}

			fmt.Printf("startup complete: http=:%s, discord=online\n", port)
		}()
	} else {
		fmt.Printf("startup complete: http=:%s, discord=disabled\n", port)
	}

	// SIGINT / SIGTERM で Done になるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := dataFiles.Run(ctx, e.Logger); err != nil {
			e.Logger.Error("data file watcher: ", err)
		}
	}()

	if lastActiveService != nil {
		go service.RunOnlinePoller(ctx, cfg.Server.OnlinePollInterval, cfg.Server.OnlinePlayerDelayMax,
			watchRepo, lastActiveService, e.Logger)
	} else {
		fmt.Println("online poller disabled: no xnova credentials")
	}

	// シグナルとサーバ側エラーのどちらが先かを待つ
	select {
	case <-ctx.Done():
		e.Logger.Info("Server is shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			// ポート競合などの起動失敗
			e.Logger.Fatal(err)
		}
	}

	// ---- graceful shutdown ----
	// まずreadyを落としてロードバランサから外れる（ドレイン）
	healthService.MarkNotReady()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 新規受付を止める
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error("graceful shutdown failed, forcing close:", err)
		if cerr := e.Close(); cerr != nil {
			e.Logger.Error(cerr)
		}
	}

	// Discordを閉じる（WebSocket切断）
	if dSession != nil {
		if err := dSession.Close(); err != nil {
			e.Logger.Error("discord close:", err)
		}
	}

	// DBはここで閉じる（全リクエスト完了後）
	if derr := db.Close(); derr != nil {
		e.Logger.Error("db close:", derr)
	}

	e.Logger.Info("Server stopped")
}
