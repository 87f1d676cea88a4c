package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"xnstat/database"
	"xnstat/internal/config"
	"xnstat/internal/discord"
	"xnstat/internal/galaxy"
	"xnstat/internal/jsbox"
	"xnstat/internal/repository"
	"xnstat/internal/scraper"
	"xnstat/internal/service"
	"xnstat/internal/xnova"
)

func main() {
	var (
		logs       = flag.Bool("logs", false, "scrape combat logs")
		galaxyScan = flag.Bool("galaxy", false, "scrape galaxy systems")
		configPath = flag.String("config", "", "YAML config file")
		debug      = flag.Bool("debug", false, "enable debug logging")
		login      = flag.String("login", "", "login to authorize in XNova game")
		password   = flag.String("password", "", "password to authorize in XNova game")
		delay      = flag.Duration("delay", 0, "delay between requests (default from config)")
		startID    = flag.Int64("start", 0, "first log id to try when the database is behind it")
	)
	flag.Parse()

	if *logs == *galaxyScan {
		fmt.Println("usage: scraper --logs | --galaxy [--config file] [--login L --password P] [--delay 5s]")
		os.Exit(2)
	}

	logger := log.New("scraper")
	logger.SetOutput(os.Stdout)
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	logger.SetLevel(log.INFO)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *login != "" {
		cfg.Site.Login = *login
	}
	if *password != "" {
		cfg.Site.Password = *password
	}
	if *delay > 0 {
		cfg.Scraper.Delay = *delay
	}
	if *startID > 0 {
		cfg.Scraper.StartLogID = *startID
	}
	if *debug {
		cfg.Site.Debug = true
	}
	if cfg.Site.Debug {
		logger.SetLevel(log.DEBUG)
		logger.Debug("DEBUG enabled")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	xcfg := cfg.XNova()
	if err := xcfg.Validate(); err != nil {
		logger.Error("You MUST provide login and password! ", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to connect to database: ", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("migrate: ", err)
		os.Exit(1)
	}

	client, err := xnova.NewClient(xcfg)
	if err != nil {
		logger.Error("client error: ", err)
		os.Exit(1)
	}
	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = client.EnsureLogin(loginCtx)
	cancel()
	if err != nil {
		logger.Error("XNova authorization failed! ", err)
		os.Exit(1)
	}

	var (
		src     scraper.PageSource
		handler scraper.Handler
		unit    string
	)
	if *logs {
		loc, _ := cfg.Location()
		opts := service.LogIngestOptions{
			Variant:  cfg.Site.Variant,
			Policy:   cfg.Policy(),
			Location: loc,
			Logger:   logger,
		}
		if notifier, closeFn := battleNotifier(cfg, logger); notifier != nil {
			defer closeFn()
			opts.Notifier = notifier
		}
		ingest := service.NewLogIngestService(repository.NewLogRepository(db), opts)
		start, err := ingest.StartLogID(ctx, cfg.Scraper.StartLogID)
		if err != nil {
			logger.Error("failed to get last log id: ", err)
			os.Exit(1)
		}
		logger.Debugf("starting from log id %d", start)
		src = scraper.NewLogIDSource(start, client.URL(""))
		handler = ingest
		unit = "logs"
	} else {
		unscrambler := galaxy.NewUnscrambler(jsbox.New(cfg.Scraper.JSTimeout), logger)
		handler = service.NewGalaxyIngestService(repository.NewPlanetRepository(db), unscrambler, logger)
		src = scraper.NewCoordSource(cfg.Scraper.Galaxies, cfg.Scraper.SystemMin, cfg.Scraper.SystemMax, client.URL(""))
		unit = "systems"
	}

	driver := scraper.NewDriver(src, client, handler, scraper.Options{
		MaxErrors: cfg.Scraper.MaxErrors,
		Delay:     cfg.Scraper.Delay,
		Logger:    logger,
	})
	stats := driver.Run(ctx)
	stats.Report(logger, unit)

	// os.Exit は defer を飛ばすので先に閉じる
	db.Close()
	os.Exit(stats.ExitCode())
}

// battleNotifier は通知チャンネルが設定されていれば REST だけで送る通知を作る。
func battleNotifier(cfg config.Config, logger *log.Logger) (service.BattleNotifier, func()) {
	if cfg.Discord.NotifyChannel == "" {
		return nil, nil
	}
	sess, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Warn("discord notifier disabled: ", err)
		return nil, nil
	}
	notifier, err := discord.NewBattleNotifier(sess, cfg.Discord.NotifyChannel, cfg.Discord.NotifyMinLoss, cfg.SiteURL())
	if err != nil {
		logger.Warn("discord notifier disabled: ", err)
		_ = sess.Close()
		return nil, nil
	}
	return notifier, func() { _ = sess.Close() }
}
