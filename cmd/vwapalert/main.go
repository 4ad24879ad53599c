package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"vwap-alerts/config"
	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/logger"
	"vwap-alerts/internal/marketdata/ws"
	"vwap-alerts/internal/markethours"
	"vwap-alerts/internal/metrics"
	"vwap-alerts/internal/model"
	"vwap-alerts/internal/notification"
	"vwap-alerts/internal/signalengine"
	"vwap-alerts/internal/store"
	"vwap-alerts/internal/store/csvlog"
	redisstore "vwap-alerts/internal/store/redis"
	"vwap-alerts/internal/store/sqlite"
	"vwap-alerts/internal/strategy"
	"vwap-alerts/pkg/alphavantage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "", "path to TOML config file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[vwapalert] config: %v", err)
	}
	if *once {
		cfg.RunOnce = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[vwapalert] %v", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	lg := logger.Init("vwapalert", level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// ── market data ──
	av := alphavantage.New(alphavantage.Config{
		APIKey:           cfg.AlphaVantage.APIKey,
		BaseURL:          cfg.AlphaVantage.BaseURL,
		Timeout:          cfg.AlphaVantage.Timeout.Duration,
		Interval:         cfg.AlphaVantage.Interval,
		OutputSize:       cfg.AlphaVantage.OutputSize,
		RegularHoursOnly: cfg.AlphaVantage.RegularHoursOnly,
		Debug:            level == slog.LevelDebug,
	})

	var quotes model.QuoteSource
	var streamer *ws.Streamer
	switch cfg.QuoteSource {
	case "global-quote":
		quotes = av
	case "stream":
		streamer = ws.New(ws.Config{
			URL:    cfg.Stream.URL,
			Token:  cfg.Stream.Token,
			Symbol: cfg.Symbol,
			MaxAge: cfg.Stream.MaxAge.Duration,
		})
		streamer.OnReconnect = func() { m.WSReconnects.Inc() }
		streamer.OnTrade = func(tr model.Trade) { health.SetLastQuoteTime(tr.TS) }
		health.SetQuoteStream(true)
		quotes = streamer
	}

	// ── notifiers ──
	var notifiers []notification.Notifier
	if cfg.Notify.Log {
		notifiers = append(notifiers, notification.NewLogNotifier())
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notification.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	notifier := notification.NewMulti(notifiers...)
	log.Printf("[vwapalert] %d notifier(s) configured", notifier.Len())

	// ── alert logs ──
	var (
		logs  []model.AlertLog
		rdb   *goredis.Client
		sqlDB *sql.DB
	)
	if cfg.AlertLog.CSVPath != "" {
		logs = append(logs, csvlog.New(cfg.AlertLog.CSVPath, cfg.DisplayLocation()))
	}
	if cfg.AlertLog.SQLitePath != "" {
		sl, err := sqlite.Open(cfg.AlertLog.SQLitePath)
		if err != nil {
			log.Fatalf("[vwapalert] sqlite: %v", err)
		}
		sqlDB = sl.DB()
		health.EnableSQLite()
		logs = append(logs, sl)
	}
	if cfg.AlertLog.Redis {
		rl, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Symbol:   cfg.Symbol,
			MaxLen:   cfg.Redis.MaxLen,
			OnBreakerChange: func(to redisstore.BreakerState) {
				m.RedisCircuitBreakerState.Set(float64(to))
			},
		})
		if err != nil {
			log.Fatalf("[vwapalert] redis: %v", err)
		}
		rdb = rl.Client()
		health.EnableRedis()
		logs = append(logs, rl)
	}
	alertLog := store.NewMulti(logs...)
	defer alertLog.Close()

	if rdb != nil || sqlDB != nil {
		health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)
	}

	// ── signal engine ──
	engCfg, _ := cfg.EngineConfig()
	eng, err := indicator.NewEngine(engCfg)
	if err != nil {
		log.Fatalf("[vwapalert] indicator engine: %v", err)
	}
	polCfg, _ := cfg.PolicyConfig()
	policy, err := strategy.NewPolicy(polCfg)
	if err != nil {
		log.Fatalf("[vwapalert] policy: %v", err)
	}
	window, _ := cfg.Window()

	svc, err := signalengine.New(signalengine.Deps{
		Bars:       av,
		Quotes:     quotes,
		Engine:     eng,
		Classifier: strategy.NewClassifier(policy),
		Window:     window,
		Notifier:   notifier,
		AlertLog:   alertLog,
		Metrics:    m,
		Health:     health,
		Logger:     lg,
	}, signalengine.Options{
		Symbol:         cfg.Symbol,
		EMAPeriod:      cfg.EMAPeriod,
		PollInterval:   cfg.PollInterval.Duration,
		RunOnce:        cfg.RunOnce,
		RestoreFromLog: cfg.RestoreFromLog,
		FetchTimeout:   cfg.AlphaVantage.Timeout.Duration * 2,
		DisplayLoc:     cfg.DisplayLocation(),
	})
	if err != nil {
		log.Fatalf("[vwapalert] init failed: %v", err)
	}

	log.Printf("[vwapalert] symbol=%s policy=%s vwap=%s ema=%d/%s window=%v",
		cfg.Symbol, policy.Name(), engCfg.VWAPMode, engCfg.EMAPeriod, engCfg.EMAMode, window)
	log.Printf("[vwapalert] %s", markethours.StatusString(time.Now()))

	if cfg.RunOnce {
		err := svc.Run(ctx)
		alertLog.Close()
		if err != nil {
			log.Printf("[vwapalert] cycle failed: %v", err)
			os.Exit(1)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, m, health)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if streamer != nil {
		g.Go(func() error { return streamer.Run(gctx) })
	}
	g.Go(func() error { return svc.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Fatalf("[vwapalert] fatal: %v", err)
	}
	log.Printf("[vwapalert] shutdown complete")
}
