package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appaudit "github.com/Zhima-Mochi/storefront-bot/internal/application/audit"
	appcheckout "github.com/Zhima-Mochi/storefront-bot/internal/application/checkout"
	"github.com/Zhima-Mochi/storefront-bot/internal/application/delivery"
	appgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/application/giveaway"
	appinventory "github.com/Zhima-Mochi/storefront-bot/internal/application/inventory"
	appsales "github.com/Zhima-Mochi/storefront-bot/internal/application/sales"
	apptrade "github.com/Zhima-Mochi/storefront-bot/internal/application/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/config"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/chatbridge"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/jsonstore"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/magma"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/scheduler"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/session"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/storefront-bot/internal/infrastructure/zeroone"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/storefront-bot/internal/presentation/http"
	"github.com/Zhima-Mochi/storefront-bot/internal/presentation/interaction"
	workerpresentation "github.com/Zhima-Mochi/storefront-bot/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.MustLoad()

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.App.Name,
		Env:     cfg.App.Environment,
		Level:   cfg.App.LogLevel,
		File:    cfg.App.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	counters, histograms := prometrics.Instruments(prometrics.New(nil, "", ""))
	logger := zaplogger.Wrap(baseLogger)
	tel := infraobs.New(oteltrace.New("storefront"), logger, counters, histograms)

	if err := run(cfg, tel); err != nil {
		logger.Error("storefront_exit", observability.Err(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, tel observability.Observability) (err error) {
	logger := tel.Logger().With(observability.F("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	inventoryStore, err := jsonstore.NewInventoryStore(cfg.Inventory.Path)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	var kv session.KV
	if cfg.Session.UsesRedis() {
		redisKV, rerr := session.NewRedisKV(ctx, session.RedisConfig{
			Addr:      cfg.Session.RedisAddress(),
			Password:  cfg.Session.RedisPassword,
			DB:        cfg.Session.RedisDB,
			KeyPrefix: cfg.Session.RedisPrefix,
		})
		if rerr != nil {
			return rerr
		}
		kv = redisKV
	} else {
		kv = session.NewMemoryKV(cfg.Session.CleanupInterval)
	}
	if c, ok := kv.(io.Closer); ok {
		defer func() { err = multierr.Append(err, c.Close()) }()
	}
	sessions := session.NewCheckoutSessions(kv)
	recent := session.NewRecentPurchases(kv, cfg.Trade.Window)

	// Collaborators
	var gateway payment.Gateway
	if cfg.Gateway.TestMode {
		gateway = zeroone.NewTestGateway()
		logger.Warn("pix_test_mode_enabled")
	} else {
		gateway, err = zeroone.New(zeroone.Config{
			BaseURL:   cfg.Gateway.BaseURL,
			SecretKey: cfg.Gateway.SecretKey,
			Timeout:   cfg.Gateway.Timeout,
		}, tel)
		if err != nil {
			return err
		}
	}
	identity, err := magma.New(magma.Config{
		BaseURL: cfg.Identity.BaseURL,
		Token:   cfg.Identity.Token,
		Timeout: cfg.Identity.Timeout,
	}, tel)
	if err != nil {
		return err
	}
	bridge, err := chatbridge.New(chatbridge.Config{
		BaseURL:       cfg.Bridge.BaseURL,
		Token:         cfg.Bridge.Token,
		GuildID:       cfg.Bridge.GuildID,
		SurfaceParent: cfg.Bridge.TradeCategory,
		Timeout:       cfg.Bridge.Timeout,
	}, tel)
	if err != nil {
		return err
	}

	// Events
	bus := outbox.NewBus(tel, outbox.Options{})
	bus.Start(ctx)
	subscriber := workerpresentation.NewSubscriber(bus, tel.Logger(), tel)
	appaudit.NewWorker(appaudit.NewChannelSink(bridge, cfg.Bridge.LogChannelID), subscriber, tel.Logger()).Start()

	sched := scheduler.New(tel.Logger())

	// Use cases
	inventoryService := appinventory.NewService(inventoryStore, bus, tel)
	deliverer := delivery.NewDeliverer(bridge, delivery.NewEnricher(identity, cfg.Identity.Attempts, cfg.Identity.Delay), tel)
	checkoutService := appcheckout.New(appcheckout.Config{
		PollInterval: cfg.Checkout.PollInterval,
		PollAttempts: cfg.Checkout.PollAttempts,
		Expiry:       cfg.Checkout.Expiry,
		TestMode:     cfg.Gateway.TestMode,
	}, appcheckout.Deps{
		Inventory: inventoryService,
		Gateway:   gateway,
		Sessions:  sessions,
		Scheduler: sched,
		Deliverer: deliverer,
		Recent:    recent,
		Messenger: bridge,
		Publisher: bus,
	}, tel)
	tradeService := apptrade.NewService(apptrade.Config{
		TeardownDelay: cfg.Trade.TeardownDelay,
		AdminIDs:      cfg.Admin.IDs,
	}, apptrade.Deps{
		Tickets:   memory.NewTicketRepository(),
		Recent:    recent,
		Inventory: inventoryService,
		Deliverer: deliverer,
		Messenger: bridge,
		Scheduler: sched,
		Publisher: bus,
	}, tel)
	giveawayService := appgiveaway.NewService(appgiveaway.Deps{
		Repo:      sqlstore.NewGiveawayRepository(db),
		Messenger: bridge,
		Scheduler: sched,
		Publisher: bus,
	}, tel)
	salesService := appsales.NewService(gateway, sqlstore.NewSalesLedger(db), cfg.Sales.CacheTTL, tel)
	subscriber.Subscribe(domcheckout.PaymentApprovedEvent{}.EventName(), func(context.Context, domoutbox.Event) error {
		salesService.Invalidate()
		return nil
	})

	if err := giveawayService.Recover(ctx); err != nil {
		logger.Error("giveaway_recover_failed", observability.Err(err))
	}

	// Presentation
	dispatcher := interaction.NewDispatcher(interaction.Deps{
		Checkout:  checkoutService,
		Trade:     tradeService,
		Giveaways: giveawayService,
		Messenger: bridge,
	}, tel)
	listener := chatbridge.NewListener(cfg.Bridge.WebsocketURL, cfg.Bridge.Token, func(ctx context.Context, in messaging.Interaction) {
		if cfg.Admin.IsAdmin(in.UserID) {
			in.Admin = true
		}
		dispatcher.Handle(ctx, in)
	}, tel.Logger())
	listener.Start(ctx)

	handler := httppresentation.NewHandler(httppresentation.Config{
		Inventory:  inventoryService,
		Checkout:   checkoutService,
		Sales:      salesService,
		Giveaways:  giveawayService,
		AdminToken: cfg.Admin.Token,
		Metrics:    promhttp.Handler(),
		Logger:     tel.Logger(),
		Telemetry:  tel,
	})
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs error
		errs = multierr.Append(errs, server.Shutdown(shutdownCtx))
		listener.Stop()
		dispatcher.Wait()
		errs = multierr.Append(errs, sched.Shutdown(shutdownCtx))
		errs = multierr.Append(errs, bus.Stop(shutdownCtx))
		if errs != nil {
			logger.Error("shutdown_incomplete", observability.Err(errs))
		} else {
			logger.Info("storefront_stopped")
		}
		return errs
	})
	return g.Wait()
}
