package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MiKapsDev/Lion-City/internal/admin"
	"github.com/MiKapsDev/Lion-City/internal/api"
	"github.com/MiKapsDev/Lion-City/internal/catalog"
	"github.com/MiKapsDev/Lion-City/internal/clock"
	"github.com/MiKapsDev/Lion-City/internal/config"
	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/groups"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/logging"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
	"github.com/MiKapsDev/Lion-City/internal/scan"
	"github.com/MiKapsDev/Lion-City/internal/server"
	"github.com/MiKapsDev/Lion-City/internal/webhook"
)

// messageLogSize bounds the in-memory status message history.
const messageLogSize = 200

// app is a fully wired server.
type app struct {
	srv         *server.Server
	store       kvstore.Store
	ledger      *ledger.Service
	board       *catalog.Board
	games       *game.Manager
	dispatcher  *webhook.Dispatcher
	stopForward func()
	closeOnce   sync.Once
	closeErr    error
}

// appOptions carries the dependencies tests replace.
type appOptions struct {
	clock    *clock.Clock
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	game     []game.Option
}

func newApp(cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if opts.clock == nil {
		opts.clock = clock.New()
	}
	if opts.metrics == nil {
		opts.metrics = metrics.Default()
	}

	store, err := kvstore.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	bus := events.NewBus()
	msgs := notify.NewLog(messageLogSize)

	l := ledger.New(store, opts.clock,
		ledger.WithBus(bus),
		ledger.WithNotifier(msgs),
		ledger.WithMetrics(opts.metrics),
		ledger.WithLogger(logger),
		ledger.WithLocation(loc),
		ledger.WithBoostDuration(cfg.BoostDuration),
	)
	grp := groups.NewManager(store, opts.clock, bus, msgs, logger)
	offers := catalog.NewService(cfg.OfferCatalog(), store, l, grp,
		catalog.WithBus(bus),
		catalog.WithNotifier(msgs),
		catalog.WithMetrics(opts.metrics),
		catalog.WithLogger(logger),
	)
	board := catalog.NewBoard(offers, bus)
	games := game.NewManager(l, append([]game.Option{
		game.WithNotifier(msgs),
		game.WithBus(bus),
		game.WithMetrics(opts.metrics),
		game.WithLogger(logger),
	}, opts.game...)...)

	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.Webhook.URL,
		Secret:      cfg.Webhook.Secret,
		Logger:      logger,
		MaxRetries:  cfg.Webhook.MaxRetries,
		RetryDelay:  cfg.Webhook.RetryDelay,
		MaxQueue:    cfg.Webhook.MaxQueue,
		EventPrefix: "evt",
		AutoDeliver: cfg.Webhook.URL != "",
	})

	srv := server.New(&server.Config{
		Name:              "lioncity",
		Port:              cfg.Port,
		Verbose:           cfg.Log.Verbose,
		RequestsPerSecond: cfg.RateLimit.RPS,
		Burst:             cfg.RateLimit.Burst,
		Gatherer:          opts.gatherer,
	}, logger)

	api.NewHandler(api.Deps{
		Ledger:   l,
		Offers:   offers,
		Board:    board,
		Groups:   grp,
		Games:    games,
		Scans:    scan.NewHandler(l, games, msgs, logger),
		Messages: msgs,
	}, srv.Middleware()).Routes(srv.Router)

	adminHandler := admin.NewHandler(l, srv.Middleware(), opts.clock)
	adminHandler.SetFlusher(dispatcher)
	adminHandler.OnReset(games.Close)
	adminHandler.OnReset(msgs.Clear)
	adminHandler.OnReset(dispatcher.Reset)
	adminHandler.Routes(srv.Router)

	// Without a receiver there is nothing to forward to.
	stopForward := func() {}
	if cfg.Webhook.URL != "" {
		stopForward = dispatcher.Forward(bus)
	}

	return &app{
		srv:         srv,
		store:       store,
		ledger:      l,
		board:       board,
		games:       games,
		dispatcher:  dispatcher,
		stopForward: stopForward,
	}, nil
}

// Close stops background work and releases the store. It is safe to call
// more than once.
func (a *app) Close() error {
	a.closeOnce.Do(func() {
		a.stopForward()
		a.games.Close()
		a.board.Close()
		a.dispatcher.Wait()
		a.closeErr = a.store.Close()
	})
	return a.closeErr
}

func cmdServe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	config.BindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer := logging.Setup(logging.Options{
		Service:   "lioncity",
		Verbose:   cfg.Log.Verbose,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	defer closer.Close()
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing store", "err", err)
		}
	}()

	logger.Info("lioncity ready",
		"port", cfg.Port,
		"store", cfg.Store.Driver,
		"timezone", cfg.Timezone,
		"webhook_url", cfg.Webhook.URL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.srv.Serve(ctx)
}
