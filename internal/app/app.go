// Package app wires the engine together: store, realtime reconciler,
// polling driver, SLA monitor, print dispatch and the HTTP surface, all
// supervised by one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/internal/config"
	"github.com/tableside/kds/internal/events"
	"github.com/tableside/kds/internal/httpapi"
	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/internal/poll"
	"github.com/tableside/kds/internal/print"
	"github.com/tableside/kds/internal/session"
	"github.com/tableside/kds/pkg/bus"
	"github.com/tableside/kds/pkg/logging"
)

const (
	AppName    = "kds"
	AppVersion = "0.1.0"
)

type App struct {
	cfg    *config.Config
	logger logging.Logger

	store      *kot.Store
	feed       *kot.Feed
	backend    *backend.Client
	settings   *session.Store
	reconciler *events.Reconciler
	driver     *poll.Driver
	monitor    *kot.SLAMonitor
	selector   *print.Selector
	queue      *print.Queue
	publisher  *bus.NATSPublisher
	subscriber *bus.NATSSubscriber
}

func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Initialize builds every component. The realtime channel is optional: when
// NATS is unreachable the board still converges through polling, so a
// connection failure only logs.
func (a *App) Initialize(ctx context.Context) error {
	a.store = kot.NewStore(a.logger)
	a.feed = kot.NewFeed(a.logger)
	a.store.SetNotifier(a.feed)

	a.backend = backend.NewClient(a.cfg.Backend.URL, a.logger)

	settings, err := session.NewStore(a.cfg.Session.File, a.logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	a.settings = settings

	scope := a.currentScope()

	if a.cfg.NATS.URL != "" {
		subscriber, err := bus.NewNATSSubscriber(a.cfg.NATS.URL)
		if err != nil {
			a.logger.Errorf("NATS unavailable, realtime disabled: %v", err)
		} else {
			a.subscriber = subscriber
			a.reconciler = events.NewReconciler(subscriber, a.store, a.logger)
			if err := a.reconciler.Start(ctx, scope.Kitchen, scope.Station); err != nil {
				return fmt.Errorf("start reconciler: %w", err)
			}
		}

		publisher, err := bus.NewNATSPublisher(a.cfg.NATS.URL)
		if err != nil {
			a.logger.Errorf("NATS publisher unavailable, local mutations will not fan out: %v", err)
		} else {
			a.publisher = publisher
		}
	}

	pollInterval := a.cfg.Poll.Interval
	if persisted := settings.Load().PollInterval; persisted > 0 {
		pollInterval = persisted
	}
	a.driver = poll.NewDriver(a.backend, a.store, backend.Scope{
		Kitchen: scope.Kitchen,
		Station: scope.Station,
		Branch:  a.cfg.Backend.Branch,
	}, pollInterval, a.logger)

	classifier := kot.NewSLAClassifier(
		a.slaThreshold(settings.Load().SLAWarning, a.cfg.SLA.Warning),
		a.slaThreshold(settings.Load().SLACritical, a.cfg.SLA.Critical),
	)
	a.monitor = kot.NewSLAMonitor(a.store, classifier, a.feed, a.cfg.SLA.Interval, a.logger)

	a.selector = print.NewSelector(print.DefaultRegistry(), print.NewDetector(), a.logger)
	a.selectPrintTransport(ctx)
	a.queue = print.NewQueue(a.selector, a.backend, print.QueueOptions{}, a.logger)

	return nil
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("starting %s(%s)", AppName, AppVersion)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.driver.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := a.monitor.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Web.Port),
		Handler: a.router(),
	}

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.shutdown()
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return err
}

// Rescope implements httpapi.Rescoper: retarget the realtime subscriptions,
// repoint the polling scope and refresh immediately so the board does not
// wait a full cycle.
func (a *App) Rescope(ctx context.Context, kitchen, station string) error {
	if a.reconciler != nil {
		if err := a.reconciler.Resubscribe(ctx, kitchen, station); err != nil {
			return err
		}
	}
	a.driver.SetScope(backend.Scope{
		Kitchen: kitchen,
		Station: station,
		Branch:  a.cfg.Backend.Branch,
	})
	return a.driver.RefreshNow(ctx)
}

// SetSLAThresholds implements httpapi.Tuner: swap the monitor's classifier
// so the next scan judges tickets against the new thresholds.
func (a *App) SetSLAThresholds(warning, critical time.Duration) {
	a.monitor.SetClassifier(kot.NewSLAClassifier(warning, critical))
}

// SetPollInterval implements httpapi.Tuner.
func (a *App) SetPollInterval(interval time.Duration) {
	a.driver.SetInterval(interval)
}

func (a *App) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	handler := httpapi.NewHandler(httpapi.HandlerOptions{
		Store:     a.store,
		Feed:      a.feed,
		Backend:   a.backend,
		Printer:   a.queue,
		Settings:  a.settings,
		Publisher: a.publisher,
		Rescoper:  a,
		Tuner:     a,
		Branch:    a.cfg.Backend.Branch,
		Logger:    a.logger,
	})
	handler.RegisterRoutes(r)
	return r
}

// selectPrintTransport adopts the configured transport, or auto-selects by
// capability. A board without a printer is still a working board, so failure
// only logs.
func (a *App) selectPrintTransport(ctx context.Context) {
	base := print.Config{
		Host:         a.cfg.Printer.Host,
		Port:         a.cfg.Printer.Port,
		SerialPort:   a.cfg.Printer.SerialPort,
		BaudRate:     a.cfg.Printer.BaudRate,
		AgentURL:     a.cfg.Printer.AgentURL,
		PrinterName:  a.cfg.Printer.PrinterName,
		PaperWidthMM: a.cfg.Printer.PaperWidthMM,
		Codepage:     a.cfg.Printer.Codepage,
	}

	if a.cfg.Printer.Transport != "" {
		base.Kind = print.TransportKind(a.cfg.Printer.Transport)
		if _, err := a.selector.Use(ctx, base); err != nil {
			a.logger.Errorf("configured print transport %s unavailable: %v", a.cfg.Printer.Transport, err)
		}
		return
	}

	if _, err := a.selector.AutoSelect(ctx, base); err != nil {
		a.logger.Errorf("no print transport available: %v", err)
	}
}

// currentScope prefers the operator's persisted selection over the static
// config.
func (a *App) currentScope() session.Settings {
	s := a.settings.Load()
	if s.Kitchen == "" {
		s.Kitchen = a.cfg.Backend.Kitchen
	}
	if s.Station == "" {
		s.Station = a.cfg.Backend.Station
	}
	return s
}

func (a *App) slaThreshold(fromSettings, fromConfig time.Duration) time.Duration {
	if fromSettings > 0 {
		return fromSettings
	}
	return fromConfig
}

func (a *App) shutdown() {
	if a.reconciler != nil {
		a.reconciler.Stop()
	}
	if a.subscriber != nil {
		_ = a.subscriber.Close()
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.selector != nil {
		if err := a.selector.Close(); err != nil {
			a.logger.Errorf("print adapter disconnect failed: %v", err)
		}
	}
}
