package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optiprice/internal/discovery"
	"github.com/alanyoungcy/optiprice/internal/domain"
	"github.com/alanyoungcy/optiprice/internal/server"
	"github.com/alanyoungcy/optiprice/internal/server/handler"
	"github.com/alanyoungcy/optiprice/internal/server/ws"
	"github.com/alanyoungcy/optiprice/internal/service"
)

const shutdownTimeout = 5 * time.Second

// core holds the services shared by every mode.
type core struct {
	probe      *service.ConnectivityProbe
	events     *service.DiscoveryEvents
	controller *discovery.Controller
	products   *service.ProductService
}

// buildCore assembles the services. extra observers receive discovery events
// after the bus/audit fan-out.
func (a *App) buildCore(deps *Dependencies, extra ...discovery.Observer) *core {
	probe := service.NewConnectivityProbe(deps.Matcher, deps.SignalBus, a.cfg.Matcher.ProbeTimeout.Duration, a.logger)

	// A nil *notify.Notifier must not become a non-nil interface.
	var notifier service.Notifier
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		notifier = deps.Notifier
	}
	events := service.NewDiscoveryEvents(deps.SignalBus, deps.AuditStore, notifier, deps.Archiver, a.logger)

	script := discovery.DefaultScript()
	if delays := a.cfg.Discovery.Delays(); delays != nil {
		tuned := script.WithDelays(delays)
		if len(delays) != len(script.Steps)+1 {
			a.logger.Warn("ignoring discovery delays: wrong number of entries",
				slog.Int("got", len(delays)),
				slog.Int("want", len(script.Steps)+1),
			)
		}
		script = tuned
	}

	var observer discovery.Observer = events
	if len(extra) > 0 {
		observer = discovery.Observers(append([]discovery.Observer{events}, extra...)...)
	}
	controller := discovery.NewController(deps.Matcher, probe, discovery.Config{
		Script:   script,
		Observer: observer,
	}, a.logger)

	products := service.NewProductService(
		deps.ProductStore, deps.ProductCache, deps.LockManager,
		deps.AuditStore, deps.SignalBus, a.logger,
	)

	return &core{probe: probe, events: events, controller: controller, products: products}
}

// drain stops scheduled playback and waits for pending side effects.
func (c *core) drain() {
	c.controller.Close()
	c.events.Wait()
}

// ServerMode seeds the catalog, resolves connectivity and serves the HTTP and
// WebSocket API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	c := a.buildCore(deps)
	defer c.drain()

	n, err := c.products.Seed(ctx, a.cfg.Catalog.SeedProducts())
	if err != nil {
		return fmt.Errorf("app: seed catalog: %w", err)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "catalog seeded", slog.Int("products", n))
	}

	g, ctx := errgroup.WithContext(ctx)

	// The probe runs once; handlers read its state while it is still checking.
	g.Go(func() error {
		c.probe.Run(ctx)
		return nil
	})

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Mode:           a.cfg.Mode,
		Connectivity:   c.probe.State,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, deps.Matcher.BaseURL(), c.probe),
		Products:  handler.NewProductHandler(c.products, a.logger),
		Discovery: handler.NewDiscoveryHandler(c.controller, c.events, deps.Archiver, a.logger),
		Audit:     handler.NewAuditHandler(deps.AuditStore, a.logger),
	}, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// DiscoverMode runs one discovery session from the command line, printing
// every log line, and returns once the session completes.
func (a *App) DiscoverMode(ctx context.Context, deps *Dependencies) error {
	if a.keyword == "" {
		return errors.New("app: discover mode needs a keyword")
	}
	a.logger.InfoContext(ctx, "starting discover mode", slog.String("keyword", a.keyword))

	printer := newTranscriptPrinter(a.out)
	c := a.buildCore(deps, printer)
	defer c.drain()

	state := c.probe.Run(ctx)
	fmt.Fprintf(a.out, "matching service: %s\n", state)

	c.controller.Discover(ctx, a.keyword, a.description)

	select {
	case s := <-printer.done:
		printer.printResult(s)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transcriptPrinter writes discovery events to a terminal.
type transcriptPrinter struct {
	discovery.NopObserver
	mu   sync.Mutex
	out  io.Writer
	done chan domain.DiscoverySession
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{out: out, done: make(chan domain.DiscoverySession, 1)}
}

func (p *transcriptPrinter) LogAppended(_ domain.DiscoverySession, line domain.LogLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", line.At.Format("15:04:05.000"), line.Text)
}

func (p *transcriptPrinter) Completed(s domain.DiscoverySession) {
	select {
	case p.done <- s:
	default:
	}
}

func (p *transcriptPrinter) printResult(s domain.DiscoverySession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Result == nil {
		fmt.Fprintln(p.out, "no competitor match")
		return
	}
	r := s.Result
	fmt.Fprintf(p.out, "match: %s %q %.2f %s (similarity %.2f, %s, path %s)\n",
		r.ID, r.Title, r.Price, r.Currency, r.Similarity, r.MatchType, s.Path)
}
