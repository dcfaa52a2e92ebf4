// Package discovery runs the competitor-discovery workflow. A run either
// queries the external matching service (live path) or plays back a scripted,
// timed sequence of log lines ending in a canned match (simulated path). The
// live path falls back to the simulated one on any failure.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// Matcher queries the external matching service.
type Matcher interface {
	FindCompetitor(ctx context.Context, keyword, description string) (*domain.MatchResult, error)
}

// Connectivity reports the resolved availability of the matching service.
type Connectivity interface {
	State() domain.ConnectivityState
}

// Observer is told about every change to the current session. Calls are
// serialized and arrive in the order the changes were made, from the caller's
// goroutine or a timer.
type Observer interface {
	LogAppended(session domain.DiscoverySession, line domain.LogLine)
	ResultSet(session domain.DiscoverySession, result domain.MatchResult)
	Completed(session domain.DiscoverySession)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) LogAppended(domain.DiscoverySession, domain.LogLine)     {}
func (NopObserver) ResultSet(domain.DiscoverySession, domain.MatchResult) {}
func (NopObserver) Completed(domain.DiscoverySession)                     {}

// Observers fans every event out to each of obs in order.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) LogAppended(s domain.DiscoverySession, line domain.LogLine) {
	for _, o := range m {
		o.LogAppended(s, line)
	}
}

func (m multiObserver) ResultSet(s domain.DiscoverySession, r domain.MatchResult) {
	for _, o := range m {
		o.ResultSet(s, r)
	}
}

func (m multiObserver) Completed(s domain.DiscoverySession) {
	for _, o := range m {
		o.Completed(s)
	}
}

// Config tunes a Controller. Zero values fall back to defaults.
type Config struct {
	Script   Script
	Observer Observer
	Now      func() time.Time
}

// Controller owns the single current discovery session. Starting a new run
// replaces the session and cancels anything still scheduled for the old one.
type Controller struct {
	matcher  Matcher
	conn     Connectivity
	script   Script
	observer Observer
	now      func() time.Time
	sched    *scheduler
	logger   *slog.Logger

	// deliver is held from a session change through its observer call.
	// Lock order: deliver, then mu, then the scheduler.
	deliver sync.Mutex
	mu      sync.Mutex
	session domain.DiscoverySession
}

// NewController creates a Controller. matcher is only used when conn reports
// the service as connected.
func NewController(matcher Matcher, conn Connectivity, cfg Config, logger *slog.Logger) *Controller {
	if len(cfg.Script.Steps) == 0 {
		cfg.Script = DefaultScript()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		matcher:  matcher,
		conn:     conn,
		script:   cfg.Script,
		observer: cfg.Observer,
		now:      cfg.Now,
		sched:    newScheduler(),
		logger:   logger.With(slog.String("component", "discovery")),
	}
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() domain.DiscoverySession {
	c.mu.Lock()
	s := c.session.Clone()
	c.mu.Unlock()
	s.Pending = c.sched.pending()
	return s
}

// Discover starts a new session for keyword/description and dispatches it.
// For the live path it returns once the request has settled (and any fallback
// has been scheduled); for the simulated path it returns right after
// scheduling, while the log keeps growing for up to Script.ResultAfter.
func (c *Controller) Discover(ctx context.Context, keyword, description string) domain.DiscoverySession {
	gen := c.begin(keyword, description)
	c.appendLog(gen, fmt.Sprintf("Starting competitor analysis for %q...", keyword))

	state := c.conn.State()
	var outcome Outcome
	if state == domain.ConnectivityConnected {
		outcome = c.live(ctx, gen, keyword, description)
	} else {
		outcome = Failed(KindUnavailable, fmt.Errorf("matching service is %s", state))
	}

	fellBack := outcome.OrElse(func(e *Error) {
		if e.Kind == KindRequestFailed {
			c.logger.WarnContext(ctx, "live discovery failed, falling back",
				slog.String("keyword", keyword),
				slog.String("error", e.Error()),
			)
			c.appendLog(gen, "Error: "+e.Err.Error())
			c.appendLog(gen, "Falling back to simulated analysis...")
		}
		c.simulate(gen, keyword, e.Kind == KindRequestFailed)
	})
	if !fellBack {
		c.finishLive(gen, outcome.Match)
	}

	return c.Snapshot()
}

// Close cancels any scheduled playback.
func (c *Controller) Close() {
	c.sched.stop()
}

// begin resets the session and returns its generation. The generation bump
// and the reset happen under one lock so concurrent callers cannot install an
// older generation over a newer one.
func (c *Controller) begin(keyword, description string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.sched.advance()
	c.session = domain.DiscoverySession{
		ID:          uuid.New().String(),
		Generation:  gen,
		Keyword:     keyword,
		Description: description,
		InProgress:  true,
		StartedAt:   c.now().UTC(),
	}
	return gen
}

func (c *Controller) live(ctx context.Context, gen uint64, keyword, description string) Outcome {
	c.setPath(gen, domain.DiscoveryPathLive)
	c.appendLog(gen, "Connecting to matching service...")

	m, err := c.matcher.FindCompetitor(ctx, keyword, description)
	if err != nil {
		return Failed(KindRequestFailed, err)
	}
	return Matched(m)
}

// finishLive records the live answer and completes the session.
func (c *Controller) finishLive(gen uint64, m *domain.MatchResult) {
	if m != nil {
		c.setResult(gen, *m)
		c.appendLog(gen, fmt.Sprintf("Match found: %s (similarity %.2f)", m.ID, m.Similarity))
	} else {
		c.appendLog(gen, "No matches found")
	}
	c.complete(gen, true)
}

// simulate schedules the scripted playback and clears the in-progress flag
// without waiting for it.
func (c *Controller) simulate(gen uint64, keyword string, fallback bool) {
	c.mu.Lock()
	if c.session.Generation == gen {
		c.session.Path = domain.DiscoveryPathSimulated
		c.session.Fallback = fallback
	}
	c.mu.Unlock()

	for _, st := range c.script.Steps {
		text := st.render(keyword)
		c.sched.after(gen, st.After, func() { c.appendLog(gen, text) })
	}
	result := c.script.Result
	c.sched.after(gen, c.script.ResultAfter, func() {
		c.setResult(gen, result)
		c.complete(gen, false)
	})

	c.mu.Lock()
	if c.session.Generation == gen {
		c.session.InProgress = false
	}
	c.mu.Unlock()
}

func (c *Controller) setPath(gen uint64, p domain.DiscoveryPath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Generation == gen {
		c.session.Path = p
	}
}

func (c *Controller) appendLog(gen uint64, text string) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	if c.session.Generation != gen {
		c.mu.Unlock()
		return
	}
	line := domain.LogLine{At: c.now().UTC(), Text: text}
	c.session.Logs = append(c.session.Logs, line)
	snap := c.session.Clone()
	c.mu.Unlock()

	c.observer.LogAppended(snap, line)
}

func (c *Controller) setResult(gen uint64, m domain.MatchResult) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	if c.session.Generation != gen {
		c.mu.Unlock()
		return
	}
	c.session.Result = &m
	snap := c.session.Clone()
	c.mu.Unlock()

	c.observer.ResultSet(snap, m)
}

// complete stamps the session as finished. clearFlag is false on the
// simulated path, whose flag was already cleared at dispatch.
func (c *Controller) complete(gen uint64, clearFlag bool) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	if c.session.Generation != gen {
		c.mu.Unlock()
		return
	}
	if clearFlag {
		c.session.InProgress = false
	}
	now := c.now().UTC()
	c.session.CompletedAt = &now
	snap := c.session.Clone()
	c.mu.Unlock()

	c.logger.Info("discovery session completed",
		slog.String("session_id", snap.ID),
		slog.String("path", string(snap.Path)),
		slog.Bool("matched", snap.Result != nil),
		slog.Bool("fallback", snap.Fallback),
	)
	c.observer.Completed(snap)
}
