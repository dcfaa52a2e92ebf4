package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/optiprice/internal/discovery"
	"github.com/alanyoungcy/optiprice/internal/domain"
)

// SessionStream is the durable stream holding completed discovery sessions.
const SessionStream = "discovery:sessions"

// Notification event types.
const (
	EventCompetitorMatched = "competitor_matched"
	EventDiscoveryFallback = "discovery_fallback"
)

// sideEffectTimeout bounds audit, notify and archive work for one session.
const sideEffectTimeout = 30 * time.Second

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// DiscoveryEvents fans discovery controller events out to the signal bus, the
// audit log, the notifier and the session archive.
type DiscoveryEvents struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	archiver domain.SessionArchiver
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDiscoveryEvents creates a DiscoveryEvents. notifier and archiver may be
// nil.
func NewDiscoveryEvents(
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	archiver domain.SessionArchiver,
	logger *slog.Logger,
) *DiscoveryEvents {
	return &DiscoveryEvents{
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "discovery_events")),
	}
}

// LogAppended publishes a log line event.
func (e *DiscoveryEvents) LogAppended(s domain.DiscoverySession, line domain.LogLine) {
	e.publish(map[string]any{
		"event":      "log",
		"session_id": s.ID,
		"generation": s.Generation,
		"line":       line,
	})
}

// ResultSet publishes a result event.
func (e *DiscoveryEvents) ResultSet(s domain.DiscoverySession, result domain.MatchResult) {
	e.publish(map[string]any{
		"event":      "result",
		"session_id": s.ID,
		"generation": s.Generation,
		"path":       s.Path,
		"result":     result,
	})
}

// Completed publishes the finished session and runs the slower side effects
// in the background. Wait blocks until they are done.
func (e *DiscoveryEvents) Completed(s domain.DiscoverySession) {
	e.publish(map[string]any{
		"event":   "completed",
		"session": s,
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		e.record(ctx, s)
	}()
}

// Wait blocks until every background side effect has finished.
func (e *DiscoveryEvents) Wait() {
	e.wg.Wait()
}

// History returns the most recent count completed sessions from the durable
// stream, oldest first.
func (e *DiscoveryEvents) History(ctx context.Context, count int) ([]domain.DiscoverySession, error) {
	msgs, err := e.bus.StreamReadLatest(ctx, SessionStream, count)
	if err != nil {
		return nil, fmt.Errorf("discovery_events: history: %w", err)
	}
	out := make([]domain.DiscoverySession, 0, len(msgs))
	for _, m := range msgs {
		var s domain.DiscoverySession
		if err := json.Unmarshal(m.Payload, &s); err != nil {
			e.logger.WarnContext(ctx, "skipping malformed session entry",
				slog.String("stream_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *DiscoveryEvents) record(ctx context.Context, s domain.DiscoverySession) {
	if payload, err := json.Marshal(s); err == nil {
		if err := e.bus.StreamAppend(ctx, SessionStream, payload); err != nil {
			e.logger.WarnContext(ctx, "session stream append failed",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	detail := map[string]any{
		"session_id": s.ID,
		"keyword":    s.Keyword,
		"path":       string(s.Path),
		"fallback":   s.Fallback,
		"lines":      len(s.Logs),
	}
	if s.Result != nil {
		detail["match_id"] = s.Result.ID
		detail["similarity"] = s.Result.Similarity
	}

	if e.archiver != nil {
		path, err := e.archiver.ArchiveSession(ctx, s)
		if err != nil {
			e.logger.ErrorContext(ctx, "session archive failed",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		} else {
			detail["archive_path"] = path
		}
	}

	if err := e.audit.Log(ctx, "discovery_completed", detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}

	e.notify(ctx, s)
}

func (e *DiscoveryEvents) notify(ctx context.Context, s domain.DiscoverySession) {
	if e.notifier == nil {
		return
	}

	var err error
	switch {
	case s.Fallback:
		err = e.notifier.Notify(ctx, EventDiscoveryFallback,
			"Discovery fell back to simulation",
			fmt.Sprintf("Matching service request failed for %q; served simulated analysis.", s.Keyword))
	case s.Path == domain.DiscoveryPathLive && s.Result != nil:
		err = e.notifier.Notify(ctx, EventCompetitorMatched,
			"Competitor matched",
			fmt.Sprintf("%q matched %s (%s) at %.2f %s, similarity %.2f",
				s.Keyword, s.Result.Title, s.Result.ID, s.Result.Price, s.Result.Currency, s.Result.Similarity))
	}
	if err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *DiscoveryEvents) publish(evt map[string]any) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.bus.Publish(ctx, domain.ChannelDiscovery, payload); err != nil {
		e.logger.WarnContext(ctx, "publish discovery event failed",
			slog.Any("event", evt["event"]),
			slog.String("error", err.Error()),
		)
	}
}

var _ discovery.Observer = (*DiscoveryEvents)(nil)
