// Package stations serves the latest station snapshot to readers, caching it
// in memory for a fixed TTL in front of a slower snapshot source.
package stations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned when no station matches a lookup.
var ErrNotFound = errors.New("station not found")

// Source produces the current snapshot. Implementations return
// domain.ErrNoSnapshot when they have nothing to serve yet.
type Source interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (domain.Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context) (domain.Snapshot, error) { return f(ctx) }

// Service caches the snapshot from a Source for ttl.
type Service struct {
	source  Source
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	snap     *domain.Snapshot
	loadedAt time.Time
}

// NewService creates a caching service over source.
func NewService(source Source, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		source:  source,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// All returns every station of the current snapshot.
func (s *Service) All(ctx context.Context) ([]domain.StationSnapshot, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Stations, nil
}

// ByID returns the station with the given id.
func (s *Service) ByID(ctx context.Context, id string) (domain.StationSnapshot, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.StationSnapshot{}, err
	}
	st, ok := snap.FindByID(id)
	if !ok {
		return domain.StationSnapshot{}, ErrNotFound
	}
	return st, nil
}

// ByName returns the first station whose name matches, ignoring case and
// surrounding whitespace.
func (s *Service) ByName(ctx context.Context, name string) (domain.StationSnapshot, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.StationSnapshot{}, err
	}
	st, ok := snap.FindByName(name)
	if !ok {
		return domain.StationSnapshot{}, ErrNotFound
	}
	return st, nil
}

// Lookup resolves a station by id when id is set, otherwise by name.
func (s *Service) Lookup(ctx context.Context, id, name string) (domain.StationSnapshot, error) {
	if id != "" {
		return s.ByID(ctx, id)
	}
	return s.ByName(ctx, name)
}

// Invalidate drops the cached snapshot so the next read goes to the source.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
	s.logger.Info("station cache invalidated")
}

// Name identifies the cache when it is registered as a pipeline publisher.
func (s *Service) Name() string { return "station-cache" }

// Publish replaces the cached snapshot with a freshly produced one and
// restarts its TTL.
func (s *Service) Publish(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	s.snap = &snap
	s.loadedAt = s.clock.Now()
	s.mu.Unlock()
	return nil
}

// Refresh invalidates the cache and reloads it from the source.
func (s *Service) Refresh(ctx context.Context) (domain.Snapshot, error) {
	s.Invalidate()
	return s.snapshot(ctx)
}

func (s *Service) snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil && s.clock.Since(s.loadedAt) < s.ttl {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return *s.snap, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load station snapshot: %w", err)
	}
	s.snap = &snap
	s.loadedAt = s.clock.Now()
	s.logger.Debug("station cache loaded", "stations", len(snap.Stations), "generated_at", snap.GeneratedAt)
	return snap, nil
}

// Chain tries each source in order and returns the first snapshot found.
// Sources reporting domain.ErrNoSnapshot or failing are passed over; when
// none succeeds the last real error is returned, or domain.ErrNoSnapshot.
func Chain(logger *slog.Logger, sources ...Source) Source {
	return SourceFunc(func(ctx context.Context) (domain.Snapshot, error) {
		var lastErr error
		for _, src := range sources {
			snap, err := src.Snapshot(ctx)
			if err == nil {
				return snap, nil
			}
			if !errors.Is(err, domain.ErrNoSnapshot) {
				logger.Warn("snapshot source failed, trying next", "error", err)
				lastErr = err
			}
		}
		if lastErr != nil {
			return domain.Snapshot{}, lastErr
		}
		return domain.Snapshot{}, domain.ErrNoSnapshot
	})
}
