package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
	"github.com/kurslog-lab/project-kurslog/internal/core/storage"
)

// ErrRebuildInProgress is returned when a rebuild is requested while another
// one is still running. Rebuild is idempotent, so the caller can simply retry
// once the running rebuild finishes.
var ErrRebuildInProgress = errors.New("projection rebuild already in progress")

// Service serves the projected status view: per-student status, stats and
// the full rebuild. All reads go to the projection store; the event log is
// never consulted on the read path.
type Service struct {
	store storage.ProjectionStore

	rebuildMu sync.Mutex
}

// NewService creates a new projection service.
func NewService(store storage.ProjectionStore) *Service {
	if store == nil {
		panic("projection: store must not be nil")
	}
	return &Service{store: store}
}

// Status returns projection rows, optionally filtered to one student.
// Rows are ordered by (year, semester, course[, student_id]).
func (s *Service) Status(ctx context.Context, studentID string) ([]v1.StatusRow, error) {
	rows, err := s.store.ListStatus(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list status: %w", err)
	}
	return rows, nil
}

// Stats returns counts grouped by (course, year, semester, lastType).
func (s *Service) Stats(ctx context.Context) ([]v1.StatRow, error) {
	rows, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return rows, nil
}

// StatsTotal returns counts grouped by (course, semester, lastType) across
// all years.
func (s *Service) StatsTotal(ctx context.Context) ([]v1.StatTotalRow, error) {
	rows, err := s.store.StatsTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats total: %w", err)
	}
	return rows, nil
}

// Rebuild wipes and recomputes the projection from the event log. At most
// one rebuild runs at a time; the storage layer makes the wipe+replay atomic
// with respect to concurrent ingestion, so a failure leaves the previous
// projection in place and a re-run is always sufficient.
func (s *Service) Rebuild(ctx context.Context) error {
	if !s.rebuildMu.TryLock() {
		return ErrRebuildInProgress
	}
	defer s.rebuildMu.Unlock()

	started := time.Now()
	if err := s.store.Rebuild(ctx); err != nil {
		slog.Error("Projection rebuild failed", "error", err, "duration", time.Since(started))
		return fmt.Errorf("rebuild projection: %w", err)
	}

	slog.Info("Projection rebuild complete", "duration", time.Since(started))
	return nil
}

// RegisterRoutes registers the projection query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/status", s.StatusHandler)
	r.GET("/v1/status/:student_id", s.StatusHandler)
	r.GET("/v1/stats", s.StatsHandler)
	r.GET("/v1/stats/total", s.StatsTotalHandler)
	r.POST("/v1/projection/rebuild", s.RebuildHandler)
}
