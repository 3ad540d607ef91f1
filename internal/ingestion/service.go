package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/kurslog-lab/project-kurslog/internal/core/storage"
)

// Service exposes the ingestion gate over HTTP.
type Service struct {
	gate             *Gate
	events           storage.EventStore
	maxBodySizeBytes int
}

func NewService(gate *Gate, events storage.EventStore, maxBodySizeMB int) *Service {
	if gate == nil {
		panic("ingestion: gate must not be nil")
	}
	if events == nil {
		panic("ingestion: event store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		gate:             gate,
		events:           events,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
	r.GET("/v1/events", s.ListEventsHandler)
}
