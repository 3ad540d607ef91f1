package projection

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
	httperr "github.com/kurslog-lab/project-kurslog/internal/core/errors"
)

// StatusHandler serves the current-status view, optionally filtered to one
// student via the path parameter.
func (s *Service) StatusHandler(c *gin.Context) {
	studentID := c.Param("student_id")

	rows, err := s.Status(c.Request.Context(), studentID)
	if err != nil {
		slog.Error("Failed to read status projection", "error", err, "student_id", studentID)
		writeInternalError(c, "Failed to read status")
		return
	}

	if rows == nil {
		rows = []v1.StatusRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// StatsHandler serves counts grouped by (course, year, semester, lastType).
func (s *Service) StatsHandler(c *gin.Context) {
	rows, err := s.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Failed to read stats", "error", err)
		writeInternalError(c, "Failed to read stats")
		return
	}

	if rows == nil {
		rows = []v1.StatRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// StatsTotalHandler serves counts grouped by (course, semester, lastType)
// across all years.
func (s *Service) StatsTotalHandler(c *gin.Context) {
	rows, err := s.StatsTotal(c.Request.Context())
	if err != nil {
		slog.Error("Failed to read total stats", "error", err)
		writeInternalError(c, "Failed to read stats")
		return
	}

	if rows == nil {
		rows = []v1.StatTotalRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// RebuildHandler triggers a full projection rebuild.
func (s *Service) RebuildHandler(c *gin.Context) {
	if err := s.Rebuild(c.Request.Context()); err != nil {
		if errors.Is(err, ErrRebuildInProgress) {
			c.JSON(http.StatusConflict, gin.H{"status": "rebuild already running"})
			return
		}
		writeInternalError(c, "Projection rebuild failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "rebuilt"})
}

func writeInternalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   msg,
	})
}
