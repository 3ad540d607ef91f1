package ingestion

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
	httperr "github.com/kurslog-lab/project-kurslog/internal/core/errors"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
)

// IngestResponse is the wire shape of an ingestion outcome.
type IngestResponse struct {
	Accepted  bool   `json:"accepted"`
	StudentID string `json:"studentId,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// IngestHandler handles HTTP POST requests for event ingestion.
func (s *Service) IngestHandler(c *gin.Context) {
	env, ok := s.parseEnvelope(c)
	if !ok {
		return
	}

	result, err := s.gate.Ingest(c.Request.Context(), env)
	if err != nil {
		slog.Error("Ingestion failed", "error", err, "event_id", env.EventID)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to ingest event",
		})
		return
	}

	switch {
	case result.Accepted:
		c.JSON(http.StatusAccepted, IngestResponse{
			Accepted:  true,
			StudentID: result.StudentID,
		})
	case result.Duplicate:
		c.JSON(http.StatusConflict, IngestResponse{
			Accepted:  false,
			StudentID: result.StudentID,
			ErrorCode: result.ErrorCode,
		})
	default:
		c.JSON(http.StatusBadRequest, IngestResponse{
			Accepted:  false,
			ErrorCode: result.ErrorCode,
		})
	}
}

// parseEnvelope reads the raw request body and extracts the typed envelope.
// The raw bytes are preserved verbatim on the envelope for audit. Writes the
// error response itself and returns ok=false on failure.
func (s *Service) parseEnvelope(c *gin.Context) (v1.Envelope, bool) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   msgReadBodyFailed,
		})
		return v1.Envelope{}, false
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Request body exceeds maximum allowed size",
			Details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		})
		return v1.Envelope{}, false
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &doc); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   msgInvalidJSON,
		})
		return v1.Envelope{}, false
	}

	env := v1.Envelope{
		EventID:     stringField(doc, "eventId"),
		Type:        stringField(doc, "type"),
		OccurredUTC: stringField(doc, "occurredUtc"),
		RecordedUTC: stringField(doc, "recordedUtc"),
		StudentID:   stringField(doc, "studentId"),
		Course:      stringField(doc, "course"),
		Year:        intField(doc, "year"),
		Semester:    intField(doc, "semester"),
		Name:        stringField(doc, "name"),
		Birthdate:   stringField(doc, "birthdate"),
		City:        stringField(doc, "city"),
		Reason:      stringField(doc, "reason"),
		RawPayload:  json.RawMessage(bodyBytes),
	}
	return env, true
}

// ListEventsHandler returns the full event log in canonical order.
func (s *Service) ListEventsHandler(c *gin.Context) {
	events, err := s.events.ListEvents(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list events",
		})
		return
	}

	records := make([]v1.EventRecord, 0, len(events))
	for _, evt := range events {
		records = append(records, evt.Record())
	}
	c.JSON(http.StatusOK, records)
}

// stringField extracts a string value; non-string values count as absent.
func stringField(doc map[string]interface{}, key string) string {
	v, ok := doc[key].(string)
	if !ok {
		return ""
	}
	return v
}

// intField extracts an integer that bulk imports may submit as a JSON number
// or a numeric string. Anything else counts as absent.
func intField(doc map[string]interface{}, key string) *int {
	switch v := doc[key].(type) {
	case float64:
		n := int(v)
		if float64(n) != v {
			return nil
		}
		return &n
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}
