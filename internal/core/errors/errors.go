package errors

// Ingestion rejection codes. These form the external contract of the
// ingestion boundary; each validation failure has exactly one code and
// is reported before any persistence happens.
const (
	CodeMissingEventID     = "missing_eventId"
	CodeMissingOccurredUTC = "missing_occurredUtc"
	CodeMissingRecordedUTC = "missing_recordedUtc"
	CodeMissingType        = "missing_type"
	CodeMissingName        = "missing_name"
	CodeMissingBirthdate   = "missing_birthdate"
	CodeMissingCity        = "missing_city"
	CodeMissingStudentID   = "missing_studentId"
	CodeMissingCourse      = "missing_course"
	CodeMissingYear        = "missing_year"
	CodeMissingSemester    = "missing_semester"

	// CodeRegistrationHasStudentID rejects registrations that carry a
	// client-supplied student id. Identity is always server-generated.
	CodeRegistrationHasStudentID = "student_registrert_must_not_include_studentId"

	CodeDuplicateEvent = "duplicate_event"
)

// HTTP-level error types for failures outside the ingestion contract.
const (
	HttpInternalError    = "internal_error"
	HttpInvalidJsonError = "invalid_json"
)

// ErrorResponse is the error response body for non-ingestion endpoints.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
