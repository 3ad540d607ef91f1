package v1

// StatusKey uniquely identifies one enrollment instance: one student in one
// course run.
type StatusKey struct {
	StudentID string
	Course    string
	Year      int
	Semester  int
}

// StatusCandidate is the snapshot a single event proposes for a status key.
// The projection keeps the candidate with the greatest
// (LastOccurredUTC, LastRecordedUTC) pair; domain time is authoritative,
// ingestion time only breaks ties.
type StatusCandidate struct {
	LastType        string
	LastOccurredUTC string
	LastRecordedUTC string
	LastEventID     string
	Reason          string
}

// NewerThan reports whether the candidate wins against the currently
// projected snapshot under the two-level ordering rule. Comparison is
// lexicographic over canonical UTC strings.
func (c StatusCandidate) NewerThan(row StatusCandidate) bool {
	if c.LastOccurredUTC != row.LastOccurredUTC {
		return c.LastOccurredUTC > row.LastOccurredUTC
	}
	return c.LastRecordedUTC > row.LastRecordedUTC
}

// StatusRow is one projected current-status row.
type StatusRow struct {
	StudentID       string `json:"studentId"`
	Course          string `json:"course"`
	Year            int    `json:"year"`
	Semester        int    `json:"semester"`
	LastType        string `json:"lastType"`
	LastOccurredUTC string `json:"lastOccurredUtc"`
	LastRecordedUTC string `json:"lastRecordedUtc"`
	LastEventID     string `json:"lastEventId"`
	Reason          string `json:"reason,omitempty"`
}

// StatRow is one (course, year, semester, lastType) count bucket.
type StatRow struct {
	Course   string `json:"course"`
	Year     int    `json:"year"`
	Semester int    `json:"semester"`
	LastType string `json:"lastType"`
	Count    int64  `json:"count"`
}

// StatTotalRow is one (course, semester, lastType) count bucket across all years.
type StatTotalRow struct {
	Course   string `json:"course"`
	Semester int    `json:"semester"`
	LastType string `json:"lastType"`
	Count    int64  `json:"count"`
}
