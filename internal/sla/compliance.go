package sla

import (
	"log/slog"
	"time"

	"github.com/notfall/dispatch-engine/internal/models"
)

// secondsPerDay is the window over which compliance decays to zero.
const secondsPerDay = 24 * 60 * 60

// timestamp layouts accepted for deadlines and completion times
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseTimestamp tries the accepted layouts in order
func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Compliance scores one task against its deadline. On-time completion
// scores 1.0; lateness decays the score linearly to 0 over 24 hours.
// Malformed timestamps degrade to 0.0 with the degraded flag set and
// never produce an error.
func Compliance(deadline, completionTime string) (score float64, degraded bool) {
	d, ok := parseTimestamp(deadline)
	if !ok {
		slog.Warn("unparseable deadline, scoring 0", "deadline", deadline)
		return 0, true
	}
	c, ok := parseTimestamp(completionTime)
	if !ok {
		slog.Warn("unparseable completion time, scoring 0", "completion_time", completionTime)
		return 0, true
	}

	if !c.After(d) {
		return 1.0, false
	}

	delay := c.Sub(d).Seconds()
	score = 1 - delay/secondsPerDay
	if score < 0 {
		score = 0
	}
	return score, false
}

// Evaluate fills in the compliance score of one record
func Evaluate(record models.SLARecord) models.SLARecord {
	record.ComplianceScore, record.Degraded = Compliance(record.Deadline, record.CompletionTime)
	return record
}
