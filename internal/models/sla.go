package models

import "time"

// AlertCategory classifies the severity of an SLA alert
type AlertCategory string

const (
	CategoryInfo     AlertCategory = "info"
	CategoryWarning  AlertCategory = "warning"
	CategoryCritical AlertCategory = "critical"
)

// DefaultEscalationBase is the escalation level a fresh alert starts at.
const DefaultEscalationBase = 2

// SLARecord captures the compliance outcome of one completed task
type SLARecord struct {
	TaskID          string        `json:"task_id"`
	Deadline        string        `json:"deadline"`
	CompletionTime  string        `json:"completion_time"`
	ComplianceScore float64       `json:"compliance_score"`
	Category        AlertCategory `json:"category,omitempty"`
	EscalationLevel int           `json:"escalation_level"`

	// Degraded marks a score produced from unparseable timestamps, so
	// monitoring can tell bad data from a genuine 24h+ breach.
	Degraded bool `json:"degraded,omitempty"`
}

// Alert is a notification raised for a non-compliant task
type Alert struct {
	ID              string        `json:"id"`
	TaskID          string        `json:"task_id"`
	Message         string        `json:"message"`
	Category        AlertCategory `json:"category"`
	EscalationLevel int           `json:"escalation_level"`
	CreatedAt       time.Time     `json:"created_at"`
}

// SLAReport aggregates compliance across a batch of completed tasks
type SLAReport struct {
	TotalTasks        int         `json:"total_tasks"`
	CompliantTasks    int         `json:"compliant_tasks"`
	ComplianceRate    float64     `json:"compliance_rate"`
	AverageCompliance float64     `json:"average_compliance"`
	NonCompliant      []SLARecord `json:"non_compliant_tasks"`
}
