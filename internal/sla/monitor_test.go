package sla

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notfall/dispatch-engine/internal/models"
)

// stubDispatcher records sent alerts and can fail a set number of times
type stubDispatcher struct {
	mu       sync.Mutex
	sent     []models.Alert
	failures int
}

func (d *stubDispatcher) Send(ctx context.Context, alert models.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("connection refused")
	}
	d.sent = append(d.sent, alert)
	return nil
}

func newTestMonitor(t *testing.T, threshold float64, dispatcher Dispatcher) *Monitor {
	t.Helper()
	monitor, err := NewMonitor(threshold, dispatcher, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	return monitor
}

func TestNewMonitorRejectsBadThreshold(t *testing.T) {
	for _, threshold := range []float64{0, -0.1, 1.5} {
		if _, err := NewMonitor(threshold, nil, 3, time.Second); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: expected ErrInvalidThreshold, got %v", threshold, err)
		}
	}
}

func TestCategorise(t *testing.T) {
	monitor := newTestMonitor(t, 0.8, nil)

	cases := []struct {
		score float64
		want  models.AlertCategory
	}{
		{0.9, models.CategoryInfo},
		{0.8, models.CategoryInfo},
		{0.79, models.CategoryWarning},
		{0.5, models.CategoryWarning}, // 0.5 >= 0.4 but < 0.8
		{0.4, models.CategoryWarning},
		{0.39, models.CategoryCritical},
		{0.0, models.CategoryCritical},
	}

	for _, tc := range cases {
		if got := monitor.Categorise(tc.score); got != tc.want {
			t.Errorf("Categorise(%v): expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestEscalateAlert(t *testing.T) {
	alert := models.Alert{
		Message:         "SLA breached",
		EscalationLevel: 2,
	}

	EscalateAlert(&alert)

	if alert.EscalationLevel != 3 {
		t.Errorf("expected level 3, got %d", alert.EscalationLevel)
	}
	if count := strings.Count(alert.Message, "[Escalated to Level 3]"); count != 1 {
		t.Errorf("expected exactly one level-3 marker, got %d in %q", count, alert.Message)
	}

	// Escalation is not idempotent: a second call keeps climbing.
	EscalateAlert(&alert)
	if alert.EscalationLevel != 4 {
		t.Errorf("expected level 4 after second call, got %d", alert.EscalationLevel)
	}
	if !strings.Contains(alert.Message, "[Escalated to Level 4]") {
		t.Errorf("expected level-4 marker, got %q", alert.Message)
	}
}

func TestRunAggregatesAndClassifies(t *testing.T) {
	dispatcher := &stubDispatcher{}
	monitor := newTestMonitor(t, 0.8, dispatcher)

	records := []models.SLARecord{
		{TaskID: "t-ok", Deadline: "2024-01-01T10:00:00", CompletionTime: "2024-01-01T09:00:00"},
		// 12h late -> 0.5 -> warning under threshold 0.8.
		{TaskID: "t-warn", Deadline: "2024-01-01T10:00:00", CompletionTime: "2024-01-01T22:00:00"},
		// 2 days late -> 0.0 -> critical, escalated.
		{TaskID: "t-crit", Deadline: "2024-01-01T10:00:00", CompletionTime: "2024-01-03T10:00:00"},
	}

	report, failures := monitor.Run(context.Background(), records)

	if report.TotalTasks != 3 || report.CompliantTasks != 1 {
		t.Fatalf("expected 1/3 compliant, got %d/%d", report.CompliantTasks, report.TotalTasks)
	}
	if math.Abs(report.ComplianceRate-1.0/3.0) > 1e-9 {
		t.Errorf("expected compliance rate 1/3, got %v", report.ComplianceRate)
	}
	if len(report.NonCompliant) != 2 {
		t.Fatalf("expected 2 non-compliant records, got %d", len(report.NonCompliant))
	}
	if report.NonCompliant[0].Category != models.CategoryWarning {
		t.Errorf("t-warn: expected warning, got %s", report.NonCompliant[0].Category)
	}
	if report.NonCompliant[1].Category != models.CategoryCritical {
		t.Errorf("t-crit: expected critical, got %s", report.NonCompliant[1].Category)
	}
	if len(failures) != 0 {
		t.Errorf("expected no delivery failures, got %+v", failures)
	}

	// One alert per non-compliant record; only the critical one is
	// escalated past the base level.
	if len(dispatcher.sent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(dispatcher.sent))
	}
	warnAlert, critAlert := dispatcher.sent[0], dispatcher.sent[1]
	if warnAlert.EscalationLevel != models.DefaultEscalationBase {
		t.Errorf("warning alert: expected base level %d, got %d", models.DefaultEscalationBase, warnAlert.EscalationLevel)
	}
	if critAlert.EscalationLevel != models.DefaultEscalationBase+1 {
		t.Errorf("critical alert: expected level %d, got %d", models.DefaultEscalationBase+1, critAlert.EscalationLevel)
	}
	if !strings.Contains(critAlert.Message, "[Escalated to Level 3]") {
		t.Errorf("critical alert missing escalation marker: %q", critAlert.Message)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	monitor := newTestMonitor(t, 0.8, nil)

	report, failures := monitor.Run(context.Background(), nil)
	if report.TotalTasks != 0 || report.ComplianceRate != 0 {
		t.Errorf("empty batch: expected zero report, got %+v", report)
	}
	if len(failures) != 0 {
		t.Errorf("empty batch: expected no failures, got %+v", failures)
	}
}

func TestDispatchRetriesThenRecovers(t *testing.T) {
	// Two failures then success: within the 3-attempt budget.
	dispatcher := &stubDispatcher{failures: 2}
	monitor := newTestMonitor(t, 0.8, dispatcher)

	records := []models.SLARecord{
		{TaskID: "t-late", Deadline: "2024-01-01T10:00:00", CompletionTime: "2024-01-01T22:00:00"},
	}

	_, failures := monitor.Run(context.Background(), records)
	if len(failures) != 0 {
		t.Fatalf("expected recovery within retries, got %+v", failures)
	}
	if len(dispatcher.sent) != 1 {
		t.Errorf("expected 1 delivered alert, got %d", len(dispatcher.sent))
	}
}

func TestDispatchExhaustionIsReported(t *testing.T) {
	dispatcher := &stubDispatcher{failures: 10}
	monitor := newTestMonitor(t, 0.8, dispatcher)

	records := []models.SLARecord{
		{TaskID: "t-late", Deadline: "2024-01-01T10:00:00", CompletionTime: "2024-01-01T22:00:00"},
	}

	_, failures := monitor.Run(context.Background(), records)
	if len(failures) != 1 {
		t.Fatalf("expected 1 delivery failure, got %d", len(failures))
	}
	if failures[0].TaskID != "t-late" || failures[0].Attempts != 3 {
		t.Errorf("unexpected failure report: %+v", failures[0])
	}
	if failures[0].LastErr == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestDegradedRecordIsClassifiedCritical(t *testing.T) {
	monitor := newTestMonitor(t, 0.8, &stubDispatcher{})

	records := []models.SLARecord{
		{TaskID: "t-bad", Deadline: "garbage", CompletionTime: "2024-01-01T10:00:00"},
	}

	report, _ := monitor.Run(context.Background(), records)
	if len(report.NonCompliant) != 1 {
		t.Fatalf("expected 1 non-compliant record, got %d", len(report.NonCompliant))
	}
	record := report.NonCompliant[0]
	if record.Category != models.CategoryCritical {
		t.Errorf("expected critical category, got %s", record.Category)
	}
	if !record.Degraded {
		t.Error("expected degraded flag on unparseable record")
	}
}
