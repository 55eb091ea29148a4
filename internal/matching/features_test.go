package matching

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/notfall/dispatch-engine/internal/geo"
	"github.com/notfall/dispatch-engine/internal/models"
)

// stubEstimator serves canned travel legs and can fail on demand
type stubEstimator struct {
	legs map[string]geo.Estimate
	err  error
}

func (s *stubEstimator) Estimate(ctx context.Context, origin, destination string) (geo.Estimate, error) {
	if s.err != nil {
		return geo.Estimate{}, s.err
	}
	if est, ok := s.legs[origin+"|"+destination]; ok {
		return est, nil
	}
	return geo.Estimate{}, fmt.Errorf("no leg %s -> %s", origin, destination)
}

func TestDynamicRate(t *testing.T) {
	got := DynamicRate(50, models.Urgent, 10)
	want := 50 * 1.2 * 1.10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("urgent rate: got %v, want %v", got, want)
	}

	got = DynamicRate(50, models.NonUrgent, 0)
	if got != 50 {
		t.Errorf("base rate: got %v, want 50", got)
	}
}

func TestSpecializationScore(t *testing.T) {
	certs := []string{"plumbing_cert", "gas_safe"}

	if got := SpecializationScore(certs, []string{"plumbing_cert", "gas_safe", "hvac_cert", "electrical_cert"}); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := SpecializationScore(certs, nil); got != 0 {
		t.Errorf("empty requirements: expected 0, got %v", got)
	}
	if got := SpecializationScore(nil, []string{"plumbing_cert"}); got != 0 {
		t.Errorf("no certifications: expected 0, got %v", got)
	}
}

func TestTimeSlotMatch(t *testing.T) {
	schedule := []string{"2024-01-05 09:00-12:00", "2024-01-05 14:00-17:00"}

	if got := TimeSlotMatch("09:00-12:00", schedule); got != 1 {
		t.Errorf("expected slot match, got %v", got)
	}
	if got := TimeSlotMatch("18:00-20:00", schedule); got != 0 {
		t.Errorf("expected no match, got %v", got)
	}
	if got := TimeSlotMatch("", schedule); got != 0 {
		t.Errorf("empty slot: expected 0, got %v", got)
	}
}

func TestExtractBatchRowOrderAndFeatures(t *testing.T) {
	estimator := &stubEstimator{legs: map[string]geo.Estimate{
		"N1|E2": {TravelTimeMinutes: 20, DistanceKm: 8},
	}}
	extractor := NewExtractor(estimator, 4)

	tasks := []models.Task{
		{ID: "t1", Trade: "plumbing", Location: "N1", Urgency: models.Urgent, Requirements: []string{"plumbing_cert"}},
	}
	engineers := []models.Engineer{
		{ID: "e1", Location: "ZZ", HourlyRate: 40, ExperienceYears: 5, Rating: 3.5},
		{ID: "e2", Location: "E2", HourlyRate: 60, ExperienceYears: 10, Rating: 4.5, Certifications: []string{"plumbing_cert"}},
	}

	candidates := extractor.ExtractBatch(context.Background(), tasks, engineers)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	// Task-major row order: row = taskIndex*len(engineers)+engineerIndex.
	if candidates[0].EngineerID != "e1" || candidates[1].EngineerID != "e2" {
		t.Fatalf("unexpected row order: %s, %s", candidates[0].EngineerID, candidates[1].EngineerID)
	}

	// e1's location has no travel leg: sentinel fallback.
	if candidates[0].Distance != models.SentinelDistanceKm || candidates[0].TravelTime != models.SentinelTravelTimeMinute {
		t.Errorf("expected sentinel pair for e1, got (%v, %v)", candidates[0].Distance, candidates[0].TravelTime)
	}

	if candidates[1].Distance != 8 || candidates[1].TravelTime != 20 {
		t.Errorf("expected (8, 20) for e2, got (%v, %v)", candidates[1].Distance, candidates[1].TravelTime)
	}
	if candidates[1].Specialization != 1 {
		t.Errorf("expected full specialization for e2, got %v", candidates[1].Specialization)
	}
	wantRate := 60 * 1.2 * 1.10
	if math.Abs(candidates[1].DynamicRate-wantRate) > 1e-9 {
		t.Errorf("expected dynamic rate %v, got %v", wantRate, candidates[1].DynamicRate)
	}
	if candidates[1].Rating != 4.5 {
		t.Errorf("expected rating 4.5, got %v", candidates[1].Rating)
	}
}

func TestExtractBatchLookupFailureIsAbsorbed(t *testing.T) {
	estimator := &stubEstimator{err: geo.ErrLookupFailed}
	extractor := NewExtractor(estimator, 2)

	tasks := []models.Task{{ID: "t1", Location: "A", Urgency: models.NonUrgent}}
	engineers := []models.Engineer{{ID: "e1", Location: "B", HourlyRate: 30}}

	candidates := extractor.ExtractBatch(context.Background(), tasks, engineers)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Distance != models.SentinelDistanceKm {
		t.Errorf("expected sentinel distance, got %v", candidates[0].Distance)
	}
}

func TestNormalizeZeroMeanUnitVariance(t *testing.T) {
	candidates := []models.MatchCandidate{
		{Distance: 10, TravelTime: 30, DynamicRate: 50, Specialization: 1, TimeSlotMatch: 1, Rating: 5},
		{Distance: 20, TravelTime: 60, DynamicRate: 70, Specialization: 0, TimeSlotMatch: 1, Rating: 3},
		{Distance: 30, TravelTime: 90, DynamicRate: 90, Specialization: 0.5, TimeSlotMatch: 1, Rating: 4},
	}

	rows := Normalize(candidates)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	for j := 0; j < models.FeatureCount; j++ {
		var mean, variance float64
		for i := range rows {
			mean += rows[i][j]
		}
		mean /= float64(len(rows))
		for i := range rows {
			d := rows[i][j] - mean
			variance += d * d
		}
		variance /= float64(len(rows))

		if math.Abs(mean) > 1e-9 {
			t.Errorf("feature %d: mean %v, want 0", j, mean)
		}
		// Constant column (time_slot_match) normalizes to all zeros.
		if j == models.FeatureTimeSlotMatch {
			if variance != 0 {
				t.Errorf("constant feature: variance %v, want 0", variance)
			}
			continue
		}
		if math.Abs(variance-1) > 1e-9 {
			t.Errorf("feature %d: variance %v, want 1", j, variance)
		}
	}

	for i := range rows {
		if rows[i][models.FeatureTimeSlotMatch] != 0 {
			t.Errorf("row %d: constant feature should normalize to 0, got %v", i, rows[i][models.FeatureTimeSlotMatch])
		}
	}

	// Inputs untouched.
	if candidates[0].Distance != 10 {
		t.Errorf("normalize mutated its input: %v", candidates[0].Distance)
	}
}

func TestNormalizeEmptyBatch(t *testing.T) {
	if rows := Normalize(nil); len(rows) != 0 {
		t.Errorf("expected no rows for empty batch, got %d", len(rows))
	}
}
