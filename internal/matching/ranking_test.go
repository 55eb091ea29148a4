package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/notfall/dispatch-engine/internal/geo"
	"github.com/notfall/dispatch-engine/internal/models"
	"github.com/notfall/dispatch-engine/internal/rl"
)

func newTestEngine(t *testing.T, estimator geo.Estimator, states int) *Engine {
	t.Helper()

	// Single action keeps the RL adjustment at 0 so ranking tests
	// exercise the feature score alone.
	adjuster, err := rl.NewAdjuster(rl.Config{NumStates: states, NumActions: 1})
	if err != nil {
		t.Fatalf("NewAdjuster failed: %v", err)
	}

	engine, err := NewEngine(NewExtractor(estimator, 4), adjuster, DefaultWeights)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestNewEngineRejectsBadWeights(t *testing.T) {
	adjuster, err := rl.NewAdjuster(rl.Config{NumStates: 1, NumActions: 1})
	if err != nil {
		t.Fatalf("NewAdjuster failed: %v", err)
	}
	extractor := NewExtractor(&stubEstimator{}, 1)

	if _, err := NewEngine(extractor, adjuster, nil); !errors.Is(err, ErrEmptyWeights) {
		t.Errorf("expected ErrEmptyWeights, got %v", err)
	}
	if _, err := NewEngine(extractor, adjuster, []float64{0.5, 0.5}); !errors.Is(err, ErrWeightCount) {
		t.Errorf("expected ErrWeightCount, got %v", err)
	}
}

func TestRankCloserEngineerWins(t *testing.T) {
	// Two engineers identical except travel cost: the closer one must
	// rank first under the inverted distance/travel sign convention.
	estimator := &stubEstimator{legs: map[string]geo.Estimate{
		"TASK|NEAR": {TravelTimeMinutes: 10, DistanceKm: 3},
		"TASK|FAR":  {TravelTimeMinutes: 90, DistanceKm: 45},
	}}
	engine := newTestEngine(t, estimator, 2)

	tasks := []models.Task{{ID: "t1", Trade: "plumbing", Location: "TASK", Urgency: models.NonUrgent}}
	engineers := []models.Engineer{
		{ID: "e-far", Location: "FAR", HourlyRate: 50, Rating: 4.0},
		{ID: "e-near", Location: "NEAR", HourlyRate: 50, Rating: 4.0},
	}

	ranked, err := engine.Rank(context.Background(), tasks, engineers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	list := ranked["t1"]
	if len(list) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(list))
	}
	if list[0].EngineerID != "e-near" {
		t.Errorf("expected e-near ranked first, got %s", list[0].EngineerID)
	}
	if list[0].FinalScore <= list[1].FinalScore {
		t.Errorf("expected strictly descending scores, got %v then %v", list[0].FinalScore, list[1].FinalScore)
	}
}

func TestRankTieBreaksByEngineerID(t *testing.T) {
	// All features identical: every score ties, so order falls back
	// to ascending engineer id.
	estimator := &stubEstimator{legs: map[string]geo.Estimate{
		"TASK|SAME": {TravelTimeMinutes: 15, DistanceKm: 5},
	}}
	engine := newTestEngine(t, estimator, 3)

	tasks := []models.Task{{ID: "t1", Trade: "plumbing", Location: "TASK", Urgency: models.NonUrgent}}
	engineers := []models.Engineer{
		{ID: "e-c", Location: "SAME", HourlyRate: 50, Rating: 4.0},
		{ID: "e-a", Location: "SAME", HourlyRate: 50, Rating: 4.0},
		{ID: "e-b", Location: "SAME", HourlyRate: 50, Rating: 4.0},
	}

	ranked, err := engine.Rank(context.Background(), tasks, engineers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	list := ranked["t1"]
	want := []string{"e-a", "e-b", "e-c"}
	for i, id := range want {
		if list[i].EngineerID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, list[i].EngineerID)
		}
	}
}

func TestRankGroupsPerTask(t *testing.T) {
	estimator := &stubEstimator{legs: map[string]geo.Estimate{
		"A|X": {TravelTimeMinutes: 10, DistanceKm: 2},
		"B|X": {TravelTimeMinutes: 20, DistanceKm: 7},
	}}
	engine := newTestEngine(t, estimator, 4)

	tasks := []models.Task{
		{ID: "t1", Trade: "plumbing", Location: "A", Urgency: models.NonUrgent},
		{ID: "t2", Trade: "electrical", Location: "B", Urgency: models.Urgent},
	}
	engineers := []models.Engineer{
		{ID: "e1", Location: "X", HourlyRate: 40, Rating: 4.2},
		{ID: "e2", Location: "Y", HourlyRate: 55, Rating: 3.9},
	}

	ranked, err := engine.Rank(context.Background(), tasks, engineers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("expected 2 task groups, got %d", len(ranked))
	}
	for _, taskID := range []string{"t1", "t2"} {
		list := ranked[taskID]
		if len(list) != 2 {
			t.Errorf("task %s: expected 2 candidates, got %d", taskID, len(list))
		}
		for _, c := range list {
			if c.TaskID != taskID {
				t.Errorf("task %s: candidate carries task %s", taskID, c.TaskID)
			}
			if c.FinalScore != c.MLScore+c.RLAdjustment {
				t.Errorf("final score %v != ml %v + rl %v", c.FinalScore, c.MLScore, c.RLAdjustment)
			}
		}
	}
}

func TestRankUndersizedTableIsConfigurationError(t *testing.T) {
	estimator := &stubEstimator{legs: map[string]geo.Estimate{}}
	engine := newTestEngine(t, estimator, 1)

	tasks := []models.Task{{ID: "t1", Location: "A", Urgency: models.NonUrgent}}
	engineers := []models.Engineer{
		{ID: "e1", Location: "B", HourlyRate: 30},
		{ID: "e2", Location: "C", HourlyRate: 30},
	}

	if _, err := engine.Rank(context.Background(), tasks, engineers); !errors.Is(err, rl.ErrStateOutOfRange) {
		t.Errorf("expected ErrStateOutOfRange, got %v", err)
	}
}
