package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/notfall/dispatch-engine/internal/models"
	"github.com/notfall/dispatch-engine/internal/rl"
)

// Configuration errors surfaced at engine construction or ranking time.
var (
	ErrEmptyWeights = errors.New("ranking weight vector is empty")
	ErrWeightCount  = errors.New("ranking weight vector has wrong length")
)

// DefaultWeights applies to (distance, travel_time, dynamic_rate,
// specialization, time_slot_match, rating).
var DefaultWeights = []float64{0.3, 0.2, 0.2, 0.1, 0.1, 0.1}

// Engine combines normalized features with the RL adjustment into one
// final score per candidate and orders candidates per task.
type Engine struct {
	extractor *Extractor
	adjuster  *rl.Adjuster
	weights   []float64
}

// NewEngine creates a ranking engine. The weight vector must carry one
// entry per feature; a bad vector is a setup defect.
func NewEngine(extractor *Extractor, adjuster *rl.Adjuster, weights []float64) (*Engine, error) {
	if len(weights) == 0 {
		return nil, ErrEmptyWeights
	}
	if len(weights) != models.FeatureCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWeightCount, len(weights), models.FeatureCount)
	}
	return &Engine{
		extractor: extractor,
		adjuster:  adjuster,
		weights:   weights,
	}, nil
}

// Rank extracts, normalizes and scores the task×engineer cross-product,
// returning one descending-ranked candidate list per task id. Equal
// scores order by ascending engineer id. Inputs are never mutated.
//
// The RL state of a candidate is its row index in the batch, so the
// adjuster's table must be dimensioned for len(tasks)*len(engineers)
// rows; a smaller table is a configuration error.
func (e *Engine) Rank(ctx context.Context, tasks []models.Task, engineers []models.Engineer) (map[string][]models.MatchCandidate, error) {
	candidates := e.extractor.ExtractBatch(ctx, tasks, engineers)
	normalized := Normalize(candidates)

	for i := range candidates {
		row := normalized[i]

		// Distance and travel time are penalties: invert their sign
		// after normalization so closer and faster candidates rank
		// higher under the positive weights.
		row[models.FeatureDistance] = -row[models.FeatureDistance]
		row[models.FeatureTravelTime] = -row[models.FeatureTravelTime]

		var ml float64
		for j := 0; j < models.FeatureCount; j++ {
			ml += row[j] * e.weights[j]
		}

		adjustment, err := e.adjuster.Adjustment(i)
		if err != nil {
			return nil, fmt.Errorf("rl adjustment for row %d: %w", i, err)
		}

		candidates[i].MLScore = ml
		candidates[i].RLAdjustment = adjustment
		candidates[i].FinalScore = ml + adjustment
	}

	ranked := make(map[string][]models.MatchCandidate, len(tasks))
	for _, c := range candidates {
		ranked[c.TaskID] = append(ranked[c.TaskID], c)
	}

	for taskID := range ranked {
		list := ranked[taskID]
		sort.Slice(list, func(i, j int) bool {
			if list[i].FinalScore != list[j].FinalScore {
				return list[i].FinalScore > list[j].FinalScore
			}
			return list[i].EngineerID < list[j].EngineerID
		})
	}

	return ranked, nil
}

// Reward feeds an observed assignment outcome back into the adjuster
// for the given candidate row.
func (e *Engine) Reward(row, action int, reward float64, nextRow int) error {
	return e.adjuster.UpdateQValue(row, action, reward, nextRow)
}
