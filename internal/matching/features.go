package matching

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/notfall/dispatch-engine/internal/geo"
	"github.com/notfall/dispatch-engine/internal/models"
)

// Extractor computes raw feature vectors for task/engineer pairs.
// Pairs are independent, so a batch fans out over a bounded worker
// pool; each worker only reads its task and engineer snapshots and
// performs one travel lookup.
type Extractor struct {
	estimator geo.Estimator
	workers   int
}

// NewExtractor creates an extractor with the given pool size
func NewExtractor(estimator geo.Estimator, workers int) *Extractor {
	if workers <= 0 {
		workers = 8
	}
	return &Extractor{
		estimator: estimator,
		workers:   workers,
	}
}

// ExtractBatch scores the full task×engineer cross-product and returns
// candidates in task-major order: the row index of a candidate is
// taskIndex*len(engineers)+engineerIndex, which keys its RL state.
func (e *Extractor) ExtractBatch(ctx context.Context, tasks []models.Task, engineers []models.Engineer) []models.MatchCandidate {
	total := len(tasks) * len(engineers)
	candidates := make([]models.MatchCandidate, total)
	if total == 0 {
		return candidates
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				task := tasks[row/len(engineers)]
				engineer := engineers[row%len(engineers)]
				candidates[row] = e.extractPair(ctx, task, engineer)
			}
		}()
	}

	for row := 0; row < total; row++ {
		jobs <- row
	}
	close(jobs)
	wg.Wait()

	return candidates
}

// extractPair computes the six raw features for one pair
func (e *Extractor) extractPair(ctx context.Context, task models.Task, engineer models.Engineer) models.MatchCandidate {
	distance := models.SentinelDistanceKm
	travelTime := models.SentinelTravelTimeMinute

	est, err := e.estimator.Estimate(ctx, task.Location, engineer.Location)
	if err != nil {
		// Degraded input: the pair stays rankable on the sentinel.
		slog.Warn("travel lookup degraded",
			"task_id", task.ID,
			"engineer_id", engineer.ID,
			"error", err,
		)
	} else {
		distance = est.DistanceKm
		travelTime = est.TravelTimeMinutes
	}

	return models.MatchCandidate{
		TaskID:         task.ID,
		EngineerID:     engineer.ID,
		Distance:       distance,
		TravelTime:     travelTime,
		DynamicRate:    DynamicRate(engineer.HourlyRate, task.Urgency, engineer.ExperienceYears),
		Specialization: SpecializationScore(engineer.Certifications, task.Requirements),
		TimeSlotMatch:  TimeSlotMatch(task.TimeSlot, engineer.Schedule),
		Rating:         engineer.Rating,
	}
}

// DynamicRate prices an engineer for a task: urgent work carries a 20%
// premium and each year of experience adds 1%.
func DynamicRate(hourlyRate float64, urgency models.Urgency, experienceYears float64) float64 {
	urgencyMultiplier := 1.0
	if urgency == models.Urgent {
		urgencyMultiplier = 1.2
	}
	return hourlyRate * urgencyMultiplier * (1 + experienceYears/100)
}

// SpecializationScore is the fraction of the task's requirements the
// engineer holds certifications for, 0 when nothing is required.
func SpecializationScore(certifications, requirements []string) float64 {
	if len(requirements) == 0 {
		return 0
	}
	held := make(map[string]bool, len(certifications))
	for _, c := range certifications {
		held[c] = true
	}
	matched := 0
	for _, r := range requirements {
		if held[r] {
			matched++
		}
	}
	return float64(matched) / float64(len(requirements))
}

// TimeSlotMatch returns 1 when the task's requested slot appears
// within any of the engineer's scheduled slots, else 0.
func TimeSlotMatch(taskSlot string, schedule []string) float64 {
	if taskSlot == "" {
		return 0
	}
	for _, slot := range schedule {
		if strings.Contains(slot, taskSlot) {
			return 1
		}
	}
	return 0
}
