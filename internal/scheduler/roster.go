package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/notfall/dispatch-engine/internal/models"
)

var (
	ErrEngineerNotFound = errors.New("engineer not found")
	ErrNotBusy          = errors.New("engineer is not busy")
)

// Roster is the live engineer availability registry. All assignment
// decisions run inside its lock: the filter-sort-select-flip sequence
// is one critical section, so two concurrently scheduled tasks can
// never reserve the same engineer.
type Roster struct {
	mu        sync.Mutex
	engineers map[string]*models.Engineer
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		engineers: make(map[string]*models.Engineer),
	}
}

// Register adds or replaces an engineer
func (r *Roster) Register(e models.Engineer) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid engineer: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.engineers[e.ID] = &e
	return nil
}

// Unregister removes an engineer from the roster
func (r *Roster) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engineers, id)
}

// Get returns a copy of one engineer
func (r *Roster) Get(id string) (models.Engineer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engineers[id]
	if !ok {
		return models.Engineer{}, false
	}
	return *e, true
}

// Snapshot returns copies of all engineers
func (r *Roster) Snapshot() []models.Engineer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Engineer, 0, len(r.engineers))
	for _, e := range r.engineers {
		out = append(out, *e)
	}
	return out
}

// Release flips a busy engineer back to available. Reserve side
// effects are final; this is the one explicit reversal path.
func (r *Roster) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engineers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEngineerNotFound, id)
	}
	if e.Availability != models.Busy {
		return fmt.Errorf("%w: %s", ErrNotBusy, id)
	}
	e.Availability = models.Available
	return nil
}

// reserveBest selects the best suitable engineer for a task and
// atomically flips them to busy. Survivors of the trade+availability
// filter order by rating descending, then proximity ascending with
// unknown proximity last. hadTrade reports whether any engineer holds
// the trade at all, so callers can distinguish the reschedule reasons.
func (r *Roster) reserveBest(task *models.Task, proximity map[string]float64) (reserved *models.Engineer, hadTrade bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var suitable []*models.Engineer
	for _, e := range r.engineers {
		if !e.HasTrade(task.Trade) {
			continue
		}
		hadTrade = true
		if e.Availability != models.Available {
			continue
		}
		suitable = append(suitable, e)
	}

	if len(suitable) == 0 {
		return nil, hadTrade
	}

	prox := func(id string) float64 {
		if proximity != nil {
			if p, ok := proximity[id]; ok {
				return p
			}
		}
		return math.Inf(1)
	}

	sort.Slice(suitable, func(i, j int) bool {
		if suitable[i].Rating != suitable[j].Rating {
			return suitable[i].Rating > suitable[j].Rating
		}
		return prox(suitable[i].ID) < prox(suitable[j].ID)
	})

	best := suitable[0]
	best.Availability = models.Busy

	// The caller's copy carries the per-task proximity; the stored
	// record does not, since proximity is relative to one task.
	copied := *best
	if p, ok := proximity[best.ID]; ok {
		copied.Proximity = &p
	}
	return &copied, true
}
