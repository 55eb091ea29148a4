package rl

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Configuration errors. These indicate a setup defect, not a runtime
// condition, and are surfaced to the caller immediately.
var (
	ErrInvalidDimensions = errors.New("table dimensions must be positive")
	ErrStateOutOfRange   = errors.New("state index out of range")
	ErrActionOutOfRange  = errors.New("action index out of range")
)

// Default hyperparameters.
const (
	DefaultAlpha   = 0.1
	DefaultGamma   = 0.9
	DefaultEpsilon = 0.2
)

// Config holds the Q-table dimensions and learning hyperparameters
type Config struct {
	NumStates  int
	NumActions int
	Alpha      float64 // learning rate
	Gamma      float64 // discount factor
	Epsilon    float64 // exploration rate
}

// Adjuster maintains a tabular value estimate per (state, action) pair
// and supplies a bounded scalar adjustment per ranking candidate. The
// table and the action cache are long-lived across ranking passes and
// shared between concurrent callers, so every access goes through one
// mutex.
type Adjuster struct {
	mu      sync.Mutex
	table   [][]float64
	cache   map[int]int
	alpha   float64
	gamma   float64
	epsilon float64
	rng     *rand.Rand
}

// NewAdjuster creates an Adjuster with a zero-initialized table
func NewAdjuster(cfg Config) (*Adjuster, error) {
	if cfg.NumStates <= 0 || cfg.NumActions <= 0 {
		return nil, fmt.Errorf("%w: states=%d actions=%d", ErrInvalidDimensions, cfg.NumStates, cfg.NumActions)
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = DefaultGamma
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}

	table := make([][]float64, cfg.NumStates)
	for i := range table {
		table[i] = make([]float64, cfg.NumActions)
	}

	return &Adjuster{
		table:   table,
		cache:   make(map[int]int),
		alpha:   cfg.Alpha,
		gamma:   cfg.Gamma,
		epsilon: cfg.Epsilon,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ChooseAction picks an action for a state using an epsilon-greedy
// policy. The choice is memoized: repeated calls for the same state
// return the cached action unchanged until UpdateQValue refreshes it.
func (a *Adjuster) ChooseAction(state int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state < 0 || state >= len(a.table) {
		return 0, fmt.Errorf("%w: state=%d states=%d", ErrStateOutOfRange, state, len(a.table))
	}

	if action, ok := a.cache[state]; ok {
		return action, nil
	}

	var action int
	if a.rng.Float64() < a.epsilon {
		action = a.rng.Intn(len(a.table[state])) // explore
	} else {
		action = argmax(a.table[state]) // exploit
	}

	a.cache[state] = action
	return action, nil
}

// Adjustment returns the scalar ranking adjustment for a state. The
// value is the chosen action index, bounded by the configured action
// count.
func (a *Adjuster) Adjustment(state int) (float64, error) {
	action, err := a.ChooseAction(state)
	if err != nil {
		return 0, err
	}
	return float64(action), nil
}

// UpdateQValue applies one Bellman update for (state, action) from an
// observed reward, then refreshes the cached action for the state.
func (a *Adjuster) UpdateQValue(state, action int, reward float64, nextState int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state < 0 || state >= len(a.table) || nextState < 0 || nextState >= len(a.table) {
		return fmt.Errorf("%w: state=%d next=%d states=%d", ErrStateOutOfRange, state, nextState, len(a.table))
	}
	if action < 0 || action >= len(a.table[state]) {
		return fmt.Errorf("%w: action=%d actions=%d", ErrActionOutOfRange, action, len(a.table[state]))
	}

	bestNext := argmax(a.table[nextState])
	tdTarget := reward + a.gamma*a.table[nextState][bestNext]
	tdError := tdTarget - a.table[state][action]
	a.table[state][action] += a.alpha * tdError

	// The cache is overwritten with the action just reinforced, not
	// re-derived from the updated table.
	a.cache[state] = action
	return nil
}

// QValue reads one table entry
func (a *Adjuster) QValue(state, action int) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state < 0 || state >= len(a.table) {
		return 0, fmt.Errorf("%w: state=%d states=%d", ErrStateOutOfRange, state, len(a.table))
	}
	if action < 0 || action >= len(a.table[state]) {
		return 0, fmt.Errorf("%w: action=%d actions=%d", ErrActionOutOfRange, action, len(a.table[state]))
	}
	return a.table[state][action], nil
}

// argmax returns the index of the maximum value, lowest index on ties
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
