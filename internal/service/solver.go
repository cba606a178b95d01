package service

import (
	"sync/atomic"
	"time"

	"mathagent/internal/models"
)

// OptimizedSolver is an immutable snapshot of an optimization result: the
// few-shot demonstrations that scored best on held-out feedback, plus
// metadata for reporting. Never mutate a published solver.
type OptimizedSolver struct {
	Version     int                      `json:"version"`
	Score       float64                  `json:"score"`
	Demos       []models.TrainingExample `json:"demos"`
	TriggerType models.TriggerType       `json:"trigger_type"`
	CreatedAt   time.Time                `json:"created_at"`
}

// SolverStore holds the single currently-published solver. Publish swaps the
// whole snapshot atomically, so readers see either the old solver or the new
// one, never a mix.
type SolverStore struct {
	current atomic.Pointer[OptimizedSolver]
	version atomic.Int64
}

func NewSolverStore() *SolverStore {
	return &SolverStore{}
}

// Current returns the published solver, or nil when no optimization has
// succeeded yet.
func (s *SolverStore) Current() *OptimizedSolver {
	return s.current.Load()
}

// Publish assigns the next version number and makes the solver visible to
// all subsequent Current calls.
func (s *SolverStore) Publish(solver *OptimizedSolver) *OptimizedSolver {
	solver.Version = int(s.version.Add(1))
	s.current.Store(solver)
	return solver
}

// Info reports solver metadata without exposing the demos themselves.
type SolverInfo struct {
	Version     int       `json:"version"`
	Score       float64   `json:"score"`
	DemoCount   int       `json:"demo_count"`
	TriggerType string    `json:"trigger_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Info returns metadata about the published solver, or nil when none exists.
func (s *SolverStore) Info() *SolverInfo {
	solver := s.current.Load()
	if solver == nil {
		return nil
	}
	return &SolverInfo{
		Version:     solver.Version,
		Score:       solver.Score,
		DemoCount:   len(solver.Demos),
		TriggerType: string(solver.TriggerType),
		CreatedAt:   solver.CreatedAt,
	}
}
