package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rrt-planner/config"
	"rrt-planner/rrt"
)

var (
	ErrNotFound      = errors.New("plan not found")
	ErrInvalidParams = errors.New("invalid plan parameters")
)

// Params describes a new planning run. Nil fields fall back to the
// configured defaults; a missing start or goal is drawn uniformly from the
// world bounds.
type Params struct {
	Start         *rrt.Point `json:"start,omitempty"`
	Goal          *rrt.Point `json:"goal,omitempty"`
	StepSize      *float64   `json:"stepSize,omitempty"`
	GoalThreshold *float64   `json:"goalThreshold,omitempty"`
	Seed          int64      `json:"seed,omitempty"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	State     string    `json:"state"`
	Nodes     int       `json:"nodes"`
	Frames    uint64    `json:"frames"`
}

// Registry owns all running sessions.
type Registry struct {
	cfg    config.Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(cfg config.Config, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Prepare builds a session without starting its frame loop.
func (r *Registry) Prepare(p Params) (*Session, error) {
	stepSize := r.cfg.Planner.StepSize
	if p.StepSize != nil {
		stepSize = *p.StepSize
	}
	goalThreshold := r.cfg.Planner.GoalThreshold
	if p.GoalThreshold != nil {
		goalThreshold = *p.GoalThreshold
	}
	if !(stepSize > 0) || math.IsInf(stepSize, 0) {
		return nil, fmt.Errorf("%w: step size must be positive, got %g", ErrInvalidParams, stepSize)
	}
	if !(goalThreshold >= 0) || math.IsInf(goalThreshold, 0) {
		return nil, fmt.Errorf("%w: goal threshold must be non-negative, got %g", ErrInvalidParams, goalThreshold)
	}

	seed := p.Seed
	if seed == 0 {
		seed = r.cfg.Planner.Seed
	}
	sampler := rrt.NewRandSampler(seed)

	bounds := r.cfg.World
	start, goal := sampler.Sample(bounds), sampler.Sample(bounds)
	if p.Start != nil {
		start = *p.Start
	}
	if p.Goal != nil {
		goal = *p.Goal
	}
	if !finite(start) || !finite(goal) {
		return nil, fmt.Errorf("%w: start and goal must be finite", ErrInvalidParams)
	}

	tree := rrt.New(start, goal, stepSize, goalThreshold, rrt.WithSampler(sampler))
	return newSession(uuid.NewString(), tree, bounds, r.cfg.Frames.Interval(), r.cfg.Planner.MaxIterations, r.logger), nil
}

// Create builds a session, registers it and starts its frame loop.
func (r *Registry) Create(ctx context.Context, p Params) (*Session, error) {
	s, err := r.Prepare(p)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	frame := s.Frame()
	r.logger.Info("📍 plan created",
		zap.String("plan_id", s.ID),
		zap.Float64("start_x", frame.Start.X),
		zap.Float64("start_y", frame.Start.Y),
		zap.Float64("goal_x", frame.Goal.X),
		zap.Float64("goal_y", frame.Goal.Y),
		zap.Float64("step_size", s.tree.StepSize()),
		zap.Float64("goal_threshold", frame.GoalThreshold))

	go s.Run(loopCtx)
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List returns summaries ordered by creation time.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		frame := s.Frame()
		summaries = append(summaries, Summary{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			State:     frame.State,
			Nodes:     len(frame.Nodes),
			Frames:    frame.Seq,
		})
	}
	return summaries
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Delete stops a session and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Stop()
	r.logger.Info("🗑️  plan deleted", zap.String("plan_id", id))
	return nil
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}

func finite(p rrt.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
