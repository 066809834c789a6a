// Package session hosts planning runs: each session owns one tree and grows
// it one step per frame tick, publishing an immutable Frame after every tick.
package session

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"rrt-planner/render"
	"rrt-planner/rrt"
	"rrt-planner/spatial"
)

// EventGoalReached is attached to the single frame on which the goal is reached.
const EventGoalReached = "goal_reached"

// StateHalted is reported once the iteration budget ran out before the goal.
const StateHalted = "halted"

// Frame is a read-only snapshot of a session after a tick.
type Frame struct {
	Seq           uint64      `json:"seq"`
	State         string      `json:"state"`
	Event         string      `json:"event,omitempty"`
	Iterations    int         `json:"iterations"`
	Bounds        rrt.Bounds  `json:"bounds"`
	Nodes         []rrt.Node  `json:"nodes"`
	Start         rrt.Point   `json:"start"`
	Goal          rrt.Point   `json:"goal"`
	GoalThreshold float64     `json:"goalThreshold"`
	Reached       bool        `json:"reached"`
	Path          []rrt.Point `json:"path"`
	Fingerprint   string      `json:"fingerprint"`
}

// Scene converts the frame for the renderers.
func (f Frame) Scene() render.Scene {
	return render.Scene{
		Bounds:        f.Bounds,
		Nodes:         f.Nodes,
		Goal:          f.Goal,
		GoalThreshold: f.GoalThreshold,
		Reached:       f.Reached,
		Path:          f.Path,
	}
}

// Session drives one tree. The tree itself is only touched from the frame
// loop; everything readers see goes through frame and index under mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	tree          *rrt.Tree
	bounds        rrt.Bounds
	interval      time.Duration
	maxIterations int
	logger        *zap.Logger

	iterations int
	halted     bool
	digest     *xxhash.Digest
	hashed     int

	mu          sync.RWMutex
	frame       Frame
	index       *spatial.EdgeIndex
	subscribers map[chan Frame]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(id string, tree *rrt.Tree, bounds rrt.Bounds, interval time.Duration, maxIterations int, logger *zap.Logger) *Session {
	s := &Session{
		ID:            id,
		CreatedAt:     time.Now(),
		tree:          tree,
		bounds:        bounds,
		interval:      interval,
		maxIterations: maxIterations,
		logger:        logger.With(zap.String("plan_id", id)),
		digest:        xxhash.New(),
		index:         spatial.NewEdgeIndex(),
		subscribers:   make(map[chan Frame]struct{}),
		done:          make(chan struct{}),
	}
	s.frame = s.snapshot(0, "")
	s.index.Sync(s.frame.Nodes)
	return s
}

// Tick runs one growth step and publishes the resulting frame. Callers other
// than the frame loop must not call it concurrently with Run.
func (s *Session) Tick() Frame {
	event := ""
	if !s.tree.Reached() && !s.halted {
		step := s.tree.Grow(s.bounds)
		s.iterations++
		if step.Transitioned {
			event = EventGoalReached
			s.logger.Info("🎯 goal reached",
				zap.Int("nodes", s.tree.Len()),
				zap.Int("iterations", s.iterations),
				zap.Int("path_len", len(s.tree.Path())),
				zap.Float64("path_length", render.PathLength(s.tree.Path())))
		} else if s.maxIterations > 0 && s.iterations >= s.maxIterations {
			s.halted = true
			s.logger.Warn("⚠️  iteration budget exhausted before goal",
				zap.Int("nodes", s.tree.Len()),
				zap.Int("iterations", s.iterations))
		}
	}

	s.mu.Lock()
	frame := s.snapshot(s.frame.Seq+1, event)
	s.frame = frame
	s.index.Sync(frame.Nodes)
	for ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			// Slow reader: drop the stale frame and keep the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
	s.mu.Unlock()

	return frame
}

// Run ticks at the session's frame interval until ctx is done. Frames keep
// coming after the goal is reached; the tree just stops changing.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("frame loop stopped", zap.Uint64("frames", s.Frame().Seq))
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop cancels the frame loop and waits for it to exit.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Frame returns the latest published frame.
func (s *Session) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Region returns the tree edges intersecting the given viewport.
func (s *Session) Region(minX, minY, maxX, maxY float64) []spatial.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.QueryRegion(minX, minY, maxX, maxY)
}

// Subscribe delivers every subsequent frame on the returned channel until
// the returned function is called.
func (s *Session) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Session) state() string {
	if s.halted {
		return StateHalted
	}
	return s.tree.State().String()
}

func (s *Session) snapshot(seq uint64, event string) Frame {
	return Frame{
		Seq:           seq,
		State:         s.state(),
		Event:         event,
		Iterations:    s.iterations,
		Bounds:        s.bounds,
		Nodes:         s.tree.Nodes(),
		Start:         s.tree.Root(),
		Goal:          s.tree.Goal(),
		GoalThreshold: s.tree.GoalThreshold(),
		Reached:       s.tree.Reached(),
		Path:          s.tree.Path(),
		Fingerprint:   s.fingerprint(),
	}
}

// fingerprint hashes the node list incrementally; nodes never change after
// insertion, so only the new tail is fed to the digest.
func (s *Session) fingerprint() string {
	nodes := s.tree.Nodes()
	for ; s.hashed < len(nodes); s.hashed++ {
		writeNode(s.digest, nodes[s.hashed])
	}
	return formatSum(s.digest.Sum64(), s.tree.Reached())
}

// Fingerprint identifies a tree state: equal node lists with equal goal
// flags produce equal fingerprints.
func Fingerprint(nodes []rrt.Node, reached bool) string {
	d := xxhash.New()
	for _, n := range nodes {
		writeNode(d, n)
	}
	return formatSum(d.Sum64(), reached)
}

func writeNode(d *xxhash.Digest, n rrt.Node) {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(n.Point.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(n.Point.Y))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(n.Parent)))
	d.Write(buf[:])
}

func formatSum(sum uint64, reached bool) string {
	if reached {
		sum ^= 1
	}
	return strconv.FormatUint(sum, 16)
}

// Done is closed once the frame loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
