// internal/episode/session.go
package episode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
	"github.com/CaptainGlac1er/rocket-learn/engine/agent"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/store"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/wire"
)

// ErrNotStarted is returned by Step and Close before the first Reset.
var ErrNotStarted = errors.New("episode has not been reset")

// Sink receives the encoded observations of every step.
type Sink interface {
	Publish(ctx context.Context, episodeID string, recs []wire.Record) error
}

// Ledger records episode lifecycles.
type Ledger interface {
	Start(ctx context.Context, ep store.Episode) error
	Finish(ctx context.Context, id uuid.UUID, steps int, at time.Time) error
}

// Session drives one observation encoder through consecutive episodes of a
// single simulator worker. All methods are safe for concurrent use; the
// per-step fan-out across observers happens inside Step.
type Session struct {
	Worker string

	mu      sync.Mutex
	builder *agent.ObsBuilder
	sink    Sink   // may be nil
	ledger  Ledger // may be nil
	log     *logrus.Entry
	now     func() time.Time
	id      uuid.UUID
	started bool
	step    int
	prev    map[int32][]float32 // last action per car, zero after reset
	obsBufs []agent.Observation
}

// NewSession returns a session around builder. sink and ledger may be nil.
func NewSession(worker string, builder *agent.ObsBuilder, sink Sink, ledger Ledger, log *logrus.Logger) *Session {
	return &Session{
		Worker:  worker,
		builder: builder,
		sink:    sink,
		ledger:  ledger,
		log:     log.WithField("worker", worker),
		now:     time.Now,
		prev:    make(map[int32][]float32),
	}
}

// ID returns the current episode id, or uuid.Nil before the first reset.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Steps returns the number of steps encoded in the current episode.
func (s *Session) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Reset finishes any running episode, starts a new one at state and returns
// the initial observations, encoded with all-zero previous actions.
func (s *Session) Reset(ctx context.Context, state *engine.GameState) ([]wire.ObservationPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := state.Validate(s.builder.NumPads()); err != nil {
		return nil, err
	}
	if n := len(state.Players); n > s.builder.MaxPlayers() {
		return nil, fmt.Errorf("%w: %d players, configured for %d", agent.ErrRosterOverflow, n, s.builder.MaxPlayers())
	}
	if s.started {
		s.finishLocked(ctx)
	}

	s.id = uuid.New()
	s.step = 0
	s.started = true
	clear(s.prev)
	for i := range state.Players {
		s.prev[state.Players[i].CarID] = make([]float32, agent.ActionDim)
	}
	s.builder.Reset(state)
	s.log = s.log.WithField("episode", s.id)

	payloads, err := s.encodeLocked(ctx, state, s.prev, 0)
	if err != nil {
		// The episode never produced a step; it is not recorded and Step
		// reports ErrNotStarted until the next successful Reset.
		s.started = false
		return nil, err
	}

	if s.ledger != nil {
		err := s.ledger.Start(ctx, store.Episode{
			ID:         s.id,
			Worker:     s.Worker,
			Players:    len(state.Players),
			MaxPlayers: s.builder.MaxPlayers(),
			StartedAt:  s.now(),
		})
		if err != nil {
			s.log.WithError(err).Warn("Failed to record episode start")
		}
	}
	s.log.WithFields(logrus.Fields{
		"players": len(state.Players),
		"blue":    state.CountTeam(engine.TeamBlue),
		"orange":  state.CountTeam(engine.TeamOrange),
	}).Info("Episode reset")

	return payloads, nil
}

// Step records actions as each car's previous action and encodes state for
// every player. Cars missing from actions keep their last known action.
func (s *Session) Step(ctx context.Context, state *engine.GameState, actions map[int32][]float32) ([]wire.ObservationPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	for carID, a := range actions {
		if len(a) != agent.ActionDim {
			return nil, fmt.Errorf("car %d: %w: got %d, want %d", carID, agent.ErrActionSize, len(a), agent.ActionDim)
		}
	}
	// Actions take effect only once the step is accepted.
	next := make(map[int32][]float32, len(s.prev)+len(actions))
	for carID, a := range s.prev {
		next[carID] = a
	}
	for carID, a := range actions {
		next[carID] = append([]float32(nil), a...)
	}
	payloads, err := s.encodeLocked(ctx, state, next, s.step+1)
	if err != nil {
		return nil, err
	}
	s.prev = next
	s.step++
	return payloads, nil
}

// Close finishes the running episode, if any.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	s.finishLocked(ctx)
	return nil
}

func (s *Session) finishLocked(ctx context.Context) {
	s.started = false
	if s.ledger != nil {
		if err := s.ledger.Finish(ctx, s.id, s.step, s.now()); err != nil {
			s.log.WithError(err).Warn("Failed to record episode finish")
		}
	}
	s.log.WithField("steps", s.step).Info("Episode finished")
}

// encodeLocked encodes every observer of state in parallel against
// prevActions, then forwards the step to the sink. The returned payloads are owned by the caller.
func (s *Session) encodeLocked(ctx context.Context, state *engine.GameState, prevActions map[int32][]float32, step int) ([]wire.ObservationPayload, error) {
	n := len(state.Players)
	if cap(s.obsBufs) < n {
		s.obsBufs = make([]agent.Observation, n)
	}
	bufs := s.obsBufs[:n]

	zero := make([]float32, agent.ActionDim)
	g, _ := errgroup.WithContext(ctx)
	for i := range state.Players {
		prev, ok := prevActions[state.Players[i].CarID]
		if !ok {
			prev = zero
		}
		g.Go(func() error {
			return s.builder.Encode(&state.Players[i], state, prev, &bufs[i])
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).WithField("step", step).Error("Failed to encode step")
		return nil, err
	}

	payloads := make([]wire.ObservationPayload, n)
	for i := range bufs {
		payloads[i] = wire.PayloadFromObservation(state.Players[i].CarID, &bufs[i])
	}

	if s.sink != nil {
		recs := make([]wire.Record, n)
		for i := range payloads {
			recs[i] = wire.Record{Version: wire.RecordVersion, EpisodeID: s.id.String(), Step: step, Obs: payloads[i]}
		}
		if err := s.sink.Publish(ctx, s.id.String(), recs); err != nil {
			return nil, fmt.Errorf("publish step %d: %w", step, err)
		}
	}
	return payloads, nil
}
