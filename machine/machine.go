package machine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrInvalidEvent is returned when an event does not apply to the current state.
	ErrInvalidEvent = errors.New("invalid event for current state")
	// ErrBusy is returned when Accept is called while another transition is in flight.
	ErrBusy = errors.New("transition already in flight")
	// ErrNoTransition is returned when a definition has no transition function.
	ErrNoTransition = errors.New("definition has no transition function")
)

// Transition computes the next state for an event. It must not mutate current.
type Transition[S, E, P any] func(ctx context.Context, current S, event E, provider P) (S, error)

// Initializer builds the first state of a flow, optionally reading the provider.
type Initializer[S, P any] func(ctx context.Context, provider P) (S, error)

// Definition binds a flow name to its initial-state constructor and transition function.
type Definition[S, E, P any] struct {
	Name    string
	Initial Initializer[S, P]
	Accept  Transition[S, E, P]
}

// Stepper is implemented by states that report a UI progress marker.
type Stepper interface {
	Step() float64
}

// Continuable is implemented by states that know whether the flow may be
// abandoned now and resumed later.
type Continuable interface {
	Continuable() bool
}

// Record describes one attempted transition. To is the zero value when Err is set.
type Record[S, E any] struct {
	Flow     string
	From     S
	Event    E
	To       S
	Err      error
	Duration time.Duration
}

// Observer receives every transition attempt after it completes.
type Observer[S, E any] func(ctx context.Context, rec Record[S, E])

// Machine drives one flow instance. The zero value is not usable; build with
// New or Start.
type Machine[S, E, P any] struct {
	def      Definition[S, E, P]
	provider P
	state    S
	busy     atomic.Bool
	observer Observer[S, E]
	now      func() time.Time
}

// Option customizes a Machine.
type Option[S, E, P any] func(*Machine[S, E, P])

// WithObserver installs a transition observer.
func WithObserver[S, E, P any](obs Observer[S, E]) Option[S, E, P] {
	return func(m *Machine[S, E, P]) {
		m.observer = obs
	}
}

// WithClock overrides the clock used to time transitions.
func WithClock[S, E, P any](now func() time.Time) Option[S, E, P] {
	return func(m *Machine[S, E, P]) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a machine positioned at state, typically a state restored from
// a snapshot.
func New[S, E, P any](def Definition[S, E, P], provider P, state S, opts ...Option[S, E, P]) (*Machine[S, E, P], error) {
	if def.Accept == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTransition, def.Name)
	}
	m := &Machine[S, E, P]{
		def:      def,
		provider: provider,
		state:    state,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start builds the initial state with the definition's initializer and
// returns a machine positioned at it.
func Start[S, E, P any](ctx context.Context, def Definition[S, E, P], provider P, opts ...Option[S, E, P]) (*Machine[S, E, P], error) {
	if def.Initial == nil {
		return nil, fmt.Errorf("%s: no initial state", def.Name)
	}
	initial, err := def.Initial(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("%s: initial state: %w", def.Name, err)
	}
	return New(def, provider, initial, opts...)
}

// Name returns the flow name from the definition.
func (m *Machine[S, E, P]) Name() string {
	return m.def.Name
}

// State returns the current state.
func (m *Machine[S, E, P]) State() S {
	return m.state
}

// Step returns the current state's progress marker when it implements Stepper.
func (m *Machine[S, E, P]) Step() (float64, bool) {
	return StepOf(m.state)
}

// Continuable reports whether the current state may be abandoned and resumed.
// The second value is false when the state does not implement Continuable.
func (m *Machine[S, E, P]) Continuable() (bool, bool) {
	return ContinuableOf(m.state)
}

// Accept feeds one event to the current state. On success the returned state
// becomes current; on failure the current state is left unchanged.
func (m *Machine[S, E, P]) Accept(ctx context.Context, event E) (S, error) {
	if !m.busy.CompareAndSwap(false, true) {
		var zero S
		return zero, fmt.Errorf("%w: %s", ErrBusy, m.def.Name)
	}
	defer m.busy.Store(false)

	from := m.state
	started := m.now()
	next, err := m.def.Accept(ctx, from, event, m.provider)
	rec := Record[S, E]{
		Flow:     m.def.Name,
		From:     from,
		Event:    event,
		Duration: m.now().Sub(started),
	}
	if err != nil {
		rec.Err = err
		m.notify(ctx, rec)
		var zero S
		return zero, err
	}

	m.state = next
	rec.To = next
	m.notify(ctx, rec)
	return next, nil
}

func (m *Machine[S, E, P]) notify(ctx context.Context, rec Record[S, E]) {
	if m.observer != nil {
		m.observer(ctx, rec)
	}
}

// StepOf returns the progress marker of any value implementing Stepper.
func StepOf(state any) (float64, bool) {
	s, ok := state.(Stepper)
	if !ok {
		return 0, false
	}
	return s.Step(), true
}

// ContinuableOf reports the Continuable capability of any state value.
func ContinuableOf(state any) (bool, bool) {
	c, ok := state.(Continuable)
	if !ok {
		return false, false
	}
	return c.Continuable(), true
}

// Invalid wraps ErrInvalidEvent with the offending state and event types.
func Invalid(state, event any) error {
	return fmt.Errorf("%w: %T does not accept %T", ErrInvalidEvent, state, event)
}
