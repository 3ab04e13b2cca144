package walletflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/walletflow/internal/audit"
	"github.com/MrEthical07/walletflow/internal/stores"
	"github.com/MrEthical07/walletflow/machine"
	"github.com/MrEthical07/walletflow/onboarding"
)

// FlowKind names a top-level flow the engine hosts.
type FlowKind string

const (
	KindCreateWallet  FlowKind = "create_wallet"
	KindRestoreWallet FlowKind = "restore_wallet"
)

var flowKinds = []FlowKind{KindCreateWallet, KindRestoreWallet}

// FlowKinds lists every kind the engine hosts.
func FlowKinds() []FlowKind {
	return append([]FlowKind(nil), flowKinds...)
}

// FlowInfo describes a hosted flow without exposing its state.
type FlowInfo struct {
	ID          string    `json:"id"`
	Kind        FlowKind  `json:"kind"`
	Step        float64   `json:"step"`
	Continuable bool      `json:"continuable"`
	Terminal    bool      `json:"terminal"`
	Revision    uint64    `json:"revision"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Engine hosts create-wallet and restore-wallet flows addressed by ID. Every
// accepted transition is persisted as a snapshot, so a flow can be resumed
// by any Engine sharing the same store after a restart.
//
// Engine is safe for concurrent use. Events for one flow are processed one at
// a time; a second concurrent Send for the same flow fails with
// machine.ErrBusy.
type Engine struct {
	config     Config
	store      stores.SnapshotStore
	ownsBucket *stores.BlobSnapshotStore
	cache      *lru.Cache[string, liveFlow]
	loadMu     sync.Mutex

	createWallet  *onboarding.CreateWalletProvider
	restoreWallet *onboarding.RestoreWalletProvider

	log     zerolog.Logger
	audit   *audit.Dispatcher
	metrics *Metrics

	now   func() time.Time
	newID func() string

	closed atomic.Bool
}

var (
	timeNow   = time.Now
	newFlowID = uuid.NewString
)

/*
====================================
FLOW TYPES
====================================
*/

type flowType[S, E, P any] struct {
	kind      FlowKind
	def       machine.Definition[S, E, P]
	marshal   func(S) ([]byte, error)
	unmarshal func([]byte) (S, error)
	terminal  func(S) bool
}

var createWalletType = flowType[onboarding.CreateWalletState, onboarding.CreateWalletEvent, onboarding.CreateWalletProvider]{
	kind:      KindCreateWallet,
	def:       onboarding.CreateWalletFlow,
	marshal:   onboarding.MarshalCreateWalletState,
	unmarshal: onboarding.UnmarshalCreateWalletState,
	terminal: func(s onboarding.CreateWalletState) bool {
		_, ok := s.(onboarding.CreateWalletFinish)
		return ok
	},
}

var restoreWalletType = flowType[onboarding.RestoreWalletState, onboarding.RestoreWalletEvent, onboarding.RestoreWalletProvider]{
	kind:      KindRestoreWallet,
	def:       onboarding.RestoreWalletFlow,
	marshal:   onboarding.MarshalRestoreWalletState,
	unmarshal: onboarding.UnmarshalRestoreWalletState,
	terminal: func(s onboarding.RestoreWalletState) bool {
		_, ok := s.(onboarding.RestoreWalletFinish)
		return ok
	},
}

type liveFlow interface {
	info() FlowInfo
}

// live is one cached flow machine. busy serializes Send for the flow; mu
// guards the fields read by concurrent queries.
type live[S, E, P any] struct {
	id      string
	machine *machine.Machine[S, E, P]
	busy    atomic.Bool

	mu      sync.Mutex
	state   S
	current FlowInfo
}

func (l *live[S, E, P]) info() FlowInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *live[S, E, P]) snapshot() (FlowInfo, S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.state
}

func (l *live[S, E, P]) set(state S, terminal bool) FlowInfo {
	step, _ := machine.StepOf(state)
	cont, _ := machine.ContinuableOf(state)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.current.Step = step
	l.current.Continuable = cont
	l.current.Terminal = terminal
	return l.current
}

func (l *live[S, E, P]) committed(rev uint64, at time.Time) FlowInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current.Revision = rev
	l.current.UpdatedAt = at
	return l.current
}

/*
====================================
CREATE WALLET
====================================
*/

// StartCreateWallet starts a wallet-creation flow and persists its first
// snapshot.
func (e *Engine) StartCreateWallet(ctx context.Context) (FlowInfo, onboarding.CreateWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.createWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindCreateWallet)
	}
	return startFlow(ctx, e, createWalletType, *e.createWallet)
}

// SendCreateWallet feeds event to the flow. Rejected and failed events leave
// the flow and its snapshot unchanged.
//
// When the transition is accepted but the snapshot write fails with
// ErrSnapshotUnavailable, the returned state is still the flow's current
// in-memory state. An unsaved terminal state is dropped instead, and the next
// call resumes from the last saved snapshot.
func (e *Engine) SendCreateWallet(ctx context.Context, flowID string, event onboarding.CreateWalletEvent) (FlowInfo, onboarding.CreateWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.createWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindCreateWallet)
	}
	return sendFlow(ctx, e, createWalletType, *e.createWallet, flowID, event)
}

// CreateWalletState returns the flow's current state, loading it from the
// snapshot store when it is not cached.
func (e *Engine) CreateWalletState(ctx context.Context, flowID string) (FlowInfo, onboarding.CreateWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.createWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindCreateWallet)
	}
	lf, err := lookupFlow(ctx, e, createWalletType, *e.createWallet, flowID)
	if err != nil {
		return FlowInfo{}, nil, err
	}
	info, state := lf.snapshot()
	return info, state, nil
}

/*
====================================
RESTORE WALLET
====================================
*/

func (e *Engine) StartRestoreWallet(ctx context.Context) (FlowInfo, onboarding.RestoreWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.restoreWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindRestoreWallet)
	}
	return startFlow(ctx, e, restoreWalletType, *e.restoreWallet)
}

func (e *Engine) SendRestoreWallet(ctx context.Context, flowID string, event onboarding.RestoreWalletEvent) (FlowInfo, onboarding.RestoreWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.restoreWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindRestoreWallet)
	}
	return sendFlow(ctx, e, restoreWalletType, *e.restoreWallet, flowID, event)
}

func (e *Engine) RestoreWalletState(ctx context.Context, flowID string) (FlowInfo, onboarding.RestoreWalletState, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	if e.restoreWallet == nil {
		return FlowInfo{}, nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, KindRestoreWallet)
	}
	lf, err := lookupFlow(ctx, e, restoreWalletType, *e.restoreWallet, flowID)
	if err != nil {
		return FlowInfo{}, nil, err
	}
	info, state := lf.snapshot()
	return info, state, nil
}

/*
====================================
ANY FLOW
====================================
*/

// Progress reports a flow's step and status without decoding its state.
func (e *Engine) Progress(ctx context.Context, flowID string) (FlowInfo, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, err
	}
	if lf, ok := e.cache.Get(flowID); ok {
		e.metrics.Inc(MetricCacheHit)
		return lf.info(), nil
	}
	snap, err := e.loadSnapshot(ctx, flowID)
	if err != nil {
		return FlowInfo{}, err
	}
	return infoFromSnapshot(flowID, snap), nil
}

// Inspect returns the persisted snapshot of a flow: its header and the raw
// tagged-union JSON of its state. It never consults the live cache.
func (e *Engine) Inspect(ctx context.Context, flowID string) (FlowInfo, json.RawMessage, error) {
	if err := e.ready(); err != nil {
		return FlowInfo{}, nil, err
	}
	snap, err := e.loadSnapshot(ctx, flowID)
	if err != nil {
		return FlowInfo{}, nil, err
	}
	return infoFromSnapshot(flowID, snap), json.RawMessage(snap.State), nil
}

// Discard forgets a flow: the cached machine and the persisted snapshot.
func (e *Engine) Discard(ctx context.Context, flowID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	var kind FlowKind
	if lf, ok := e.cache.Peek(flowID); ok {
		kind = lf.info().Kind
	}
	e.cache.Remove(flowID)

	if err := e.store.Delete(ctx, flowID); err != nil {
		return mapStoreError(flowID, err)
	}

	e.metrics.Inc(MetricFlowDiscarded)
	e.emit(ctx, audit.Event{
		EventType: audit.EventFlowDiscarded,
		FlowID:    flowID,
		Flow:      string(kind),
		Success:   true,
	})
	e.log.Debug().Str("flow_id", flowID).Msg("flow discarded")
	return nil
}

// LiveFlows returns the number of flow machines held in the cache.
func (e *Engine) LiveFlows() int {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// LiveFlowsByKind counts cached flow machines per kind. Every kind is present,
// zero included. Reading does not refresh cache recency.
func (e *Engine) LiveFlowsByKind() map[FlowKind]int {
	out := make(map[FlowKind]int, len(flowKinds))
	for _, k := range flowKinds {
		out[k] = 0
	}
	if e == nil || e.cache == nil {
		return out
	}
	for _, id := range e.cache.Keys() {
		if lf, ok := e.cache.Peek(id); ok {
			out[lf.info().Kind]++
		}
	}
	return out
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes pending audit events and releases the live cache. Persisted
// flows remain resumable by another Engine.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.audit.Close()
	e.cache.Purge()
	if e.ownsBucket != nil {
		if err := e.ownsBucket.Close(); err != nil {
			e.log.Warn().Err(err).Msg("close snapshot bucket")
		}
	}
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.cache == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

/*
====================================
GENERIC HOSTING
====================================
*/

func startFlow[S, E, P any](ctx context.Context, e *Engine, ft flowType[S, E, P], provider P) (FlowInfo, S, error) {
	var zero S

	id := e.newID()
	lf := &live[S, E, P]{id: id}
	lf.current = FlowInfo{ID: id, Kind: ft.kind}

	m, err := machine.Start(ctx, ft.def, provider, machineOptions[S, E, P](e, id, ft.kind)...)
	if err != nil {
		return FlowInfo{}, zero, err
	}
	lf.machine = m

	state := m.State()
	lf.set(state, ft.terminal(state))
	info, err := persist(ctx, e, ft, lf, state)
	if err != nil {
		return FlowInfo{}, zero, err
	}
	e.cache.Add(id, lf)

	e.metrics.Inc(MetricFlowStarted)
	e.emit(ctx, audit.Event{
		EventType: audit.EventFlowStarted,
		FlowID:    id,
		Flow:      string(ft.kind),
		To:        variantName(state),
		Step:      info.Step,
		Success:   true,
	})
	e.log.Info().Str("flow_id", id).Str("flow", string(ft.kind)).Msg("flow started")

	return info, state, nil
}

func sendFlow[S, E, P any](ctx context.Context, e *Engine, ft flowType[S, E, P], provider P, flowID string, event E) (FlowInfo, S, error) {
	var zero S

	lf, err := lookupFlow(ctx, e, ft, provider, flowID)
	if err != nil {
		return FlowInfo{}, zero, err
	}

	if !lf.busy.CompareAndSwap(false, true) {
		e.metrics.Inc(MetricTransitionBusy)
		return lf.info(), zero, fmt.Errorf("%w: %s", machine.ErrBusy, flowID)
	}
	defer lf.busy.Store(false)

	next, err := lf.machine.Accept(ctx, event)
	if err != nil {
		return lf.info(), zero, err
	}

	terminal := ft.terminal(next)
	lf.set(next, terminal)

	info, err := persist(ctx, e, ft, lf, next)
	if err != nil {
		// A terminal machine accepts no further events, so an unsaved
		// terminal state would never be retried; reload from the store.
		if terminal || errors.Is(err, ErrFlowConflict) {
			e.cache.Remove(flowID)
		}
		return info, next, err
	}

	if terminal {
		e.cache.Remove(flowID)
		e.metrics.Inc(MetricFlowFinished)
		e.emit(ctx, audit.Event{
			EventType: audit.EventFlowFinished,
			FlowID:    flowID,
			Flow:      string(ft.kind),
			To:        variantName(next),
			Step:      info.Step,
			Success:   true,
		})
		e.log.Info().Str("flow_id", flowID).Str("flow", string(ft.kind)).Msg("flow finished")
	}

	return info, next, nil
}

func lookupFlow[S, E, P any](ctx context.Context, e *Engine, ft flowType[S, E, P], provider P, flowID string) (*live[S, E, P], error) {
	if lf, ok, err := cachedFlow[S, E, P](e, flowID); ok || err != nil {
		return lf, err
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if lf, ok, err := cachedFlow[S, E, P](e, flowID); ok || err != nil {
		return lf, err
	}
	e.metrics.Inc(MetricCacheMiss)

	snap, err := e.loadSnapshot(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if snap.Kind != string(ft.kind) {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrFlowKindMismatch, flowID, snap.Kind, ft.kind)
	}

	state, err := ft.unmarshal(snap.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, flowID, err)
	}

	m, err := machine.New(ft.def, provider, state, machineOptions[S, E, P](e, flowID, ft.kind)...)
	if err != nil {
		return nil, err
	}

	lf := &live[S, E, P]{id: flowID, machine: m}
	lf.current = FlowInfo{ID: flowID, Kind: ft.kind}
	lf.set(state, snap.Terminal)
	lf.committed(snap.Revision, snap.UpdatedAt)

	if !snap.Terminal {
		e.cache.Add(flowID, lf)
	}
	e.metrics.Inc(MetricFlowResumed)
	e.log.Debug().
		Str("flow_id", flowID).
		Str("flow", snap.Kind).
		Uint64("revision", snap.Revision).
		Msg("flow resumed from snapshot")

	return lf, nil
}

func cachedFlow[S, E, P any](e *Engine, flowID string) (*live[S, E, P], bool, error) {
	cached, ok := e.cache.Get(flowID)
	if !ok {
		return nil, false, nil
	}
	lf, ok := cached.(*live[S, E, P])
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %s", ErrFlowKindMismatch, flowID, cached.info().Kind)
	}
	e.metrics.Inc(MetricCacheHit)
	return lf, true, nil
}

// persist writes the next revision of lf. On success the revision and
// update time in lf's FlowInfo advance.
func persist[S, E, P any](ctx context.Context, e *Engine, ft flowType[S, E, P], lf *live[S, E, P], state S) (FlowInfo, error) {
	info := lf.info()

	data, err := ft.marshal(state)
	if err != nil {
		e.metrics.Inc(MetricSnapshotFailed)
		return info, fmt.Errorf("encode %s state: %w", ft.kind, err)
	}

	ttl := e.config.Store.FlowTTL
	if info.Terminal {
		ttl = e.config.Store.FinishedTTL
	}
	now := e.now().UTC()

	snap := &stores.Snapshot{
		Kind:        string(ft.kind),
		Revision:    info.Revision + 1,
		Step:        info.Step,
		Continuable: info.Continuable,
		Terminal:    info.Terminal,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		State:       data,
	}

	if err := e.store.Save(ctx, lf.id, snap, ttl); err != nil {
		if errors.Is(err, stores.ErrRevisionConflict) {
			e.metrics.Inc(MetricSnapshotConflict)
		} else {
			e.metrics.Inc(MetricSnapshotFailed)
		}
		e.log.Warn().
			Err(err).
			Str("flow_id", lf.id).
			Str("flow", string(ft.kind)).
			Uint64("revision", snap.Revision).
			Msg("snapshot write failed")
		return info, mapStoreError(lf.id, err)
	}

	e.metrics.Inc(MetricSnapshotSaved)
	return lf.committed(snap.Revision, now), nil
}

func machineOptions[S, E, P any](e *Engine, flowID string, kind FlowKind) []machine.Option[S, E, P] {
	return []machine.Option[S, E, P]{
		machine.WithObserver[S, E, P](transitionObserver[S, E](e, flowID, kind)),
		machine.WithClock[S, E, P](e.now),
	}
}

// transitionObserver records metrics, audit events and debug logs for every
// transition attempt. It runs while the machine is busy.
func transitionObserver[S, E any](e *Engine, flowID string, kind FlowKind) machine.Observer[S, E] {
	return func(ctx context.Context, rec machine.Record[S, E]) {
		ev := audit.Event{
			FlowID: flowID,
			Flow:   string(kind),
			From:   variantName(rec.From),
		}

		switch {
		case rec.Err == nil:
			e.metrics.Inc(MetricTransitionAccepted)
			e.metrics.Observe(MetricTransitionLatency, rec.Duration)
			ev.EventType = audit.EventFlowTransition
			ev.To = variantName(rec.To)
			ev.Step, _ = machine.StepOf(rec.To)
			ev.Success = true
			e.log.Debug().
				Str("flow_id", flowID).
				Str("flow", string(kind)).
				Str("from", ev.From).
				Str("to", ev.To).
				Float64("step", ev.Step).
				Dur("took", rec.Duration).
				Msg("transition")

		case errors.Is(rec.Err, machine.ErrInvalidEvent):
			e.metrics.Inc(MetricTransitionRejected)
			ev.EventType = audit.EventFlowRejected
			ev.Step, _ = machine.StepOf(rec.From)
			ev.Error = rec.Err.Error()
			e.log.Debug().
				Str("flow_id", flowID).
				Str("flow", string(kind)).
				Str("from", ev.From).
				Str("event", variantName(rec.Event)).
				Msg("event rejected")

		default:
			e.metrics.Inc(MetricTransitionFailed)
			ev.EventType = audit.EventFlowFailed
			ev.Step, _ = machine.StepOf(rec.From)
			ev.Error = rec.Err.Error()
			e.log.Warn().
				Err(rec.Err).
				Str("flow_id", flowID).
				Str("flow", string(kind)).
				Str("from", ev.From).
				Str("event", variantName(rec.Event)).
				Msg("transition failed")
		}

		e.emit(ctx, ev)
	}
}

func (e *Engine) loadSnapshot(ctx context.Context, flowID string) (*stores.Snapshot, error) {
	snap, err := e.store.Load(ctx, flowID)
	if err != nil {
		return nil, mapStoreError(flowID, err)
	}
	return snap, nil
}

func (e *Engine) emit(ctx context.Context, ev audit.Event) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, ev)
}

func mapStoreError(flowID string, err error) error {
	switch {
	case errors.Is(err, stores.ErrSnapshotNotFound):
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	case errors.Is(err, stores.ErrRevisionConflict):
		return fmt.Errorf("%w: %s", ErrFlowConflict, flowID)
	case errors.Is(err, stores.ErrSnapshotCorrupt):
		return fmt.Errorf("%w: %s", ErrSnapshotCorrupt, flowID)
	default:
		return fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
}

func infoFromSnapshot(flowID string, snap *stores.Snapshot) FlowInfo {
	return FlowInfo{
		ID:          flowID,
		Kind:        FlowKind(snap.Kind),
		Step:        snap.Step,
		Continuable: snap.Continuable,
		Terminal:    snap.Terminal,
		Revision:    snap.Revision,
		UpdatedAt:   snap.UpdatedAt,
	}
}

// variantName renders a union variant as its bare type name, e.g.
// "CreateWalletSecuritySetup".
func variantName(v any) string {
	if v == nil {
		return ""
	}
	name := fmt.Sprintf("%T", v)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
