// Package union encodes closed sum types (a sealed interface plus one struct
// per variant) as {"kind": ..., "value": ...} JSON envelopes.
package union

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrUnknownKind    = errors.New("unknown variant kind")
	ErrUnknownVariant = errors.New("unregistered variant type")
	ErrNilValue       = errors.New("nil union value")
)

type envelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Registry maps variant kinds to concrete types for one union S.
type Registry[S any] struct {
	name    string
	decode  map[string]func(json.RawMessage) (S, error)
	kinds   map[reflect.Type]string
	ordered []string
}

func NewRegistry[S any](name string) *Registry[S] {
	return &Registry[S]{
		name:   name,
		decode: make(map[string]func(json.RawMessage) (S, error)),
		kinds:  make(map[reflect.Type]string),
	}
}

// Register adds variant V under kind. V must implement S; registration
// panics otherwise since it only happens at package init.
func Register[S any, V any](r *Registry[S], kind string) {
	var zero V
	if _, ok := any(zero).(S); !ok {
		panic(fmt.Sprintf("union %s: %T does not implement the union", r.name, zero))
	}
	if _, dup := r.decode[kind]; dup {
		panic(fmt.Sprintf("union %s: duplicate kind %q", r.name, kind))
	}

	r.kinds[reflect.TypeOf(zero)] = kind
	r.ordered = append(r.ordered, kind)
	r.decode[kind] = func(raw json.RawMessage) (S, error) {
		var v V
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &v); err != nil {
				var s S
				return s, fmt.Errorf("union %s: decode %s: %w", r.name, kind, err)
			}
		}
		return any(v).(S), nil
	}
}

// Kind returns the registered kind of value.
func (r *Registry[S]) Kind(value S) (string, error) {
	if any(value) == nil {
		return "", fmt.Errorf("union %s: %w", r.name, ErrNilValue)
	}
	kind, ok := r.kinds[reflect.TypeOf(value)]
	if !ok {
		return "", fmt.Errorf("union %s: %w: %T", r.name, ErrUnknownVariant, value)
	}
	return kind, nil
}

// Kinds returns every registered kind in registration order.
func (r *Registry[S]) Kinds() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry[S]) Marshal(value S) ([]byte, error) {
	kind, err := r.Kind(value)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("union %s: encode %s: %w", r.name, kind, err)
	}
	if string(raw) == "{}" {
		raw = nil
	}
	return json.Marshal(envelope{Kind: kind, Value: raw})
}

func (r *Registry[S]) Unmarshal(data []byte) (S, error) {
	var zero S
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, fmt.Errorf("union %s: %w", r.name, err)
	}
	decode, ok := r.decode[env.Kind]
	if !ok {
		return zero, fmt.Errorf("union %s: %w: %q", r.name, ErrUnknownKind, env.Kind)
	}
	return decode(env.Value)
}
