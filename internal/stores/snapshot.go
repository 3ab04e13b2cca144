package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

const (
	snapshotRecordVersionV1 = 1

	flagContinuable = 1 << 0
	flagTerminal    = 1 << 1

	maxKindLen  = 255
	maxStateLen = 1 << 24
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrRevisionConflict    = errors.New("snapshot revision conflict")
	ErrSnapshotUnavailable = errors.New("snapshot backend unavailable")
	ErrSnapshotCorrupt     = errors.New("snapshot record corrupt")
)

// Snapshot is the persisted form of one flow instance. State holds the
// flow's tagged-union JSON; the other fields let operators inspect a flow
// without decoding it.
type Snapshot struct {
	Kind        string
	Revision    uint64
	Step        float64
	Continuable bool
	Terminal    bool
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	State       []byte
}

func (s *Snapshot) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SnapshotStore persists flow snapshots. Save writes snap only when the
// stored revision is snap.Revision-1 (or absent when snap.Revision is 1) and
// returns ErrRevisionConflict otherwise.
type SnapshotStore interface {
	Load(ctx context.Context, flowID string) (*Snapshot, error)
	Save(ctx context.Context, flowID string, snap *Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, flowID string) error
}

func checkRevision(existing *Snapshot, next *Snapshot) error {
	if existing == nil {
		if next.Revision != 1 {
			return ErrRevisionConflict
		}
		return nil
	}
	if existing.Revision+1 != next.Revision {
		return ErrRevisionConflict
	}
	return nil
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	if len(snap.Kind) > maxKindLen {
		return nil, errors.New("snapshot kind too long")
	}
	if len(snap.State) > maxStateLen {
		return nil, errors.New("snapshot state too large")
	}

	var buf bytes.Buffer
	buf.Grow(32 + len(snap.Kind) + len(snap.State))

	buf.WriteByte(snapshotRecordVersionV1)

	var flags byte
	if snap.Continuable {
		flags |= flagContinuable
	}
	if snap.Terminal {
		flags |= flagTerminal
	}
	buf.WriteByte(flags)

	fields := []any{
		snap.Revision,
		math.Float64bits(snap.Step),
		unixNano(snap.UpdatedAt),
		unixNano(snap.ExpiresAt),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
			return nil, err
		}
	}

	buf.WriteByte(byte(len(snap.Kind)))
	buf.WriteString(snap.Kind)

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(snap.State))); err != nil {
		return nil, err
	}
	buf.Write(snap.State)

	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}
	if version != snapshotRecordVersionV1 {
		return nil, ErrSnapshotCorrupt
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}

	snap := &Snapshot{
		Continuable: flags&flagContinuable != 0,
		Terminal:    flags&flagTerminal != 0,
	}

	var stepBits uint64
	var updated, expires int64
	for _, f := range []any{&snap.Revision, &stepBits, &updated, &expires} {
		if err := binary.Read(reader, binary.BigEndian, f); err != nil {
			return nil, ErrSnapshotCorrupt
		}
	}
	snap.Step = math.Float64frombits(stepBits)
	snap.UpdatedAt = fromUnixNano(updated)
	snap.ExpiresAt = fromUnixNano(expires)

	kindLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}
	kind := make([]byte, kindLen)
	if _, err := io.ReadFull(reader, kind); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	snap.Kind = string(kind)

	var stateLen uint32
	if err := binary.Read(reader, binary.BigEndian, &stateLen); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	if stateLen > maxStateLen || int(stateLen) != reader.Len() {
		return nil, ErrSnapshotCorrupt
	}
	snap.State = make([]byte, stateLen)
	if _, err := io.ReadFull(reader, snap.State); err != nil {
		return nil, ErrSnapshotCorrupt
	}

	return snap, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
