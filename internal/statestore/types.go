package statestore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Slot is the unit of state-vector content.
type Slot uint32

// SlotSize is the encoded width of a Slot in bytes.
const SlotSize = 4

// MaxSlots is the longest storable vector: a record's byte length is a uint32.
const MaxSlots = math.MaxUint32 / SlotSize

// StateID is the opaque identity of stored content within a partition.
type StateID uint64

// NoState is the "none" sentinel. No backend ever assigns it.
const NoState StateID = math.MaxUint64

// Valid reports whether id is not the sentinel.
func (id StateID) Valid() bool {
	return id != NoState
}

func (id StateID) String() string {
	if id == NoState {
		return "none"
	}
	return fmt.Sprintf("%#x", uint64(id))
}

// Lo and Hi split an id into two slots so models can embed references.
func (id StateID) Lo() Slot { return Slot(uint64(id)) }
func (id StateID) Hi() Slot { return Slot(uint64(id) >> 32) }

// JoinID is the inverse of Lo/Hi.
func JoinID(lo, hi Slot) StateID {
	return StateID(uint64(hi)<<32 | uint64(lo))
}

// Partition separates identity namespaces. The same bytes inserted into two
// partitions get independent identities.
type Partition uint16

const (
	// PartitionRoot holds explorable states.
	PartitionRoot Partition = 0
	// PartitionSub holds referenced substates that are never explored.
	PartitionSub Partition = 1

	firstChunkPartition Partition = 2
)

// ChunkPartition returns the partition for a chunk kind.
func ChunkPartition(kind int) Partition {
	return firstChunkPartition + Partition(kind)
}

func (p Partition) String() string {
	switch p {
	case PartitionRoot:
		return "root"
	case PartitionSub:
		return "sub"
	default:
		return fmt.Sprintf("chunk%d", int(p-firstChunkPartition))
	}
}

// FullState is a decoded state vector.
type FullState struct {
	ID        StateID
	Partition Partition
	Slots     []Slot
}

// Root reports whether the state is an explorable root state.
func (s FullState) Root() bool {
	return s.Partition == PartitionRoot
}

// Len returns the number of slots.
func (s FullState) Len() int {
	return len(s.Slots)
}

// InsertedState is the result of every store mutation.
type InsertedState struct {
	ID  StateID
	New bool
}

// Delta replaces len(Payload) slots starting at Offset.
type Delta struct {
	Offset  int
	Payload []Slot
}

// NewDelta builds a delta from a slot list.
func NewDelta(offset int, payload ...Slot) Delta {
	return Delta{Offset: offset, Payload: payload}
}

// Len returns the number of replaced slots.
func (d Delta) Len() int {
	return len(d.Payload)
}

// Apply derives a new vector from base. base is not modified.
// If the delta reaches past the end of base the result grows and the gap is
// zero-filled.
func Apply(base []Slot, d Delta) ([]Slot, error) {
	if d.Offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ErrBadDelta, d.Offset)
	}
	if d.Offset > MaxSlots || len(d.Payload) > MaxSlots-d.Offset {
		return nil, fmt.Errorf("%w: offset %d with %d slots exceeds %d slots", ErrBadDelta, d.Offset, len(d.Payload), MaxSlots)
	}
	end := d.Offset + len(d.Payload)
	out := make([]Slot, max(len(base), end))
	copy(out, base)
	copy(out[d.Offset:], d.Payload)
	return out, nil
}

func encodeSlots(slots []Slot) []byte {
	b := make([]byte, len(slots)*SlotSize)
	for i, s := range slots {
		binary.LittleEndian.PutUint32(b[i*SlotSize:], uint32(s))
	}
	return b
}

func decodeSlots(b []byte) ([]Slot, error) {
	if len(b)%SlotSize != 0 {
		return nil, fmt.Errorf("record length %d is not a multiple of %d", len(b), SlotSize)
	}
	slots := make([]Slot, len(b)/SlotSize)
	for i := range slots {
		slots[i] = Slot(binary.LittleEndian.Uint32(b[i*SlotSize:]))
	}
	return slots, nil
}
