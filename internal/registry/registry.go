package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a slot in a Table. The generation is bumped every time a slot
// is vacated so that ids handed out before a removal never resolve again.
type ID struct {
	Index uint32
	Gen   uint32
}

// Null is the zero ID. It never resolves.
var Null = ID{}

func (id ID) IsNull() bool {
	return id == Null
}

func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.Index, id.Gen)
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID parses the "<index>.<gen>" form produced by ID.String.
func ParseID(s string) (ID, error) {
	idx, gen, ok := strings.Cut(s, ".")
	if !ok {
		return Null, fmt.Errorf("invalid object id %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Null, fmt.Errorf("parsing object id index: %w", err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return Null, fmt.Errorf("parsing object id generation: %w", err)
	}
	return ID{Index: uint32(i), Gen: uint32(g)}, nil
}

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Table is a generation-checked slot table. It is not safe for concurrent use;
// callers serialize access (the world guards its table with the world lock).
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func NewTable[T any]() *Table[T] {
	// Slot 0 is reserved so that the zero ID stays null.
	return &Table[T]{slots: make([]slot[T], 1)}
}

// Insert stores v in a free slot and returns its id.
func (t *Table[T]) Insert(v T) ID {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{gen: 1})
		idx = uint32(len(t.slots) - 1)
	}

	s := &t.slots[idx]
	s.live = true
	s.val = v
	t.count++

	return ID{Index: idx, Gen: s.gen}
}

// Get resolves id. Stale ids (the slot was removed, possibly reused) report false.
func (t *Table[T]) Get(id ID) (T, bool) {
	var zero T
	if id.Index == 0 || int(id.Index) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[id.Index]
	if !s.live || s.gen != id.Gen {
		return zero, false
	}
	return s.val, true
}

// Remove tombstones the slot for id. It reports whether anything was removed.
func (t *Table[T]) Remove(id ID) bool {
	if _, ok := t.Get(id); !ok {
		return false
	}

	var zero T
	s := &t.slots[id.Index]
	s.live = false
	s.val = zero
	s.gen++
	if s.gen == 0 {
		// Skip generation 0 so a wrapped slot never matches a zero-gen id.
		s.gen = 1
	}
	t.free = append(t.free, id.Index)
	t.count--

	return true
}

func (t *Table[T]) Len() int {
	return t.count
}

// Each calls fn for every live entry in slot order.
func (t *Table[T]) Each(fn func(ID, T)) {
	for i := 1; i < len(t.slots); i++ {
		s := &t.slots[i]
		if s.live {
			fn(ID{Index: uint32(i), Gen: s.gen}, s.val)
		}
	}
}
