package relation

import (
	"fmt"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

const (
	// SlotsPerCategory is the number of slots reserved for each relation category.
	SlotsPerCategory = 12
	// TotalSlots is the fixed size of every entity's matrix.
	TotalSlots = SlotsPerCategory * 12
)

// #region types
// SlotKey addresses one slot of the matrix.
type SlotKey struct {
	Category catalog.RelationCategory `json:"category"`
	Index    int                      `json:"index"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s[%d]", k.Category, k.Index)
}

// Slot is one typed, directed relationship cell. A slot is filled iff
// TargetID is set; targets are referenced by id, never by pointer.
type Slot struct {
	Key         SlotKey `json:"key"`
	TargetID    string  `json:"target_id,omitempty"`
	TargetName  string  `json:"target_name,omitempty"`
	Interaction float64 `json:"interaction_value"`
}

// Filled reports whether the slot is bound to a target.
func (s Slot) Filled() bool { return s.TargetID != "" }

// Matrix is the fixed 144-slot relationship store of one entity.
// Not safe for concurrent use; the registry guards it with the entity lock.
type Matrix struct {
	owner catalog.Category
	slots [TotalSlots]Slot
}

// #endregion types

// #region constructor
// NewMatrix returns a matrix with every slot unbound and carrying its
// relation category's default interaction value.
func NewMatrix(owner catalog.Category) *Matrix {
	m := &Matrix{owner: owner}
	for ci, rc := range catalog.RelationCategories() {
		for i := 0; i < SlotsPerCategory; i++ {
			m.slots[ci*SlotsPerCategory+i] = Slot{
				Key:         SlotKey{Category: rc, Index: i},
				Interaction: catalog.DefaultInteraction(rc),
			}
		}
	}
	return m
}

// Owner returns the category of the entity owning the matrix.
func (m *Matrix) Owner() catalog.Category { return m.owner }

// #endregion constructor

// #region bind
// Bind attaches targetID to the first unbound slot of rc in index order.
// ok is false when all 12 slots of rc are bound or rc is unknown; capacity
// is a normal outcome the caller must handle.
func (m *Matrix) Bind(rc catalog.RelationCategory, targetID, targetName string, initial *float64) (SlotKey, bool) {
	base, ok := offset(rc)
	if !ok || targetID == "" {
		return SlotKey{}, false
	}
	for i := 0; i < SlotsPerCategory; i++ {
		s := &m.slots[base+i]
		if s.Filled() {
			continue
		}
		s.TargetID = targetID
		s.TargetName = targetName
		if initial != nil {
			s.Interaction = state.Clamp(*initial)
		}
		return s.Key, true
	}
	return SlotKey{}, false
}

// Unbind clears the slot's target and restores the default interaction.
// It reports whether the slot was filled.
func (m *Matrix) Unbind(key SlotKey) bool {
	s := m.slot(key)
	if s == nil || !s.Filled() {
		return false
	}
	*s = Slot{Key: s.Key, Interaction: catalog.DefaultInteraction(key.Category)}
	return true
}

// SetInteraction overwrites a slot's interaction value, clamped to [-1,1].
func (m *Matrix) SetInteraction(key SlotKey, v float64) bool {
	s := m.slot(key)
	if s == nil {
		return false
	}
	s.Interaction = state.Clamp(v)
	return true
}

// #endregion bind

// #region query
// Get returns a copy of the slot at key.
func (m *Matrix) Get(key SlotKey) (Slot, bool) {
	s := m.slot(key)
	if s == nil {
		return Slot{}, false
	}
	return *s, true
}

// Filled returns copies of all bound slots in matrix order.
func (m *Matrix) Filled() []Slot {
	var out []Slot
	for _, s := range m.slots {
		if s.Filled() {
			out = append(out, s)
		}
	}
	return out
}

// ForCategory returns copies of the 12 slots reserved for rc.
func (m *Matrix) ForCategory(rc catalog.RelationCategory) []Slot {
	base, ok := offset(rc)
	if !ok {
		return nil
	}
	out := make([]Slot, SlotsPerCategory)
	copy(out, m.slots[base:base+SlotsPerCategory])
	return out
}

// CategoryFill returns the number of bound slots of rc.
func (m *Matrix) CategoryFill(rc catalog.RelationCategory) int {
	n := 0
	for _, s := range m.ForCategory(rc) {
		if s.Filled() {
			n++
		}
	}
	return n
}

// FilledCount returns the number of bound slots.
func (m *Matrix) FilledCount() int {
	n := 0
	for _, s := range m.slots {
		if s.Filled() {
			n++
		}
	}
	return n
}

// FillRate is the fraction of the 144 slots that are bound.
func (m *Matrix) FillRate() float64 {
	return float64(m.FilledCount()) / TotalSlots
}

// MeanFilledInteraction averages the interaction values of bound slots.
// ok is false when nothing is bound.
func (m *Matrix) MeanFilledInteraction() (float64, bool) {
	var sum float64
	n := 0
	for _, s := range m.slots {
		if s.Filled() {
			sum += s.Interaction
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// BoundTo returns the keys of every slot pointing at targetID.
func (m *Matrix) BoundTo(targetID string) []SlotKey {
	var keys []SlotKey
	for _, s := range m.slots {
		if s.TargetID == targetID && s.Filled() {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Snapshot copies every slot, giving callers a consistent view to read
// after the entity lock is released.
func (m *Matrix) Snapshot() []Slot {
	out := make([]Slot, TotalSlots)
	copy(out, m.slots[:])
	return out
}

// #endregion query

// #region helpers
func offset(rc catalog.RelationCategory) (int, bool) {
	ci, ok := catalog.RelationIndex(rc)
	if !ok {
		return 0, false
	}
	return ci * SlotsPerCategory, true
}

func (m *Matrix) slot(key SlotKey) *Slot {
	base, ok := offset(key.Category)
	if !ok || key.Index < 0 || key.Index >= SlotsPerCategory {
		return nil
	}
	return &m.slots[base+key.Index]
}

// #endregion helpers
