package machine

import (
	"sort"

	"tilecraft.dev/internal/sim/grid"
)

// State is the key/value storage of one tile instance, scoped to the slots
// its behavior declared via IDDeps. Values are either a coordinate or an
// item id; setting one kind clears the other.
type State struct {
	slots map[string]slot
}

type slot struct {
	coord    grid.Coord
	hasCoord bool
	str      string
	hasStr   bool
}

// NewState allocates storage for the given declared deps. Keys outside the
// declaration are rejected by the accessors, which keeps handlers honest
// about what they touch.
func NewState(deps [][2]string) *State {
	slots := make(map[string]slot, len(deps))
	for _, d := range deps {
		slots[d[1]] = slot{}
	}
	return &State{slots: slots}
}

// Has reports whether the behavior declared the slot at all.
func (s *State) Has(key string) bool {
	_, ok := s.slots[key]
	return ok
}

func (s *State) GetCoord(key string) (grid.Coord, bool) {
	sl, ok := s.slots[key]
	if !ok || !sl.hasCoord {
		return grid.Coord{}, false
	}
	return sl.coord, true
}

func (s *State) SetCoord(key string, c grid.Coord) {
	if _, ok := s.slots[key]; !ok {
		return
	}
	s.slots[key] = slot{coord: c, hasCoord: true}
}

func (s *State) GetString(key string) (string, bool) {
	sl, ok := s.slots[key]
	if !ok || !sl.hasStr {
		return "", false
	}
	return sl.str, true
}

func (s *State) SetString(key string, v string) {
	if _, ok := s.slots[key]; !ok {
		return
	}
	s.slots[key] = slot{str: v, hasStr: true}
}

func (s *State) Clear(key string) {
	if _, ok := s.slots[key]; !ok {
		return
	}
	s.slots[key] = slot{}
}

// Export flattens the state for snapshots, sorted by storage key.
func (s *State) Export() []SlotV1 {
	keys := make([]string, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]SlotV1, 0, len(keys))
	for _, k := range keys {
		sl := s.slots[k]
		v := SlotV1{Key: k}
		if sl.hasCoord {
			a := sl.coord.ToArray()
			v.Coord = &a
		}
		if sl.hasStr {
			v.Str = &sl.str
		}
		out = append(out, v)
	}
	return out
}

// Import restores exported slots. Keys outside the declared deps are
// ignored, so old snapshots survive a behavior dropping a slot.
func (s *State) Import(slots []SlotV1) {
	for _, v := range slots {
		if _, ok := s.slots[v.Key]; !ok {
			continue
		}
		switch {
		case v.Coord != nil:
			s.SetCoord(v.Key, grid.FromArray(*v.Coord))
		case v.Str != nil:
			s.SetString(v.Key, *v.Str)
		default:
			s.Clear(v.Key)
		}
	}
}

type SlotV1 struct {
	Key   string  `json:"key"`
	Coord *[2]int `json:"coord,omitempty"`
	Str   *string `json:"str,omitempty"`
}
