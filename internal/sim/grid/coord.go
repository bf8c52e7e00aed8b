package grid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Coord addresses one cell of the tile grid.
type Coord struct {
	X int
	Y int
}

func (c Coord) Add(o Coord) Coord { return Coord{X: c.X + o.X, Y: c.Y + o.Y} }

func (c Coord) ToArray() [2]int { return [2]int{c.X, c.Y} }

func (c Coord) String() string { return fmt.Sprintf("%d,%d", c.X, c.Y) }

func FromArray(a [2]int) Coord { return Coord{X: a[0], Y: a[1]} }

// ParseCoord parses the "x,y" form used by config files and puzzle anchors.
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("coord %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Coord{}, fmt.Errorf("coord %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Coord{}, fmt.Errorf("coord %q: %w", s, err)
	}
	return Coord{X: x, Y: y}, nil
}

// SortedCoords returns map keys in X-then-Y order so per-tick sweeps stay
// deterministic regardless of map iteration order.
func SortedCoords[T any](m map[Coord]T) []Coord {
	if len(m) == 0 {
		return nil
	}
	out := make([]Coord, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}
