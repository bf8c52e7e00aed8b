package world

import (
	"fmt"
	"log"
	"sort"

	"tilecraft.dev/internal/persistence/snapshot"
	"tilecraft.dev/internal/sim/catalogs"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/machine"
)

// ExportSnapshot captures the full world state. Must run on the world
// goroutine (between ticks) or before Run starts.
func (w *World) ExportSnapshot() *snapshot.SnapshotV1 {
	s := &snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: w.tick.Load()},

		TickRateHz:         w.cfg.TickRateHz,
		MaxQueuePerTick:    w.cfg.MaxQueuePerTick,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		StarterItems:       w.cfg.StarterItems,

		Pool:            copyCounts(w.pool),
		Placed:          copyCounts(w.placed),
		UnroutableTotal: w.unroutableTotal,
	}
	for id := range w.unlocked {
		s.Unlocked = append(s.Unlocked, id)
	}
	sort.Strings(s.Unlocked)

	for _, c := range grid.SortedCoords(w.instances) {
		inst := w.instances[c]
		iv := snapshot.InstanceV1{Pos: c.ToArray(), Tile: inst.Tile, Completed: inst.Completed}
		if inst.State != nil {
			iv.Slots = inst.State.Export()
		}
		s.Instances = append(s.Instances, iv)
	}
	for _, m := range w.queue {
		s.Queue = append(s.Queue, snapshot.MessageV1{
			Kind:          string(m.Kind),
			To:            m.To,
			Item:          m.Item,
			Origin:        m.Origin,
			RequestedFrom: m.RequestedFrom,
		})
	}
	return s
}

// NewFromSnapshot rebuilds a world from a snapshot against the current
// catalogs and behavior registry. Tiles whose definition disappeared from
// the catalogs are dropped with a warning rather than failing the resume.
func NewFromSnapshot(s *snapshot.SnapshotV1, cats *catalogs.Catalogs, reg *machine.Registry, logger *log.Logger) (*World, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	cfg := WorldConfig{
		ID:                 s.Header.WorldID,
		TickRateHz:         s.TickRateHz,
		MaxQueuePerTick:    s.MaxQueuePerTick,
		SnapshotEveryTicks: s.SnapshotEveryTicks,
		StarterItems:       s.StarterItems,
	}
	w := New(cfg, cats, reg, logger)
	w.tick.Store(s.Header.Tick)
	w.unroutableTotal = s.UnroutableTotal

	w.pool = copyCounts(s.Pool)
	if w.pool == nil {
		w.pool = map[string]int{}
	}
	w.placed = copyCounts(s.Placed)
	if w.placed == nil {
		w.placed = map[string]int{}
	}
	for _, id := range s.Unlocked {
		w.unlocked[id] = true
	}

	for _, iv := range s.Instances {
		def, ok := cats.Tiles.ByID[iv.Tile]
		if !ok {
			if logger != nil {
				logger.Printf("snapshot: dropping tile %q at %v: no longer in catalog", iv.Tile, iv.Pos)
			}
			continue
		}
		inst := &Instance{Coord: grid.FromArray(iv.Pos), Tile: iv.Tile, Completed: iv.Completed}
		if def.Function != "" {
			if b, ok := reg.Lookup(def.Function); ok {
				inst.Behavior = b
				inst.State = machine.NewState(b.IDDeps())
				inst.State.Import(iv.Slots)
			}
		}
		if pz, ok := cats.ResolvePuzzle(def); ok {
			inst.Puzzle = &pz
		}
		w.instances[inst.Coord] = inst
	}

	for _, m := range s.Queue {
		w.queue = append(w.queue, Message{
			Kind:          MsgKind(m.Kind),
			To:            m.To,
			Item:          m.Item,
			Origin:        m.Origin,
			RequestedFrom: m.RequestedFrom,
		})
	}
	return w, nil
}

func copyCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
