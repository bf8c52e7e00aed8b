package world

import (
	"fmt"

	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/machine"
	"tilecraft.dev/internal/sim/puzzle"
)

// CodeError carries a protocol error code alongside the message so the
// transport can ack with the right code.
type CodeError struct {
	Code string
	Msg  string
}

func (e *CodeError) Error() string { return e.Code + ": " + e.Msg }

func codeErr(code, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// PlaceTile places tileID at pos: unlock gating, required_items payment,
// instance creation with the behavior's declared slots, puzzle attachment,
// and granting the tile's unlocks.
func (w *World) PlaceTile(actor string, pos grid.Coord, tileID string) error {
	tick := w.tick.Load()
	def, ok := w.cats.Tiles.ByID[tileID]
	if !ok {
		return codeErr(protocol.ErrBadRequest, "unknown tile %q", tileID)
	}
	if _, occupied := w.instances[pos]; occupied {
		return codeErr(protocol.ErrOccupied, "tile already at %s", pos)
	}
	if def.DependsOn != "" && w.placed[def.DependsOn] == 0 {
		return codeErr(protocol.ErrLocked, "%s requires %s placed first", tileID, def.DependsOn)
	}
	if w.unlockable[tileID] && !w.unlocked[tileID] {
		return codeErr(protocol.ErrLocked, "%s not unlocked", tileID)
	}
	for item, n := range def.RequiredItems {
		if w.pool[item] < n {
			return codeErr(protocol.ErrNoResource, "need %d %s, have %d", n, item, w.pool[item])
		}
	}
	for item, n := range def.RequiredItems {
		w.pool[item] -= n
		if w.pool[item] <= 0 {
			delete(w.pool, item)
		}
	}

	inst := &Instance{Coord: pos, Tile: tileID}
	if def.Function != "" {
		if b, ok := w.reg.Lookup(def.Function); ok {
			inst.Behavior = b
			inst.State = machine.NewState(b.IDDeps())
		}
	}
	if pz, ok := w.cats.ResolvePuzzle(def); ok {
		inst.Puzzle = &pz
	}
	w.instances[pos] = inst

	for _, id := range def.Unlocks {
		w.unlocked[id] = true
	}
	w.placed[tileID]++

	w.event(tick, protocol.EventPlace, pos.ToArray(), tileID, "")
	w.audit(tick, actor, "PLACE_TILE", pos.ToArray(), "", map[string]any{"tile": tileID})
	return nil
}

// RemoveTile destroys the instance at pos. Messages still queued for the
// coordinate become unroutable on the next drain; spent items stay spent.
func (w *World) RemoveTile(actor string, pos grid.Coord) error {
	tick := w.tick.Load()
	inst, ok := w.instances[pos]
	if !ok {
		return codeErr(protocol.ErrNoTile, "no tile at %s", pos)
	}
	delete(w.instances, pos)
	if w.placed[inst.Tile] > 0 {
		w.placed[inst.Tile]--
	}
	w.event(tick, protocol.EventRemove, pos.ToArray(), inst.Tile, "")
	w.audit(tick, actor, "REMOVE_TILE", pos.ToArray(), "", map[string]any{"tile": inst.Tile})
	return nil
}

// SetTarget writes the tile's TARGET slot: the offset its transactions
// chase when nothing has requested extraction from it.
func (w *World) SetTarget(actor string, pos, offset grid.Coord) error {
	inst, ok := w.instances[pos]
	if !ok {
		return codeErr(protocol.ErrNoTile, "no tile at %s", pos)
	}
	if inst.State == nil || !inst.State.Has(machine.KeyTarget) {
		return codeErr(protocol.ErrBadTarget, "%s has no target slot", inst.Tile)
	}
	inst.State.SetCoord(machine.KeyTarget, offset)
	w.audit(w.tick.Load(), actor, "SET_TARGET", pos.ToArray(), "", map[string]any{"target": offset.ToArray()})
	return nil
}

// SetItem configures which resource the tile supplies.
func (w *World) SetItem(actor string, pos grid.Coord, item string) error {
	inst, ok := w.instances[pos]
	if !ok {
		return codeErr(protocol.ErrNoTile, "no tile at %s", pos)
	}
	if _, known := w.cats.Items.Defs[item]; !known {
		return codeErr(protocol.ErrBadRequest, "unknown item %q", item)
	}
	if inst.State == nil || !inst.State.Has(machine.KeyItem) {
		return codeErr(protocol.ErrBadRequest, "%s has no item slot", inst.Tile)
	}
	inst.State.SetString(machine.KeyItem, item)
	w.audit(w.tick.Load(), actor, "SET_ITEM", pos.ToArray(), "", map[string]any{"item": item})
	return nil
}

// SubmitAnswer validates a wiring attempt against the tile's attached
// puzzle. A wrong answer is a game outcome, not an error: solved=false,
// err=nil. Malformed answers (ids outside the puzzle) are errors.
func (w *World) SubmitAnswer(actor string, pos grid.Coord, answer puzzle.Answer) (bool, error) {
	tick := w.tick.Load()
	inst, ok := w.instances[pos]
	if !ok {
		return false, codeErr(protocol.ErrNoTile, "no tile at %s", pos)
	}
	if inst.Puzzle == nil {
		return false, codeErr(protocol.ErrBadRequest, "%s has no puzzle", inst.Tile)
	}

	anchors := make(map[grid.Coord]string, len(inst.Puzzle.Anchors))
	for posStr, id := range inst.Puzzle.Anchors {
		c, err := grid.ParseCoord(posStr)
		if err != nil {
			return false, codeErr(protocol.ErrInternal, "puzzle %s: %v", inst.Puzzle.ID, err)
		}
		anchors[c] = id
	}

	solved, err := puzzle.Validate(anchors, inst.Puzzle.Selections, inst.Puzzle.Connections, answer)
	if err != nil {
		return false, codeErr(protocol.ErrBadRequest, "%v", err)
	}
	if !solved {
		w.event(tick, protocol.EventPuzzleFailed, pos.ToArray(), "", "")
		w.audit(tick, actor, "SUBMIT_ANSWER", pos.ToArray(), "WRONG", nil)
		return false, nil
	}
	inst.Completed = true
	w.event(tick, protocol.EventPuzzleSolved, pos.ToArray(), "", "")
	w.audit(tick, actor, "SUBMIT_ANSWER", pos.ToArray(), "SOLVED", nil)
	return true, nil
}

// InjectTransaction feeds a transaction into the grid, addressed to pos
// and delivered on the next tick. Transport clients and tests use this as
// the protocol's entry point.
func (w *World) InjectTransaction(actor string, pos grid.Coord, item string) error {
	tick := w.tick.Load()
	if _, known := w.cats.Items.Defs[item]; !known {
		return codeErr(protocol.ErrBadRequest, "unknown item %q", item)
	}
	w.enqueue(tick, Message{
		Kind:   MsgTransaction,
		To:     pos.ToArray(),
		Item:   item,
		Origin: pos.ToArray(),
	})
	w.audit(tick, actor, "INJECT", pos.ToArray(), "", map[string]any{"item": item})
	return nil
}
