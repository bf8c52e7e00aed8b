package world

import (
	"errors"
	"testing"

	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/grid"
)

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var ce *CodeError
	if !errors.As(err, &ce) {
		t.Fatalf("err=%v, want *CodeError %s", err, code)
	}
	if ce.Code != code {
		t.Fatalf("code=%s, want %s (err=%v)", ce.Code, code, err)
	}
}

func TestPlaceTile_DependsOnGate(t *testing.T) {
	w := testWorld(t)
	err := w.PlaceTile("TEST", grid.Coord{X: 0, Y: 0}, "node")
	wantCode(t, err, protocol.ErrLocked)

	mustPlace(t, w, grid.Coord{X: 1, Y: 1}, "hub")
	mustPlace(t, w, grid.Coord{X: 0, Y: 0}, "node")
}

func TestPlaceTile_RequiredItemsSpendThePool(t *testing.T) {
	w := testWorld(t)
	mustPlace(t, w, grid.Coord{X: 9, Y: 9}, "hub")

	before := w.PoolCount("plate")
	mustPlace(t, w, grid.Coord{X: 0, Y: 0}, "node")
	if got := w.PoolCount("plate"); got != before-1 {
		t.Fatalf("pool=%d, want %d", got, before-1)
	}

	// Drain the pool; the next placement must refuse without mutating.
	for i := 0; w.PoolCount("plate") > 0; i++ {
		mustPlace(t, w, grid.Coord{X: i, Y: 1}, "node")
	}
	err := w.PlaceTile("TEST", grid.Coord{X: 0, Y: 2}, "node")
	wantCode(t, err, protocol.ErrNoResource)
	if _, ok := w.InstanceAt(grid.Coord{X: 0, Y: 2}); ok {
		t.Fatalf("refused placement still created an instance")
	}
}

func TestPlaceTile_Occupied(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "hub")
	wantCode(t, w.PlaceTile("TEST", pos, "extractor"), protocol.ErrOccupied)
}

func TestPlaceTile_UnknownTile(t *testing.T) {
	w := testWorld(t)
	wantCode(t, w.PlaceTile("TEST", grid.Coord{X: 0, Y: 0}, "nope"), protocol.ErrBadRequest)
}

func TestRemoveTile_NoTile(t *testing.T) {
	w := testWorld(t)
	wantCode(t, w.RemoveTile("TEST", grid.Coord{X: 0, Y: 0}), protocol.ErrNoTile)
}

func TestSetTarget_RequiresTargetSlot(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "hub") // void behavior declares no slots
	wantCode(t, w.SetTarget("TEST", pos, grid.Coord{X: 1, Y: 0}), protocol.ErrBadTarget)
}

func TestSetItem_UnknownItem(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "extractor")
	wantCode(t, w.SetItem("TEST", pos, "nope"), protocol.ErrBadRequest)
}

func TestSubmitAnswer_WrongAnswerIsNotAnError(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "gated_node")

	solved, err := w.SubmitAnswer("TEST", pos, map[string][]string{})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if solved {
		t.Fatalf("solved=true for empty answer")
	}
	inst, _ := w.InstanceAt(pos)
	if inst.Completed {
		t.Fatalf("wrong answer marked the puzzle complete")
	}
}

func TestSubmitAnswer_MalformedAnswerIsError(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "gated_node")
	_, err := w.SubmitAnswer("TEST", pos, map[string][]string{"purple": {"white"}})
	wantCode(t, err, protocol.ErrBadRequest)
}

func TestSubmitAnswer_NoPuzzle(t *testing.T) {
	w := testWorld(t)
	pos := grid.Coord{X: 0, Y: 0}
	mustPlace(t, w, pos, "hub")
	_, err := w.SubmitAnswer("TEST", pos, map[string][]string{})
	wantCode(t, err, protocol.ErrBadRequest)
}

func TestInject_UnknownItem(t *testing.T) {
	w := testWorld(t)
	wantCode(t, w.InjectTransaction("TEST", grid.Coord{X: 0, Y: 0}, "nope"), protocol.ErrBadRequest)
}
