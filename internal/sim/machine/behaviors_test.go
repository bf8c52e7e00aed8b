package machine

import (
	"testing"

	"tilecraft.dev/internal/sim/grid"
)

func nodeState() *State { return NewState(NodeBehavior{}.IDDeps()) }

func TestNode_TargetWithoutRequesterMakesExtractRequest(t *testing.T) {
	st := nodeState()
	st.SetCoord(KeyTarget, grid.Coord{X: 1, Y: 0})

	self := grid.Coord{X: 5, Y: 5}
	out := NodeBehavior{}.HandleTransaction(st, Transaction{Self: self, Item: "ore_raw", Origin: self})
	if out.Kind != KindMakeExtractRequest {
		t.Fatalf("outcome=%v, want MakeExtractRequest", out)
	}
	if want := (grid.Coord{X: 6, Y: 5}); out.Coord != want {
		t.Fatalf("coord=%v, want %v (self+target)", out.Coord, want)
	}
	if out.Item != "ore_raw" || out.Origin != self {
		t.Fatalf("outcome=%v, want item and origin preserved", out)
	}
}

func TestNode_RequesterWinsOverTarget(t *testing.T) {
	st := nodeState()
	st.SetCoord(KeyTarget, grid.Coord{X: 1, Y: 0})

	requester := grid.Coord{X: 2, Y: 9}
	NodeBehavior{}.HandleExtractRequest(st, ExtractRequest{Self: grid.Coord{X: 5, Y: 5}, Item: "ore_raw", RequestedFrom: requester})

	out := NodeBehavior{}.HandleTransaction(st, Transaction{Self: grid.Coord{X: 5, Y: 5}, Item: "ore_raw"})
	if out.Kind != KindPassOn || out.Coord != requester {
		t.Fatalf("outcome=%v, want PassOn(%v) regardless of target", out, requester)
	}
}

func TestNode_NoTargetNoRequesterIsNoop(t *testing.T) {
	st := nodeState()
	out := NodeBehavior{}.HandleTransaction(st, Transaction{Self: grid.Coord{X: 0, Y: 0}, Item: "ore_raw"})
	if out.Kind != KindNone {
		t.Fatalf("outcome=%v, want None", out)
	}
}

func TestNode_DuplicateExtractRequestLastWriteWins(t *testing.T) {
	st := nodeState()
	b := NodeBehavior{}
	first := grid.Coord{X: 1, Y: 1}
	second := grid.Coord{X: 3, Y: 3}

	b.HandleExtractRequest(st, ExtractRequest{RequestedFrom: first})
	b.HandleExtractRequest(st, ExtractRequest{RequestedFrom: second})

	got, ok := st.GetCoord(KeyRequestedFrom)
	if !ok || got != second {
		t.Fatalf("requester=%v ok=%v, want %v (last write wins)", got, ok, second)
	}

	// Same request twice records the same requester both times.
	b.HandleExtractRequest(st, ExtractRequest{RequestedFrom: second})
	got, _ = st.GetCoord(KeyRequestedFrom)
	if got != second {
		t.Fatalf("requester=%v, want %v after duplicate", got, second)
	}
}

func TestExtractor_ProducesOnlyWhenAsked(t *testing.T) {
	st := NewState(ExtractorBehavior{}.IDDeps())
	st.SetString(KeyItem, "ore_raw")
	b := ExtractorBehavior{}
	self := grid.Coord{X: 0, Y: 0}

	if _, ok := b.Produce(st, self); ok {
		t.Fatalf("Produce=true before any extract request")
	}

	b.HandleExtractRequest(st, ExtractRequest{Self: self, Item: "ore_raw", RequestedFrom: grid.Coord{X: 0, Y: 1}})
	item, ok := b.Produce(st, self)
	if !ok || item != "ore_raw" {
		t.Fatalf("Produce=(%q,%v), want ore_raw", item, ok)
	}

	out := b.HandleTransaction(st, Transaction{Self: self, Item: "ore_raw", Origin: self})
	if out.Kind != KindPassOn || (out.Coord != grid.Coord{X: 0, Y: 1}) {
		t.Fatalf("outcome=%v, want PassOn(0,1)", out)
	}
}

func TestExtractor_IgnoresWrongItemRequest(t *testing.T) {
	st := NewState(ExtractorBehavior{}.IDDeps())
	st.SetString(KeyItem, "ore_raw")
	ExtractorBehavior{}.HandleExtractRequest(st, ExtractRequest{Item: "circuit", RequestedFrom: grid.Coord{X: 0, Y: 1}})
	if _, ok := st.GetCoord(KeyRequestedFrom); ok {
		t.Fatalf("requester recorded for an item this extractor does not supply")
	}
}

func TestState_UndeclaredKeysRejected(t *testing.T) {
	st := nodeState()
	st.SetCoord("tilecraft:other", grid.Coord{X: 1, Y: 1})
	if _, ok := st.GetCoord("tilecraft:other"); ok {
		t.Fatalf("undeclared slot accepted a write")
	}
	if st.Has("tilecraft:other") {
		t.Fatalf("Has=true for undeclared slot")
	}
}

func TestState_ExportImportRoundTrip(t *testing.T) {
	st := nodeState()
	st.SetCoord(KeyTarget, grid.Coord{X: -1, Y: 2})

	back := nodeState()
	back.Import(st.Export())
	got, ok := back.GetCoord(KeyTarget)
	if !ok || (got != grid.Coord{X: -1, Y: 2}) {
		t.Fatalf("target=%v ok=%v after round trip", got, ok)
	}
	if _, ok := back.GetCoord(KeyRequestedFrom); ok {
		t.Fatalf("unset slot became set after round trip")
	}
}
