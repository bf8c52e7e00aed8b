// Package machine holds the per-tile-type behavior functions the router
// dispatches transactions and extract requests to.
package machine

import (
	"fmt"

	"tilecraft.dev/internal/sim/grid"
)

// Behavior is the fixed capability set of one tile type. Handlers are pure
// over the instance's own state plus the input message; they never touch
// another instance.
type Behavior interface {
	// FunctionID is the stable identity used for dispatch and registration.
	FunctionID() string
	// IDDeps declares the state slots the handlers read and write, as
	// [localName, storageKey] pairs. The router allocates instance storage
	// from these.
	IDDeps() [][2]string
	HandleTransaction(st *State, in Transaction) Outcome
	HandleExtractRequest(st *State, in ExtractRequest) Outcome
}

// Producer is an optional capability: tiles that originate transactions on
// their own each tick (extractors and the like).
type Producer interface {
	Produce(st *State, self grid.Coord) (item string, ok bool)
}

// Transaction is one unit of resource moving between tiles.
type Transaction struct {
	Self   grid.Coord
	Item   string
	Origin grid.Coord
}

// ExtractRequest asks the receiving tile to begin supplying a resource.
type ExtractRequest struct {
	Self          grid.Coord
	Item          string
	RequestedFrom grid.Coord
}

type OutcomeKind uint8

const (
	// KindNone consumes or ignores the message. A valid terminal outcome.
	KindNone OutcomeKind = iota
	// KindPassOn forwards the current message unchanged to Coord.
	KindPassOn
	// KindMakeExtractRequest originates a new extract request to Coord
	// carrying Item, with Origin as the requester's reply address.
	KindMakeExtractRequest
)

// Outcome is the closed result type of a handler invocation. The zero
// value is None.
type Outcome struct {
	Kind   OutcomeKind
	Coord  grid.Coord
	Item   string
	Origin grid.Coord
}

func None() Outcome { return Outcome{} }

func PassOn(coord grid.Coord) Outcome {
	return Outcome{Kind: KindPassOn, Coord: coord}
}

func MakeExtractRequest(coord grid.Coord, item string, origin grid.Coord) Outcome {
	return Outcome{Kind: KindMakeExtractRequest, Coord: coord, Item: item, Origin: origin}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindPassOn:
		return fmt.Sprintf("PassOn(%s)", o.Coord)
	case KindMakeExtractRequest:
		return fmt.Sprintf("MakeExtractRequest(%s, %s, %s)", o.Coord, o.Item, o.Origin)
	default:
		return "None"
	}
}
