package machine

import "tilecraft.dev/internal/sim/grid"

// Storage keys shared by the stock behaviors.
const (
	KeyTarget        = "tilecraft:target"
	KeyRequestedFrom = "tilecraft:requested_from_coord"
	KeyItem          = "tilecraft:item"
)

// NodeBehavior is the relay at the heart of the pull-then-push pattern.
// An extract request records who asked; a later transaction is passed back
// toward that requester. With no requester recorded, a transaction turns
// into an extract request toward the node's static target offset.
type NodeBehavior struct{}

func (NodeBehavior) FunctionID() string { return "tilecraft:node" }

func (NodeBehavior) IDDeps() [][2]string {
	return [][2]string{
		{"TARGET", KeyTarget},
		{"REQUESTED_FROM_COORD", KeyRequestedFrom},
	}
}

func (NodeBehavior) HandleTransaction(st *State, in Transaction) Outcome {
	if c, ok := st.GetCoord(KeyRequestedFrom); ok {
		return PassOn(c)
	}
	if t, ok := st.GetCoord(KeyTarget); ok {
		return MakeExtractRequest(in.Self.Add(t), in.Item, in.Self)
	}
	return None()
}

// Newer requests overwrite older ones: last write wins, no accumulation.
func (NodeBehavior) HandleExtractRequest(st *State, in ExtractRequest) Outcome {
	st.SetCoord(KeyRequestedFrom, in.RequestedFrom)
	return None()
}

// ExtractorBehavior supplies its configured item. It produces one
// transaction per tick once something has asked it to, and routes its own
// produce back toward the requester.
type ExtractorBehavior struct{}

func (ExtractorBehavior) FunctionID() string { return "tilecraft:extractor" }

func (ExtractorBehavior) IDDeps() [][2]string {
	return [][2]string{
		{"ITEM", KeyItem},
		{"REQUESTED_FROM_COORD", KeyRequestedFrom},
	}
}

func (ExtractorBehavior) HandleTransaction(st *State, in Transaction) Outcome {
	if c, ok := st.GetCoord(KeyRequestedFrom); ok {
		return PassOn(c)
	}
	return None()
}

func (ExtractorBehavior) HandleExtractRequest(st *State, in ExtractRequest) Outcome {
	if item, ok := st.GetString(KeyItem); !ok || item != in.Item {
		// Not our resource; someone upstream may still supply it.
		return None()
	}
	st.SetCoord(KeyRequestedFrom, in.RequestedFrom)
	return None()
}

func (ExtractorBehavior) Produce(st *State, self grid.Coord) (string, bool) {
	if _, asked := st.GetCoord(KeyRequestedFrom); !asked {
		return "", false
	}
	item, ok := st.GetString(KeyItem)
	return item, ok
}

// VoidBehavior consumes everything addressed to it.
type VoidBehavior struct{}

func (VoidBehavior) FunctionID() string { return "tilecraft:void" }

func (VoidBehavior) IDDeps() [][2]string { return nil }

func (VoidBehavior) HandleTransaction(st *State, in Transaction) Outcome { return None() }

func (VoidBehavior) HandleExtractRequest(st *State, in ExtractRequest) Outcome { return None() }
