package world

import (
	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/machine"
)

type MsgKind string

const (
	MsgTransaction    MsgKind = "TRANSACTION"
	MsgExtractRequest MsgKind = "EXTRACT_REQUEST"
)

// Message is one queued delivery. Messages are transient: the router owns
// them for a single tick and no instance retains one after handling.
type Message struct {
	Kind MsgKind `json:"kind"`
	To   [2]int  `json:"to"`
	Item string  `json:"item"`
	// Origin is the transaction's origin coordinate.
	Origin [2]int `json:"origin,omitempty"`
	// RequestedFrom is the extract request's reply address.
	RequestedFrom [2]int `json:"requested_from,omitempty"`
}

// enqueue adds m for delivery on the NEXT drain. Over-cap messages are
// dropped and audited, never fatal.
func (w *World) enqueue(tick uint64, m Message) {
	if len(w.queue) >= w.cfg.MaxQueuePerTick {
		w.unroutableTotal++
		w.event(tick, protocol.EventUnroutable, m.To, m.Item, "QUEUE_FULL")
		w.audit(tick, "WORLD", "MSG_DROP", m.To, "QUEUE_FULL", nil)
		return
	}
	w.queue = append(w.queue, m)
}

// deliverAll drains exactly the messages queued before this tick, in FIFO
// order. Outcomes enqueue for the next tick only, so no handler observes
// another handler's same-tick mutation through the queue.
func (w *World) deliverAll(tick uint64) (delivered, unroutable int) {
	incoming := w.queue
	w.queue = nil

	for _, m := range incoming {
		to := grid.FromArray(m.To)
		inst, ok := w.instances[to]
		if !ok {
			unroutable++
			w.dropUnroutable(tick, m, "NO_TILE")
			continue
		}
		if inst.Behavior == nil {
			unroutable++
			w.dropUnroutable(tick, m, "NO_FUNCTION")
			continue
		}
		if inst.Puzzle != nil && !inst.Completed {
			unroutable++
			w.dropUnroutable(tick, m, "PUZZLE_UNSOLVED")
			continue
		}

		var out machine.Outcome
		switch m.Kind {
		case MsgTransaction:
			out = inst.Behavior.HandleTransaction(inst.State, machine.Transaction{
				Self:   to,
				Item:   m.Item,
				Origin: grid.FromArray(m.Origin),
			})
			w.event(tick, protocol.EventTransaction, m.To, m.Item, "")
		case MsgExtractRequest:
			out = inst.Behavior.HandleExtractRequest(inst.State, machine.ExtractRequest{
				Self:          to,
				Item:          m.Item,
				RequestedFrom: grid.FromArray(m.RequestedFrom),
			})
			w.event(tick, protocol.EventExtractRequest, m.To, m.Item, "")
		default:
			unroutable++
			w.dropUnroutable(tick, m, "BAD_KIND")
			continue
		}
		delivered++

		switch out.Kind {
		case machine.KindPassOn:
			fwd := m
			fwd.To = out.Coord.ToArray()
			w.enqueue(tick, fwd)
		case machine.KindMakeExtractRequest:
			w.enqueue(tick, Message{
				Kind:          MsgExtractRequest,
				To:            out.Coord.ToArray(),
				Item:          out.Item,
				RequestedFrom: out.Origin.ToArray(),
			})
		}
	}
	return delivered, unroutable
}

func (w *World) dropUnroutable(tick uint64, m Message, reason string) {
	w.unroutableTotal++
	w.event(tick, protocol.EventUnroutable, m.To, m.Item, reason)
	w.audit(tick, "WORLD", "MSG_DROP", m.To, reason, map[string]any{"kind": string(m.Kind)})
}

// producePass lets Producer tiles originate transactions, in sorted coord
// order for determinism. Produced transactions are addressed to the
// producer itself and delivered next tick.
func (w *World) producePass(tick uint64) {
	for _, c := range grid.SortedCoords(w.instances) {
		inst := w.instances[c]
		if inst.Behavior == nil {
			continue
		}
		if inst.Puzzle != nil && !inst.Completed {
			continue
		}
		p, ok := inst.Behavior.(machine.Producer)
		if !ok {
			continue
		}
		item, ok := p.Produce(inst.State, c)
		if !ok {
			continue
		}
		w.enqueue(tick, Message{
			Kind:   MsgTransaction,
			To:     c.ToArray(),
			Item:   item,
			Origin: c.ToArray(),
		})
	}
}
