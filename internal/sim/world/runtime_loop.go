package world

import (
	"context"
	"encoding/json"
	"time"

	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/puzzle"
)

// ActionEnvelope is one client ACT waiting for the tick boundary.
type ActionEnvelope struct {
	SessionID string
	Act       protocol.ActMsg
	Reply     chan protocol.AckMsg
}

// AttachRequest subscribes a session to per-tick OBS frames.
type AttachRequest struct {
	SessionID string
	Out       chan []byte
}

func (w *World) Submit(env ActionEnvelope) {
	select {
	case w.inbox <- env:
	default:
		// Inbox full: refuse rather than block the transport goroutine.
		ack(env, false, protocol.ErrInternal, "world busy", w.tick.Load())
	}
}

func (w *World) Attach(req AttachRequest) { w.attach <- req }

func (w *World) Detach(sessionID string) { w.detach <- sessionID }

func (w *World) Stop() { close(w.stop) }

// Run drives the tick loop: pending actions accumulate between ticks and
// are applied, with the queued messages, in one discrete step.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []ActionEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.attach:
			w.clients[req.SessionID] = req.Out
		case id := <-w.detach:
			delete(w.clients, id)
		case env := <-w.inbox:
			pending = append(pending, env)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

// StepOnce advances the world by a single tick with the same ordering as
// the server loop. Intended for deterministic tests and replays.
func (w *World) StepOnce(actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(actions)
	return tick, w.stateDigest(w.tick.Load())
}

func (w *World) step(actions []ActionEnvelope) {
	tick := w.tick.Load()
	w.events = w.events[:0]

	for _, env := range actions {
		w.applyAction(tick, env)
	}

	delivered, unroutable := w.deliverAll(tick)
	w.producePass(tick)

	entry := TickLogEntry{
		Tick:       tick,
		Actions:    len(actions),
		Delivered:  delivered,
		Unroutable: unroutable,
		Events:     append([]protocol.Event(nil), w.events...),
		Digest:     w.stateDigest(tick),
	}
	if w.onTick != nil {
		w.onTick(entry)
	}
	w.broadcastObs(tick)
	w.tick.Store(tick + 1)
}

func (w *World) applyAction(tick uint64, env ActionEnvelope) {
	act := env.Act
	actor := "CLIENT:" + env.SessionID
	pos := grid.FromArray(act.Pos)

	var err error
	msg := ""
	switch act.Action {
	case protocol.ActPlaceTile:
		err = w.PlaceTile(actor, pos, act.Tile)
	case protocol.ActRemoveTile:
		err = w.RemoveTile(actor, pos)
	case protocol.ActSetTarget:
		if act.Target == nil {
			err = codeErr(protocol.ErrBadTarget, "missing target")
		} else {
			err = w.SetTarget(actor, pos, grid.FromArray(*act.Target))
		}
	case protocol.ActSetItem:
		err = w.SetItem(actor, pos, act.Item)
	case protocol.ActSubmitAnswer:
		var solved bool
		solved, err = w.SubmitAnswer(actor, pos, puzzle.Answer(act.Answer))
		if err == nil && !solved {
			msg = "not solved"
		}
	case protocol.ActInject:
		err = w.InjectTransaction(actor, pos, act.Item)
	default:
		err = codeErr(protocol.ErrBadRequest, "unknown action %q", act.Action)
	}

	if err != nil {
		code := protocol.ErrInternal
		if ce, ok := err.(*CodeError); ok {
			code = ce.Code
		}
		ack(env, false, code, err.Error(), tick)
		return
	}
	ack(env, true, "", msg, tick)
}

func ack(env ActionEnvelope, accepted bool, code, msg string, tick uint64) {
	if env.Reply == nil {
		return
	}
	select {
	case env.Reply <- protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          env.Act.ID,
		Accepted:        accepted,
		Code:            code,
		Message:         msg,
		ServerTick:      tick,
	}:
	default:
	}
}

func (w *World) broadcastObs(tick uint64) {
	if len(w.clients) == 0 {
		return
	}
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Events:          append([]protocol.Event(nil), w.events...),
		UnroutableTotal: w.unroutableTotal,
	}
	for _, c := range grid.SortedCoords(w.instances) {
		inst := w.instances[c]
		obs.Tiles = append(obs.Tiles, protocol.TileObs{
			Pos:       c.ToArray(),
			Tile:      inst.Tile,
			Completed: inst.Completed,
		})
	}
	b, err := json.Marshal(obs)
	if err != nil {
		return
	}
	for _, ch := range w.clients {
		sendLatest(ch, b)
	}
}

// sendLatest drops the oldest pending frame when a client is slow; every
// client eventually sees a recent OBS, never a stale backlog.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
