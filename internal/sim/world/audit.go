package world

import "tilecraft.dev/internal/protocol"

// TickLogEntry is the one-line-per-tick record persisted by the tick log
// and the sqlite index.
type TickLogEntry struct {
	Tick       uint64           `json:"tick"`
	Actions    int              `json:"actions"`
	Delivered  int              `json:"delivered"`
	Unroutable int              `json:"unroutable"`
	Events     []protocol.Event `json:"events,omitempty"`
	Digest     string           `json:"digest"`
}

// AuditEntry records one notable world mutation or drop.
type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Pos     [2]int         `json:"pos"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (w *World) audit(tick uint64, actor, action string, pos [2]int, reason string, details map[string]any) {
	if w.onAudit == nil {
		return
	}
	w.onAudit(AuditEntry{Tick: tick, Actor: actor, Action: action, Pos: pos, Reason: reason, Details: details})
}

func (w *World) event(tick uint64, typ string, pos [2]int, item, reason string) {
	w.events = append(w.events, protocol.Event{Tick: tick, Type: typ, Pos: pos, Item: item, Reason: reason})
}
