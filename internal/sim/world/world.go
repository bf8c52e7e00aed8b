package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync/atomic"

	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/catalogs"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/machine"
)

// World owns the tile grid and drives message propagation. All state is
// mutated from the single Run goroutine (or StepOnce in tests); transports
// talk to it through channels only.
type World struct {
	cfg  WorldConfig
	cats *catalogs.Catalogs
	reg  *machine.Registry
	log  *log.Logger

	tick atomic.Uint64

	instances map[grid.Coord]*Instance
	queue     []Message

	pool     map[string]int
	unlocked map[string]bool
	// unlockable marks tile ids that appear in some tile's unlocks list and
	// therefore need an explicit grant before placement.
	unlockable map[string]bool
	placed     map[string]int

	events          []protocol.Event
	unroutableTotal uint64

	onTick  func(TickLogEntry)
	onAudit func(AuditEntry)

	stop    chan struct{}
	inbox   chan ActionEnvelope
	attach  chan AttachRequest
	detach  chan string
	clients map[string]chan []byte
}

// Instance is one placed tile: its definition id, behavior dispatch, and
// the instance-scoped state its behavior declared.
type Instance struct {
	Coord     grid.Coord
	Tile      string
	Behavior  machine.Behavior // nil when the tile type has no function
	State     *machine.State
	Puzzle    *catalogs.PuzzleDef // nil when no puzzle is attached
	Completed bool
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, reg *machine.Registry, logger *log.Logger) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:        cfg,
		cats:       cats,
		reg:        reg,
		log:        logger,
		instances:  map[grid.Coord]*Instance{},
		pool:       map[string]int{},
		unlocked:   map[string]bool{},
		unlockable: map[string]bool{},
		placed:     map[string]int{},
		stop:       make(chan struct{}),
		inbox:      make(chan ActionEnvelope, 256),
		attach:     make(chan AttachRequest, 16),
		detach:     make(chan string, 16),
		clients:    map[string]chan []byte{},
	}
	for item, n := range cfg.StarterItems {
		w.pool[item] = n
	}
	for _, def := range cats.Tiles.ByID {
		for _, id := range def.Unlocks {
			w.unlockable[id] = true
		}
	}
	return w
}

func (w *World) ID() string { return w.cfg.ID }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) Tick() uint64 { return w.tick.Load() }

func (w *World) SnapshotEveryTicks() int { return w.cfg.SnapshotEveryTicks }

func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

// OnTick installs the per-tick log sink. Call before Run.
func (w *World) OnTick(fn func(TickLogEntry)) { w.onTick = fn }

// OnAudit installs the audit sink. Call before Run.
func (w *World) OnAudit(fn func(AuditEntry)) { w.onAudit = fn }

// PoolCount reports how many of item the world pool holds.
func (w *World) PoolCount(item string) int { return w.pool[item] }

// InstanceAt returns the placed tile at pos, if any.
func (w *World) InstanceAt(pos grid.Coord) (*Instance, bool) {
	inst, ok := w.instances[pos]
	return inst, ok
}

// stateDigest hashes grid, pool and queue so replays and tests can assert
// two worlds are in the same state.
func (w *World) stateDigest(tick uint64) string {
	type instDump struct {
		Pos       [2]int           `json:"pos"`
		Tile      string           `json:"tile"`
		Completed bool             `json:"completed"`
		Slots     []machine.SlotV1 `json:"slots,omitempty"`
	}
	dump := struct {
		Tick      uint64         `json:"tick"`
		Instances []instDump     `json:"instances"`
		Queue     []Message      `json:"queue"`
		Pool      map[string]int `json:"pool"`
	}{Tick: tick, Pool: w.pool, Queue: w.queue}
	for _, c := range grid.SortedCoords(w.instances) {
		inst := w.instances[c]
		d := instDump{Pos: c.ToArray(), Tile: inst.Tile, Completed: inst.Completed}
		if inst.State != nil {
			d.Slots = inst.State.Export()
		}
		dump.Instances = append(dump.Instances, d)
	}
	b, _ := json.Marshal(dump)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
