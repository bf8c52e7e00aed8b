// Package snapshot persists the whole world state as zstd-compressed JSON
// so a server can resume exactly where it stopped.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"tilecraft.dev/internal/sim/machine"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRateHz         int            `json:"tick_rate_hz"`
	MaxQueuePerTick    int            `json:"max_queue_per_tick"`
	SnapshotEveryTicks int            `json:"snapshot_every_ticks"`
	StarterItems       map[string]int `json:"starter_items,omitempty"`

	Pool            map[string]int `json:"pool,omitempty"`
	Unlocked        []string       `json:"unlocked,omitempty"`
	Placed          map[string]int `json:"placed,omitempty"`
	UnroutableTotal uint64         `json:"unroutable_total"`

	Instances []InstanceV1 `json:"instances"`
	Queue     []MessageV1  `json:"queue,omitempty"`
}

type InstanceV1 struct {
	Pos       [2]int           `json:"pos"`
	Tile      string           `json:"tile"`
	Completed bool             `json:"completed,omitempty"`
	Slots     []machine.SlotV1 `json:"slots,omitempty"`
}

type MessageV1 struct {
	Kind          string `json:"kind"`
	To            [2]int `json:"to"`
	Item          string `json:"item"`
	Origin        [2]int `json:"origin,omitempty"`
	RequestedFrom [2]int `json:"requested_from,omitempty"`
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func Save(path string, s *SnapshotV1) error {
	if s.Header.Version == 0 {
		s.Header.Version = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(s); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Load(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var s SnapshotV1
	if err := json.NewDecoder(dec).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
	}
	if s.Header.Version != 1 {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", filepath.Base(path), s.Header.Version)
	}
	return &s, nil
}
