package world

import (
	"testing"

	"tilecraft.dev/internal/sim/catalogs"
	"tilecraft.dev/internal/sim/grid"
	"tilecraft.dev/internal/sim/machine"
)

func testCatalogs() *catalogs.Catalogs {
	c := &catalogs.Catalogs{}
	c.Items.Defs = map[string]catalogs.ItemDef{
		"ore_raw":  {ID: "ore_raw", Kind: "RESOURCE"},
		"plate":    {ID: "plate", Kind: "PRODUCT"},
		"red":      {ID: "red", Kind: "WIRE"},
		"white":    {ID: "white", Kind: "WIRE"},
	}
	c.Puzzles.ByID = map[string]catalogs.PuzzleDef{
		"p1": {
			ID:          "p1",
			Anchors:     map[string]string{"0,0": "red"},
			Selections:  []string{"white"},
			Connections: map[string][]string{"red": {"white"}},
		},
	}
	c.Tiles.ByID = map[string]catalogs.TileDef{
		"hub": {ID: "hub", Function: "tilecraft:void", Unlocks: []string{"node"}},
		"node": {
			ID:            "node",
			Function:      "tilecraft:node",
			DependsOn:     "hub",
			RequiredItems: map[string]int{"plate": 1},
		},
		"extractor": {ID: "extractor", Function: "tilecraft:extractor"},
		"gated_node": {
			ID:             "gated_node",
			Function:       "tilecraft:node",
			AttachedPuzzle: &catalogs.PuzzleRef{Template: "p1"},
		},
		"broken": {ID: "broken", Function: "no_such_function"},
		"inert":  {ID: "inert"},
	}
	return c
}

func testWorld(t *testing.T) *World {
	t.Helper()
	return New(WorldConfig{
		ID:           "test",
		TickRateHz:   5,
		StarterItems: map[string]int{"plate": 10},
	}, testCatalogs(), machine.Builtin(), nil)
}

func mustPlace(t *testing.T, w *World, pos grid.Coord, tile string) {
	t.Helper()
	if err := w.PlaceTile("TEST", pos, tile); err != nil {
		t.Fatalf("PlaceTile(%s, %s): %v", pos, tile, err)
	}
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce(nil)
	}
}
