package catalogs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfigs(t *testing.T, items, puzzles, tiles string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"items.json":   items,
		"puzzles.json": puzzles,
		"tiles.json":   tiles,
	} {
		if body == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const testItems = `[
  {"id":"red","name":"item/red","kind":"WIRE"},
  {"id":"white","name":"item/white","kind":"WIRE"},
  {"id":"plate","name":"item/plate","kind":"PRODUCT"}
]`

const testPuzzles = `[
  {"id":"p1","anchors":{"0,0":"red"},"selections":["white"],"connections":{"red":["white"]}}
]`

func TestLoad_Valid(t *testing.T) {
	tiles := `[
	  {"id":"hub","icon":"i/hub","name":"t/hub","unlocks":["relay"]},
	  {"id":"relay","icon":"i/relay","name":"t/relay","depends_on":"hub",
	   "required_items":{"plate":1},
	   "attached_puzzle":{"template":"p1"}}
	]`
	dir := writeConfigs(t, testItems, testPuzzles, tiles)
	c, rejected, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("rejected=%v, want none", rejected)
	}
	if len(c.Tiles.ByID) != 2 {
		t.Fatalf("tiles=%d, want 2", len(c.Tiles.ByID))
	}
	if got := c.Items.Palette; !reflect.DeepEqual(got, []string{"plate", "red", "white"}) {
		t.Fatalf("item palette=%v", got)
	}
	if c.Tiles.Digest == "" || c.Puzzles.Digest == "" || c.Items.PaletteDigest == "" {
		t.Fatalf("missing digest: %+v", c)
	}
}

func TestLoad_RejectsDanglingDependsOn(t *testing.T) {
	tiles := `[
	  {"id":"hub","icon":"i/hub","name":"t/hub"},
	  {"id":"ghost","icon":"i/g","name":"t/g","depends_on":"nothing"}
	]`
	dir := writeConfigs(t, testItems, testPuzzles, tiles)
	c, rejected, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != "ghost" {
		t.Fatalf("rejected=%v, want ghost", rejected)
	}
	if _, ok := c.Tiles.ByID["hub"]; !ok {
		t.Fatalf("hub should survive a sibling rejection")
	}
}

func TestLoad_RejectsDependsOnCycle(t *testing.T) {
	tiles := `[
	  {"id":"a","icon":"i/a","name":"t/a","depends_on":"b"},
	  {"id":"b","icon":"i/b","name":"t/b","depends_on":"a"},
	  {"id":"ok","icon":"i/ok","name":"t/ok"}
	]`
	dir := writeConfigs(t, testItems, testPuzzles, tiles)
	c, rejected, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 2 {
		t.Fatalf("rejected=%v, want the full cycle", rejected)
	}
	if len(c.Tiles.ByID) != 1 {
		t.Fatalf("tiles=%v, want only ok", c.Tiles.ByID)
	}
}

func TestLoad_RejectsPuzzleWithUnknownConnectionID(t *testing.T) {
	puzzles := `[
	  {"id":"bad","anchors":{"0,0":"red"},"selections":["white"],
	   "connections":{"red":["white"],"white":["plate"]}},
	  {"id":"good","anchors":{"0,0":"red"},"selections":["white"],
	   "connections":{"red":["white"]}}
	]`
	// plate is a real item but not part of the puzzle's alphabet.
	dir := writeConfigs(t, testItems, puzzles, `[]`)
	c, rejected, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != "bad" {
		t.Fatalf("rejected=%v, want bad", rejected)
	}
	if _, ok := c.Puzzles.ByID["good"]; !ok {
		t.Fatalf("good puzzle should load")
	}
}

func TestLoad_RejectsTileWithUnknownPuzzleTemplate(t *testing.T) {
	tiles := `[
	  {"id":"x","icon":"i/x","name":"t/x","attached_puzzle":{"template":"nope"}}
	]`
	dir := writeConfigs(t, testItems, testPuzzles, tiles)
	_, rejected, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != "x" {
		t.Fatalf("rejected=%v, want x", rejected)
	}
}

func TestResolvePuzzle_ParamsOverride(t *testing.T) {
	dir := writeConfigs(t, testItems, testPuzzles, `[
	  {"id":"x","icon":"i/x","name":"t/x",
	   "attached_puzzle":{"template":"p1","params":{"selections":["white","red"]}}}
	]`)
	c, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pz, ok := c.ResolvePuzzle(c.Tiles.ByID["x"])
	if !ok {
		t.Fatalf("ResolvePuzzle=false")
	}
	if !reflect.DeepEqual(pz.Selections, []string{"white", "red"}) {
		t.Fatalf("selections=%v, want override", pz.Selections)
	}
	if len(pz.Anchors) != 1 {
		t.Fatalf("anchors=%v, want template's", pz.Anchors)
	}
}

func TestTileDef_RoundTrip(t *testing.T) {
	def := TileDef{
		ID:                   "relay",
		Icon:                 "i/relay",
		IconMode:             "ROTATED",
		Function:             "tilecraft:node",
		Unlocks:              []string{"junction"},
		DependsOn:            "hub",
		Name:                 "t/relay",
		Description:          "t/relay/desc",
		CompletedDescription: "t/relay/done",
		RequiredItems:        map[string]int{"plate": 2},
		AttachedPuzzle: &PuzzleRef{
			Template: "p1",
			Params:   PuzzleParams{Selections: []string{"white"}},
		},
	}
	b, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back TileDef
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(def, back) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", def, back)
	}
}
