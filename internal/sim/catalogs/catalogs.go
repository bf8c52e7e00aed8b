package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tilecraft.dev/internal/sim/grid"
)

type Catalogs struct {
	Items   ItemCatalog
	Puzzles PuzzleCatalog
	Tiles   TileCatalog
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"` // "RESOURCE","PRODUCT","WIRE"
}

type PuzzleCatalog struct {
	ByID   map[string]PuzzleDef
	Digest string
}

// PuzzleDef is a connection-puzzle template: fixed colored anchors, the
// answer alphabet, and the required connection graph.
type PuzzleDef struct {
	ID          string              `json:"id"`
	Anchors     map[string]string   `json:"anchors"` // "x,y" -> item id
	Selections  []string            `json:"selections"`
	Connections map[string][]string `json:"connections"`
}

type TileCatalog struct {
	ByID   map[string]TileDef
	Digest string
}

type TileDef struct {
	ID                   string         `json:"id"`
	Icon                 string         `json:"icon"`
	IconMode             string         `json:"icon_mode,omitempty"`
	Function             string         `json:"function,omitempty"`
	Unlocks              []string       `json:"unlocks,omitempty"`
	DependsOn            string         `json:"depends_on,omitempty"`
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	CompletedDescription string         `json:"completed_description,omitempty"`
	RequiredItems        map[string]int `json:"required_items,omitempty"`
	AttachedPuzzle       *PuzzleRef     `json:"attached_puzzle,omitempty"`
}

type PuzzleRef struct {
	Template string       `json:"template"`
	Params   PuzzleParams `json:"params,omitempty"`
}

// PuzzleParams override the referenced template field-by-field; empty
// fields keep the template's values.
type PuzzleParams struct {
	Anchors     map[string]string   `json:"anchors,omitempty"`
	Selections  []string            `json:"selections,omitempty"`
	Connections map[string][]string `json:"connections,omitempty"`
}

// LoadError reports one rejected catalog entry. Loading continues past it
// so one bad definition does not take down the whole content pack.
type LoadError struct {
	File string
	ID   string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: entry %q: %v", e.File, e.ID, e.Err)
}

// Load reads items.json, puzzles.json and tiles.json from configDir.
// File-level failures (missing file, malformed JSON) abort the load;
// per-entry validation failures reject only that entry and are returned
// for the content author.
func Load(configDir string) (*Catalogs, []LoadError, error) {
	var c Catalogs
	var rejected []LoadError

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items, &rejected); err != nil {
		return nil, rejected, err
	}
	if err := loadPuzzles(filepath.Join(configDir, "puzzles.json"), &c.Puzzles, &c.Items, &rejected); err != nil {
		return nil, rejected, err
	}
	if err := loadTiles(filepath.Join(configDir, "tiles.json"), &c.Tiles, &c.Items, &c.Puzzles, &rejected); err != nil {
		return nil, rejected, err
	}

	return &c, rejected, nil
}

// ResolvePuzzle overlays a tile's attached-puzzle params on its template.
// Returns false when the tile has no attached puzzle.
func (c *Catalogs) ResolvePuzzle(tile TileDef) (PuzzleDef, bool) {
	ref := tile.AttachedPuzzle
	if ref == nil {
		return PuzzleDef{}, false
	}
	def := c.Puzzles.ByID[ref.Template]
	out := PuzzleDef{
		ID:          def.ID,
		Anchors:     def.Anchors,
		Selections:  def.Selections,
		Connections: def.Connections,
	}
	if len(ref.Params.Anchors) > 0 {
		out.Anchors = ref.Params.Anchors
	}
	if len(ref.Params.Selections) > 0 {
		out.Selections = ref.Params.Selections
	}
	if len(ref.Params.Connections) > 0 {
		out.Connections = ref.Params.Connections
	}
	return out, true
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog, rejected *[]LoadError) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			*rejected = append(*rejected, LoadError{File: "items.json", Err: fmt.Errorf("empty id")})
			continue
		}
		if _, dup := out.Defs[d.ID]; dup {
			*rejected = append(*rejected, LoadError{File: "items.json", ID: d.ID, Err: fmt.Errorf("duplicate id")})
			continue
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadPuzzles(path string, out *PuzzleCatalog, items *ItemCatalog, rejected *[]LoadError) error {
	out.ByID = map[string]PuzzleDef{}

	raw, err := os.ReadFile(path)
	if err != nil {
		// Content packs without puzzles are allowed.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []PuzzleDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("puzzles.json: %w", err)
	}
	for _, d := range defs {
		if d.ID == "" {
			*rejected = append(*rejected, LoadError{File: "puzzles.json", Err: fmt.Errorf("empty id")})
			continue
		}
		if _, dup := out.ByID[d.ID]; dup {
			*rejected = append(*rejected, LoadError{File: "puzzles.json", ID: d.ID, Err: fmt.Errorf("duplicate id")})
			continue
		}
		if err := validatePuzzle(d, items); err != nil {
			*rejected = append(*rejected, LoadError{File: "puzzles.json", ID: d.ID, Err: err})
			continue
		}
		out.ByID[d.ID] = d
	}
	return nil
}

// validatePuzzle enforces the template invariant: every id referenced in
// the connection graph must appear in selections or anchors.
func validatePuzzle(d PuzzleDef, items *ItemCatalog) error {
	known := map[string]bool{}
	for pos, id := range d.Anchors {
		if _, err := grid.ParseCoord(pos); err != nil {
			return fmt.Errorf("anchor %s: %w", pos, err)
		}
		if _, ok := items.Defs[id]; !ok {
			return fmt.Errorf("anchor %s: unknown item %q", pos, id)
		}
		known[id] = true
	}
	for _, id := range d.Selections {
		if _, ok := items.Defs[id]; !ok {
			return fmt.Errorf("selection: unknown item %q", id)
		}
		known[id] = true
	}
	for from, tos := range d.Connections {
		if !known[from] {
			return fmt.Errorf("connections: %q not in selections or anchors", from)
		}
		for _, to := range tos {
			if !known[to] {
				return fmt.Errorf("connections[%s]: %q not in selections or anchors", from, to)
			}
		}
	}
	return nil
}

func loadTiles(path string, out *TileCatalog, items *ItemCatalog, puzzles *PuzzleCatalog, rejected *[]LoadError) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TileDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("tiles.json: %w", err)
	}
	out.ByID = map[string]TileDef{}
	for _, d := range defs {
		if d.ID == "" {
			*rejected = append(*rejected, LoadError{File: "tiles.json", Err: fmt.Errorf("empty id")})
			continue
		}
		if _, dup := out.ByID[d.ID]; dup {
			*rejected = append(*rejected, LoadError{File: "tiles.json", ID: d.ID, Err: fmt.Errorf("duplicate id")})
			continue
		}
		if err := validateTile(d, items, puzzles); err != nil {
			*rejected = append(*rejected, LoadError{File: "tiles.json", ID: d.ID, Err: err})
			continue
		}
		out.ByID[d.ID] = d
	}

	// depends_on is checked once all entries are in: a dangling reference
	// or a dependency cycle rejects the entry (or the whole cycle).
	for _, id := range sortedTileIDs(out.ByID) {
		d := out.ByID[id]
		if d.DependsOn == "" {
			continue
		}
		if _, ok := out.ByID[d.DependsOn]; !ok {
			*rejected = append(*rejected, LoadError{File: "tiles.json", ID: id, Err: fmt.Errorf("depends_on %q: no such tile", d.DependsOn)})
			delete(out.ByID, id)
		}
	}
	for _, id := range tilesInDependencyCycles(out.ByID) {
		*rejected = append(*rejected, LoadError{File: "tiles.json", ID: id, Err: fmt.Errorf("depends_on cycle")})
		delete(out.ByID, id)
	}
	return nil
}

func validateTile(d TileDef, items *ItemCatalog, puzzles *PuzzleCatalog) error {
	for item, n := range d.RequiredItems {
		if _, ok := items.Defs[item]; !ok {
			return fmt.Errorf("required_items: unknown item %q", item)
		}
		if n <= 0 {
			return fmt.Errorf("required_items[%s]: count %d", item, n)
		}
	}
	if ref := d.AttachedPuzzle; ref != nil {
		if _, ok := puzzles.ByID[ref.Template]; !ok {
			return fmt.Errorf("attached_puzzle: unknown template %q", ref.Template)
		}
	}
	return nil
}

func sortedTileIDs(m map[string]TileDef) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// tilesInDependencyCycles walks depends_on chains and returns, sorted, the
// ids of every tile that can reach itself.
func tilesInDependencyCycles(m map[string]TileDef) []string {
	var cyclic []string
	for id := range m {
		seen := map[string]bool{id: true}
		cur := m[id].DependsOn
		for cur != "" {
			if cur == id {
				cyclic = append(cyclic, id)
				break
			}
			if seen[cur] {
				break
			}
			seen[cur] = true
			cur = m[cur].DependsOn
		}
	}
	sort.Strings(cyclic)
	return cyclic
}
