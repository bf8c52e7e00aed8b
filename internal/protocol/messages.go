package protocol

// Action names carried by ACT.
const (
	ActPlaceTile    = "PLACE_TILE"
	ActRemoveTile   = "REMOVE_TILE"
	ActSetTarget    = "SET_TARGET"
	ActSetItem      = "SET_ITEM"
	ActSubmitAnswer = "SUBMIT_ANSWER"
	ActInject       = "INJECT"
)

// Event types reported in OBS.
const (
	EventPlace          = "PLACE"
	EventRemove         = "REMOVE"
	EventTransaction    = "TRANSACTION"
	EventExtractRequest = "EXTRACT_REQUEST"
	EventUnroutable     = "UNROUTABLE"
	EventPuzzleSolved   = "PUZZLE_SOLVED"
	EventPuzzleFailed   = "PUZZLE_FAILED"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz int `json:"tick_rate_hz"`
}

type CatalogDigests struct {
	ItemPalette   DigestRef `json:"item_palette"`
	TilesDigest   string    `json:"tiles_digest"`
	PuzzlesDigest string    `json:"puzzles_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ACT (client -> server): one grid operation.
type ActMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	ID              string              `json:"id"`
	Action          string              `json:"action"`
	Pos             [2]int              `json:"pos"`
	Tile            string              `json:"tile,omitempty"`
	Target          *[2]int             `json:"target,omitempty"`
	Item            string              `json:"item,omitempty"`
	Answer          map[string][]string `json:"answer,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// OBS (server -> client): state of the grid after one tick.
type ObsMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	Tiles           []TileObs `json:"tiles"`
	Events          []Event   `json:"events"`
	UnroutableTotal uint64    `json:"unroutable_total"`
}

type TileObs struct {
	Pos       [2]int `json:"pos"`
	Tile      string `json:"tile"`
	Completed bool   `json:"completed"`
}

type Event struct {
	Tick   uint64 `json:"tick"`
	Type   string `json:"type"`
	Pos    [2]int `json:"pos"`
	Item   string `json:"item,omitempty"`
	Reason string `json:"reason,omitempty"`
}
