package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Action layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrNoTile         = "E_NO_TILE"
	ErrBadTarget      = "E_BAD_TARGET"
	ErrOccupied       = "E_OCCUPIED"
	ErrNoResource     = "E_NO_RESOURCE"
	ErrLocked         = "E_LOCKED"
	ErrPuzzleUnsolved = "E_PUZZLE_UNSOLVED"
	ErrUnroutable     = "E_UNROUTABLE"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNoTile:          {},
	ErrBadTarget:       {},
	ErrOccupied:        {},
	ErrNoResource:      {},
	ErrLocked:          {},
	ErrPuzzleUnsolved:  {},
	ErrUnroutable:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
