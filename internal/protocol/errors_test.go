package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{
		ErrProtoBadRequest, ErrBadRequest, ErrNoTile, ErrBadTarget,
		ErrOccupied, ErrNoResource, ErrLocked, ErrPuzzleUnsolved,
		ErrUnroutable, ErrInternal,
	} {
		if !IsKnownCode(code) {
			t.Fatalf("IsKnownCode(%q)=false", code)
		}
	}
	if !IsKnownCode("") {
		t.Fatalf("IsKnownCode(\"\")=false, empty means no error")
	}
	if IsKnownCode("E_MADE_UP") {
		t.Fatalf("IsKnownCode accepted an unknown code")
	}
}
