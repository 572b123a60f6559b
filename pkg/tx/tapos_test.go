package tx

import "testing"

func TestRefBlockFrom(t *testing.T) {
	// Block id layout: first 4 bytes carry the block number, the prefix is
	// read little-endian from bytes 4..8.
	blockID := "004c4b40" + "01020304" + "0000000000000000000000000000000000000000000000"

	ref, err := RefBlockFrom(5_000_000, blockID)
	if err != nil {
		t.Fatalf("RefBlockFrom() error: %v", err)
	}

	if ref.Num != uint16(5_000_000&0xffff) {
		t.Errorf("Num = %d, want %d", ref.Num, 5_000_000&0xffff)
	}
	// 0x04030201 little-endian.
	if ref.Prefix != 0x04030201 {
		t.Errorf("Prefix = %#x, want %#x", ref.Prefix, 0x04030201)
	}
}

func TestRefBlockFrom_HeadAndPrevAgree(t *testing.T) {
	// The two TaPoS strategies (keyed off head block vs previous block)
	// both delegate here, so the same (num, id) input must always produce
	// the same reference.
	blockID := "0000000aabbccdd00000000000000000000000000000000000000000"

	a, err := RefBlockFrom(10, blockID)
	if err != nil {
		t.Fatalf("RefBlockFrom() error: %v", err)
	}
	b, err := RefBlockFrom(10, blockID)
	if err != nil {
		t.Fatalf("RefBlockFrom() error: %v", err)
	}
	if a != b {
		t.Errorf("references diverge: %+v vs %+v", a, b)
	}
}

func TestRefBlockFrom_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		blockID string
	}{
		{"not hex", "zzzz"},
		{"too short", "0011223344"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RefBlockFrom(1, tc.blockID); err == nil {
				t.Errorf("RefBlockFrom(%q) should fail", tc.blockID)
			}
		})
	}
}
