package tx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// RefBlock is the TaPoS replay-protection reference carried by every
// transaction: a recent block number (mod 2^16) and a 32-bit prefix of
// that block's id.
type RefBlock struct {
	Num    uint16
	Prefix uint32
}

// RefBlockFrom computes the TaPoS reference for a block number and its
// block id (40-char hex). The prefix is the little-endian uint32 at byte
// offset 4..8 of the block id.
//
// This is the single source of truth for the prefix computation: every
// caller, whether keyed off the head block or a previous block, derives
// through here so the two paths cannot diverge.
func RefBlockFrom(blockNum uint32, blockID string) (RefBlock, error) {
	raw, err := hex.DecodeString(blockID)
	if err != nil {
		return RefBlock{}, fmt.Errorf("decode block id %q: %w", blockID, err)
	}
	if len(raw) < 8 {
		return RefBlock{}, fmt.Errorf("block id %q too short: %d bytes", blockID, len(raw))
	}
	return RefBlock{
		Num:    uint16(blockNum & 0xffff),
		Prefix: binary.LittleEndian.Uint32(raw[4:8]),
	}, nil
}
