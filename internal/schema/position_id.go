package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PositionID identifies the aggregate of all orders sharing the same
// (market, price level, direction) key. It doubles as the fungible
// sub-ledger identifier for claim shares.
type PositionID [32]byte

// NewPositionID derives the identifier for a position key. The derivation
// is pure: the same key always yields the same ID, on every process.
func NewPositionID(market MarketID, level Tick, direction Direction) PositionID {
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(market))
	binary.BigEndian.PutUint32(buf[4:8], uint32(level))
	buf[8] = byte(direction)
	return PositionID(sha256.Sum256(buf[:]))
}

// Short returns an abbreviated hex form for logs.
func (p PositionID) Short() string {
	return hex.EncodeToString(p[:4])
}

func (p PositionID) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalText encodes the ID as hex for JSON snapshots.
func (p PositionID) MarshalText() ([]byte, error) {
	dst := make([]byte, hex.EncodedLen(len(p)))
	hex.Encode(dst, p[:])
	return dst, nil
}

// UnmarshalText decodes a hex-encoded ID.
func (p *PositionID) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(p) {
		return fmt.Errorf("invalid position id length: %d", len(text))
	}
	_, err := hex.Decode(p[:], text)
	return err
}
