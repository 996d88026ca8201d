package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const FillPayloadSize = 29

// EncodeFill serializes a fill event into a fixed-size payload.
func EncodeFill(dst []byte, fill schema.FillEvent) []byte {
	if cap(dst) < FillPayloadSize {
		dst = make([]byte, FillPayloadSize)
	} else {
		dst = dst[:FillPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(fill.Market))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(fill.Level))
	dst[8] = byte(fill.Direction)
	binary.LittleEndian.PutUint64(dst[9:17], uint64(fill.AmountIn))
	binary.LittleEndian.PutUint64(dst[17:25], uint64(fill.AmountOut))
	binary.LittleEndian.PutUint32(dst[25:29], uint32(fill.NewTick))

	return dst
}

// DecodeFill parses a fixed-size fill payload.
func DecodeFill(src []byte) (schema.FillEvent, bool) {
	if len(src) < FillPayloadSize {
		return schema.FillEvent{}, false
	}
	return schema.FillEvent{
		Market:    schema.MarketID(binary.LittleEndian.Uint32(src[0:4])),
		Level:     schema.Tick(int32(binary.LittleEndian.Uint32(src[4:8]))),
		Direction: schema.Direction(src[8]),
		AmountIn:  schema.Amount(int64(binary.LittleEndian.Uint64(src[9:17]))),
		AmountOut: schema.Amount(int64(binary.LittleEndian.Uint64(src[17:25]))),
		NewTick:   schema.Tick(int32(binary.LittleEndian.Uint32(src[25:29]))),
	}, true
}
