package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const OrderPayloadSize = 25

// EncodeOrder serializes an order place/cancel event into a fixed-size
// payload.
func EncodeOrder(dst []byte, event schema.OrderEvent) []byte {
	if cap(dst) < OrderPayloadSize {
		dst = make([]byte, OrderPayloadSize)
	} else {
		dst = dst[:OrderPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(event.Market))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(event.Level))
	dst[8] = byte(event.Direction)
	binary.LittleEndian.PutUint64(dst[9:17], uint64(event.Owner))
	binary.LittleEndian.PutUint64(dst[17:25], uint64(event.Amount))

	return dst
}

// DecodeOrder parses a fixed-size order payload.
func DecodeOrder(src []byte) (schema.OrderEvent, bool) {
	if len(src) < OrderPayloadSize {
		return schema.OrderEvent{}, false
	}
	return schema.OrderEvent{
		Market:    schema.MarketID(binary.LittleEndian.Uint32(src[0:4])),
		Level:     schema.Tick(int32(binary.LittleEndian.Uint32(src[4:8]))),
		Direction: schema.Direction(src[8]),
		Owner:     schema.AccountID(binary.LittleEndian.Uint64(src[9:17])),
		Amount:    schema.Amount(int64(binary.LittleEndian.Uint64(src[17:25]))),
	}, true
}
