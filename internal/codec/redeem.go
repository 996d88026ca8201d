package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const RedeemPayloadSize = 33

// EncodeRedeem serializes a redemption event into a fixed-size payload.
func EncodeRedeem(dst []byte, event schema.RedeemEvent) []byte {
	if cap(dst) < RedeemPayloadSize {
		dst = make([]byte, RedeemPayloadSize)
	} else {
		dst = dst[:RedeemPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(event.Market))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(event.Level))
	dst[8] = byte(event.Direction)
	binary.LittleEndian.PutUint64(dst[9:17], uint64(event.Owner))
	binary.LittleEndian.PutUint64(dst[17:25], uint64(event.Share))
	binary.LittleEndian.PutUint64(dst[25:33], uint64(event.Output))

	return dst
}

// DecodeRedeem parses a fixed-size redemption payload.
func DecodeRedeem(src []byte) (schema.RedeemEvent, bool) {
	if len(src) < RedeemPayloadSize {
		return schema.RedeemEvent{}, false
	}
	return schema.RedeemEvent{
		Market:    schema.MarketID(binary.LittleEndian.Uint32(src[0:4])),
		Level:     schema.Tick(int32(binary.LittleEndian.Uint32(src[4:8]))),
		Direction: schema.Direction(src[8]),
		Owner:     schema.AccountID(binary.LittleEndian.Uint64(src[9:17])),
		Share:     schema.Amount(int64(binary.LittleEndian.Uint64(src[17:25]))),
		Output:    schema.Amount(int64(binary.LittleEndian.Uint64(src[25:33]))),
	}, true
}
