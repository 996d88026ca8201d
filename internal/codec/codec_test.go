package codec

import (
	"testing"

	"main/internal/schema"
)

func TestOrderRoundTrip(t *testing.T) {
	orig := schema.OrderEvent{
		Market:    3,
		Level:     -120,
		Direction: schema.DirectionSellQuote,
		Owner:     77,
		Amount:    123456789,
	}
	decoded, ok := DecodeOrder(EncodeOrder(nil, orig))
	if !ok || decoded != orig {
		t.Fatalf("order round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestFillRoundTripNegativeTick(t *testing.T) {
	orig := schema.FillEvent{
		Market:    1,
		Level:     -60,
		Direction: schema.DirectionSellBase,
		AmountIn:  5,
		AmountOut: 9,
		NewTick:   -35,
	}
	decoded, ok := DecodeFill(EncodeFill(nil, orig))
	if !ok || decoded != orig {
		t.Fatalf("fill round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestRedeemRoundTrip(t *testing.T) {
	orig := schema.RedeemEvent{
		Market:    2,
		Level:     600,
		Direction: schema.DirectionSellBase,
		Owner:     8,
		Share:     50,
		Output:    25,
	}
	decoded, ok := DecodeRedeem(EncodeRedeem(nil, orig))
	if !ok || decoded != orig {
		t.Fatalf("redeem round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestDecodeShortPayload(t *testing.T) {
	if _, ok := DecodeOrder(make([]byte, OrderPayloadSize-1)); ok {
		t.Fatal("short order payload should fail")
	}
	if _, ok := DecodeFill(make([]byte, FillPayloadSize-1)); ok {
		t.Fatal("short fill payload should fail")
	}
	if _, ok := DecodeRedeem(make([]byte, RedeemPayloadSize-1)); ok {
		t.Fatal("short redeem payload should fail")
	}
}
