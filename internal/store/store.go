package store

import (
	"fmt"

	"gorm.io/gorm"

	"main/internal/codec"
	"main/internal/schema"
)

// OrderRow persists one placement or cancellation event.
type OrderRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Seq       uint64 `gorm:"uniqueIndex"`
	Market    uint32 `gorm:"index"`
	Level     int32
	Direction uint8
	Owner     uint64 `gorm:"index"`
	Amount    int64
	Canceled  bool
	TsEvent   int64
}

// TableName maps OrderRow to the orders table.
func (OrderRow) TableName() string { return "orders" }

// FillRow persists one executed fill.
type FillRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Seq       uint64 `gorm:"uniqueIndex"`
	Market    uint32 `gorm:"index"`
	Level     int32
	Direction uint8
	AmountIn  int64
	AmountOut int64
	NewTick   int32
	TsEvent   int64
}

// TableName maps FillRow to the fills table.
func (FillRow) TableName() string { return "fills" }

// RedeemRow persists one redemption.
type RedeemRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Seq       uint64 `gorm:"uniqueIndex"`
	Market    uint32 `gorm:"index"`
	Level     int32
	Direction uint8
	Owner     uint64 `gorm:"index"`
	Share     int64
	Output    int64
	TsEvent   int64
}

// TableName maps RedeemRow to the redemptions table.
func (RedeemRow) TableName() string { return "redemptions" }

// Store writes engine events to PostgreSQL for offline queries. It is fed
// from the event bus, off the hot path.
type Store struct {
	db *gorm.DB
}

// New builds a store over an open client.
func New(client *Client) *Store {
	return &Store{db: client.DB()}
}

// Migrate creates or updates the event tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&OrderRow{}, &FillRow{}, &RedeemRow{})
}

// Apply decodes an event and persists it to the matching table. Unknown
// event types are skipped.
func (s *Store) Apply(header schema.EventHeader, payload []byte) error {
	switch header.Type {
	case schema.EventOrderPlaced, schema.EventOrderCanceled:
		order, ok := codec.DecodeOrder(payload)
		if !ok {
			return fmt.Errorf("decode order event seq=%d", header.Seq)
		}
		row := OrderRow{
			Seq:       header.Seq,
			Market:    uint32(order.Market),
			Level:     int32(order.Level),
			Direction: uint8(order.Direction),
			Owner:     uint64(order.Owner),
			Amount:    int64(order.Amount),
			Canceled:  header.Type == schema.EventOrderCanceled,
			TsEvent:   header.TsEvent,
		}
		return s.db.Create(&row).Error

	case schema.EventFill:
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return fmt.Errorf("decode fill event seq=%d", header.Seq)
		}
		row := FillRow{
			Seq:       header.Seq,
			Market:    uint32(fill.Market),
			Level:     int32(fill.Level),
			Direction: uint8(fill.Direction),
			AmountIn:  int64(fill.AmountIn),
			AmountOut: int64(fill.AmountOut),
			NewTick:   int32(fill.NewTick),
			TsEvent:   header.TsEvent,
		}
		return s.db.Create(&row).Error

	case schema.EventRedeem:
		redeem, ok := codec.DecodeRedeem(payload)
		if !ok {
			return fmt.Errorf("decode redeem event seq=%d", header.Seq)
		}
		row := RedeemRow{
			Seq:       header.Seq,
			Market:    uint32(redeem.Market),
			Level:     int32(redeem.Level),
			Direction: uint8(redeem.Direction),
			Owner:     uint64(redeem.Owner),
			Share:     int64(redeem.Share),
			Output:    int64(redeem.Output),
			TsEvent:   header.TsEvent,
		}
		return s.db.Create(&row).Error
	}
	return nil
}

// RecentFills returns the latest fills for a market, newest first.
func (s *Store) RecentFills(market schema.MarketID, limit int) ([]FillRow, error) {
	var rows []FillRow
	err := s.db.
		Where("market = ?", uint32(market)).
		Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// OpenInterest sums the pending amounts recorded for a market, net of
// cancellations and fills.
func (s *Store) OpenInterest(market schema.MarketID) (schema.Amount, error) {
	var placed, canceled, filled int64
	err := s.db.Model(&OrderRow{}).
		Where("market = ? AND canceled = ?", uint32(market), false).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&placed).Error
	if err != nil {
		return 0, err
	}
	err = s.db.Model(&OrderRow{}).
		Where("market = ? AND canceled = ?", uint32(market), true).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&canceled).Error
	if err != nil {
		return 0, err
	}
	err = s.db.Model(&FillRow{}).
		Where("market = ?", uint32(market)).
		Select("COALESCE(SUM(amount_in), 0)").
		Scan(&filled).Error
	if err != nil {
		return 0, err
	}
	return schema.Amount(placed - canceled - filled), nil
}
