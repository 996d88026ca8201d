package state

import (
	"context"
	"fmt"

	"main/internal/book"
	"main/internal/claims"
	"main/internal/codec"
	"main/internal/journal"
	"main/internal/schema"
)

// RecoverConfig controls snapshot plus journal-tail recovery.
type RecoverConfig struct {
	JournalDir      string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

// PayoutKey groups replayed fill proceeds by the asset they were paid in.
type PayoutKey struct {
	Market    schema.MarketID
	Direction schema.Direction
}

// RecoverResult contains rebuilt engine state and replay metadata. Payouts
// is the replayed fill output per market side net of redemptions; callers
// holding custody balances outside the journal use it to re-seed them.
type RecoverResult struct {
	Book      *book.Book
	Claims    *claims.Ledger
	LastTicks map[schema.MarketID]schema.Tick
	LastSeq   uint64
	Payouts   map[PayoutKey]schema.Amount
}

// Recover loads the snapshot, if any, then replays the journal tail past
// the snapshot's sequence to rebuild the book, the claim ledger, and each
// market's last-observed tick. Replay is an exact re-application of the
// recorded operations, so a redemption whose recomputed output differs
// from the recorded one means the journal and snapshot disagree.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.JournalDir == "" {
		return RecoverResult{}, fmt.Errorf("journal dir is empty")
	}

	result := RecoverResult{
		Book:      book.New(),
		Claims:    claims.New(),
		LastTicks: make(map[schema.MarketID]schema.Tick),
		Payouts:   make(map[PayoutKey]schema.Amount),
	}

	if cfg.SnapshotPath != "" {
		snapshot, err := Read(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		result.LastTicks = snapshot.Apply(result.Book, result.Claims)
		result.LastSeq = snapshot.LastSeq
	}

	pb, err := journal.NewPlayback(journal.PlaybackConfig{
		Dir:             cfg.JournalDir,
		FilePrefix:      cfg.FilePrefix,
		Speed:           0,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Seq <= result.LastSeq {
			return nil
		}
		result.LastSeq = header.Seq
		return applyEvent(&result, header, payload)
	})
	if err != nil {
		return RecoverResult{}, err
	}
	return result, nil
}

func applyEvent(result *RecoverResult, header schema.EventHeader, payload []byte) error {
	switch header.Type {
	case schema.EventOrderPlaced:
		order, ok := codec.DecodeOrder(payload)
		if !ok {
			return fmt.Errorf("decode order event seq=%d", header.Seq)
		}
		key := book.Key{Market: order.Market, Level: order.Level, Direction: order.Direction}
		if err := result.Book.Add(key, order.Amount); err != nil {
			return fmt.Errorf("replay placement seq=%d: %w", header.Seq, err)
		}
		position := schema.NewPositionID(order.Market, order.Level, order.Direction)
		if err := result.Claims.Mint(position, order.Owner, order.Amount); err != nil {
			return fmt.Errorf("replay placement seq=%d: %w", header.Seq, err)
		}

	case schema.EventOrderCanceled:
		order, ok := codec.DecodeOrder(payload)
		if !ok {
			return fmt.Errorf("decode cancel event seq=%d", header.Seq)
		}
		position := schema.NewPositionID(order.Market, order.Level, order.Direction)
		if err := result.Claims.Burn(position, order.Owner, order.Amount); err != nil {
			return fmt.Errorf("replay cancel seq=%d: %w", header.Seq, err)
		}
		key := book.Key{Market: order.Market, Level: order.Level, Direction: order.Direction}
		if err := result.Book.Reduce(key, order.Amount); err != nil {
			return fmt.Errorf("replay cancel seq=%d: %w", header.Seq, err)
		}

	case schema.EventFill:
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return fmt.Errorf("decode fill event seq=%d", header.Seq)
		}
		key := book.Key{Market: fill.Market, Level: fill.Level, Direction: fill.Direction}
		if err := result.Book.Reduce(key, fill.AmountIn); err != nil {
			return fmt.Errorf("replay fill seq=%d: %w", header.Seq, err)
		}
		position := schema.NewPositionID(fill.Market, fill.Level, fill.Direction)
		if err := result.Claims.Credit(position, fill.AmountOut); err != nil {
			return fmt.Errorf("replay fill seq=%d: %w", header.Seq, err)
		}
		result.LastTicks[fill.Market] = fill.NewTick
		result.Payouts[PayoutKey{Market: fill.Market, Direction: fill.Direction}] += fill.AmountOut

	case schema.EventRedeem:
		redeem, ok := codec.DecodeRedeem(payload)
		if !ok {
			return fmt.Errorf("decode redeem event seq=%d", header.Seq)
		}
		position := schema.NewPositionID(redeem.Market, redeem.Level, redeem.Direction)
		output, err := result.Claims.Redeem(position, redeem.Owner, redeem.Share)
		if err != nil {
			return fmt.Errorf("replay redeem seq=%d: %w", header.Seq, err)
		}
		if output != redeem.Output {
			return fmt.Errorf("replay redeem seq=%d: output mismatch recorded=%d replayed=%d", header.Seq, redeem.Output, output)
		}
		result.Payouts[PayoutKey{Market: redeem.Market, Direction: redeem.Direction}] -= output
	}
	return nil
}
